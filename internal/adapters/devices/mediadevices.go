// Package devices captures local camera, microphone and screen through
// pion/mediadevices. Drivers and encoders are registered by the binary.
package devices

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// backend is the slice of the mediadevices package the provider uses.
type backend interface {
	EnumerateDevices() []mediadevices.MediaDeviceInfo
	GetUserMedia(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error)
	GetDisplayMedia(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error)
}

type systemBackend struct{}

func (systemBackend) EnumerateDevices() []mediadevices.MediaDeviceInfo {
	return mediadevices.EnumerateDevices()
}

func (systemBackend) GetUserMedia(c mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error) {
	return mediadevices.GetUserMedia(c)
}

func (systemBackend) GetDisplayMedia(c mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error) {
	return mediadevices.GetDisplayMedia(c)
}

type Options struct {
	CameraID     string
	MicrophoneID string
	Width        int
	Height       int
	FrameRate    float64
}

// Provider implements core.DeviceProvider.
type Provider struct {
	opts   Options
	codecs *mediadevices.CodecSelector
	md     backend
}

func NewProvider(codecs *mediadevices.CodecSelector, opts Options) *Provider {
	if opts.Width <= 0 {
		opts.Width = 640
	}
	if opts.Height <= 0 {
		opts.Height = 480
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = 30
	}
	return &Provider{opts: opts, codecs: codecs, md: systemBackend{}}
}

// Populate registers the selector's encoders on a peer connection's media
// engine.
func (p *Provider) Populate(m *webrtc.MediaEngine) {
	if p.codecs != nil {
		p.codecs.Populate(m)
	}
}

func (p *Provider) Enumerate(ctx context.Context) ([]core.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos := lo.Filter(p.md.EnumerateDevices(), func(d mediadevices.MediaDeviceInfo, _ int) bool {
		return d.Kind == mediadevices.VideoInput || d.Kind == mediadevices.AudioInput
	})
	return lo.Map(infos, func(d mediadevices.MediaDeviceInfo, _ int) core.Device {
		kind := domain.TrackCamera
		if d.Kind == mediadevices.AudioInput {
			kind = domain.TrackMicrophone
		}
		return core.Device{ID: d.DeviceID, Label: d.Label, Kind: kind}
	}), nil
}

// Acquire opens each requested device on its own so a missing camera never
// costs the microphone.
func (p *Provider) Acquire(ctx context.Context, req core.DeviceRequest) (core.LocalMedia, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	media := &localMedia{}
	var errs []error
	if req.Camera {
		t, err := p.capture(domain.TrackCamera, mediadevices.MediaStreamConstraints{
			Video: func(c *mediadevices.MediaTrackConstraints) {
				if p.opts.CameraID != "" {
					c.DeviceID = prop.String(p.opts.CameraID)
				}
				c.Width = prop.Int(p.opts.Width)
				c.Height = prop.Int(p.opts.Height)
				c.FrameRate = prop.Float(p.opts.FrameRate)
			},
			Codec: p.codecs,
		}, p.md.GetUserMedia)
		if err != nil {
			errs = append(errs, err)
		} else {
			media.tracks = append(media.tracks, t)
		}
	}
	if req.Microphone {
		t, err := p.capture(domain.TrackMicrophone, mediadevices.MediaStreamConstraints{
			Audio: func(c *mediadevices.MediaTrackConstraints) {
				if p.opts.MicrophoneID != "" {
					c.DeviceID = prop.String(p.opts.MicrophoneID)
				}
			},
			Codec: p.codecs,
		}, p.md.GetUserMedia)
		if err != nil {
			errs = append(errs, err)
		} else {
			media.tracks = append(media.tracks, t)
		}
	}
	if len(errs) > 0 {
		return media, fmt.Errorf("%w: %w", domain.ErrNoDevice, errors.Join(errs...))
	}
	return media, nil
}

func (p *Provider) CaptureScreen(ctx context.Context) (core.TrackHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := p.capture(domain.TrackScreen, mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {},
		Codec: p.codecs,
	}, p.md.GetDisplayMedia)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNoDevice, err)
	}
	return t, nil
}

func (p *Provider) capture(
	kind domain.TrackKind,
	c mediadevices.MediaStreamConstraints,
	get func(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error),
) (*Track, error) {
	stream, err := get(c)
	if err != nil {
		log.Warn().Str("module", "devices").Stringer("kind", kind).Err(err).Msg("capture failed")
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	tracks := stream.GetVideoTracks()
	if kind == domain.TrackMicrophone {
		tracks = stream.GetAudioTracks()
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%s: no track in stream", kind)
	}
	for _, extra := range tracks[1:] {
		_ = extra.Close()
	}
	log.Info().Str("module", "devices").Stringer("kind", kind).Str("track_id", tracks[0].ID()).Msg("captured")
	return &Track{src: tracks[0], kind: kind}, nil
}

// Track is a captured device track; it publishes itself as a pion TrackLocal.
type Track struct {
	src  mediadevices.Track
	kind domain.TrackKind
	once sync.Once
	err  error
}

func (t *Track) ID() string             { return t.src.ID() }
func (t *Track) Kind() domain.TrackKind { return t.kind }

func (t *Track) TrackLocal() webrtc.TrackLocal { return t.src }

// Stop closes the capture once; later calls return the first result.
func (t *Track) Stop() error {
	t.once.Do(func() { t.err = t.src.Close() })
	return t.err
}

type localMedia struct {
	tracks []*Track
}

func (m *localMedia) Tracks() []core.TrackHandle {
	return lo.Map(m.tracks, func(t *Track, _ int) core.TrackHandle { return t })
}

func (m *localMedia) Release() error {
	return errors.Join(lo.Map(m.tracks, func(t *Track, _ int) error { return t.Stop() })...)
}
