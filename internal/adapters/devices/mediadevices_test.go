package devices

import (
	"context"
	"errors"
	"testing"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/mediadevices"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

// fakeTrack only answers what the provider calls.
type fakeTrack struct {
	mediadevices.Track
	id     string
	kind   webrtc.RTPCodecType
	closes int
}

func (f *fakeTrack) ID() string                { return f.id }
func (f *fakeTrack) Kind() webrtc.RTPCodecType { return f.kind }
func (f *fakeTrack) Close() error              { f.closes++; return nil }

type fakeBackend struct {
	devices  []mediadevices.MediaDeviceInfo
	video    *fakeTrack
	audio    *fakeTrack
	screen   *fakeTrack
	videoErr error
	calls    []mediadevices.MediaStreamConstraints
}

func (b *fakeBackend) EnumerateDevices() []mediadevices.MediaDeviceInfo { return b.devices }

func (b *fakeBackend) GetUserMedia(c mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error) {
	b.calls = append(b.calls, c)
	if c.Video != nil {
		if b.videoErr != nil {
			return nil, b.videoErr
		}
		return mediadevices.NewMediaStream(b.video)
	}
	return mediadevices.NewMediaStream(b.audio)
}

func (b *fakeBackend) GetDisplayMedia(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error) {
	if b.screen == nil {
		return nil, errors.New("no display")
	}
	return mediadevices.NewMediaStream(b.screen)
}

func newTestProvider(b *fakeBackend) *Provider {
	p := NewProvider(nil, Options{})
	p.md = b
	return p
}

func TestProvider_Enumerate(t *testing.T) {
	req := require.New(t)
	p := newTestProvider(&fakeBackend{devices: []mediadevices.MediaDeviceInfo{
		{DeviceID: "cam0", Label: "Front", Kind: mediadevices.VideoInput},
		{DeviceID: "spk0", Label: "Speaker", Kind: mediadevices.AudioOutput},
		{DeviceID: "mic0", Label: "Built-in", Kind: mediadevices.AudioInput},
	}})

	got, err := p.Enumerate(context.Background())

	req.NoError(err)
	req.Equal([]core.Device{
		{ID: "cam0", Label: "Front", Kind: domain.TrackCamera},
		{ID: "mic0", Label: "Built-in", Kind: domain.TrackMicrophone},
	}, got)
}

func TestProvider_Acquire_Each_Device_Independently(t *testing.T) {
	req := require.New(t)
	mic := &fakeTrack{id: "mic", kind: webrtc.RTPCodecTypeAudio}
	b := &fakeBackend{audio: mic, videoErr: errors.New("camera busy")}
	p := newTestProvider(b)

	// When the camera fails and the microphone works
	media, err := p.Acquire(context.Background(), core.DeviceRequest{Camera: true, Microphone: true})

	// Then the error names the camera and the microphone is still returned
	req.ErrorIs(err, domain.ErrNoDevice)
	req.ErrorContains(err, "camera busy")
	req.Len(b.calls, 2)
	tracks := media.Tracks()
	req.Len(tracks, 1)
	req.Equal(domain.TrackMicrophone, tracks[0].Kind())
	req.Equal("mic", tracks[0].ID())

	// And releasing closes it exactly once
	req.NoError(media.Release())
	req.NoError(media.Release())
	req.Equal(1, mic.closes)
}

func TestProvider_Track_Publishes_Itself(t *testing.T) {
	req := require.New(t)
	cam := &fakeTrack{id: "cam", kind: webrtc.RTPCodecTypeVideo}
	p := newTestProvider(&fakeBackend{video: cam})

	media, err := p.Acquire(context.Background(), core.DeviceRequest{Camera: true})
	req.NoError(err)

	tr, ok := media.Tracks()[0].(*Track)
	req.True(ok)
	req.Same(cam, tr.TrackLocal())
}

func TestProvider_CaptureScreen(t *testing.T) {
	req := require.New(t)
	p := newTestProvider(&fakeBackend{})

	_, err := p.CaptureScreen(context.Background())
	req.ErrorIs(err, domain.ErrNoDevice)

	p.md = &fakeBackend{screen: &fakeTrack{id: "display", kind: webrtc.RTPCodecTypeVideo}}
	h, err := p.CaptureScreen(context.Background())
	req.NoError(err)
	req.Equal(domain.TrackScreen, h.Kind())
	req.NoError(h.Stop())
}

func TestProvider_Cancelled_Context(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestProvider(&fakeBackend{}).Acquire(ctx, core.DeviceRequest{Camera: true})
	require.ErrorIs(t, err, context.Canceled)
}
