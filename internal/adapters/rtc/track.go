package rtc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/rs/zerolog/log"
)

const screenPrefix = "screen:"

var (
	ErrBadStreamID = errors.New("stream id carries no participant")
	ErrNotRemote   = errors.New("track is not a remote track")
)

// StreamID labels a published track with its owner. Screen share gets its
// own prefix so it never collides with the camera.
func StreamID(owner domain.ParticipantID, kind domain.TrackKind) string {
	if kind == domain.TrackScreen {
		return screenPrefix + string(owner)
	}
	return string(owner)
}

// ParseStreamID recovers the owner and kind of a remote track.
func ParseStreamID(streamID string, codec webrtc.RTPCodecType) (domain.ParticipantID, domain.TrackKind, error) {
	if owner, ok := strings.CutPrefix(streamID, screenPrefix); ok {
		if owner == "" {
			return "", 0, fmt.Errorf("%w: %q", ErrBadStreamID, streamID)
		}
		return domain.ParticipantID(owner), domain.TrackScreen, nil
	}
	if streamID == "" {
		return "", 0, ErrBadStreamID
	}
	if codec == webrtc.RTPCodecTypeAudio {
		return domain.ParticipantID(streamID), domain.TrackMicrophone, nil
	}
	return domain.ParticipantID(streamID), domain.TrackCamera, nil
}

// labeledTrack overrides the stream id of a captured track.
type labeledTrack struct {
	webrtc.TrackLocal
	stream string
}

func (t labeledTrack) StreamID() string { return t.stream }

// RemoteTrack is the handle the registry holds for a subscribed track.
type RemoteTrack struct {
	id    string
	owner domain.ParticipantID
	kind  domain.TrackKind
	relay *Relay
}

func NewRemoteTrack(id string, owner domain.ParticipantID, kind domain.TrackKind, relay *Relay) *RemoteTrack {
	return &RemoteTrack{id: id, owner: owner, kind: kind, relay: relay}
}

func (t *RemoteTrack) ID() string                  { return t.id }
func (t *RemoteTrack) Kind() domain.TrackKind      { return t.kind }
func (t *RemoteTrack) Owner() domain.ParticipantID { return t.owner }
func (t *RemoteTrack) Relay() *Relay               { return t.relay }

// Stop is a no-op; remote tracks end when their publisher stops.
func (t *RemoteTrack) Stop() error { return nil }

type packetSink interface {
	PacketWriter
	io.Closer
}

// countingSink drops packets and keeps a count.
type countingSink struct {
	n atomic.Uint64
}

func (c *countingSink) WriteRTP(*rtp.Packet) error { c.n.Add(1); return nil }
func (c *countingSink) Close() error               { return nil }

// Recorder opens packet sinks for surfaces and audio sinks. With an empty
// directory every sink only counts packets.
type Recorder struct {
	Dir string

	mu     sync.Mutex
	counts map[string]*countingSink
}

func (r *Recorder) open(name string, kind domain.TrackKind) (packetSink, error) {
	if r == nil || r.Dir == "" {
		s := &countingSink{}
		if r != nil {
			r.mu.Lock()
			if r.counts == nil {
				r.counts = make(map[string]*countingSink)
			}
			r.counts[name] = s
			r.mu.Unlock()
		}
		return s, nil
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return nil, err
	}
	base := filepath.Join(r.Dir, sanitize(name))
	if kind == domain.TrackMicrophone {
		return oggwriter.New(base+".ogg", 48000, 2)
	}
	return ivfwriter.New(base + ".ivf")
}

// Packets reports how many packets a counting sink received.
func (r *Recorder) Packets(name string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.counts[name]; ok {
		return s.n.Load()
	}
	return 0
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' {
			return '_'
		}
		return r
	}, name)
}

// Surface renders a remote track by attaching a relay output to it.
type Surface struct {
	id  string
	rec *Recorder

	mu       sync.Mutex
	attached *RemoteTrack
	sink     packetSink
}

func NewSurface(id string, rec *Recorder) *Surface {
	return &Surface{id: id, rec: rec}
}

func (s *Surface) ID() string { return s.id }

// Attach accepts local handles without forwarding anything; the local preview
// is played by the device layer.
func (s *Surface) Attach(h core.TrackHandle) error {
	rt, ok := h.(*RemoteTrack)
	if !ok {
		return nil
	}
	sink, err := s.rec.open(s.id, rt.kind)
	if err != nil {
		return fmt.Errorf("surface %s: %w", s.id, err)
	}
	s.mu.Lock()
	s.attached, s.sink = rt, sink
	s.mu.Unlock()
	rt.relay.Add(s.id, sink)
	return nil
}

func (s *Surface) Detach(h core.TrackHandle) {
	s.mu.Lock()
	rt, sink := s.attached, s.sink
	if rt == nil || rt != h {
		s.mu.Unlock()
		return
	}
	s.attached, s.sink = nil, nil
	s.mu.Unlock()
	rt.relay.Remove(s.id)
	if err := sink.Close(); err != nil {
		log.Warn().Err(err).Str("module", "rtc.surface").Str("surface", s.id).Msg("sink close")
	}
}

// SinkFactory plays remote microphones through a relay output.
type SinkFactory struct {
	Recorder *Recorder
}

func (f *SinkFactory) NewAudioSink(owner domain.ParticipantID, track core.TrackHandle) (core.AudioSink, error) {
	rt, ok := track.(*RemoteTrack)
	if !ok {
		return nil, ErrNotRemote
	}
	id := "audio:" + string(owner)
	w, err := f.Recorder.open(id, domain.TrackMicrophone)
	if err != nil {
		return nil, fmt.Errorf("audio sink %s: %w", owner, err)
	}
	rt.relay.Add(id, w)
	return &audioSink{id: id, relay: rt.relay, w: w}, nil
}

type audioSink struct {
	id    string
	relay *Relay
	w     packetSink
	once  sync.Once
}

func (a *audioSink) Close() error {
	var err error
	a.once.Do(func() {
		a.relay.Remove(a.id)
		err = a.w.Close()
	})
	return err
}
