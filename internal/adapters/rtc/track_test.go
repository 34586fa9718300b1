package rtc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

func TestParseStreamID(t *testing.T) {
	tests := []struct {
		stream  string
		codec   webrtc.RTPCodecType
		owner   domain.ParticipantID
		kind    domain.TrackKind
		wantErr bool
	}{
		{"alice", webrtc.RTPCodecTypeVideo, "alice", domain.TrackCamera, false},
		{"alice", webrtc.RTPCodecTypeAudio, "alice", domain.TrackMicrophone, false},
		{"screen:alice", webrtc.RTPCodecTypeVideo, "alice", domain.TrackScreen, false},
		{"screen:", webrtc.RTPCodecTypeVideo, "", 0, true},
		{"", webrtc.RTPCodecTypeAudio, "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.stream+"/"+tt.codec.String(), func(t *testing.T) {
			req := require.New(t)
			owner, kind, err := ParseStreamID(tt.stream, tt.codec)
			if tt.wantErr {
				req.ErrorIs(err, ErrBadStreamID)
				return
			}
			req.NoError(err)
			req.Equal(tt.owner, owner)
			req.Equal(tt.kind, kind)
		})
	}
}

func TestStreamID_Parses_Back(t *testing.T) {
	req := require.New(t)
	for _, kind := range []domain.TrackKind{domain.TrackCamera, domain.TrackScreen} {
		owner, got, err := ParseStreamID(StreamID("bob", kind), webrtc.RTPCodecTypeVideo)
		req.NoError(err)
		req.Equal(domain.ParticipantID("bob"), owner)
		req.Equal(kind, got)
	}
}

type localHandle struct{}

func (localHandle) ID() string             { return "local-cam" }
func (localHandle) Kind() domain.TrackKind { return domain.TrackCamera }
func (localHandle) Stop() error            { return nil }

func TestSurface_Attach_Forwards_Until_Detach(t *testing.T) {
	req := require.New(t)
	rec := &Recorder{}
	src := make(feed)
	relay := NewRelay(src.read, 0)
	track := NewRemoteTrack("t1", "bob", domain.TrackCamera, relay)
	runRelay(t, relay, clockwork.NewFakeClock())
	s := NewSurface("tile-bob", rec)

	// Given a surface attached to bob's camera
	req.NoError(s.Attach(track))
	src <- packet(1)
	req.Eventually(func() bool { return rec.Packets("tile-bob") == 1 }, time.Second, time.Millisecond)

	// When it is detached with a different handle nothing happens
	s.Detach(NewRemoteTrack("other", "bob", domain.TrackCamera, relay))
	req.Equal(1, relay.Outputs())

	// When it is detached with the attached handle
	s.Detach(track)
	src <- packet(2)
	close(src)
	<-relay.Done()

	// Then no more packets reach it
	req.Equal(uint64(1), rec.Packets("tile-bob"))
	req.Zero(relay.Outputs())
}

func TestSurface_Local_Handle_Is_Accepted(t *testing.T) {
	s := NewSurface("self", nil)
	require.NoError(t, s.Attach(localHandle{}))
	s.Detach(localHandle{})
}

func TestSinkFactory(t *testing.T) {
	req := require.New(t)
	f := &SinkFactory{Recorder: &Recorder{}}

	_, err := f.NewAudioSink("me", localHandle{})
	req.ErrorIs(err, ErrNotRemote)

	relay := NewRelay(make(feed).read, 0)
	sink, err := f.NewAudioSink("bob", NewRemoteTrack("a1", "bob", domain.TrackMicrophone, relay))
	req.NoError(err)
	req.Equal(1, relay.Outputs())

	req.NoError(sink.Close())
	req.NoError(sink.Close())
	req.Zero(relay.Outputs())
}

func TestRecorder_Writes_Files(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	rec := &Recorder{Dir: dir}

	video, err := rec.open("screen:bob", domain.TrackScreen)
	req.NoError(err)
	req.NoError(video.Close())
	audio, err := rec.open("audio:bob", domain.TrackMicrophone)
	req.NoError(err)
	req.NoError(audio.Close())

	_, err = os.Stat(filepath.Join(dir, "screen_bob.ivf"))
	req.NoError(err)
	_, err = os.Stat(filepath.Join(dir, "audio_bob.ogg"))
	req.NoError(err)
}
