package core

import (
	"github.com/dkeye/Meet/internal/domain"
)

// TrackHandle is an opaque media track owned by the transport or the
// device layer. The registry never reads media from it.
type TrackHandle interface {
	ID() string
	Kind() domain.TrackKind
	// Stop releases capture resources. Remote handles treat it as a no-op.
	Stop() error
}

// Surface is the rendering element a track is played on.
// Attach and Detach are always called in pairs for the same handle.
type Surface interface {
	ID() string
	Attach(TrackHandle) error
	Detach(TrackHandle)
}

// AudioSink plays a remote audio track without any visual tile.
type AudioSink interface {
	Close() error
}

type AudioSinkFactory interface {
	NewAudioSink(owner domain.ParticipantID, track TrackHandle) (AudioSink, error)
}
