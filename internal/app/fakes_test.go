package app

import (
	"errors"
	"sync"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

type fakeTrack struct {
	id      string
	kind    domain.TrackKind
	stopped bool
}

func (t *fakeTrack) ID() string             { return t.id }
func (t *fakeTrack) Kind() domain.TrackKind { return t.kind }
func (t *fakeTrack) Stop() error            { t.stopped = true; return nil }

// fakeSurface counts a violation whenever a track is attached on top of
// another one or a detach does not match the current track.
type fakeSurface struct {
	id         string
	current    core.TrackHandle
	attaches   int
	violations int
	failNext   int
}

func (s *fakeSurface) ID() string { return s.id }

func (s *fakeSurface) Attach(h core.TrackHandle) error {
	if s.failNext > 0 {
		s.failNext--
		return errors.New("surface not ready")
	}
	if s.current != nil {
		s.violations++
	}
	s.current = h
	s.attaches++
	return nil
}

func (s *fakeSurface) Detach(h core.TrackHandle) {
	if s.current == nil || s.current.ID() != h.ID() {
		s.violations++
	}
	s.current = nil
}

type fakeSink struct {
	owner  domain.ParticipantID
	closed bool
	err    error
}

func (s *fakeSink) Close() error {
	s.closed = true
	return s.err
}

type fakeSinks struct {
	mu       sync.Mutex
	created  []*fakeSink
	closeErr error
}

func (f *fakeSinks) NewAudioSink(owner domain.ParticipantID, _ core.TrackHandle) (core.AudioSink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSink{owner: owner, err: f.closeErr}
	f.created = append(f.created, s)
	return s, nil
}

func remote(id string) domain.Participant {
	return domain.Participant{ID: domain.ParticipantID(id), Name: id}
}

func local(id string) domain.Participant {
	return domain.Participant{ID: domain.ParticipantID(id), Name: id, Local: true}
}
