package app

import (
	"fmt"
	"testing"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func permutations(n int) [][]int {
	if n == 0 {
		return [][]int{{}}
	}
	var out [][]int
	for _, p := range permutations(n - 1) {
		for i := 0; i <= len(p); i++ {
			q := append([]int{}, p[:i]...)
			q = append(q, n-1)
			q = append(q, p[i:]...)
			out = append(out, q)
		}
	}
	return out
}

func TestRegistry_Attach_Converges_For_Every_Interleaving(t *testing.T) {
	steps := []struct {
		name string
		run  func(r *Registry, tr *fakeTrack, s *fakeSurface)
	}{
		{"join", func(r *Registry, _ *fakeTrack, _ *fakeSurface) { r.OnParticipantJoined(remote("bob")) }},
		{"publish", func(r *Registry, _ *fakeTrack, _ *fakeSurface) { r.OnTrackPublished("bob", domain.TrackCamera, nil) }},
		{"subscribe", func(r *Registry, tr *fakeTrack, _ *fakeSurface) { r.OnTrackSubscribed("bob", domain.TrackCamera, tr) }},
		{"mount", func(r *Registry, _ *fakeTrack, s *fakeSurface) { r.BindSurface("bob", domain.TrackCamera, s) }},
	}

	for _, order := range permutations(len(steps)) {
		var names []string
		for _, i := range order {
			names = append(names, steps[i].name)
		}
		t.Run(fmt.Sprint(names), func(t *testing.T) {
			req := require.New(t)
			r := NewRegistry(clockwork.NewFakeClock(), nil)
			tr := &fakeTrack{id: "cam-1", kind: domain.TrackCamera}
			s := &fakeSurface{id: "tile-bob"}

			// When the four events arrive in this order
			for _, i := range order {
				steps[i].run(r, tr, s)
			}

			// Then the surface shows the track exactly once
			req.Equal(tr, s.current)
			req.Equal(1, s.attaches)
			req.Zero(s.violations)
			b, ok := r.Snapshot().Binding("bob", domain.TrackCamera)
			req.True(ok)
			req.Equal(domain.Attached, b.State)
			req.Equal("tile-bob", b.Surface.ID())
		})
	}
}

func TestRegistry_Attach_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(clockwork.NewFakeClock(), nil)
	tr := &fakeTrack{id: "cam-1", kind: domain.TrackCamera}
	s := &fakeSurface{id: "tile"}

	// Given an attached camera
	r.OnTrackPublished("bob", domain.TrackCamera, tr)
	r.BindSurface("bob", domain.TrackCamera, s)

	// When the same events are replayed
	r.OnTrackPublished("bob", domain.TrackCamera, tr)
	r.BindSurface("bob", domain.TrackCamera, s)
	r.OnParticipantJoined(remote("bob"))

	// Then nothing is attached twice
	req.Equal(1, s.attaches)
	req.Zero(s.violations)
}

func TestRegistry_Failed_Attach_Is_Retried_On_Next_Mutation(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(clockwork.NewFakeClock(), nil)
	tr := &fakeTrack{id: "cam-1", kind: domain.TrackCamera}
	s := &fakeSurface{id: "tile", failNext: 1}

	// Given a surface that fails its first attach
	r.OnTrackPublished("bob", domain.TrackCamera, tr)
	r.BindSurface("bob", domain.TrackCamera, s)
	b, _ := r.Snapshot().Binding("bob", domain.TrackCamera)
	req.Equal(domain.Subscribing, b.State)

	// When anything else changes
	r.OnParticipantJoined(remote("carol"))

	// Then the attach is retried
	b, _ = r.Snapshot().Binding("bob", domain.TrackCamera)
	req.Equal(domain.Attached, b.State)
	req.Equal(tr, s.current)
}

func TestRegistry_New_Track_Replaces_Old_On_Same_Surface(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(clockwork.NewFakeClock(), nil)
	first := &fakeTrack{id: "cam-1", kind: domain.TrackCamera}
	second := &fakeTrack{id: "cam-2", kind: domain.TrackCamera}
	s := &fakeSurface{id: "tile"}

	r.OnTrackPublished("bob", domain.TrackCamera, first)
	r.BindSurface("bob", domain.TrackCamera, s)

	// When the publication is replaced
	r.OnTrackSubscribed("bob", domain.TrackCamera, second)

	// Then the old track is detached before the new one is attached
	req.Equal(second, s.current)
	req.Equal(2, s.attaches)
	req.Zero(s.violations)
}

func TestRegistry_Surface_Moving_Between_Slots_Detaches_First(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(clockwork.NewFakeClock(), nil)
	bobCam := &fakeTrack{id: "bob-cam", kind: domain.TrackCamera}
	carolCam := &fakeTrack{id: "carol-cam", kind: domain.TrackCamera}
	s := &fakeSurface{id: "main"}

	r.OnTrackPublished("bob", domain.TrackCamera, bobCam)
	r.OnTrackPublished("carol", domain.TrackCamera, carolCam)
	r.BindSurface("bob", domain.TrackCamera, s)

	// When the surface is re-used for carol
	r.BindSurface("carol", domain.TrackCamera, s)

	// Then bob loses the surface and carol gets it
	req.Equal(carolCam, s.current)
	req.Zero(s.violations)
	snap := r.Snapshot()
	bob, _ := snap.Binding("bob", domain.TrackCamera)
	carol, _ := snap.Binding("carol", domain.TrackCamera)
	req.Equal(domain.Subscribing, bob.State)
	req.Nil(bob.Surface)
	req.Equal(domain.Attached, carol.State)
}

func TestRegistry_Unbind_Then_Unsubscribe(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(clockwork.NewFakeClock(), nil)
	tr := &fakeTrack{id: "cam-1", kind: domain.TrackCamera}
	s := &fakeSurface{id: "tile"}

	r.OnTrackPublished("bob", domain.TrackCamera, tr)
	r.BindSurface("bob", domain.TrackCamera, s)

	// When the surface is unmounted
	r.UnbindSurface("bob", domain.TrackCamera)
	req.Nil(s.current)
	b, _ := r.Snapshot().Binding("bob", domain.TrackCamera)
	req.Equal(domain.Subscribing, b.State)

	// And the track is unsubscribed
	r.OnTrackUnsubscribed("bob", domain.TrackCamera)
	b, _ = r.Snapshot().Binding("bob", domain.TrackCamera)
	req.Equal(domain.Unsubscribed, b.State)
	req.Zero(s.violations)
}

func TestRegistry_Leave_Releases_Everything(t *testing.T) {
	req := require.New(t)
	sinks := &fakeSinks{}
	r := NewRegistry(clockwork.NewFakeClock(), sinks)
	cam := &fakeTrack{id: "cam", kind: domain.TrackCamera}
	mic := &fakeTrack{id: "mic", kind: domain.TrackMicrophone}
	s := &fakeSurface{id: "tile"}

	// Given bob with a rendered camera and a playing microphone
	r.OnParticipantJoined(remote("bob"))
	r.OnTrackPublished("bob", domain.TrackCamera, cam)
	r.OnTrackPublished("bob", domain.TrackMicrophone, mic)
	r.BindSurface("bob", domain.TrackCamera, s)
	req.Len(sinks.created, 1)
	micBinding, _ := r.Snapshot().Binding("bob", domain.TrackMicrophone)
	req.Equal(domain.Attached, micBinding.State)

	// When bob leaves
	r.OnParticipantLeft("bob")

	// Then the tile is empty and the sink closed
	req.Nil(s.current)
	req.True(sinks.created[0].closed)
	snap := r.Snapshot()
	req.Empty(snap.Participants)
	req.Empty(snap.Bindings)

	// And a late mount for bob does not resurrect him
	r.BindSurface("bob", domain.TrackCamera, s)
	req.Nil(s.current)
}

func TestRegistry_Local_Microphone_Has_No_Sink(t *testing.T) {
	req := require.New(t)
	sinks := &fakeSinks{}
	r := NewRegistry(clockwork.NewFakeClock(), sinks)

	r.OnParticipantJoined(local("me"))
	r.OnTrackPublished("me", domain.TrackMicrophone, &fakeTrack{id: "mic", kind: domain.TrackMicrophone})

	req.Empty(sinks.created)
	req.Len(r.LocalTracks(), 1)
}

func TestRegistry_Clear_Closes_Sinks_And_Reports_Errors(t *testing.T) {
	req := require.New(t)
	sinks := &fakeSinks{closeErr: fmt.Errorf("device busy")}
	r := NewRegistry(clockwork.NewFakeClock(), sinks)
	r.OnTrackPublished("bob", domain.TrackMicrophone, &fakeTrack{id: "m1", kind: domain.TrackMicrophone})
	r.OnTrackPublished("carol", domain.TrackMicrophone, &fakeTrack{id: "m2", kind: domain.TrackMicrophone})

	err := r.Clear()

	req.ErrorContains(err, "device busy")
	for _, s := range sinks.created {
		req.True(s.closed)
	}
	req.Empty(r.Snapshot().Participants)
}

func TestRegistry_Empty_Snapshot(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(clockwork.NewFakeClock(), nil)

	snap := r.Snapshot()

	req.Empty(snap.Participants)
	req.Empty(snap.Bindings)
	req.Empty(snap.Local)
	req.NoError(r.Clear())
}

func TestRegistry_Join_Order_And_Local_Identity_Change(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(clockwork.NewFakeClock(), nil)

	r.OnParticipantJoined(local("tmp"))
	r.OnParticipantJoined(remote("bob"))
	r.OnParticipantJoined(remote("carol"))

	// When the transport assigns the real identity
	r.OnParticipantJoined(local("me"))

	snap := r.Snapshot()
	req.Equal(domain.ParticipantID("me"), snap.Local)
	var ids []domain.ParticipantID
	for _, p := range snap.Participants {
		ids = append(ids, p.ID)
	}
	req.Equal([]domain.ParticipantID{"bob", "carol", "me"}, ids)
}

func TestRegistry_SetSpeaking_Notifies_Only_On_Change(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(clockwork.NewFakeClock(), nil)
	r.OnParticipantJoined(remote("bob"))
	calls := 0
	r.OnChange(func() { calls++ })

	r.SetSpeaking([]domain.ParticipantID{"bob"})
	r.SetSpeaking([]domain.ParticipantID{"bob"})

	req.Equal(1, calls)
	p, ok := r.Participant("bob")
	req.True(ok)
	req.True(p.Speaking)
}
