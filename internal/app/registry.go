package app

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Registry is the single source of truth for who is in the call and which
// track is rendered where. Transport events and surface mounts may arrive in
// any order; after every mutation the registry reconciles so that a bound
// surface shows the subscribed track of its slot.
//
// Surfaces and sinks are called with the registry lock held and must not call
// back into the registry.
type Registry struct {
	mu    sync.RWMutex
	clock clockwork.Clock
	sinks core.AudioSinkFactory

	local    domain.ParticipantID
	people   map[domain.ParticipantID]*domain.Participant
	order    []domain.ParticipantID
	bindings map[bindingKey]*binding
	surfaces map[bindingKey]core.Surface
	// owners maps a surface id to the slot it is bound to.
	owners map[string]bindingKey
	seq    uint64

	listeners []func()
}

func NewRegistry(clock clockwork.Clock, sinks core.AudioSinkFactory) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		clock:    clock,
		sinks:    sinks,
		people:   make(map[domain.ParticipantID]*domain.Participant),
		bindings: make(map[bindingKey]*binding),
		surfaces: make(map[bindingKey]core.Surface),
		owners:   make(map[string]bindingKey),
	}
}

// OnChange registers fn to run after every state change. fn runs outside the
// registry lock.
func (r *Registry) OnChange(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Registry) notify() {
	r.mu.RLock()
	fns := slices.Clone(r.listeners)
	r.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

func (r *Registry) OnParticipantJoined(p domain.Participant) {
	if p.ID == "" {
		return
	}
	r.mu.Lock()
	if p.Local && r.local != "" && r.local != p.ID {
		log.Info().Str("module", "app.registry").
			Str("old", string(r.local)).Str("new", string(p.ID)).
			Msg("local identity changed")
		r.removeLocked(r.local)
	}
	r.upsertLocked(p.ID, p.Name, p.Local)
	r.reconcileLocked()
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("pid", string(p.ID)).Bool("local", p.Local).Msg("participant joined")
	r.notify()
}

func (r *Registry) OnParticipantLeft(id domain.ParticipantID) {
	r.mu.Lock()
	_, ok := r.people[id]
	r.removeLocked(id)
	r.mu.Unlock()
	if !ok {
		return
	}
	log.Info().Str("module", "app.registry").Str("pid", string(id)).Msg("participant left")
	r.notify()
}

// OnTrackPublished records a publication. track may be nil when the
// publication is known but not subscribed yet.
func (r *Registry) OnTrackPublished(id domain.ParticipantID, kind domain.TrackKind, track core.TrackHandle) {
	if id == "" {
		return
	}
	r.mu.Lock()
	b := r.ensureBindingLocked(id, kind)
	if track != nil {
		r.setTrackLocked(b, track)
	}
	r.reconcileLocked()
	r.mu.Unlock()
	log.Debug().Str("module", "app.registry").Str("pid", string(id)).Stringer("kind", kind).Msg("track published")
	r.notify()
}

func (r *Registry) OnTrackUnpublished(id domain.ParticipantID, kind domain.TrackKind) {
	key := bindingKey{id, kind}
	r.mu.Lock()
	b, ok := r.bindings[key]
	if ok {
		r.releaseLocked(b)
		delete(r.bindings, key)
		if p := r.people[id]; p != nil {
			p.Tracks = slices.DeleteFunc(p.Tracks, func(k domain.TrackKind) bool { return k == kind })
		}
		r.reconcileLocked()
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	log.Debug().Str("module", "app.registry").Str("pid", string(id)).Stringer("kind", kind).Msg("track unpublished")
	r.notify()
}

func (r *Registry) OnTrackSubscribed(id domain.ParticipantID, kind domain.TrackKind, track core.TrackHandle) {
	if id == "" || track == nil {
		return
	}
	r.mu.Lock()
	b := r.ensureBindingLocked(id, kind)
	r.setTrackLocked(b, track)
	r.reconcileLocked()
	r.mu.Unlock()
	r.notify()
}

func (r *Registry) OnTrackUnsubscribed(id domain.ParticipantID, kind domain.TrackKind) {
	r.mu.Lock()
	b, ok := r.bindings[bindingKey{id, kind}]
	if ok {
		r.releaseLocked(b)
		b.Track = nil
		b.recomputeState()
		r.reconcileLocked()
	}
	r.mu.Unlock()
	if ok {
		r.notify()
	}
}

// BindSurface records that s should show the (id, kind) track. A surface is
// bound to at most one slot: binding it elsewhere moves it.
func (r *Registry) BindSurface(id domain.ParticipantID, kind domain.TrackKind, s core.Surface) {
	if s == nil {
		r.UnbindSurface(id, kind)
		return
	}
	key := bindingKey{id, kind}
	r.mu.Lock()
	if prev, ok := r.owners[s.ID()]; ok && prev != key {
		if b := r.bindings[prev]; b != nil && b.attached != nil {
			r.detachLocked(b)
		}
		delete(r.surfaces, prev)
	}
	if cur, ok := r.surfaces[key]; ok && cur.ID() != s.ID() {
		if b := r.bindings[key]; b != nil && b.attached != nil {
			r.detachLocked(b)
		}
		delete(r.owners, cur.ID())
	}
	r.surfaces[key] = s
	r.owners[s.ID()] = key
	r.reconcileLocked()
	r.mu.Unlock()
	r.notify()
}

func (r *Registry) UnbindSurface(id domain.ParticipantID, kind domain.TrackKind) {
	key := bindingKey{id, kind}
	r.mu.Lock()
	s, ok := r.surfaces[key]
	if ok {
		if b := r.bindings[key]; b != nil && b.attached != nil {
			r.detachLocked(b)
		}
		delete(r.surfaces, key)
		delete(r.owners, s.ID())
		r.reconcileLocked()
	}
	r.mu.Unlock()
	if ok {
		r.notify()
	}
}

// SetSpeaking replaces the set of speaking participants.
func (r *Registry) SetSpeaking(ids []domain.ParticipantID) {
	r.mu.Lock()
	changed := false
	for id, p := range r.people {
		speaking := slices.Contains(ids, id)
		if p.Speaking != speaking {
			p.Speaking = speaking
			changed = true
		}
	}
	r.mu.Unlock()
	if changed {
		r.notify()
	}
}

func (r *Registry) Participant(id domain.ParticipantID) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.people[id]
	if !ok {
		return domain.Participant{}, false
	}
	return clonePerson(p), true
}

func (r *Registry) LocalID() domain.ParticipantID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.local
}

// LocalTracks returns bindings of the local participant that hold a handle.
func (r *Registry) LocalTracks() []TrackBinding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []TrackBinding
	for _, b := range r.bindings {
		if b.Local && b.Track != nil {
			out = append(out, b.TrackBinding)
		}
	}
	slices.SortFunc(out, func(a, b TrackBinding) int { return int(a.Kind) - int(b.Kind) })
	return out
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := Snapshot{
		Local:        r.local,
		Participants: make([]domain.Participant, 0, len(r.order)),
		Bindings:     make([]TrackBinding, 0, len(r.bindings)),
	}
	rank := make(map[domain.ParticipantID]int, len(r.order))
	for i, id := range r.order {
		rank[id] = i
		snap.Participants = append(snap.Participants, clonePerson(r.people[id]))
	}
	for _, b := range r.bindings {
		snap.Bindings = append(snap.Bindings, b.TrackBinding)
	}
	slices.SortFunc(snap.Bindings, func(a, b TrackBinding) int {
		if d := rank[a.ParticipantID] - rank[b.ParticipantID]; d != 0 {
			return d
		}
		return int(a.Kind) - int(b.Kind)
	})
	return snap
}

// Clear detaches everything, closes every audio sink and forgets all
// participants. Sink close failures are returned joined.
func (r *Registry) Clear() error {
	r.mu.Lock()
	var errs []error
	for _, b := range r.bindings {
		if err := r.releaseLocked(b); err != nil {
			errs = append(errs, err)
		}
	}
	r.local = ""
	r.order = nil
	r.people = make(map[domain.ParticipantID]*domain.Participant)
	r.bindings = make(map[bindingKey]*binding)
	r.surfaces = make(map[bindingKey]core.Surface)
	r.owners = make(map[string]bindingKey)
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Int("errors", len(errs)).Msg("registry cleared")
	r.notify()
	return errors.Join(errs...)
}

func (r *Registry) upsertLocked(id domain.ParticipantID, name string, local bool) *domain.Participant {
	if p, ok := r.people[id]; ok {
		if name != "" {
			p.Name = name
		}
		if local {
			p.Local = true
			r.local = id
		}
		return p
	}
	p, err := domain.NewParticipant(id, name, local)
	if err != nil {
		return nil
	}
	r.people[id] = p
	r.order = append(r.order, id)
	if local {
		r.local = id
	}
	for key, b := range r.bindings {
		if key.pid == id {
			b.Local = local
			if !p.HasTrack(key.kind) {
				p.Tracks = append(p.Tracks, key.kind)
			}
		}
	}
	return p
}

func (r *Registry) removeLocked(id domain.ParticipantID) {
	for key, b := range r.bindings {
		if key.pid != id {
			continue
		}
		r.releaseLocked(b)
		delete(r.bindings, key)
	}
	for key, s := range r.surfaces {
		if key.pid == id {
			delete(r.owners, s.ID())
			delete(r.surfaces, key)
		}
	}
	delete(r.people, id)
	r.order = slices.DeleteFunc(r.order, func(x domain.ParticipantID) bool { return x == id })
	if r.local == id {
		r.local = ""
	}
}

// ensureBindingLocked creates the slot on first publication. A publication
// that precedes the participant's join event registers the participant too.
func (r *Registry) ensureBindingLocked(id domain.ParticipantID, kind domain.TrackKind) *binding {
	key := bindingKey{id, kind}
	if b, ok := r.bindings[key]; ok {
		return b
	}
	p := r.people[id]
	if p == nil {
		p = r.upsertLocked(id, "", false)
	}
	r.seq++
	b := &binding{TrackBinding: TrackBinding{
		ParticipantID: id,
		Kind:          kind,
		Local:         p.Local,
		State:         domain.Unsubscribed,
		PublishedAt:   r.clock.Now(),
		Seq:           r.seq,
	}}
	r.bindings[key] = b
	if !p.HasTrack(kind) {
		p.Tracks = append(p.Tracks, kind)
	}
	return b
}

func (r *Registry) setTrackLocked(b *binding, track core.TrackHandle) {
	if b.Track != nil && !sameTrack(b.Track, track) {
		r.releaseLocked(b)
	}
	b.Track = track
	b.recomputeState()
}

// reconcileLocked converges every slot. Detach always precedes attach.
func (r *Registry) reconcileLocked() {
	for key, b := range r.bindings {
		if b.Kind == domain.TrackMicrophone {
			r.reconcileAudioLocked(b)
			continue
		}
		s := r.surfaces[key]
		want := b.Track != nil && s != nil
		if b.attached != nil {
			if want && sameTrack(b.attached, b.Track) && b.Surface.ID() == s.ID() {
				continue
			}
			r.detachLocked(b)
		}
		if !want {
			b.recomputeState()
			continue
		}
		if err := s.Attach(b.Track); err != nil {
			log.Warn().Err(err).Str("module", "app.registry").
				Str("pid", string(b.ParticipantID)).Stringer("kind", b.Kind).
				Msg("attach failed, will retry")
			b.recomputeState()
			continue
		}
		r.seq++
		b.attached = b.Track
		b.Surface = s
		b.AttachedAt = r.clock.Now()
		b.Seq = r.seq
		b.recomputeState()
	}
}

// reconcileAudioLocked gives every remote microphone its own sink.
func (r *Registry) reconcileAudioLocked(b *binding) {
	if b.Local || b.Track == nil || b.sink != nil || r.sinks == nil {
		b.recomputeState()
		return
	}
	sink, err := r.sinks.NewAudioSink(b.ParticipantID, b.Track)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.registry").Str("pid", string(b.ParticipantID)).Msg("audio sink failed, will retry")
		b.recomputeState()
		return
	}
	r.seq++
	b.sink = sink
	b.AttachedAt = r.clock.Now()
	b.Seq = r.seq
	b.recomputeState()
}

func (r *Registry) detachLocked(b *binding) {
	b.Surface.Detach(b.attached)
	b.attached = nil
	b.Surface = nil
	b.AttachedAt = time.Time{}
	b.recomputeState()
}

// releaseLocked drops everything the slot holds on to. The surface intent
// itself survives so a later track lands on it again.
func (r *Registry) releaseLocked(b *binding) error {
	if b.attached != nil {
		r.detachLocked(b)
	}
	if b.sink == nil {
		return nil
	}
	err := b.sink.Close()
	b.sink = nil
	b.AttachedAt = time.Time{}
	b.recomputeState()
	if err != nil {
		log.Error().Err(err).Str("module", "app.registry").Str("pid", string(b.ParticipantID)).Msg("audio sink close failed")
	}
	return err
}

func clonePerson(p *domain.Participant) domain.Participant {
	c := *p
	c.Tracks = slices.Clone(p.Tracks)
	return c
}
