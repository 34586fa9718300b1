package app

import (
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

type bindingKey struct {
	pid  domain.ParticipantID
	kind domain.TrackKind
}

// TrackBinding is a read-only copy of one (participant, kind) slot.
type TrackBinding struct {
	ParticipantID domain.ParticipantID     `json:"participant_id"`
	Kind          domain.TrackKind         `json:"kind"`
	Local         bool                     `json:"local"`
	State         domain.SubscriptionState `json:"state"`
	Track         core.TrackHandle         `json:"-"`
	// Surface is set only while State is Attached.
	Surface     core.Surface `json:"-"`
	PublishedAt time.Time    `json:"published_at"`
	AttachedAt  time.Time    `json:"attached_at,omitzero"`
	// Seq orders bindings whose timestamps are equal.
	Seq uint64 `json:"seq"`
}

func (b TrackBinding) Subscribed() bool { return b.Track != nil }

// since is the moment the binding became visible to the user.
func (b TrackBinding) since() time.Time {
	if !b.AttachedAt.IsZero() {
		return b.AttachedAt
	}
	return b.PublishedAt
}

// newerThan orders bindings by visibility time, then by sequence.
func (b TrackBinding) newerThan(o TrackBinding) bool {
	bs, os := b.since(), o.since()
	if !bs.Equal(os) {
		return bs.After(os)
	}
	return b.Seq > o.Seq
}

// binding is the mutable record kept by the registry.
type binding struct {
	TrackBinding
	// attached is the handle currently on Surface.
	attached core.TrackHandle
	sink     core.AudioSink
}

func (b *binding) recomputeState() {
	switch {
	case b.Track == nil:
		b.State = domain.Unsubscribed
	case b.attached != nil, b.sink != nil:
		b.State = domain.Attached
	case b.Local && b.Kind == domain.TrackMicrophone:
		// local audio is never played back
		b.State = domain.Attached
	default:
		b.State = domain.Subscribing
	}
}

func sameTrack(a, b core.TrackHandle) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID() == b.ID()
}

// Snapshot is a consistent copy of the registry. Participants are in join
// order.
type Snapshot struct {
	Local        domain.ParticipantID `json:"local"`
	Participants []domain.Participant `json:"participants"`
	Bindings     []TrackBinding       `json:"bindings"`
}

func (s Snapshot) Binding(id domain.ParticipantID, kind domain.TrackKind) (TrackBinding, bool) {
	for _, b := range s.Bindings {
		if b.ParticipantID == id && b.Kind == kind {
			return b, true
		}
	}
	return TrackBinding{}, false
}

func (s Snapshot) Remote() []domain.Participant {
	out := make([]domain.Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		if !p.Local {
			out = append(out, p)
		}
	}
	return out
}
