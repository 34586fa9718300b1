package app

import (
	"github.com/dkeye/Meet/internal/domain"
	"github.com/samber/lo"
)

// Presentation names the single participant whose screen is shown full size.
// Zero value means no one is presenting.
type Presentation struct {
	Active domain.ParticipantID `json:"active,omitempty"`
}

func (p Presentation) IsActive() bool { return p.Active != "" }

// ComputePresentation picks the most recently visible screen share. It is a
// pure function of the bindings, so it is recomputed on every change instead
// of being stored.
func ComputePresentation(bindings []TrackBinding) Presentation {
	eligible := lo.Filter(bindings, func(b TrackBinding, _ int) bool { return presentable(b) })
	if len(eligible) == 0 {
		return Presentation{}
	}
	winner := lo.MaxBy(eligible, func(a, b TrackBinding) bool { return a.newerThan(b) })
	return Presentation{Active: winner.ParticipantID}
}

// presentable: a local share counts as soon as the handle exists, a remote one
// only once it is actually on screen.
func presentable(b TrackBinding) bool {
	if b.Kind != domain.TrackScreen || b.Track == nil {
		return false
	}
	return b.Local || b.State == domain.Attached
}
