// Package domain contains meeting entities without transport or lifecycle logic.
package domain

import (
	"slices"
	"strings"
	"unicode/utf8"
)

const MaxDisplayNameLen = 64

type ParticipantID string

// Participant is one endpoint of the meeting as seen from the local client.
type Participant struct {
	ID       ParticipantID `json:"id"`
	Name     string        `json:"name"`
	Local    bool          `json:"local"`
	Speaking bool          `json:"speaking"`
	// Tracks lists published kinds in publication order.
	Tracks []TrackKind `json:"tracks"`
}

// NewParticipant avoids raw literals in adapters. An empty display name
// falls back to the identity so tiles always have a caption.
func NewParticipant(id ParticipantID, name string, local bool) (*Participant, error) {
	if id == "" {
		return nil, ErrEmptyParticipantID
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = string(id)
	}
	return &Participant{ID: id, Name: truncateName(name), Local: local}, nil
}

// truncateName cuts to at most MaxDisplayNameLen bytes without splitting a
// rune.
func truncateName(name string) string {
	if len(name) <= MaxDisplayNameLen {
		return name
	}
	end := 0
	for end < len(name) {
		_, size := utf8.DecodeRuneInString(name[end:])
		if end+size > MaxDisplayNameLen {
			break
		}
		end += size
	}
	return name[:end]
}

// ValidateDisplayName is applied to the configured local name. The limit is
// in bytes, matching truncation of remote names.
func ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrDisplayNameTooLong
	}
	return nil
}

func (p Participant) HasTrack(kind TrackKind) bool {
	return slices.Contains(p.Tracks, kind)
}
