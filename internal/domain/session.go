package domain

import "fmt"

type SessionPhase int

const (
	PhasePreCheck SessionPhase = iota
	PhaseConnecting
	PhaseActive
	PhaseEnded
)

func (p SessionPhase) String() string {
	switch p {
	case PhasePreCheck:
		return "precheck"
	case PhaseConnecting:
		return "connecting"
	case PhaseActive:
		return "active"
	case PhaseEnded:
		return "ended"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func (p SessionPhase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

type EndReason string

const (
	ReasonCompleted      EndReason = "completed"
	ReasonTechnicalIssue EndReason = "technical_issue"
	ReasonNoShow         EndReason = "participant_no_show"
	ReasonBehavior       EndReason = "inappropriate_behavior"
	ReasonOther          EndReason = "other"
	ReasonEmergency      EndReason = "emergency"
)

// Selectable reports whether the reason may be picked for a graceful end.
// Emergency is reserved for termination.
func (r EndReason) Selectable() bool {
	switch r {
	case ReasonCompleted, ReasonTechnicalIssue, ReasonNoShow, ReasonBehavior, ReasonOther:
		return true
	}
	return false
}
