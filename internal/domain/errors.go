package domain

import "errors"

var (
	ErrEmptyParticipantID = errors.New("participant id empty")
	ErrDisplayNameEmpty   = errors.New("display name empty")
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrUnknownTrackKind   = errors.New("unknown track kind")

	ErrEmptyMessage = errors.New("chat message empty")
	ErrRateLimited  = errors.New("chat rate limited")

	ErrConsentRequired = errors.New("consent required")
	ErrInvalidPhase    = errors.New("operation not allowed in current phase")
	ErrSessionEnded    = errors.New("session ended")
	ErrReasonRequired  = errors.New("end reason required")
	ErrNotConnected    = errors.New("transport not connected")

	// ErrNotRecorded means the session ended locally but the backend call failed.
	ErrNotRecorded = errors.New("session end not recorded")

	ErrNoDevice        = errors.New("device unavailable")
	ErrFetchCredential = errors.New("join credential unavailable")
	ErrConnect         = errors.New("transport connect failed")
)
