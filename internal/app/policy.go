package app

import (
	"errors"
	"time"

	"github.com/dkeye/Meet/internal/domain"
)

type Severity int

const (
	// RecoverableLocal is logged or briefly shown; the session continues.
	RecoverableLocal Severity = iota
	// RecoverableFlow shows a dismissible banner with a retry action.
	RecoverableFlow
	// Terminal ends the session; local teardown always completes.
	Terminal
)

func (s Severity) String() string {
	switch s {
	case RecoverableFlow:
		return "recoverable_flow"
	case Terminal:
		return "terminal"
	default:
		return "recoverable_local"
	}
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type Banner struct {
	Severity   Severity      `json:"severity"`
	Message    string        `json:"message"`
	Retryable  bool          `json:"retryable"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Attempt    int           `json:"attempt,omitempty"`
}

type Policy interface {
	Classify(err error) Severity
}

type SimplePolicy struct{}

func (SimplePolicy) Classify(err error) Severity {
	switch {
	case err == nil:
		return RecoverableLocal
	case errors.Is(err, domain.ErrSessionEnded):
		return Terminal
	case errors.Is(err, domain.ErrFetchCredential),
		errors.Is(err, domain.ErrConnect),
		errors.Is(err, domain.ErrNotConnected):
		return RecoverableFlow
	default:
		return RecoverableLocal
	}
}

// NewBanner builds the user-facing banner for err. hint is optional.
func NewBanner(p Policy, err error, hint *RetryHint) Banner {
	if p == nil {
		p = SimplePolicy{}
	}
	b := Banner{Severity: p.Classify(err), Message: err.Error()}
	if b.Severity == RecoverableFlow {
		b.Retryable = true
		if hint != nil {
			b.RetryAfter = hint.After
			b.Attempt = hint.Attempt
		}
	}
	return b
}
