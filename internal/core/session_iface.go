//go:generate go run go.uber.org/mock/mockgen -source=session_iface.go -destination=../mocks/mock_session_api.go -package=mocks
package core

import (
	"context"
	"time"

	"github.com/dkeye/Meet/internal/domain"
)

type JoinCredential struct {
	Token        string `json:"token"`
	TransportURL string `json:"transport_url"`
	RoomName     string `json:"room_name"`
}

type Receipt struct {
	SessionID string           `json:"session_id"`
	Status    string           `json:"status"`
	Reason    domain.EndReason `json:"reason,omitempty"`
	At        time.Time        `json:"at"`
}

type EndRequest struct {
	SessionID string           `json:"session_id"`
	EndedBy   string           `json:"ended_by"`
	Reason    domain.EndReason `json:"reason"`
	Notes     string           `json:"notes,omitempty"`
}

type TerminateRequest struct {
	TerminatedBy string           `json:"terminated_by"`
	Reason       domain.EndReason `json:"reason"`
	Notes        string           `json:"notes,omitempty"`
}

// SessionAPI is the backend that issues join credentials and records the
// session outcome. The coordinator treats every call as fallible.
type SessionAPI interface {
	FetchJoinCredential(ctx context.Context, sessionID string) (JoinCredential, error)
	StartSession(ctx context.Context, sessionID string) (Receipt, error)
	EndSession(ctx context.Context, req EndRequest) (Receipt, error)
	EmergencyTerminate(ctx context.Context, sessionID string, req TerminateRequest) (Receipt, error)
}
