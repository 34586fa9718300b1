package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChatMessage is an immutable entry of the session chat log.
type ChatMessage struct {
	ID         string        `json:"id"`
	SenderID   ParticipantID `json:"sender_id"`
	SenderName string        `json:"sender_name"`
	Text       string        `json:"text"`
	Timestamp  int64         `json:"timestamp"`
	Local      bool          `json:"local"`
	// Failed marks a local echo whose publish did not go through.
	Failed bool `json:"failed,omitempty"`
}

// NewMessageID mixes origin, send time and a random suffix so two messages
// from the same sender in the same millisecond never collide.
func NewMessageID(origin ParticipantID, at time.Time) string {
	return fmt.Sprintf("%s-%d-%s", origin, at.UnixMilli(), uuid.NewString()[:8])
}
