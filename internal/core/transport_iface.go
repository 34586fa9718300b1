//go:generate go run go.uber.org/mock/mockgen -source=transport_iface.go -destination=../mocks/mock_transport.go -package=mocks
package core

import (
	"context"

	"github.com/dkeye/Meet/internal/domain"
)

type EventType int

const (
	EventParticipantJoined EventType = iota
	EventParticipantLeft
	EventTrackPublished
	EventTrackUnpublished
	EventTrackSubscribed
	EventTrackUnsubscribed
	EventDataReceived
	EventConnectionQuality
	EventActiveSpeakers
	// EventPeerReady fires once media negotiation completed.
	EventPeerReady
	// EventDisconnected is an unsolicited loss of the connection.
	EventDisconnected
)

func (t EventType) String() string {
	switch t {
	case EventParticipantJoined:
		return "participant_joined"
	case EventParticipantLeft:
		return "participant_left"
	case EventTrackPublished:
		return "track_published"
	case EventTrackUnpublished:
		return "track_unpublished"
	case EventTrackSubscribed:
		return "track_subscribed"
	case EventTrackUnsubscribed:
		return "track_unsubscribed"
	case EventDataReceived:
		return "data_received"
	case EventConnectionQuality:
		return "connection_quality"
	case EventActiveSpeakers:
		return "active_speakers"
	case EventPeerReady:
		return "peer_ready"
	case EventDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// TransportEvent is a flat union; only the fields relevant to Type are set.
type TransportEvent struct {
	Type        EventType
	Participant domain.Participant
	Kind        domain.TrackKind
	// Track is nil for a remote publication that is not subscribed yet.
	Track    TrackHandle
	Topic    string
	Payload  []byte
	Quality  domain.ConnectionQuality
	Speakers []domain.ParticipantID
	Err      error
}

// DataPublisher is the subset of Transport the chat protocol needs.
type DataPublisher interface {
	PublishData(ctx context.Context, topic string, payload []byte, reliable bool) error
}

// Transport is the real-time media connection. Events() is closed after
// Disconnect returns or the connection is lost for good.
type Transport interface {
	DataPublisher
	Connect(ctx context.Context, url, token string) error
	Disconnect(ctx context.Context) error
	Events() <-chan TransportEvent
	LocalIdentity() domain.ParticipantID
	SetCameraEnabled(ctx context.Context, on bool) error
	SetMicrophoneEnabled(ctx context.Context, on bool) error
	SetScreenShareEnabled(ctx context.Context, on bool) error
}
