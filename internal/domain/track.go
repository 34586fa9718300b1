package domain

import "fmt"

type TrackKind int

const (
	TrackCamera TrackKind = iota
	TrackMicrophone
	TrackScreen
)

func (k TrackKind) String() string {
	switch k {
	case TrackCamera:
		return "camera"
	case TrackMicrophone:
		return "microphone"
	case TrackScreen:
		return "screen"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Visual reports whether the kind is rendered on a tile.
func (k TrackKind) Visual() bool { return k == TrackCamera || k == TrackScreen }

func ParseTrackKind(s string) (TrackKind, error) {
	switch s {
	case "camera":
		return TrackCamera, nil
	case "microphone":
		return TrackMicrophone, nil
	case "screen":
		return TrackScreen, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTrackKind, s)
}

func (k TrackKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *TrackKind) UnmarshalText(b []byte) error {
	v, err := ParseTrackKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

type SubscriptionState int

const (
	Unsubscribed SubscriptionState = iota
	Subscribing
	Attached
)

func (s SubscriptionState) String() string {
	switch s {
	case Unsubscribed:
		return "unsubscribed"
	case Subscribing:
		return "subscribing"
	case Attached:
		return "attached"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s SubscriptionState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
