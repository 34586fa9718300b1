//go:generate go run go.uber.org/mock/mockgen -source=device_iface.go -destination=../mocks/mock_devices.go -package=mocks
package core

import (
	"context"

	"github.com/dkeye/Meet/internal/domain"
)

type Device struct {
	ID    string           `json:"id"`
	Label string           `json:"label"`
	Kind  domain.TrackKind `json:"kind"`
}

type DeviceRequest struct {
	Camera     bool
	Microphone bool
}

// LocalMedia is a scoped capture; Release stops every track it holds.
type LocalMedia interface {
	Tracks() []TrackHandle
	Release() error
}

type DeviceProvider interface {
	Enumerate(ctx context.Context) ([]Device, error)
	// Acquire captures each requested device independently. A device that
	// fails is reported in the error while the others are still returned.
	Acquire(ctx context.Context, req DeviceRequest) (LocalMedia, error)
	CaptureScreen(ctx context.Context) (TrackHandle, error)
}
