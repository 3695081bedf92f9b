package monitor

//go:generate mockgen -destination=mock_monitor.go -package=monitor github.com/castwatch/castwatch/internal/monitor Discoverer,StatusReader

import (
	"context"
	"time"
)

// Discoverer enumerates the devices currently on the network. An empty result
// is valid; an error means the enumeration itself failed.
type Discoverer interface {
	Discover(ctx context.Context) ([]Device, error)
}

// StatusReader talks to individual devices.
type StatusReader interface {
	// Connect returns once the device channel is usable or ctx expires.
	Connect(ctx context.Context, device Device) error

	// ReadStatus returns the device's current status. A status whose
	// LastUpdated is zero means the device has not reported media yet.
	ReadStatus(ctx context.Context, device Device) (Status, error)
}

// DeviceRetainer is implemented by status readers that hold per-device
// resources. Retain is called after each registry refresh with the devices
// still present.
type DeviceRetainer interface {
	Retain(devices []Device)
}

// Clock abstracts time for the scheduling loop.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// Timer abstracts the timer behavior.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}
