package monitor

import (
	"errors"
	"fmt"
)

// Lifecycle and invariant errors.
var (
	// ErrAlreadyRunning is returned by Start while the loop is running or stopping.
	ErrAlreadyRunning = errors.New("monitor already running")

	// ErrNotRunning is returned by Stop and Join before Start was called.
	ErrNotRunning = errors.New("monitor not running")

	// ErrStopped is returned by Start once the monitor has stopped; a stopped
	// monitor cannot be restarted.
	ErrStopped = errors.New("monitor stopped")

	// ErrStateCorruption reports a broken invariant in the shared state. It
	// stops the loop and is returned from Join.
	ErrStateCorruption = errors.New("monitor state corrupted")
)

// DiscoveryError wraps a failure of the discovery provider. The registry is
// left unchanged and discovery is retried on the next refresh.
type DiscoveryError struct {
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("device discovery failed: %v", e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// UnreachableError reports a device that produced no ready status within its
// attempt budget. Err is the error of the last attempt, or nil when the device
// answered but had no media status yet.
type UnreachableError struct {
	Device   string
	Attempts int
	Err      error
}

func (e *UnreachableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("device %q not ready after %d attempts", e.Device, e.Attempts)
	}
	return fmt.Sprintf("device %q unreachable after %d attempts: %v", e.Device, e.Attempts, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}
