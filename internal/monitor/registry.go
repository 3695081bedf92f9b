package monitor

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/castwatch/castwatch/internal/logging"
)

// state is the only data shared between the loop and readers. One lock
// guards both the device list and the status baseline; it is held for
// copies and swaps only, never across network calls.
type state struct {
	mu       sync.RWMutex
	devices  []Device
	statuses Snapshot
}

func newState() *state {
	return &state{statuses: Snapshot{}}
}

func (s *state) deviceList() []Device {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Device, len(s.devices))
	copy(out, s.devices)
	return out
}

func (s *state) snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statuses.Clone()
}

// Registry holds the devices currently on the network.
type Registry struct {
	discoverer Discoverer
	state      *state
}

// NewRegistry creates an empty registry fed by the given discoverer.
func NewRegistry(discoverer Discoverer) *Registry {
	return &Registry{discoverer: discoverer, state: newState()}
}

// Refresh replaces the device list with a fresh discovery result and reports
// which friendly names were added and removed.
//
// A discovery failure returns a *DiscoveryError and leaves the list as it was.
// Devices that left the network also leave the status baseline.
func (r *Registry) Refresh(ctx context.Context) (DeviceDiff, error) {
	found, err := r.discoverer.Discover(ctx)
	if err != nil {
		return DeviceDiff{}, &DiscoveryError{Err: err}
	}

	devices, dropped := normalizeDevices(found)
	for _, d := range dropped {
		logging.Warn("Ignoring device with duplicate or empty name",
			zap.String("name", d.Name),
			zap.String("id", d.ID.String()),
			zap.String("host", d.Host),
		)
	}

	r.state.mu.Lock()
	diff := diffDevices(r.state.devices, devices)
	r.state.devices = devices
	for _, name := range diff.Removed {
		delete(r.state.statuses, name)
	}
	r.state.mu.Unlock()

	logging.LogDeviceChanges(diff.Added, diff.Removed)
	return diff, nil
}

// Devices returns a copy of the current device list.
func (r *Registry) Devices() []Device {
	return r.state.deviceList()
}
