package monitor

import (
	"fmt"
	"net"
	"sort"
	"strconv"

	"github.com/google/uuid"
)

// Device is one cast-capable endpoint found by discovery.
type Device struct {
	// ID is the stable device identifier advertised by the receiver
	ID uuid.UUID `json:"id"`

	// Name is the friendly name (e.g., "Living Room")
	Name string `json:"name"`

	// Model is the advertised model name (e.g., "Chromecast Ultra")
	Model string `json:"model,omitempty"`

	// Host and Port locate the device's cast channel
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
}

// String returns a human-readable representation of the device
func (d Device) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.ID)
}

// Addr returns the host:port of the device's cast channel
func (d Device) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// DeviceDiff reports friendly names that appeared or disappeared between two
// registry refreshes. Both lists are sorted.
type DeviceDiff struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// Empty reports whether nothing was added or removed.
func (d DeviceDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// normalizeDevices orders devices by name then id and enforces one entry per
// id and per friendly name. Entries losing a name collision are returned as
// dropped; repeated sightings of the same id collapse silently.
func normalizeDevices(found []Device) (devices []Device, dropped []Device) {
	sorted := make([]Device, len(found))
	copy(sorted, found)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	seenIDs := make(map[uuid.UUID]struct{}, len(sorted))
	seenNames := make(map[string]struct{}, len(sorted))
	devices = make([]Device, 0, len(sorted))

	for _, d := range sorted {
		if d.Name == "" {
			dropped = append(dropped, d)
			continue
		}
		if d.ID != uuid.Nil {
			if _, ok := seenIDs[d.ID]; ok {
				continue
			}
		}
		if _, ok := seenNames[d.Name]; ok {
			dropped = append(dropped, d)
			continue
		}
		if d.ID != uuid.Nil {
			seenIDs[d.ID] = struct{}{}
		}
		seenNames[d.Name] = struct{}{}
		devices = append(devices, d)
	}

	return devices, dropped
}

// diffDevices compares two device lists by friendly name.
func diffDevices(previous, current []Device) DeviceDiff {
	before := nameSet(previous)
	after := nameSet(current)

	diff := DeviceDiff{Added: []string{}, Removed: []string{}}
	for name := range after {
		if _, ok := before[name]; !ok {
			diff.Added = append(diff.Added, name)
		}
	}
	for name := range before {
		if _, ok := after[name]; !ok {
			diff.Removed = append(diff.Removed, name)
		}
	}
	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)

	return diff
}

func nameSet(devices []Device) map[string]struct{} {
	set := make(map[string]struct{}, len(devices))
	for _, d := range devices {
		set[d.Name] = struct{}{}
	}
	return set
}
