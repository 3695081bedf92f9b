package monitor

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDevice_String(t *testing.T) {
	d := Device{
		ID:   uuid.MustParse("6b3c1f4e-8a20-4f1e-9d1a-1c2b3d4e5f60"),
		Name: "Living Room",
	}
	want := "Living Room (6b3c1f4e-8a20-4f1e-9d1a-1c2b3d4e5f60)"
	if got := d.String(); got != want {
		t.Errorf("String() = %v, want %v", got, want)
	}
}

func TestDevice_Addr(t *testing.T) {
	tests := []struct {
		name   string
		device Device
		want   string
	}{
		{"ipv4", Device{Host: "192.168.1.20", Port: 8009}, "192.168.1.20:8009"},
		{"ipv6", Device{Host: "fe80::1", Port: 8009}, "[fe80::1]:8009"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.device.Addr(); got != tt.want {
				t.Errorf("Addr() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeDevices(t *testing.T) {
	kitchen := testDevice("Kitchen")
	living := testDevice("Living Room")

	impostor := testDevice("Kitchen")
	impostor.ID = uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff")

	moved := living
	moved.Host = "192.168.1.99"

	tests := []struct {
		name        string
		found       []Device
		wantNames   []string
		wantDropped int
	}{
		{
			name:      "sorted by name",
			found:     []Device{living, kitchen},
			wantNames: []string{"Kitchen", "Living Room"},
		},
		{
			name:      "same id seen twice collapses silently",
			found:     []Device{living, moved, kitchen},
			wantNames: []string{"Kitchen", "Living Room"},
		},
		{
			name:        "duplicate name with different id is dropped",
			found:       []Device{impostor, kitchen},
			wantNames:   []string{"Kitchen"},
			wantDropped: 1,
		},
		{
			name:        "empty name is dropped",
			found:       []Device{{ID: uuid.New()}, kitchen},
			wantNames:   []string{"Kitchen"},
			wantDropped: 1,
		},
		{
			name:      "empty input",
			found:     nil,
			wantNames: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devices, dropped := normalizeDevices(tt.found)

			names := make([]string, 0, len(devices))
			for _, d := range devices {
				names = append(names, d.Name)
			}
			assert.Equal(t, tt.wantNames, names)
			assert.Len(t, dropped, tt.wantDropped)
		})
	}
}

func TestNormalizeDevices_DuplicateNameKeepsLowestID(t *testing.T) {
	a := Device{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), Name: "TV"}
	b := Device{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), Name: "TV"}

	devices, dropped := normalizeDevices([]Device{a, b})

	assert.Equal(t, []Device{b}, devices)
	assert.Equal(t, []Device{a}, dropped)
}

func TestDiffDevices(t *testing.T) {
	a, b, c := testDevice("A"), testDevice("B"), testDevice("C")

	tests := []struct {
		name     string
		previous []Device
		current  []Device
		want     DeviceDiff
	}{
		{
			name:     "replace one",
			previous: []Device{a, b},
			current:  []Device{b, c},
			want:     DeviceDiff{Added: []string{"C"}, Removed: []string{"A"}},
		},
		{
			name:    "from nothing",
			current: []Device{c, a},
			want:    DeviceDiff{Added: []string{"A", "C"}, Removed: []string{}},
		},
		{
			name:     "to nothing",
			previous: []Device{a},
			want:     DeviceDiff{Added: []string{}, Removed: []string{"A"}},
		},
		{
			name:     "unchanged",
			previous: []Device{a, b},
			current:  []Device{a, b},
			want:     DeviceDiff{Added: []string{}, Removed: []string{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := diffDevices(tt.previous, tt.current)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want.Added) == 0 && len(tt.want.Removed) == 0, got.Empty())
		})
	}
}
