package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/castwatch/castwatch/internal/monitor"
)

// Device represents a cast receiver advertised on the local network
type Device struct {
	// ID is the receiver's stable identifier (TXT "id")
	ID uuid.UUID

	// Name is the friendly name (TXT "fn", e.g., "Living Room")
	Name string

	// Model is the model name (TXT "md", e.g., "Chromecast Ultra")
	Model string

	// Instance is the mDNS service instance name (e.g., "Chromecast-Ultra-6b3c1f4e...")
	Instance string

	// Hostname is the mDNS hostname
	Hostname string

	// IP is the receiver address, IPv4 when one was advertised
	IP string

	// Port is the cast channel port (typically 8009)
	Port int

	// Metadata contains the raw mDNS TXT record data
	// Common fields: "ve=05", "rs=Spotify", "st=1"
	Metadata map[string]string

	// DiscoveredAt is when the device was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	return fmt.Sprintf("%s (%s) at %s", d.Name, d.Model, d.Addr())
}

// Addr returns the host:port of the cast channel
func (d *Device) Addr() string {
	return net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}

// RunningApp returns the status text the receiver advertises for the app it
// is currently running (e.g., "Spotify"), or "" when idle.
func (d *Device) RunningApp() string {
	return d.GetMetadata(txtStatusText)
}

// MonitorDevice converts the advertisement to the device type tracked by the monitor.
func (d *Device) MonitorDevice() monitor.Device {
	return monitor.Device{
		ID:    d.ID,
		Name:  d.Name,
		Model: d.Model,
		Host:  d.IP,
		Port:  d.Port,
	}
}
