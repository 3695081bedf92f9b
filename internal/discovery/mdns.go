package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/castwatch/castwatch/internal/logging"
	"github.com/castwatch/castwatch/internal/monitor"
)

const (
	// ServiceType is the mDNS service type cast receivers advertise
	ServiceType = "_googlecast._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default browse window. Discovery runs inside
	// the monitor loop, so it stays short.
	DefaultScanTimeout = 2 * time.Second

	// DefaultPort is the default cast channel port
	DefaultPort = 8009
)

// TXT record keys published by cast receivers
const (
	txtID         = "id"
	txtName       = "fn"
	txtModel      = "md"
	txtStatusText = "rs"
)

// browseFunc starts an mDNS browse that delivers entries until ctx ends.
type browseFunc func(ctx context.Context, service, domain string, entries chan *zeroconf.ServiceEntry) error

// Scanner handles mDNS device discovery
type Scanner struct {
	// Timeout is how long each scan listens for advertisements
	Timeout time.Duration

	// Service and Domain select the advertisements to browse for
	Service string
	Domain  string

	browse browseFunc
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
		Service: ServiceType,
		Domain:  ServiceDomain,
		browse:  zeroconfBrowse,
	}
}

func zeroconfBrowse(ctx context.Context, service, domain string, entries chan *zeroconf.ServiceEntry) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}
	if err := resolver.Browse(ctx, service, domain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	return nil
}

// Discover implements monitor.Discoverer.
func (s *Scanner) Discover(ctx context.Context) ([]monitor.Device, error) {
	found, err := s.ScanForDevicesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	devices := make([]monitor.Device, 0, len(found))
	for _, d := range found {
		devices = append(devices, d.MonitorDevice())
	}
	return devices, nil
}

// ScanForDevices discovers all cast receivers on the local network
func (s *Scanner) ScanForDevices() ([]*Device, error) {
	return s.ScanForDevicesWithContext(context.Background())
}

// ScanForDevicesWithContext listens for advertisements until the timeout or
// ctx ends and returns one entry per service instance, sorted by name.
func (s *Scanner) ScanForDevicesWithContext(ctx context.Context) ([]*Device, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	browse := s.browse
	if browse == nil {
		browse = zeroconfBrowse
	}

	entries := make(chan *zeroconf.ServiceEntry)

	var (
		mu      sync.Mutex
		devices = make(map[string]*Device)
	)

	// Receivers answer repeated queries; later answers for the same
	// instance replace earlier ones.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}
				device := s.parseServiceEntry(entry)
				if device == nil {
					continue
				}
				mu.Lock()
				devices[device.Instance] = device
				mu.Unlock()
			}
		}
	}()

	if err := browse(ctx, s.service(), s.domain(), entries); err != nil {
		return nil, err
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()

	result := make([]*Device, 0, len(devices))
	for _, d := range devices {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].Instance < result[j].Instance
	})

	logging.Debug("mDNS scan finished",
		zap.String("service", s.service()),
		zap.Int("devices", len(result)),
	)
	return result, nil
}

// WaitForDevice waits for a receiver with the given friendly name
func (s *Scanner) WaitForDevice(name string) (*Device, error) {
	return s.WaitForDeviceWithContext(context.Background(), name)
}

// WaitForDeviceWithContext waits for a receiver by friendly name with a custom context
func (s *Scanner) WaitForDeviceWithContext(ctx context.Context, name string) (*Device, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	browse := s.browse
	if browse == nil {
		browse = zeroconfBrowse
	}

	entries := make(chan *zeroconf.ServiceEntry)
	deviceChan := make(chan *Device, 1)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}
				device := s.parseServiceEntry(entry)
				if device != nil && device.Name == name {
					deviceChan <- device
					cancel()
					return
				}
			}
		}
	}()

	if err := browse(ctx, s.service(), s.domain(), entries); err != nil {
		return nil, err
	}

	select {
	case device := <-deviceChan:
		return device, nil
	case <-ctx.Done():
		// The match may have landed together with the cancel.
		select {
		case device := <-deviceChan:
			return device, nil
		default:
		}
		return nil, fmt.Errorf("device %q not found within %s", name, timeout)
	}
}

func (s *Scanner) service() string {
	if s.Service == "" {
		return ServiceType
	}
	return s.Service
}

func (s *Scanner) domain() string {
	if s.Domain == "" {
		return ServiceDomain
	}
	return s.Domain
}

// parseServiceEntry converts a zeroconf service entry to a Device
// Returns nil if the entry has no usable address
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Device {
	if entry == nil {
		return nil
	}

	// Get IP address (prefer IPv4)
	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}

	// Fallback to IPv6 if no IPv4
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}

	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := parseTXT(entry.Text)

	name := metadata[txtName]
	if name == "" {
		name = entry.Instance
	}

	return &Device{
		ID:           deviceID(metadata[txtID], entry.Instance),
		Name:         name,
		Model:        metadata[txtModel],
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// parseTXT splits "key=value" TXT strings; a key without "=" maps to "".
func parseTXT(records []string) map[string]string {
	metadata := make(map[string]string, len(records))
	for _, txt := range records {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}
	return metadata
}

// deviceID parses the advertised id (32 hex digits). Receivers that do not
// publish one get a name-based id derived from the instance so it stays
// stable across scans.
func deviceID(advertised, instance string) uuid.UUID {
	if id, err := uuid.Parse(advertised); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(instance))
}
