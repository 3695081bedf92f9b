package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"
)

func castEntry(instance, id, name, ip string) *zeroconf.ServiceEntry {
	entry := zeroconf.NewServiceEntry(instance, ServiceType, ServiceDomain)
	entry.HostName = instance + ".local."
	entry.Port = 8009
	entry.AddrIPv4 = []net.IP{net.ParseIP(ip)}
	entry.Text = []string{"id=" + id, "fn=" + name, "md=Chromecast", "ve=05", "rs="}
	return entry
}

func TestScanner_parseServiceEntry(t *testing.T) {
	scanner := NewScanner()

	tests := []struct {
		name      string
		entry     *zeroconf.ServiceEntry
		wantNil   bool
		wantName  string
		wantID    string
		wantModel string
		wantIP    string
		wantPort  int
	}{
		{
			name: "chromecast with IPv4",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Chromecast-6b3c1f4e8a204f1e9d1a1c2b3d4e5f60"},
				HostName:      "6b3c1f4e-8a20-4f1e-9d1a-1c2b3d4e5f60.local.",
				Port:          8009,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.20")},
				Text:          []string{"id=6b3c1f4e8a204f1e9d1a1c2b3d4e5f60", "fn=Living Room", "md=Chromecast Ultra"},
			},
			wantName:  "Living Room",
			wantID:    "6b3c1f4e-8a20-4f1e-9d1a-1c2b3d4e5f60",
			wantModel: "Chromecast Ultra",
			wantIP:    "192.168.1.20",
			wantPort:  8009,
		},
		{
			name: "group on a custom port",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Google-Cast-Group-1"},
				Port:          32187,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.21")},
				Text:          []string{"id=0f1e2d3c4b5a69788796a5b4c3d2e1f0", "fn=Downstairs", "md=Google Cast Group"},
			},
			wantName:  "Downstairs",
			wantID:    "0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0",
			wantModel: "Google Cast Group",
			wantIP:    "192.168.1.21",
			wantPort:  32187,
		},
		{
			name: "no port specified (should default to 8009)",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Kitchen-speaker"},
				AddrIPv4:      []net.IP{net.ParseIP("172.16.0.1")},
				Text:          []string{"id=11111111111111111111111111111111", "fn=Kitchen"},
			},
			wantName: "Kitchen",
			wantID:   "11111111-1111-1111-1111-111111111111",
			wantIP:   "172.16.0.1",
			wantPort: DefaultPort,
		},
		{
			name: "missing friendly name falls back to instance",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Nest-Hub-abc"},
				Port:          8009,
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.5")},
				Text:          []string{"id=22222222222222222222222222222222"},
			},
			wantName: "Nest-Hub-abc",
			wantID:   "22222222-2222-2222-2222-222222222222",
			wantIP:   "10.0.0.5",
			wantPort: 8009,
		},
		{
			name: "no IP address",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Office"},
				Port:          8009,
				AddrIPv4:      []net.IP{},
				AddrIPv6:      []net.IP{},
			},
			wantNil: true,
		},
		{
			name:    "nil entry",
			entry:   nil,
			wantNil: true,
		},
		{
			name: "IPv6 only device",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Bedroom"},
				Port:          8009,
				AddrIPv6:      []net.IP{net.ParseIP("fe80::1")},
				Text:          []string{"id=33333333333333333333333333333333", "fn=Bedroom"},
			},
			wantName: "Bedroom",
			wantID:   "33333333-3333-3333-3333-333333333333",
			wantIP:   "fe80::1",
			wantPort: 8009,
		},
		{
			name: "device with both IPv4 and IPv6 (should prefer IPv4)",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Den"},
				Port:          8009,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.50")},
				AddrIPv6:      []net.IP{net.ParseIP("fe80::2")},
				Text:          []string{"id=44444444444444444444444444444444", "fn=Den"},
			},
			wantName: "Den",
			wantID:   "44444444-4444-4444-4444-444444444444",
			wantIP:   "192.168.1.50",
			wantPort: 8009,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := scanner.parseServiceEntry(tt.entry)

			if tt.wantNil {
				if device != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", device)
				}
				return
			}

			if device == nil {
				t.Fatal("parseServiceEntry() = nil, want non-nil device")
			}

			if device.Name != tt.wantName {
				t.Errorf("device.Name = %v, want %v", device.Name, tt.wantName)
			}

			if device.ID.String() != tt.wantID {
				t.Errorf("device.ID = %v, want %v", device.ID, tt.wantID)
			}

			if device.Model != tt.wantModel {
				t.Errorf("device.Model = %v, want %v", device.Model, tt.wantModel)
			}

			if device.IP != tt.wantIP {
				t.Errorf("device.IP = %v, want %v", device.IP, tt.wantIP)
			}

			if device.Port != tt.wantPort {
				t.Errorf("device.Port = %v, want %v", device.Port, tt.wantPort)
			}

			if device.DiscoveredAt.IsZero() {
				t.Error("device.DiscoveredAt should be set")
			}
		})
	}
}

func TestDeviceID_FallbackIsStable(t *testing.T) {
	a := deviceID("not-hex", "Chromecast-Audio-1")
	b := deviceID("", "Chromecast-Audio-1")
	c := deviceID("", "Chromecast-Audio-2")

	if a != b {
		t.Errorf("deviceID() fallback = %v and %v for the same instance, want equal", a, b)
	}
	if a == c {
		t.Errorf("deviceID() fallback collided for different instances: %v", a)
	}
	if a == uuid.Nil {
		t.Error("deviceID() fallback = uuid.Nil")
	}
}

func TestParseTXT(t *testing.T) {
	got := parseTXT([]string{"fn=Living Room", "rs=", "bs", "ic=/setup/icon.png", "eq=a=b"})

	want := map[string]string{
		"fn": "Living Room",
		"rs": "",
		"bs": "",
		"ic": "/setup/icon.png",
		"eq": "a=b",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("parseTXT()[%q] = %q, want %q", k, got[k], v)
		}
	}
	if len(got) != len(want) {
		t.Errorf("len(parseTXT()) = %d, want %d", len(got), len(want))
	}
}

// fakeBrowse delivers entries and then blocks until the scan ends.
func fakeBrowse(entries ...*zeroconf.ServiceEntry) browseFunc {
	return func(ctx context.Context, service, domain string, out chan *zeroconf.ServiceEntry) error {
		go func() {
			for _, e := range entries {
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}()
		return nil
	}
}

func TestScanner_Discover(t *testing.T) {
	living := castEntry("Chromecast-aaa", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "Living Room", "192.168.1.20")
	kitchen := castEntry("Chromecast-bbb", "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "Kitchen", "192.168.1.21")
	moved := castEntry("Chromecast-aaa", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "Living Room", "192.168.1.99")

	scanner := NewScanner()
	scanner.Timeout = 100 * time.Millisecond
	scanner.browse = fakeBrowse(living, kitchen, moved)

	devices, err := scanner.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if len(devices) != 2 {
		t.Fatalf("len(Discover()) = %d, want 2: %v", len(devices), devices)
	}
	if devices[0].Name != "Kitchen" || devices[1].Name != "Living Room" {
		t.Errorf("Discover() names = %q, %q, want Kitchen, Living Room", devices[0].Name, devices[1].Name)
	}
	if devices[1].Host != "192.168.1.99" {
		t.Errorf("Living Room host = %v, want the latest advertisement 192.168.1.99", devices[1].Host)
	}
	if devices[0].Port != 8009 {
		t.Errorf("Kitchen port = %v, want 8009", devices[0].Port)
	}
}

func TestScanner_DiscoverBrowseError(t *testing.T) {
	browseErr := errors.New("no multicast interface")

	scanner := NewScanner()
	scanner.Timeout = 50 * time.Millisecond
	scanner.browse = func(context.Context, string, string, chan *zeroconf.ServiceEntry) error {
		return browseErr
	}

	_, err := scanner.Discover(context.Background())
	if !errors.Is(err, browseErr) {
		t.Errorf("Discover() error = %v, want %v", err, browseErr)
	}
}

func TestScanner_WaitForDevice(t *testing.T) {
	scanner := NewScanner()
	scanner.Timeout = 2 * time.Second
	scanner.browse = fakeBrowse(
		castEntry("Chromecast-bbb", "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "Kitchen", "192.168.1.21"),
		castEntry("Chromecast-aaa", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "Living Room", "192.168.1.20"),
	)

	start := time.Now()
	device, err := scanner.WaitForDevice("Living Room")
	if err != nil {
		t.Fatalf("WaitForDevice() error = %v", err)
	}
	if device.IP != "192.168.1.20" {
		t.Errorf("device.IP = %v, want 192.168.1.20", device.IP)
	}
	if time.Since(start) >= scanner.Timeout {
		t.Error("WaitForDevice() should return as soon as the device is found")
	}
}

func TestScanner_WaitForDeviceTimeout(t *testing.T) {
	scanner := NewScanner()
	scanner.Timeout = 50 * time.Millisecond
	scanner.browse = fakeBrowse(castEntry("Chromecast-bbb", "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "Kitchen", "192.168.1.21"))

	if _, err := scanner.WaitForDevice("Garage"); err == nil {
		t.Error("WaitForDevice() error = nil, want not found")
	}
}
