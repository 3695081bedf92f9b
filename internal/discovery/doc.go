// Package discovery provides mDNS-based discovery of cast receivers.
//
// Cast receivers (Chromecasts, cast-enabled speakers and TVs) advertise the
// "_googlecast._tcp" service type. Their TXT records carry the receiver's
// identity:
//   - id: stable device identifier, 32 hex digits
//   - fn: friendly name shown to users (e.g., "Living Room")
//   - md: model name (e.g., "Chromecast Ultra")
//   - rs: status text of the running app, empty when idle
//
// # Discovery Process
//
// A scan works as follows:
//  1. Browses for the cast service type on the local network
//  2. Parses each advertisement into a Device, preferring IPv4 addresses
//  3. Keeps the latest advertisement per service instance
//  4. Returns the devices sorted by friendly name once the timeout expires
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	devices, err := scanner.ScanForDevices()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, device := range devices {
//	    fmt.Printf("Found: %s (%s) at %s\n", device.Name, device.Model, device.Addr())
//	}
//
// Scanner also implements monitor.Discoverer, so it can feed a Monitor directly.
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Devices must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
