// Package monitor tracks the cast devices on the network and what each one is
// playing.
//
// A Monitor owns a single background loop with two periodic obligations:
//
//   - Device refresh: ask the Discoverer for the current devices, replace the
//     registry and report which friendly names appeared or disappeared.
//   - Status refresh: read every registered device through the StatusReader,
//     with bounded retries and per-call timeouts, and diff the result against
//     the previous poll.
//
// The loop sleeps until the nearer of the two due times and exits after the
// refresh in progress when Stop is called. Join waits for it.
//
// The device list and the status baseline live in one state object behind a
// single RWMutex. The loop copies what it needs, releases the lock for
// network calls and swaps results back in, so CurrentDevices and Statuses
// always return a complete list from either before or after a refresh.
//
// Usage:
//
//	mon := monitor.New(scanner, pool, monitor.DefaultConfig())
//	if err := mon.Start(); err != nil {
//		return err
//	}
//	defer func() {
//		_ = mon.Stop()
//		_ = mon.Join()
//	}()
//
//	for _, d := range mon.CurrentDevices() {
//		fmt.Println(d.Name, d.ID)
//	}
//
// Changes are also available as a stream of Events through Subscribe.
package monitor
