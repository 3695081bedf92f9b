package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

func testDevice(name string) Device {
	return Device{
		ID:   uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)),
		Name: name,
		Host: "192.168.1.20",
		Port: 8009,
	}
}

func playing(contentID, title string, at time.Time) Status {
	return Status{
		ContentID:   contentID,
		ContentType: "audio/mpeg",
		Title:       title,
		LastUpdated: at,
	}
}

// sequenceDiscoverer returns its results in order and then repeats the last one.
type sequenceDiscoverer struct {
	mu      sync.Mutex
	results [][]Device
	calls   int
}

func (d *sequenceDiscoverer) Discover(context.Context) ([]Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := d.calls
	if i >= len(d.results) {
		i = len(d.results) - 1
	}
	d.calls++
	if i < 0 {
		return nil, nil
	}
	return d.results[i], nil
}

func (d *sequenceDiscoverer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// scriptedReader plays back a list of statuses per device name, repeating the
// last entry once the script runs out. Devices without a script are never
// ready.
type scriptedReader struct {
	mu         sync.Mutex
	scripts    map[string][]Status
	connectErr map[string]error
	reads      map[string]int
	connects   map[string]int
	retained   [][]Device
}

func newScriptedReader(scripts map[string][]Status) *scriptedReader {
	return &scriptedReader{
		scripts:    scripts,
		connectErr: make(map[string]error),
		reads:      make(map[string]int),
		connects:   make(map[string]int),
	}
}

func (r *scriptedReader) Connect(_ context.Context, device Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connects[device.Name]++
	return r.connectErr[device.Name]
}

func (r *scriptedReader) ReadStatus(_ context.Context, device Device) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	script := r.scripts[device.Name]
	i := r.reads[device.Name]
	r.reads[device.Name]++
	if len(script) == 0 {
		return Status{}, nil
	}
	if i >= len(script) {
		i = len(script) - 1
	}
	return script[i], nil
}

func (r *scriptedReader) Retain(devices []Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retained = append(r.retained, devices)
}

func (r *scriptedReader) setScript(name string, script ...Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts[name] = script
	r.reads[name] = 0
}

func (r *scriptedReader) totalReads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.reads {
		n += c
	}
	return n
}

// fakeClock only moves when Advance is called. Every NewTimer call is
// announced on created so tests can wait for the loop to go to sleep.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*fakeTimer
	created chan time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:     fixedTime(),
		created: make(chan time.Duration, 64),
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	t := &fakeTimer{deadline: c.now.Add(d), ch: make(chan time.Time, 1)}
	c.timers = append(c.timers, t)
	c.mu.Unlock()

	c.created <- d
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	pending := c.timers[:0]
	for _, t := range c.timers {
		if t.fire(c.now) {
			continue
		}
		pending = append(pending, t)
	}
	c.timers = pending
}

type fakeTimer struct {
	mu       sync.Mutex
	deadline time.Time
	ch       chan time.Time
	done     bool
}

func (t *fakeTimer) C() <-chan time.Time {
	return t.ch
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.done
	t.done = true
	return wasActive
}

// fire delivers the tick if the deadline has passed and reports whether the
// timer is finished.
func (t *fakeTimer) fire(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return true
	}
	if now.Before(t.deadline) {
		return false
	}
	t.done = true
	t.ch <- now
	return true
}

func fixedTime() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}
