package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/castwatch/castwatch/internal/logging"
)

const (
	// DefaultDeviceRefreshPeriod is how often discovery runs
	DefaultDeviceRefreshPeriod = 10 * time.Second

	// DefaultStatusRefreshPeriod is how often device statuses are polled
	DefaultStatusRefreshPeriod = 1 * time.Second

	// DefaultRetries is the number of extra attempts per device and cycle
	DefaultRetries = 1

	// DefaultRetryDelay is the pause between attempts on one device
	DefaultRetryDelay = 250 * time.Millisecond

	// DefaultConnectTimeout bounds establishing a device channel
	DefaultConnectTimeout = 5 * time.Second

	// DefaultReadTimeout bounds one status read
	DefaultReadTimeout = 5 * time.Second

	// DefaultConcurrency is the number of devices polled in parallel
	DefaultConcurrency = 4
)

// Config holds the loop cadence and per-device limits.
type Config struct {
	DeviceRefreshPeriod time.Duration
	StatusRefreshPeriod time.Duration

	// Retries is the number of extra attempts per device; 0 means one attempt
	Retries int

	RetryDelay     time.Duration
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Concurrency    int
}

// DefaultConfig returns the default loop configuration.
func DefaultConfig() Config {
	return Config{
		DeviceRefreshPeriod: DefaultDeviceRefreshPeriod,
		StatusRefreshPeriod: DefaultStatusRefreshPeriod,
		Retries:             DefaultRetries,
		RetryDelay:          DefaultRetryDelay,
		ConnectTimeout:      DefaultConnectTimeout,
		ReadTimeout:         DefaultReadTimeout,
		Concurrency:         DefaultConcurrency,
	}
}

// State is the lifecycle state of a Monitor.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces the real clock, for tests.
func WithClock(clock Clock) Option {
	return func(m *Monitor) {
		m.clock = clock
	}
}

// Monitor runs the discovery and status refresh loop in one background
// goroutine and serves consistent reads of its state to any goroutine.
type Monitor struct {
	cfg      Config
	clock    Clock
	registry *Registry
	poller   *Poller
	reader   StatusReader
	events   *broadcaster

	lifeMu sync.Mutex
	state  State
	stopCh chan struct{}
	done   chan struct{}
	err    error
}

// New creates a monitor. Zero periods in cfg fall back to the defaults.
func New(discoverer Discoverer, reader StatusReader, cfg Config, opts ...Option) *Monitor {
	if cfg.DeviceRefreshPeriod <= 0 {
		cfg.DeviceRefreshPeriod = DefaultDeviceRefreshPeriod
	}
	if cfg.StatusRefreshPeriod <= 0 {
		cfg.StatusRefreshPeriod = DefaultStatusRefreshPeriod
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}

	registry := NewRegistry(discoverer)
	m := &Monitor{
		cfg:      cfg,
		clock:    realClock{},
		registry: registry,
		poller: NewPoller(reader, registry, PollConfig{
			ConnectTimeout: cfg.ConnectTimeout,
			ReadTimeout:    cfg.ReadTimeout,
			RetryDelay:     cfg.RetryDelay,
			Concurrency:    cfg.Concurrency,
		}),
		reader: reader,
		events: newBroadcaster(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the loop. It fails with ErrAlreadyRunning while the loop is
// running or stopping and with ErrStopped once it has stopped.
func (m *Monitor) Start() error {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	switch m.state {
	case StateRunning, StateStopping:
		return ErrAlreadyRunning
	case StateStopped:
		return ErrStopped
	}

	m.state = StateRunning
	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})
	go m.run(m.stopCh, m.done)

	logging.Info("Monitor started",
		zap.Duration("device_refresh", m.cfg.DeviceRefreshPeriod),
		zap.Duration("status_refresh", m.cfg.StatusRefreshPeriod),
		zap.Int("retries", m.cfg.Retries),
	)
	return nil
}

// Stop asks the loop to exit after the refresh in progress. It does not wait;
// use Join for that. Stopping an already stopping or stopped monitor is a no-op.
func (m *Monitor) Stop() error {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	switch m.state {
	case StateIdle:
		return ErrNotRunning
	case StateRunning:
		m.state = StateStopping
		close(m.stopCh)
		logging.Info("Monitor stopping")
	}
	return nil
}

// Join blocks until the loop has exited and returns the error that ended it,
// which is nil after a normal Stop.
func (m *Monitor) Join() error {
	m.lifeMu.Lock()
	if m.state == StateIdle {
		m.lifeMu.Unlock()
		return ErrNotRunning
	}
	done := m.done
	m.lifeMu.Unlock()

	<-done

	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	return m.err
}

// State returns the lifecycle state.
func (m *Monitor) State() State {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	return m.state
}

// CurrentDevices returns a copy of the registered devices, ordered by name.
func (m *Monitor) CurrentDevices() []Device {
	return m.registry.Devices()
}

// Statuses returns a copy of the last known status of every device.
func (m *Monitor) Statuses() Snapshot {
	return m.registry.state.snapshot()
}

// Subscribe returns a channel of change events and a function that ends the
// subscription. The channel is closed when the monitor stops.
func (m *Monitor) Subscribe(buffer int) (<-chan Event, func()) {
	return m.events.subscribe(buffer)
}

// RefreshDevices runs one registry refresh outside the loop. It is meant for
// one-shot use and fails with ErrAlreadyRunning while the loop owns the state.
func (m *Monitor) RefreshDevices(ctx context.Context) (DeviceDiff, error) {
	if err := m.requireIdle(); err != nil {
		return DeviceDiff{}, err
	}
	diff, err := m.registry.Refresh(ctx)
	if err == nil {
		m.retain()
	}
	return diff, err
}

// UpdateStatuses runs one status refresh outside the loop, with the same
// restriction as RefreshDevices.
func (m *Monitor) UpdateStatuses(ctx context.Context, retries int) (ChangeSet, error) {
	if err := m.requireIdle(); err != nil {
		return nil, err
	}
	return m.poller.UpdateStatuses(ctx, retries)
}

func (m *Monitor) requireIdle() error {
	switch m.State() {
	case StateRunning, StateStopping:
		return ErrAlreadyRunning
	}
	return nil
}

func (m *Monitor) run(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic in poll loop: %v", ErrStateCorruption, r)
		}
		if err != nil {
			logging.Error("Monitor loop failed", zap.Error(err))
		}

		m.lifeMu.Lock()
		m.state = StateStopped
		m.err = err
		m.lifeMu.Unlock()

		m.events.close()
		logging.Info("Monitor stopped")
	}()

	err = m.loop(stopCh)
}

func (m *Monitor) loop(stopCh <-chan struct{}) error {
	ctx := context.Background()
	sched := newSchedule(m.cfg.DeviceRefreshPeriod, m.cfg.StatusRefreshPeriod)

	for {
		select {
		case <-stopCh:
			return nil
		default:
		}

		now := m.clock.Now()

		if sched.deviceRefreshDue(now) {
			sched.deviceRefreshed(now)
			m.refreshDevices(ctx)
		}

		if sched.statusRefreshDue(now) {
			sched.statusRefreshed(now)
			if err := m.refreshStatuses(ctx); err != nil {
				return err
			}
		}

		wait := sched.sleep(m.clock.Now())
		if wait <= 0 {
			continue
		}

		timer := m.clock.NewTimer(wait)
		select {
		case <-stopCh:
			timer.Stop()
			return nil
		case <-timer.C():
		}
	}
}

func (m *Monitor) refreshDevices(ctx context.Context) {
	diff, err := m.registry.Refresh(ctx)
	if err != nil {
		logging.Warn("Device refresh failed, retrying next cycle", zap.Error(err))
		return
	}
	m.retain()

	if diff.Empty() {
		return
	}
	m.events.publish(Event{
		Type:    EventDevices,
		Time:    m.clock.Now(),
		Added:   diff.Added,
		Removed: diff.Removed,
		Devices: m.registry.Devices(),
	})
}

// refreshStatuses returns only errors that must end the loop.
func (m *Monitor) refreshStatuses(ctx context.Context) error {
	changes, err := m.poller.UpdateStatuses(ctx, m.cfg.Retries)
	if err != nil {
		if errors.Is(err, ErrStateCorruption) {
			return err
		}
		logging.Warn("Status refresh failed", zap.Error(err))
		return nil
	}

	if changes.Empty() {
		return nil
	}
	all := m.Statuses()
	statuses := make(Snapshot, len(changes))
	for _, name := range changes.Devices() {
		if status, ok := all[name]; ok {
			statuses[name] = status
		}
	}
	m.events.publish(Event{
		Type:     EventStatus,
		Time:     m.clock.Now(),
		Changes:  changes,
		Statuses: statuses,
	})
	return nil
}

func (m *Monitor) retain() {
	if r, ok := m.reader.(DeviceRetainer); ok {
		r.Retain(m.registry.Devices())
	}
}
