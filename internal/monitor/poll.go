package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/castwatch/castwatch/internal/logging"
)

// PollConfig bounds the per-device work of a status refresh.
type PollConfig struct {
	// ConnectTimeout bounds each Connect call (0 = no timeout)
	ConnectTimeout time.Duration

	// ReadTimeout bounds each ReadStatus call (0 = no timeout)
	ReadTimeout time.Duration

	// RetryDelay is the pause between attempts on the same device
	RetryDelay time.Duration

	// Concurrency is the number of devices polled at once (minimum 1)
	Concurrency int
}

// Poller reads the status of every registered device and diffs it against
// the previous poll.
type Poller struct {
	reader StatusReader
	state  *state
	cfg    PollConfig
}

// NewPoller creates a poller over the devices of registry.
func NewPoller(reader StatusReader, registry *Registry, cfg PollConfig) *Poller {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Poller{reader: reader, state: registry.state, cfg: cfg}
}

// UpdateStatuses polls every registered device, making up to retries+1
// attempts per device, and returns the fields that changed since the last
// call. Devices without a ready status keep their previous status as the
// baseline and are not reported.
func (p *Poller) UpdateStatuses(ctx context.Context, retries int) (ChangeSet, error) {
	if retries < 0 {
		retries = 0
	}

	devices := p.state.deviceList()
	current := make(Snapshot, len(devices))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(p.cfg.Concurrency)

	for _, device := range devices {
		g.Go(func() error {
			status, err := p.readDevice(ctx, device, retries)
			if err != nil {
				logging.Warn("Device skipped this cycle",
					zap.String("device", device.Name),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			current[device.Name] = status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	changes, err := p.commit(current)
	if err != nil {
		return nil, err
	}

	logging.LogStatusChanges(changes)
	return changes, nil
}

// commit diffs current against the baseline and installs the new baseline.
func (p *Poller) commit(current Snapshot) (ChangeSet, error) {
	p.state.mu.Lock()
	defer p.state.mu.Unlock()

	registered := nameSet(p.state.devices)
	for name := range current {
		// Removed by a refresh that ran while this poll was in flight.
		if _, ok := registered[name]; !ok {
			delete(current, name)
		}
	}

	changes, err := changeSetFromTree(Diff(current.Tree(), p.state.statuses.Tree()))
	if err != nil {
		return nil, err
	}

	next := current
	for name, status := range p.state.statuses {
		if _, polled := next[name]; polled {
			continue
		}
		if _, ok := registered[name]; ok {
			next[name] = status
		}
	}
	p.state.statuses = next

	return changes, nil
}

func (p *Poller) readDevice(ctx context.Context, device Device, retries int) (Status, error) {
	attempts := retries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && p.cfg.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return Status{}, &UnreachableError{Device: device.Name, Attempts: attempt - 1, Err: ctx.Err()}
			case <-time.After(p.cfg.RetryDelay):
			}
		}

		status, err := p.attempt(ctx, device)
		if err == nil && status.Ready() {
			return status, nil
		}

		logging.LogDeviceAttempt(device.Name, attempt, err)
		lastErr = err
	}

	return Status{}, &UnreachableError{Device: device.Name, Attempts: attempts, Err: lastErr}
}

func (p *Poller) attempt(ctx context.Context, device Device) (Status, error) {
	connectCtx, cancel := withTimeout(ctx, p.cfg.ConnectTimeout)
	err := p.reader.Connect(connectCtx, device)
	cancel()
	if err != nil {
		return Status{}, err
	}

	readCtx, cancel := withTimeout(ctx, p.cfg.ReadTimeout)
	defer cancel()
	return p.reader.ReadStatus(readCtx, device)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
