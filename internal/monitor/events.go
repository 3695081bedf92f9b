package monitor

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/castwatch/castwatch/internal/logging"
)

// EventType identifies what changed.
type EventType string

const (
	EventDevices EventType = "devices"
	EventStatus  EventType = "status"
)

// Event is emitted by the loop after a non-empty device or status diff.
type Event struct {
	Type    EventType `json:"type"`
	Time    time.Time `json:"time"`
	Added   []string  `json:"added,omitempty"`
	Removed []string  `json:"removed,omitempty"`
	Changes ChangeSet `json:"changes,omitempty"`

	// Devices is the device list after a device event.
	Devices []Device `json:"devices,omitempty"`

	// Statuses holds the full status of each device in Changes.
	Statuses Snapshot `json:"statuses,omitempty"`
}

// broadcaster fans events out to subscribers without ever blocking the loop.
// A subscriber whose buffer is full misses the event.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Event)}
}

func (b *broadcaster) subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

func (b *broadcaster) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			logging.Debug("Subscriber buffer full, event dropped",
				zap.Int("subscriber", id),
				zap.String("type", string(ev.Type)),
			)
		}
	}
}

// close ends every subscription; later subscribers get a closed channel.
func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
