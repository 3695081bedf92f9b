package cast

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/castwatch/castwatch/internal/logging"
	"github.com/castwatch/castwatch/internal/monitor"
	"github.com/castwatch/castwatch/internal/protocol"
)

// Pool keeps one channel per device and reads media status over it. It
// implements monitor.StatusReader and monitor.DeviceRetainer.
type Pool struct {
	dial DialFunc
	now  func() time.Time

	mu    sync.Mutex
	conns map[uuid.UUID]*Conn
	media map[uuid.UUID]sessionMedia
}

// sessionMedia remembers the last media item of a session. Receivers omit
// "media" from MEDIA_STATUS when only the player state changed.
type sessionMedia struct {
	sessionID int
	media     *protocol.MediaInformation
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithDialer replaces the TLS dialer.
func WithDialer(dial DialFunc) PoolOption {
	return func(p *Pool) {
		p.dial = dial
	}
}

// WithNow replaces the clock that stamps LastUpdated.
func WithNow(now func() time.Time) PoolOption {
	return func(p *Pool) {
		p.now = now
	}
}

// NewPool creates an empty pool.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		dial:  TLSDialer(),
		now:   time.Now,
		conns: make(map[uuid.UUID]*Conn),
		media: make(map[uuid.UUID]sessionMedia),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connect opens a channel to the device unless one is already open.
func (p *Pool) Connect(ctx context.Context, device monitor.Device) error {
	if p.lookup(device) != nil {
		return nil
	}

	addr := device.Addr()
	nc, err := p.dial(ctx, addr)
	if err != nil {
		return ClassifyNetworkError(err, addr)
	}

	conn := newConn(nc, addr)
	if err := conn.Open(ctx, protocol.DefaultReceiverID); err != nil {
		_ = conn.Close()
		return ClassifyNetworkError(err, addr)
	}

	p.store(device.ID, conn)
	logging.LogConnection(addr, "cast channel opened")
	return nil
}

// ReadStatus asks the receiver for its media session. A receiver without a
// media application, or whose application has no session, returns a status
// that is not ready.
func (p *Pool) ReadStatus(ctx context.Context, device monitor.Device) (monitor.Status, error) {
	conn := p.lookup(device)
	if conn == nil {
		return monitor.Status{}, &DeviceError{
			Type:    ErrTypeClosed,
			Message: "status read without an open channel",
			Err:     ErrNotConnected,
			Addr:    device.Addr(),
		}
	}

	status, err := p.readStatus(ctx, device, conn)
	if err != nil {
		p.evict(device.ID, conn)
		return monitor.Status{}, ClassifyNetworkError(err, conn.Addr())
	}
	return status, nil
}

func (p *Pool) readStatus(ctx context.Context, device monitor.Device, conn *Conn) (monitor.Status, error) {
	requestID := protocol.GenerateRequestID()
	req, err := protocol.BuildReceiverGetStatus(requestID)
	if err != nil {
		return monitor.Status{}, err
	}
	reply, err := conn.Request(ctx, req, requestID, protocol.TypeReceiverStatus)
	if err != nil {
		return monitor.Status{}, err
	}
	receiver, err := protocol.ParseReceiverStatus(reply)
	if err != nil {
		return monitor.Status{}, NewParseError("invalid RECEIVER_STATUS", err, conn.Addr())
	}

	app, ok := receiver.MediaApp()
	if !ok {
		p.forgetMedia(device.ID)
		return monitor.Status{}, nil
	}

	if err := conn.Open(ctx, app.TransportID); err != nil {
		return monitor.Status{}, err
	}

	requestID = protocol.GenerateRequestID()
	req, err = protocol.BuildMediaGetStatus(app.TransportID, requestID)
	if err != nil {
		return monitor.Status{}, err
	}
	reply, err = conn.Request(ctx, req, requestID, protocol.TypeMediaStatus)
	if err != nil {
		return monitor.Status{}, err
	}
	sessions, err := protocol.ParseMediaStatus(reply)
	if err != nil {
		return monitor.Status{}, NewParseError("invalid MEDIA_STATUS", err, conn.Addr())
	}
	if len(sessions) == 0 {
		p.forgetMedia(device.ID)
		return monitor.Status{}, nil
	}

	media := p.resolveMedia(device.ID, sessions[0])
	if media == nil {
		return monitor.Status{}, nil
	}

	logging.Debug("Media status read",
		zap.String("device", device.Name),
		zap.String("app", app.DisplayName),
		zap.String("player_state", sessions[0].PlayerState),
	)

	return monitor.Status{
		ContentID:   media.ContentID,
		ContentType: media.ContentType,
		Duration:    media.Duration,
		Title:       media.Title(),
		LastUpdated: p.now(),
	}, nil
}

// resolveMedia returns the session's media item, falling back to the one last
// seen for the same session when the receiver left it out.
func (p *Pool) resolveMedia(id uuid.UUID, session protocol.MediaStatus) *protocol.MediaInformation {
	p.mu.Lock()
	defer p.mu.Unlock()

	if session.Media != nil {
		p.media[id] = sessionMedia{sessionID: session.MediaSessionID, media: session.Media}
		return session.Media
	}

	cached, ok := p.media[id]
	if !ok || cached.sessionID != session.MediaSessionID {
		return nil
	}
	return cached.media
}

func (p *Pool) forgetMedia(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.media, id)
}

// Retain closes the channels of devices that are no longer present.
func (p *Pool) Retain(devices []monitor.Device) {
	keep := make(map[uuid.UUID]struct{}, len(devices))
	for _, d := range devices {
		keep[d.ID] = struct{}{}
	}

	var stale []*Conn
	p.mu.Lock()
	for id, conn := range p.conns {
		if _, ok := keep[id]; !ok {
			stale = append(stale, conn)
			delete(p.conns, id)
			delete(p.media, id)
		}
	}
	p.mu.Unlock()

	for _, conn := range stale {
		_ = conn.Close()
		logging.LogConnection(conn.Addr(), "cast channel closed (device gone)")
	}
}

// Close closes every open channel.
func (p *Pool) Close() error {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[uuid.UUID]*Conn)
	p.media = make(map[uuid.UUID]sessionMedia)
	p.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
	return nil
}

// Len returns the number of open channels.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// lookup returns the open channel for device. A channel to an old address
// is closed, so a device that moved gets redialed.
func (p *Pool) lookup(device monitor.Device) *Conn {
	p.mu.Lock()
	conn, ok := p.conns[device.ID]
	if ok && conn.Addr() != device.Addr() {
		delete(p.conns, device.ID)
		p.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	p.mu.Unlock()
	return conn
}

func (p *Pool) store(id uuid.UUID, conn *Conn) {
	p.mu.Lock()
	old := p.conns[id]
	p.conns[id] = conn
	p.mu.Unlock()

	if old != nil && old != conn {
		_ = old.Close()
	}
}

func (p *Pool) evict(id uuid.UUID, conn *Conn) {
	p.mu.Lock()
	if p.conns[id] == conn {
		delete(p.conns, id)
	}
	p.mu.Unlock()

	_ = conn.Close()
	logging.LogConnection(conn.Addr(), "cast channel dropped")
}
