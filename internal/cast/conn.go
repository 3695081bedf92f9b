package cast

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/castwatch/castwatch/internal/logging"
	"github.com/castwatch/castwatch/internal/protocol"
)

// DialFunc opens the raw channel to a device address.
type DialFunc func(ctx context.Context, addr string) (net.Conn, error)

// TLSDialer returns a DialFunc for the cast TLS socket. Receivers present
// self-signed certificates, so the chain is not verified.
func TLSDialer() DialFunc {
	d := &tls.Dialer{
		NetDialer: &net.Dialer{KeepAlive: 30 * time.Second},
		Config: &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // receivers use self-signed certificates
			MinVersion:         tls.VersionTLS12,
		},
	}
	return func(ctx context.Context, addr string) (net.Conn, error) {
		return d.DialContext(ctx, "tcp", addr)
	}
}

// Conn is one open channel to a receiver. Calls are serialized.
type Conn struct {
	addr string
	nc   net.Conn

	mu     sync.Mutex
	joined map[string]bool
}

func newConn(nc net.Conn, addr string) *Conn {
	return &Conn{addr: addr, nc: nc, joined: make(map[string]bool)}
}

// Addr returns the device address the channel was opened to.
func (c *Conn) Addr() string {
	return c.addr
}

// Open establishes a virtual connection to destination unless one exists.
func (c *Conn) Open(ctx context.Context, destination string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.joined[destination] {
		return nil
	}

	msg, err := protocol.BuildConnect(destination)
	if err != nil {
		return err
	}

	release := c.bind(ctx)
	defer release()

	if err := protocol.WriteFrame(c.nc, msg); err != nil {
		return ClassifyNetworkError(err, c.addr)
	}
	c.joined[destination] = true
	return nil
}

// Request sends msg and waits for the reply carrying requestID on the same
// namespace. Heartbeats that arrive meanwhile are answered and unrelated
// messages are skipped.
func (c *Conn) Request(ctx context.Context, msg *protocol.Message, requestID int, wantType string) (*protocol.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	release := c.bind(ctx)
	defer release()

	if err := protocol.WriteFrame(c.nc, msg); err != nil {
		return nil, ClassifyNetworkError(err, c.addr)
	}

	for {
		reply, err := protocol.ReadFrame(c.nc)
		if err != nil {
			return nil, ClassifyNetworkError(err, c.addr)
		}

		action, out := protocol.HandleControl(reply)
		switch action {
		case protocol.ActionReply:
			if err := protocol.WriteFrame(c.nc, out); err != nil {
				return nil, ClassifyNetworkError(err, c.addr)
			}
			continue
		case protocol.ActionClosed:
			delete(c.joined, reply.SourceID)
			if reply.SourceID == msg.DestinationID || reply.SourceID == protocol.DefaultReceiverID {
				return nil, &DeviceError{
					Type:      ErrTypeClosed,
					Message:   fmt.Sprintf("%s closed the virtual connection", reply.SourceID),
					Addr:      c.addr,
					Retryable: true,
				}
			}
			continue
		case protocol.ActionIgnore:
			continue
		}

		if reply.Namespace != msg.Namespace {
			continue
		}

		h, err := protocol.ParseHeader(reply)
		if err != nil {
			logging.Debug("Skipping undecodable message",
				zap.String("addr", c.addr),
				zap.String("namespace", reply.Namespace),
				zap.Error(err),
			)
			continue
		}
		if h.RequestID != requestID {
			continue
		}
		if protocol.IsErrorType(h.Type) {
			return nil, NewProtocolError(fmt.Sprintf("receiver answered %s", h.Type), c.addr)
		}
		if h.Type != wantType {
			return nil, NewProtocolError(fmt.Sprintf("unexpected reply %s (want %s)", h.Type, wantType), c.addr)
		}
		return reply, nil
	}
}

// Close ends the virtual connections and closes the channel.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.nc.SetWriteDeadline(time.Now().Add(250 * time.Millisecond))
	for destination := range c.joined {
		if msg, err := protocol.BuildClose(destination); err == nil {
			_ = protocol.WriteFrame(c.nc, msg)
		}
	}
	c.joined = make(map[string]bool)
	return c.nc.Close()
}

// bind applies ctx's deadline to the channel and interrupts blocked I/O if
// ctx is canceled. The returned func must be called when the call ends.
func (c *Conn) bind(ctx context.Context) func() {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	_ = c.nc.SetDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		_ = c.nc.SetDeadline(time.Now())
	})
	return func() { stop() }
}
