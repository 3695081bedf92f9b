package cast

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castwatch/castwatch/internal/monitor"
	"github.com/castwatch/castwatch/internal/protocol"
)

const spotifyApps = `[{"appId":"CC32E753","displayName":"Spotify","sessionId":"s1","transportId":"web-5",
	"namespaces":[{"name":"urn:x-cast:com.google.cast.media"}]}]`

func mediaPlaying(contentID, title string, duration string) string {
	return fmt.Sprintf(`[{"mediaSessionId":1,"playerState":"PLAYING","media":{"contentId":%q,
		"contentType":"audio/mpeg","duration":%s,"metadata":{"title":%q}}}]`, contentID, duration, title)
}

// fakeReceiver answers the requests a status read makes.
type fakeReceiver struct {
	mu       sync.Mutex
	apps     string
	media    []string
	mediaIdx int

	pingBeforeReply bool
	silent          bool
	replyType       string
	closeOnStatus   bool

	connects []string
	pongs    int
}

func (f *fakeReceiver) setMedia(media ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.media = media
	f.mediaIdx = 0
}

func (f *fakeReceiver) serve(conn net.Conn) {
	defer conn.Close()

	// net.Pipe is unbuffered; writes run apart from reads so a PONG sent
	// while a reply is in flight cannot block both ends.
	outbox := make(chan *protocol.Message, 16)
	defer close(outbox)
	go func() {
		for m := range outbox {
			if err := protocol.WriteFrame(conn, m); err != nil {
				return
			}
		}
	}()

	for {
		msg, err := protocol.ReadFrame(conn)
		if err != nil {
			return
		}
		h, err := protocol.ParseHeader(msg)
		if err != nil {
			return
		}

		f.mu.Lock()
		switch {
		case msg.Namespace == protocol.NamespaceConnection && h.Type == protocol.TypeConnect:
			f.connects = append(f.connects, msg.DestinationID)
			f.mu.Unlock()
			continue
		case msg.Namespace == protocol.NamespaceHeartbeat && h.Type == protocol.TypePong:
			f.pongs++
			f.mu.Unlock()
			continue
		case msg.Namespace == protocol.NamespaceConnection:
			f.mu.Unlock()
			continue
		}

		if f.silent {
			f.mu.Unlock()
			continue
		}

		var out []*protocol.Message
		if f.pingBeforeReply {
			out = append(out, reply(msg, protocol.NamespaceHeartbeat, `{"type":"PING"}`))
		}

		switch msg.Namespace {
		case protocol.NamespaceReceiver:
			if f.closeOnStatus {
				out = append(out, reply(msg, protocol.NamespaceConnection, `{"type":"CLOSE"}`))
				break
			}
			// An unsolicited broadcast must be skipped by the reader.
			out = append(out, reply(msg, protocol.NamespaceReceiver, `{"type":"RECEIVER_STATUS","requestId":0,"status":{"applications":[]}}`))
			typ := protocol.TypeReceiverStatus
			if f.replyType != "" {
				typ = f.replyType
			}
			out = append(out, reply(msg, protocol.NamespaceReceiver,
				fmt.Sprintf(`{"type":%q,"requestId":%d,"status":{"applications":%s}}`, typ, h.RequestID, f.apps)))
		case protocol.NamespaceMedia:
			media := "[]"
			if len(f.media) > 0 {
				i := f.mediaIdx
				if i >= len(f.media) {
					i = len(f.media) - 1
				}
				media = f.media[i]
				f.mediaIdx++
			}
			out = append(out, reply(msg, protocol.NamespaceMedia,
				fmt.Sprintf(`{"type":"MEDIA_STATUS","requestId":%d,"status":%s}`, h.RequestID, media)))
		}
		f.mu.Unlock()

		for _, m := range out {
			outbox <- m
		}
	}
}

func reply(req *protocol.Message, namespace, payload string) *protocol.Message {
	return &protocol.Message{
		SourceID:      req.DestinationID,
		DestinationID: req.SourceID,
		Namespace:     namespace,
		PayloadType:   protocol.PayloadString,
		PayloadUTF8:   payload,
	}
}

func newTestPool(recv *fakeReceiver, now time.Time) (*Pool, *int) {
	dials := 0
	var mu sync.Mutex
	pool := NewPool(
		WithNow(func() time.Time { return now }),
		WithDialer(func(ctx context.Context, addr string) (net.Conn, error) {
			mu.Lock()
			dials++
			mu.Unlock()
			client, server := net.Pipe()
			go recv.serve(server)
			return client, nil
		}),
	)
	return pool, &dials
}

func castDevice(name string) monitor.Device {
	return monitor.Device{
		ID:   uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)),
		Name: name,
		Host: "192.168.1.20",
		Port: 8009,
	}
}

func readOnce(t *testing.T, pool *Pool, device monitor.Device) (monitor.Status, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, pool.Connect(ctx, device))
	return pool.ReadStatus(ctx, device)
}

func TestPool_ReadStatusPlaying(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	recv := &fakeReceiver{apps: spotifyApps, media: []string{mediaPlaying("spotify:track:abc", "Song A", "215.5")}}
	pool, _ := newTestPool(recv, now)
	defer pool.Close()

	status, err := readOnce(t, pool, castDevice("Living Room"))
	require.NoError(t, err)

	assert.True(t, status.Ready())
	assert.Equal(t, "spotify:track:abc", status.ContentID)
	assert.Equal(t, "audio/mpeg", status.ContentType)
	assert.Equal(t, "Song A", status.Title)
	require.NotNil(t, status.Duration)
	assert.Equal(t, 215.5, *status.Duration)
	assert.Equal(t, now, status.LastUpdated)

	recv.mu.Lock()
	defer recv.mu.Unlock()
	assert.Equal(t, []string{protocol.DefaultReceiverID, "web-5"}, recv.connects)
}

func TestPool_ReusesChannel(t *testing.T) {
	recv := &fakeReceiver{apps: spotifyApps, media: []string{mediaPlaying("a", "Song A", "null")}}
	pool, dials := newTestPool(recv, time.Now())
	defer pool.Close()

	device := castDevice("Kitchen")
	for i := 0; i < 3; i++ {
		status, err := readOnce(t, pool, device)
		require.NoError(t, err)
		assert.Nil(t, status.Duration)
	}

	assert.Equal(t, 1, *dials)
	assert.Equal(t, 1, pool.Len())

	recv.mu.Lock()
	defer recv.mu.Unlock()
	assert.Len(t, recv.connects, 2, "each virtual connection is opened once")
}

func TestPool_NotReady(t *testing.T) {
	tests := []struct {
		name  string
		apps  string
		media []string
	}{
		{
			name: "idle receiver",
			apps: `[{"appId":"E8C28D3C","isIdleScreen":true,"transportId":"b1","namespaces":[]}]`,
		},
		{
			name: "no applications",
			apps: `[]`,
		},
		{
			name:  "app without session",
			apps:  spotifyApps,
			media: []string{`[]`},
		},
		{
			name:  "session without media",
			apps:  spotifyApps,
			media: []string{`[{"mediaSessionId":3,"playerState":"IDLE"}]`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recv := &fakeReceiver{apps: tt.apps, media: tt.media}
			pool, _ := newTestPool(recv, time.Now())
			defer pool.Close()

			status, err := readOnce(t, pool, castDevice("TV"))
			require.NoError(t, err)
			assert.False(t, status.Ready())
		})
	}
}

func TestPool_KeepsMediaWhenOmitted(t *testing.T) {
	recv := &fakeReceiver{apps: spotifyApps}
	recv.setMedia(
		mediaPlaying("spotify:track:abc", "Song A", "200"),
		`[{"mediaSessionId":1,"playerState":"PAUSED"}]`,
	)
	pool, _ := newTestPool(recv, time.Now())
	defer pool.Close()
	device := castDevice("Office")

	first, err := readOnce(t, pool, device)
	require.NoError(t, err)
	second, err := readOnce(t, pool, device)
	require.NoError(t, err)

	assert.True(t, second.Ready())
	assert.Equal(t, first.ContentID, second.ContentID)
	assert.Equal(t, "Song A", second.Title)
}

func TestPool_AnswersHeartbeat(t *testing.T) {
	recv := &fakeReceiver{apps: spotifyApps, media: []string{mediaPlaying("a", "Song A", "1")}, pingBeforeReply: true}
	pool, _ := newTestPool(recv, time.Now())
	defer pool.Close()

	_, err := readOnce(t, pool, castDevice("TV"))
	require.NoError(t, err)

	// The PONGs are read by the fake after the replies went out.
	require.Eventually(t, func() bool {
		recv.mu.Lock()
		defer recv.mu.Unlock()
		return recv.pongs == 2
	}, time.Second, 10*time.Millisecond)
}

func TestPool_ReadWithoutConnect(t *testing.T) {
	pool := NewPool()

	_, err := pool.ReadStatus(context.Background(), castDevice("TV"))
	require.ErrorIs(t, err, ErrNotConnected)

	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, ErrTypeClosed, devErr.Type)
}

func TestPool_DialError(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connect: connection refused")}
	pool := NewPool(WithDialer(func(context.Context, string) (net.Conn, error) {
		return nil, refused
	}))

	err := pool.Connect(context.Background(), castDevice("TV"))
	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, "192.168.1.20:8009", devErr.Addr)
	assert.Equal(t, 0, pool.Len())
}

func TestPool_TimeoutEvictsChannel(t *testing.T) {
	recv := &fakeReceiver{apps: spotifyApps, silent: true}
	pool, dials := newTestPool(recv, time.Now())
	defer pool.Close()
	device := castDevice("TV")

	require.NoError(t, pool.Connect(context.Background(), device))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := pool.ReadStatus(ctx, device)

	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, ErrTypeTimeout, devErr.Type)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 0, pool.Len())

	require.NoError(t, pool.Connect(context.Background(), device))
	assert.Equal(t, 2, *dials)
}

func TestPool_ErrorReply(t *testing.T) {
	recv := &fakeReceiver{apps: spotifyApps, replyType: protocol.TypeInvalidRequest}
	pool, _ := newTestPool(recv, time.Now())
	defer pool.Close()

	_, err := readOnce(t, pool, castDevice("TV"))
	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, ErrTypeProtocol, devErr.Type)
}

func TestPool_ReceiverClosesConnection(t *testing.T) {
	recv := &fakeReceiver{apps: spotifyApps, closeOnStatus: true}
	pool, _ := newTestPool(recv, time.Now())
	defer pool.Close()

	_, err := readOnce(t, pool, castDevice("TV"))
	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, ErrTypeClosed, devErr.Type)
	assert.Equal(t, 0, pool.Len())
}

func TestPool_RetainClosesStaleChannels(t *testing.T) {
	recv := &fakeReceiver{apps: spotifyApps, media: []string{mediaPlaying("a", "Song A", "1")}}
	pool, _ := newTestPool(recv, time.Now())
	defer pool.Close()

	living, kitchen := castDevice("Living Room"), castDevice("Kitchen")
	require.NoError(t, pool.Connect(context.Background(), living))
	require.NoError(t, pool.Connect(context.Background(), kitchen))
	require.Equal(t, 2, pool.Len())

	pool.Retain([]monitor.Device{kitchen})
	assert.Equal(t, 1, pool.Len())

	pool.Retain(nil)
	assert.Equal(t, 0, pool.Len())
}

func TestPool_RedialsMovedDevice(t *testing.T) {
	recv := &fakeReceiver{apps: spotifyApps}
	pool, dials := newTestPool(recv, time.Now())
	defer pool.Close()

	device := castDevice("TV")
	require.NoError(t, pool.Connect(context.Background(), device))

	device.Host = "192.168.1.77"
	require.NoError(t, pool.Connect(context.Background(), device))

	assert.Equal(t, 2, *dials)
	assert.Equal(t, 1, pool.Len())
}
