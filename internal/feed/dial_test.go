package feed

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-stomp/stomp/v3/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/lepinkainen/listado/internal/record"
)

// wsListener hands upgraded WebSocket connections to a STOMP server.
type wsListener struct {
	addr  net.Addr
	conns chan net.Conn
	done  chan struct{}
	once  sync.Once
}

func (l *wsListener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *wsListener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func (l *wsListener) Addr() net.Addr { return l.addr }

// wsConn signals when the STOMP server is done with the connection, so the
// WebSocket handler can return.
type wsConn struct {
	*websocket.Conn
	once   sync.Once
	closed chan struct{}
}

func (c *wsConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return c.Conn.Close()
}

type handshake struct {
	mu       sync.Mutex
	origin   string
	protocol []string
}

func (h *handshake) get() (string, []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.origin, h.protocol
}

// startWebSocketBroker serves a STOMP broker behind a WebSocket endpoint and
// returns its ws:// URL.
func startWebSocketBroker(t *testing.T) (string, *handshake) {
	t.Helper()

	seen := &handshake{}
	ln := &wsListener{conns: make(chan net.Conn), done: make(chan struct{})}

	srv := httptest.NewServer(websocket.Server{
		Handshake: func(cfg *websocket.Config, r *http.Request) error {
			seen.mu.Lock()
			defer seen.mu.Unlock()
			seen.origin = r.Header.Get("Origin")
			seen.protocol = cfg.Protocol
			return nil
		},
		Handler: func(ws *websocket.Conn) {
			conn := &wsConn{Conn: ws, closed: make(chan struct{})}
			select {
			case ln.conns <- conn:
			case <-ln.done:
				return
			}
			<-conn.closed
		},
	})
	t.Cleanup(srv.Close)

	ln.addr = srv.Listener.Addr()
	go func() { _ = server.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	return "ws://" + strings.TrimPrefix(srv.URL, "http://") + "/ws-register", seen
}

func TestWebSocketDialerDeliversRecords(t *testing.T) {
	endpoint, seen := startWebSocketBroker(t)
	got := &collected{}

	client := New(WebSocketDialer(endpoint, ""), WithTopic(testTopic), WithHeartbeat(0))
	errCh := runClient(t, client, got.handle)

	require.Eventually(t, client.Connected, 5*time.Second, 10*time.Millisecond)

	origin, protocol := seen.get()
	assert.Equal(t, "http://"+strings.TrimPrefix(strings.TrimSuffix(endpoint, "/ws-register"), "ws://"), origin)
	assert.Equal(t, []string{"v12.stomp"}, protocol)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Send(ctx, testTopic, record.Record{ID: 21, Name: "Por websocket"}))

	require.Eventually(t, func() bool { return len(got.snapshot()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []record.Record{{ID: 21, Name: "Por websocket"}}, got.snapshot())

	require.NoError(t, client.Close())
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestWebSocketDialerBadEndpoint(t *testing.T) {
	_, err := WebSocketDialer("ws://127.0.0.1:1/ws", "")(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to dial")
}
