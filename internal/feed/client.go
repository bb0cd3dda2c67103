// Package feed subscribes to the registrations topic of a STOMP broker and
// hands every published record to a handler.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3"

	"github.com/lepinkainen/listado/internal/config"
	"github.com/lepinkainen/listado/internal/metrics"
	"github.com/lepinkainen/listado/internal/record"
)

var (
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("feed: client closed")
	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("feed: already running")

	errConnectionLost = errors.New("connection lost")
)

// Handler receives every record published on the topic.
type Handler func(ctx context.Context, r record.Record) error

// Client is a reconnecting STOMP subscriber.
type Client struct {
	dial           Dialer
	topic          string
	host           string
	heartbeat      time.Duration
	maxReconnects  int
	reconnectDelay time.Duration
	metrics        *metrics.Metrics

	mu      sync.Mutex
	conn    *stomp.Conn
	ready   chan struct{}
	stop    chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	closed  bool
}

// New creates a client that connects through dial.
func New(dial Dialer, opts ...Option) *Client {
	c := &Client{
		dial:           dial,
		topic:          config.DefaultFeedTopic,
		host:           "/",
		heartbeat:      defaultHeartbeat,
		maxReconnects:  defaultMaxReconnects,
		reconnectDelay: defaultReconnectDelay,
		ready:          make(chan struct{}),
		stop:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewWebSocket creates a client for the configured broker endpoint.
func NewWebSocket(settings config.Settings, opts ...Option) *Client {
	base := append(FromSettings(settings), WithHost(hostFor(settings.FeedURL)))
	return New(WebSocketDialer(settings.FeedURL, settings.FeedOrigin), append(base, opts...)...)
}

// Connected reports whether a broker session is live.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Run connects, subscribes and dispatches messages until ctx is done or
// Close is called. After a lost connection it retries up to maxReconnects
// times with a fixed delay; a successful connect resets the counter.
func (c *Client) Run(ctx context.Context, handler Handler) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.running = false
		close(c.done)
		c.mu.Unlock()
	}()

	attempts := 0
	for {
		connected, err := c.session(ctx, handler)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			attempts = 0
		}

		attempts++
		if attempts > c.maxReconnects {
			return fmt.Errorf("feed: giving up after %d reconnect attempts: %w", c.maxReconnects, err)
		}

		c.metrics.ObserveReconnect()
		slog.Warn("Feed connection lost, reconnecting", "attempt", attempts, "max", c.maxReconnects, "delay", c.reconnectDelay, "error", err)

		timer := time.NewTimer(c.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// session runs one broker connection. The bool reports whether the
// subscription was established.
func (c *Client) session(ctx context.Context, handler Handler) (bool, error) {
	rwc, err := c.dial(ctx)
	if err != nil {
		return false, err
	}

	conn, err := stomp.Connect(rwc,
		stomp.ConnOpt.HeartBeat(c.heartbeat, c.heartbeat),
		stomp.ConnOpt.Host(c.host),
	)
	if err != nil {
		_ = rwc.Close()
		return false, fmt.Errorf("stomp connect: %w", err)
	}

	sub, err := conn.Subscribe(c.topic, stomp.AckAuto)
	if err != nil {
		_ = conn.MustDisconnect()
		return false, fmt.Errorf("subscribe %s: %w", c.topic, err)
	}

	c.setConn(conn)
	defer c.clearConn()
	slog.Info("Feed connected", "topic", c.topic)

	for {
		select {
		case <-ctx.Done():
			if err := conn.Disconnect(); err != nil {
				slog.Debug("Feed disconnect failed", "error", err)
			}
			return true, ctx.Err()
		case msg, ok := <-sub.C:
			if !ok {
				return true, errConnectionLost
			}
			if msg.Err != nil {
				_ = conn.MustDisconnect()
				return true, msg.Err
			}
			c.dispatch(ctx, handler, msg.Body)
		}
	}
}

func (c *Client) dispatch(ctx context.Context, handler Handler, body []byte) {
	var r record.Record
	if err := json.Unmarshal(body, &r); err != nil {
		c.metrics.ObserveFeedMessage(metrics.OutcomeSkipped)
		slog.Warn("Skipping malformed registration", "error", err, "body", string(body))
		return
	}

	if err := handler(ctx, r); err != nil {
		c.metrics.ObserveFeedMessage(metrics.OutcomeError)
		slog.Error("Failed to apply registration", "id", r.ID, "error", err)
		return
	}

	c.metrics.ObserveFeedMessage(metrics.OutcomeSuccess)
	slog.Debug("Registration applied", "id", r.ID, "name", r.Name)
}

func (c *Client) setConn(conn *stomp.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	close(c.ready)
}

func (c *Client) clearConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = nil
	c.ready = make(chan struct{})
}

// Send publishes body as JSON to destination, waiting for a live connection.
func (c *Client) Send(ctx context.Context, destination string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	for {
		c.mu.Lock()
		conn, ready, closed := c.conn, c.ready, c.closed
		c.mu.Unlock()

		if closed {
			return ErrClosed
		}
		if conn != nil {
			if err := conn.Send(destination, "application/json", payload); err != nil {
				return fmt.Errorf("failed to send to %s: %w", destination, err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stop:
			return ErrClosed
		case <-ready:
		}
	}
}

// Close stops Run and waits for it to disconnect.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.stop)
	cancel, done, running := c.cancel, c.done, c.running
	c.mu.Unlock()

	if running {
		cancel()
		<-done
	}
	return nil
}
