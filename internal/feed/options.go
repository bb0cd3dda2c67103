package feed

import (
	"time"

	"github.com/lepinkainen/listado/internal/config"
	"github.com/lepinkainen/listado/internal/metrics"
)

const (
	defaultHeartbeat      = 4 * time.Second
	defaultMaxReconnects  = 5
	defaultReconnectDelay = 5 * time.Second
)

// Option configures a Client.
type Option func(*Client)

// WithTopic sets the destination to subscribe to.
func WithTopic(topic string) Option {
	return func(c *Client) {
		if topic != "" {
			c.topic = topic
		}
	}
}

// WithHost sets the STOMP host header.
func WithHost(host string) Option {
	return func(c *Client) {
		if host != "" {
			c.host = host
		}
	}
}

// WithHeartbeat sets both the outgoing and incoming heartbeat interval.
// Zero disables heartbeats.
func WithHeartbeat(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.heartbeat = d
		}
	}
}

// WithMaxReconnects limits consecutive failed connection attempts.
func WithMaxReconnects(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxReconnects = n
		}
	}
}

// WithReconnectDelay sets the fixed pause between reconnect attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.reconnectDelay = d
		}
	}
}

// WithMetrics records message and reconnect counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// FromSettings maps configuration onto client options.
func FromSettings(settings config.Settings) []Option {
	return []Option{
		WithTopic(settings.FeedTopic),
		WithHeartbeat(settings.FeedHeartbeat),
		WithMaxReconnects(settings.FeedMaxReconnects),
		WithReconnectDelay(settings.FeedReconnectDelay),
	}
}
