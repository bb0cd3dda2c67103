package feed

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"

	"golang.org/x/net/websocket"
)

// Dialer opens the byte stream STOMP frames are exchanged over.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// WebSocketDialer dials a raw WebSocket endpoint. An empty origin is derived
// from the endpoint URL.
func WebSocketDialer(endpoint, origin string) Dialer {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		if origin == "" {
			derived, err := originFor(endpoint)
			if err != nil {
				return nil, err
			}
			origin = derived
		}

		cfg, err := websocket.NewConfig(endpoint, origin)
		if err != nil {
			return nil, fmt.Errorf("invalid feed endpoint: %w", err)
		}
		cfg.Protocol = []string{"v12.stomp"}

		ws, err := cfg.DialContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
		}
		// STOMP over WebSocket uses text frames
		ws.PayloadType = websocket.TextFrame
		return ws, nil
	}
}

// TCPDialer dials a plain STOMP broker.
func TCPDialer(addr string) Dialer {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	}
}

func originFor(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid feed endpoint: %w", err)
	}
	scheme := "http"
	if u.Scheme == "wss" || u.Scheme == "https" {
		scheme = "https"
	}
	return scheme + "://" + u.Host, nil
}

func hostFor(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Hostname() == "" {
		return "/"
	}
	return u.Hostname()
}
