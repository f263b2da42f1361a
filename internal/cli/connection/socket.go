package connection

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"
)

// NewSocketClient creates a client for an agent's Unix socket.
func NewSocketClient(socketPath string) *HTTPClient {
	return &HTTPClient{
		baseURL: "http://unix",
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

// Open picks the transport for target: "unix:<path>" or an absolute path
// selects the socket, anything else is a TCP address or URL.
func Open(target string) *HTTPClient {
	switch {
	case strings.HasPrefix(target, "unix://"):
		return NewSocketClient(strings.TrimPrefix(target, "unix://"))
	case strings.HasPrefix(target, "unix:"):
		return NewSocketClient(strings.TrimPrefix(target, "unix:"))
	case strings.HasPrefix(target, "/"):
		return NewSocketClient(target)
	default:
		return NewHTTPClient(target)
	}
}
