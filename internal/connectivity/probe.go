package connectivity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// HTTPProber treats any HTTP response from the URL as reachable. Only
// transport errors count as offline.
type HTTPProber struct {
	URL    string
	Client *http.Client
}

func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	return &HTTPProber{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (p *HTTPProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return fmt.Errorf("creating probe request: %w", err)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// WebSocketProber dials a WebSocket endpoint and exchanges a ping. Useful
// when the API sits behind a gateway that only answers upgrade requests.
type WebSocketProber struct {
	URL    string
	Dialer *websocket.Dialer
}

func NewWebSocketProber(url string, timeout time.Duration) *WebSocketProber {
	return &WebSocketProber{
		URL:    url,
		Dialer: &websocket.Dialer{HandshakeTimeout: timeout},
	}
}

func (p *WebSocketProber) Probe(ctx context.Context) error {
	conn, resp, err := p.Dialer.DialContext(ctx, p.URL, nil)
	if err != nil {
		return err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	timeout := p.Dialer.HandshakeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	deadline := time.Now().Add(timeout)
	if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
		return err
	}
	return conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}
