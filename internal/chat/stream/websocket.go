package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"
)

const (
	streamPathSuffix = "/stream"
	writeTimeout     = 10 * time.Second
)

// EndpointFor derives the streaming address from the blocking completion
// endpoint: same host and path, scheme upgraded to ws/wss, "/stream" appended.
func EndpointFor(blockingURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(blockingURL))
	if err != nil {
		return "", fmt.Errorf("parse blocking endpoint: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("endpoint host is required")
	}
	if !strings.HasSuffix(u.Path, streamPathSuffix) {
		u.Path = strings.TrimRight(u.Path, "/") + streamPathSuffix
	}
	return u.String(), nil
}

// WSDialer opens WebSocket channels. When TokenSource is set, each dial
// carries its bearer token.
type WSDialer struct {
	Dialer      *websocket.Dialer
	TokenSource oauth2.TokenSource
}

// Dial implements Dialer.
func (d WSDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	header := http.Header{}
	if d.TokenSource != nil {
		tok, err := d.TokenSource.Token()
		if err != nil {
			return nil, fmt.Errorf("proxy token: %w", err)
		}
		tok.SetAuthHeader(&http.Request{Header: header})
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) ReadMessage() (int, []byte, error) {
	mt, payload, err := c.conn.ReadMessage()
	if err != nil && websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return mt, nil, io.EOF
	}
	return mt, payload, err
}

func (c *wsConn) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
