package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gridcraft.app/internal/protocol"
)

var ErrNotConnected = errors.New("ws: not connected")

const (
	writeWait   = 5 * time.Second
	inboundSize = 256
)

// Client is the transport collaborator: connect with a token, send intents,
// and receive decoded envelopes in delivery order on Inbound.
type Client struct {
	Dialer *websocket.Dialer
	// ReadTimeout bounds the wait for the next frame. Zero waits forever.
	ReadTimeout time.Duration

	backend string
	log     *log.Logger

	mu      sync.RWMutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	inbound chan protocol.Envelope
	stop    chan struct{}
	done    chan struct{}
	err     error
}

func NewClient(backend string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Client{
		Dialer:  &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		backend: backend,
		log:     logger,
	}
}

// EndpointURL maps a backend base (http, https, ws, wss or a bare host) to the
// game socket URL.
func EndpointURL(backend, token string) (string, error) {
	if !strings.Contains(backend, "://") {
		backend = "ws://" + backend
	}
	u, err := url.Parse(backend)
	if err != nil {
		return "", fmt.Errorf("backend url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("backend url: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	q := url.Values{}
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the server and starts the reader. A Client connects once.
func (c *Client) Connect(ctx context.Context, token string) error {
	endpoint, err := EndpointURL(c.backend, token)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if c.conn != nil || c.done != nil {
		c.mu.Unlock()
		return fmt.Errorf("ws: already connected")
	}
	c.mu.Unlock()

	conn, resp, err := c.Dialer.DialContext(ctx, endpoint, http.Header{})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return fmt.Errorf("ws: dial: %s: %w", resp.Status, err)
		}
		return fmt.Errorf("ws: dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.inbound = make(chan protocol.Envelope, inboundSize)
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.mu.Unlock()
	c.log.Printf("connected to %s", c.backend)

	go c.readLoop(conn)
	return nil
}

// Inbound yields envelopes in arrival order. It is closed when the connection ends.
func (c *Client) Inbound() <-chan protocol.Envelope {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inbound
}

// Done is closed when the reader exits.
func (c *Client) Done() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.done
}

// Err reports why the reader stopped, nil after a local Close.
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

func (c *Client) Send(in protocol.Intent) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("ws: encode %s: %w", in.Type, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		c.log.Printf("dropping %s: %v", in.Type, ErrNotConnected)
		return ErrNotConnected
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("ws: write: %w", err)
	}
	return nil
}

// Close sends a close frame, drops the connection and waits for the reader.
func (c *Client) Close() error {
	c.mu.Lock()
	conn, stop, done := c.conn, c.stop, c.done
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	select {
	case <-stop:
	default:
		close(stop)
	}

	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := conn.Close()
	<-done
	c.log.Printf("disconnected")
	return err
}

func (c *Client) readLoop(conn *websocket.Conn) {
	c.mu.RLock()
	out, stop, done := c.inbound, c.stop, c.done
	c.mu.RUnlock()
	defer close(done)
	defer close(out)

	for {
		if c.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.ReadTimeout))
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-stop:
			default:
				c.mu.Lock()
				c.err = err
				c.conn = nil
				c.mu.Unlock()
				c.log.Printf("read: %v", err)
				_ = conn.Close()
			}
			return
		}
		env, err := protocol.DecodeEnvelope(msg)
		if err != nil {
			c.log.Printf("skipping frame: %v", err)
			continue
		}
		select {
		case out <- env:
		case <-stop:
			return
		}
	}
}
