// Package realtime implements the client side of the bidirectional
// realtime voice protocol: a persistent WebSocket carrying
// message-typed JSON events.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
)

const (
	// DefaultURL is the default realtime voice endpoint.
	DefaultURL = "wss://api.openai.com/v1/realtime"
	// DefaultModel is the default realtime model.
	DefaultModel = "gpt-realtime"
)

// CloseError reports a transport closure with its protocol close code.
// Code 1000 is a graceful close; anything else is surfaced to the user.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("connection closed (code %d): %s", e.Code, e.Reason)
}

// Client handles the WebSocket connection to the realtime voice API.
// Sends are fire-and-forget: a message offered while the socket is not
// open is dropped and counted, never queued.
type Client struct {
	url     string
	apiKey  string
	msgChan chan ServerEvent
	errChan chan error
	done    chan struct{}

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	dropped atomic.Uint64
}

// ClientConfig holds configuration for the realtime Client.
type ClientConfig struct {
	APIKey string
	Model  string
	URL    string
}

// NewClient creates a new realtime Client.
func NewClient(cfg ClientConfig) *Client {
	url := cfg.URL
	if url == "" {
		url = DefaultURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	if url == DefaultURL {
		url = fmt.Sprintf("%s?model=%s", url, model)
	}

	return &Client{
		url:     url,
		apiKey:  cfg.APIKey,
		msgChan: make(chan ServerEvent, 100),
		errChan: make(chan error, 1),
		done:    make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the receive
// loop.
func (c *Client) Connect(ctx context.Context) error {
	opts := &websocket.DialOptions{
		HTTPHeader: map[string][]string{
			"Authorization": {"Bearer " + c.apiKey},
		},
	}

	conn, _, err := websocket.Dial(ctx, c.url, opts)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	// Audio frames arrive continuously; never throttle reads.
	conn.SetReadLimit(-1)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)

	return nil
}

// Send marshals and writes one event. If the socket is not open the
// event is dropped and the drop counter incremented; this is the
// accepted-loss policy for frames straddling connection windows.
func (c *Client) Send(ctx context.Context, event interface{}) error {
	c.mu.Lock()
	conn := c.conn
	closed := c.closed
	c.mu.Unlock()

	if conn == nil || closed {
		c.dropped.Add(1)
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Dropped returns the number of events discarded because the socket was
// not open.
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

// Events returns the channel of inbound server events, closed when the
// receive loop ends.
func (c *Client) Events() <-chan ServerEvent {
	return c.msgChan
}

// Errors returns the channel of transport errors. A *CloseError carries
// the remote close code.
func (c *Client) Errors() <-chan error {
	return c.errChan
}

// Close closes the connection gracefully (code 1000). Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	if c.conn != nil {
		return c.conn.Close(websocket.StatusNormalClosure, "session ended")
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer close(c.msgChan)

	ctx := context.Background()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			select {
			case <-c.done:
				// Local close; not an error.
			default:
				c.errChan <- closeOrErr(err)
			}
			return
		}

		var event ServerEvent
		if err := json.Unmarshal(data, &event); err != nil {
			slog.Error("unmarshal server event", "error", err, "data", string(data))
			continue
		}

		select {
		case c.msgChan <- event:
		case <-time.After(100 * time.Millisecond):
			slog.Warn("event channel full, dropping event", "type", event.Type)
		}
	}
}

// closeOrErr converts a websocket close into a CloseError so callers
// can distinguish graceful (1000) from abnormal closure.
func closeOrErr(err error) error {
	if status := websocket.CloseStatus(err); status != -1 {
		return &CloseError{Code: int(status), Reason: err.Error()}
	}
	return fmt.Errorf("read error: %w", err)
}
