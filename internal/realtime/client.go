package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
	readLimit  = 512
)

// Client is one websocket connection. Clients only listen; anything they send is discarded.
type Client struct {
	conn *websocket.Conn
	send chan Event

	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		conn:   conn,
		send:   make(chan Event, sendBuffer),
		closed: make(chan struct{}),
	}
}

func (c *Client) enqueue(ev Event) bool {
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Close asks Serve to send a close frame and return.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// Serve writes queued events and keepalive pings until the peer goes away,
// Close is called or ctx ends. The connection is closed on return.
func (c *Client) Serve(ctx context.Context) error {
	defer c.conn.Close()

	readErr := make(chan error, 1)
	go func() { readErr <- c.readLoop() }()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				return err
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		case err := <-readErr:
			return err
		case <-c.closed:
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) readLoop() error {
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			// peer closed the socket
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return nil
			}
			return err
		}
	}
}
