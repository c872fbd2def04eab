package framesock

import (
	"net"
	"strconv"
	"sync"
)

// Client drives a single outbound connection. Notifications of that
// connection are forwarded to the client's observer.
type Client struct {
	opts options

	mu   sync.Mutex
	conn *Conn
}

// NewClient creates a client with the given options.
func NewClient(opt ...Option) (*Client, error) {
	opts, err := newOptions(opt...)
	if err != nil {
		return nil, err
	}
	return &Client{opts: opts}, nil
}

// Start connects to address:port without blocking. OnConnected is emitted
// once the connection is established, OnClosed if it fails or ends.
func (c *Client) Start(address string, port int) error {
	c.mu.Lock()
	if c.conn != nil && !c.conn.IsClosed() {
		c.mu.Unlock()
		return ErrInvalidState
	}
	conn := newConn(c.opts, c.opts.observer)
	c.conn = conn
	c.mu.Unlock()

	return conn.Connect(net.JoinHostPort(address, strconv.Itoa(port)))
}

// Send forwards payload to the connection.
func (c *Client) Send(payload []byte) error {
	conn := c.Conn()
	if conn == nil {
		return ErrNotActive
	}
	return conn.Send(payload)
}

// Conn returns the current connection, or nil before Start.
func (c *Client) Conn() *Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Close closes the connection. Safe to call multiple times.
func (c *Client) Close() error {
	conn := c.Conn()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
