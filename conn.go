// Package framesock provides an asynchronous TCP engine that exchanges
// length-prefixed frames. Every message on the wire is a 4-byte big-endian
// payload length followed by that many opaque bytes.
//
// A Conn owns one socket and reassembles whole frames from whatever chunks
// the stream delivers. A Server accepts connections under an admission limit
// and fans messages out to them; a Client drives a single outbound Conn.
// Lifecycle and traffic events are reported through an Observer.
package framesock

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/someonegg/gox/syncx"
)

// Errors returned by connection operations.
var (
	// ErrConnectionClosed is returned when operating on a closed connection.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrNotActive is returned when sending on a connection that has not
	// finished connecting or accepting.
	ErrNotActive = errors.New("connection not active")
	// ErrInvalidState is returned when a lifecycle call does not match the
	// connection's current state, e.g. connecting twice.
	ErrInvalidState = errors.New("invalid connection state")
	// ErrFrameTooLarge is returned when a frame exceeds the maximum frame size.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrInvalidOption is returned when a configuration value is not positive.
	ErrInvalidOption = errors.New("invalid option")
)

// State is the lifecycle state of a Conn.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateAccepting
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAccepting:
		return "accepting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// operation identifies the kind of socket operation a completion belongs to.
type operation int

const (
	opAccept operation = iota + 1
	opConnect
	opReceive
	opSend
)

// completion is the outcome of one socket operation.
type completion struct {
	op      operation
	nc      net.Conn // accept and connect
	n       int      // receive and send
	err     error
	payload []byte // send
}

var connIDs atomic.Uint64

// Conn is one framed TCP connection. It is created idle, becomes active once
// Connect or Accept completes, and stays closed after Close.
// All methods are safe for concurrent use.
type Conn struct {
	id       uint64
	opts     options
	logger   Logger
	observer Observer

	mu         sync.Mutex
	state      State
	nc         net.Conn
	localAddr  net.Addr
	remoteAddr net.Addr

	// buf is the single receive buffer, touched only by the receive goroutine.
	buf []byte

	receiver *reassembler
	sender   *sender

	closeD syncx.DoneChan
}

// NewConn creates an idle connection. Call Connect or Accept to activate it.
func NewConn(opt ...Option) (*Conn, error) {
	opts, err := newOptions(opt...)
	if err != nil {
		return nil, err
	}
	return newConn(opts, opts.observer), nil
}

// newConn creates an idle connection reporting to observer instead of
// opts.observer, so owners can intercept notifications.
func newConn(opts options, observer Observer) *Conn {
	c := &Conn{
		id:       connIDs.Add(1),
		opts:     opts,
		logger:   opts.logger,
		observer: observerOrNop(observer),
		closeD:   syncx.NewDoneChan(),
	}
	c.receiver = newReassembler(c, opts.maxFrameSize, func(payload []byte) {
		c.observer.OnMessage(c, payload)
	})
	c.sender = newSender(c)
	return c
}

// ID returns the process-unique identifier of the connection.
func (c *Conn) ID() uint64 {
	return c.id
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.State() == StateClosed
}

// NetConn returns the underlying socket, or nil before activation and after close.
func (c *Conn) NetConn() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nc
}

// RemoteAddr returns the peer address. It stays available after close.
func (c *Conn) RemoteAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remoteAddr
}

// LocalAddr returns the local address. It stays available after close.
func (c *Conn) LocalAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localAddr
}

// Done returns a channel that is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.closeD
}

// transition moves the connection from one state to another.
func (c *Conn) transition(from, to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != from {
		return errors.Wrapf(ErrInvalidState, "%s, want %s", c.state, from)
	}
	c.state = to
	return nil
}

// Connect dials addr without blocking the caller. OnConnected is emitted once
// the connection is established; a failed dial closes the connection.
func (c *Conn) Connect(addr string) error {
	if err := c.transition(StateIdle, StateConnecting); err != nil {
		return err
	}

	go func() {
		nc, err := net.Dial("tcp", addr)
		c.complete(completion{op: opConnect, nc: nc, err: err})
	}()
	return nil
}

// Accept waits for the next inbound connection on l without blocking the
// caller. OnAccepted is emitted once a peer has been accepted.
func (c *Conn) Accept(l net.Listener) error {
	if err := c.transition(StateIdle, StateAccepting); err != nil {
		return err
	}

	go func() {
		nc, err := l.Accept()
		c.complete(completion{op: opAccept, nc: nc, err: err})
	}()
	return nil
}

// complete routes a finished socket operation to its handler.
func (c *Conn) complete(cp completion) {
	switch cp.op {
	case opAccept:
		c.processAccept(cp)
	case opConnect:
		c.processConnect(cp)
	case opReceive:
		c.receiver.onReceive(cp.n, cp.err)
	case opSend:
		c.sender.onSent(cp.payload, cp.err)
	default:
		panic(fmt.Sprintf("framesock: invalid socket operation %d", cp.op))
	}
}

func (c *Conn) processConnect(cp completion) {
	if cp.err != nil {
		c.logger.Debug("connect failed", "id", c.id, "error", cp.err)
		_ = c.Close()
		return
	}
	if !c.activate(StateConnecting, cp.nc) {
		return
	}

	c.logger.Info("connection established", "id", c.id, "addr", c.RemoteAddr())
	c.observer.OnConnected(c)
	c.serve(cp.nc)
}

func (c *Conn) processAccept(cp completion) {
	if cp.err != nil {
		c.logger.Debug("accept failed", "id", c.id, "error", cp.err)
		c.failAccept(cp.err)
		return
	}
	if !c.activate(StateAccepting, cp.nc) {
		return
	}

	c.logger.Info("connection accepted", "id", c.id, "addr", c.RemoteAddr())
	c.observer.OnAccepted(c)
	c.serve(cp.nc)
}

// acceptFailure is implemented by observers that want to see accept errors
// before the connection is closed.
type acceptFailure interface {
	acceptFailed(c *Conn, err error)
}

func (c *Conn) failAccept(err error) {
	if af, ok := c.observer.(acceptFailure); ok {
		af.acceptFailed(c, err)
	}
	_ = c.Close()
}

// activate installs nc and allocates the receive buffer. It reports false
// when the connection was closed while the operation was in flight, in which
// case nc is released.
func (c *Conn) activate(from State, nc net.Conn) bool {
	if tc, ok := nc.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	c.mu.Lock()
	if c.state != from {
		c.mu.Unlock()
		_ = nc.Close()
		return false
	}
	c.nc = nc
	c.localAddr = nc.LocalAddr()
	c.remoteAddr = nc.RemoteAddr()
	c.buf = make([]byte, c.opts.receiveBufferSize)
	c.state = StateActive
	c.mu.Unlock()
	return true
}

// serve starts the receive and write goroutines. It runs after OnConnected or
// OnAccepted has returned, so no OnMessage or OnClosed from the peer can
// overtake that notification.
func (c *Conn) serve(nc net.Conn) {
	c.receiver.start(nc, c.buf)
	c.sender.start(nc, c.closeD.R())
}

// Send frames payload and queues it for writing without blocking.
// It returns ErrNotActive before the connection is established and
// ErrConnectionClosed once it is closed; nothing is sent in either case.
func (c *Conn) Send(payload []byte) error {
	switch s := c.State(); s {
	case StateActive:
		return c.sender.send(payload)
	case StateClosed:
		return ErrConnectionClosed
	default:
		return ErrNotActive
	}
}

// Close terminates the connection from any state. OnClosed is emitted
// exactly once, then the socket is shut down and released.
// Safe to call multiple times.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil // already closed
	}
	c.state = StateClosed
	nc := c.nc
	c.nc = nil
	c.mu.Unlock()

	c.closeD.SetDone()
	c.observer.OnClosed(c)

	if nc == nil {
		return nil
	}
	c.logger.Info("connection closed", "id", c.id, "addr", c.RemoteAddr())
	return shutdown(nc)
}

// shutdown stops both directions of nc and releases it.
func shutdown(nc net.Conn) error {
	if tc, ok := nc.(*net.TCPConn); ok {
		_ = tc.CloseRead()
		_ = tc.CloseWrite()
	}
	return nc.Close()
}
