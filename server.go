package framesock

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/someonegg/gox/syncx"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Recipients selects which registered connections Server.Send delivers to.
type Recipients int

const (
	// All delivers to every registered connection.
	All Recipients = iota
	// AllExceptThis delivers to every registered connection but the origin.
	AllExceptThis
	// This delivers to the origin only.
	This
)

func (r Recipients) String() string {
	switch r {
	case All:
		return "all"
	case AllExceptThis:
		return "all-except-this"
	case This:
		return "this"
	default:
		return "recipients(" + strconv.Itoa(int(r)) + ")"
	}
}

var (
	// ErrUnknownRecipients is returned by Send for an unsupported Recipients value.
	ErrUnknownRecipients = errors.New("unknown recipients")
	// ErrServerStarted is returned when Start is called more than once.
	ErrServerStarted = errors.New("server already started")
	// ErrServerClosed is returned when starting a server that has been closed.
	ErrServerClosed = errors.New("server closed")
)

// Server accepts framed connections on a TCP port. At most MaxConnections
// connections are open at once: the accept loop takes one admission unit
// before every accept and each close gives one back.
type Server struct {
	opts     options
	logger   Logger
	observer Observer

	admission *semaphore.Weighted
	ctx       context.Context
	cancel    context.CancelFunc

	mu       sync.RWMutex
	conns    map[uint64]*Conn
	accepted map[uint64]bool
	listener net.Listener
	started  bool
	err      error

	closeOnce sync.Once
	stopD     syncx.DoneChan
}

// NewServer creates a server with the given options. The server does not
// listen until Start or Serve is called.
func NewServer(opt ...Option) (*Server, error) {
	opts, err := newOptions(opt...)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		opts:      opts,
		logger:    opts.logger,
		observer:  opts.observer,
		admission: semaphore.NewWeighted(int64(opts.maxConnections)),
		ctx:       ctx,
		cancel:    cancel,
		conns:     make(map[uint64]*Conn, opts.maxConnections),
		accepted:  make(map[uint64]bool, opts.maxConnections),
		stopD:     syncx.NewDoneChan(),
	}, nil
}

// Start binds a listening socket to the configured address and port and
// begins accepting connections in the background. Port 0 picks a free port;
// see Addr.
func (s *Server) Start(port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopD.R().Done() {
		return ErrServerClosed
	}
	if s.started {
		return ErrServerStarted
	}

	addr := net.JoinHostPort(s.opts.listenAddress, strconv.Itoa(port))
	l, err := listen(addr, s.opts.backlog)
	if err != nil {
		return errors.Wrapf(err, "listen %s", addr)
	}
	s.listener = l
	s.started = true

	s.logger.Info("server started", "addr", l.Addr(),
		"backlog", s.opts.backlog,
		"max_connections", s.opts.maxConnections)

	go s.startAccept()
	return nil
}

// Serve starts the server and blocks until ctx is canceled, Close is called,
// or the accept loop fails. The server is closed when Serve returns.
func (s *Server) Serve(ctx context.Context, port int) error {
	if err := s.Start(port); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-s.stopD:
	}
	_ = s.Close()

	if err := s.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

// startAccept takes one admission unit and issues the next accept. It blocks
// the calling goroutine while MaxConnections connections are open.
func (s *Server) startAccept() {
	if err := s.admission.Acquire(s.ctx, 1); err != nil {
		return // server closed
	}

	c := newConn(s.opts, serverEvents{s})

	s.mu.Lock()
	if s.stopD.R().Done() {
		s.mu.Unlock()
		s.admission.Release(1)
		return
	}
	s.conns[c.ID()] = c
	l := s.listener
	s.mu.Unlock()

	_ = c.Accept(l)
}

// serverEvents receives the notifications of server-owned connections.
type serverEvents struct {
	s *Server
}

func (e serverEvents) OnConnected(*Conn) {}

// OnAccepted runs before c starts receiving. The next accept is issued on
// its own goroutine since it may wait for an admission unit.
func (e serverEvents) OnAccepted(c *Conn) {
	s := e.s
	s.mu.Lock()
	_, registered := s.conns[c.ID()]
	if registered {
		s.accepted[c.ID()] = true
	}
	s.mu.Unlock()

	// a connection torn down by Close in the meantime is not announced
	if registered {
		s.observer.OnAccepted(c)
	}
	go s.startAccept()
}

func (e serverEvents) OnClosed(c *Conn) {
	s := e.s
	s.mu.Lock()
	_, registered := s.conns[c.ID()]
	wasAccepted := s.accepted[c.ID()]
	delete(s.conns, c.ID())
	delete(s.accepted, c.ID())
	s.mu.Unlock()

	if !registered {
		return
	}
	s.admission.Release(1)

	if wasAccepted {
		s.observer.OnClosed(c)
	}
}

func (e serverEvents) OnMessage(c *Conn, payload []byte) {
	e.s.observer.OnMessage(c, payload)
}

func (e serverEvents) OnSent(c *Conn, payload []byte) {
	e.s.observer.OnSent(c, payload)
}

// acceptFailed runs before the failed connection closes. Once the server is
// closing, accept errors are expected; temporary errors restart the loop,
// anything else stops the server.
func (e serverEvents) acceptFailed(c *Conn, err error) {
	s := e.s
	if s.stopD.R().Done() {
		return
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		// the admission unit of c is released when it closes below
		go s.startAccept()
		return
	}

	s.logger.Error("accept error", "error", err)
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	go s.Close()
}

// Send delivers payload to the connections selected by recipients relative
// to origin. Every recipient is sent to independently: a recipient that is
// closed or fails does not affect the others. It returns the number of
// connections the frame was queued for.
func (s *Server) Send(payload []byte, origin *Conn, recipients Recipients) (int, error) {
	var targets []*Conn
	switch recipients {
	case All:
		targets = s.Connections()
	case AllExceptThis:
		for _, c := range s.Connections() {
			if c != origin {
				targets = append(targets, c)
			}
		}
	case This:
		if origin != nil {
			targets = []*Conn{origin}
		}
	default:
		return 0, errors.Wrapf(ErrUnknownRecipients, "%s", recipients)
	}

	sent := 0
	for _, c := range targets {
		if err := c.Send(payload); err != nil {
			s.logger.Debug("send skipped", "id", c.ID(), "recipients", recipients, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}

// Broadcast delivers payload to every registered connection.
func (s *Server) Broadcast(payload []byte) int {
	n, _ := s.Send(payload, nil, All)
	return n
}

// Connections returns a snapshot of the accepted connections that are still
// registered. The connection waiting in accept is owned by the server and
// never listed.
func (s *Server) Connections() []*Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conns := make([]*Conn, 0, len(s.accepted))
	for id := range s.accepted {
		conns = append(conns, s.conns[id])
	}
	return conns
}

// registered returns every registered connection, the pending accept included.
func (s *Server) registered() []*Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	return conns
}

// Len returns the number of accepted connections that are still open.
func (s *Server) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accepted)
}

// Addr returns the listener's network address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Done returns a channel that is closed once the server starts shutting down.
func (s *Server) Done() <-chan struct{} {
	return s.stopD
}

// Err returns the error that stopped the accept loop, if any.
func (s *Server) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Close stops accepting and closes every registered connection.
// Safe to call multiple times.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.stopD.SetDone()
		l := s.listener
		s.mu.Unlock()

		s.cancel()
		if l != nil {
			err = l.Close()
			s.logger.Info("server stopped", "addr", l.Addr())
		}

		var g errgroup.Group
		for _, c := range s.registered() {
			g.Go(c.Close)
		}
		if cerr := g.Wait(); err == nil {
			err = cerr
		}
	})
	return err
}
