package metrics

import (
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Zereker/framesock"
)

// activeConn returns a connection that went through accept.
func activeConn(t *testing.T) *framesock.Conn {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	accepted := make(chan struct{})
	c, err := framesock.NewConn(framesock.WithObserver(onAccepted(func() { close(accepted) })))
	if err != nil {
		t.Fatalf("NewConn: %v", err)
	}
	if err := c.Accept(l); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	nc, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		nc.Close()
		c.Close()
	})
	<-accepted
	return c
}

type onAccepted func()

func (f onAccepted) OnConnected(*framesock.Conn)       {}
func (f onAccepted) OnAccepted(*framesock.Conn)        { f() }
func (f onAccepted) OnClosed(*framesock.Conn)          {}
func (f onAccepted) OnMessage(*framesock.Conn, []byte) {}
func (f onAccepted) OnSent(*framesock.Conn, []byte)    {}

func TestObserver_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	o, err := New(reg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	c := activeConn(t)
	o.OnAccepted(c)
	o.OnMessage(c, []byte("hello"))
	o.OnMessage(c, []byte("!"))
	o.OnSent(c, []byte("ok"))

	if got := testutil.ToFloat64(o.active); got != 1 {
		t.Errorf("active = %v, want 1", got)
	}
	if got := testutil.ToFloat64(o.connections.WithLabelValues("accepted")); got != 1 {
		t.Errorf("accepted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(o.messages.WithLabelValues("in")); got != 2 {
		t.Errorf("messages in = %v, want 2", got)
	}
	if got := testutil.ToFloat64(o.bytes.WithLabelValues("in")); got != 6 {
		t.Errorf("bytes in = %v, want 6", got)
	}
	if got := testutil.ToFloat64(o.bytes.WithLabelValues("out")); got != 2 {
		t.Errorf("bytes out = %v, want 2", got)
	}

	o.OnClosed(c)
	if got := testutil.ToFloat64(o.active); got != 0 {
		t.Errorf("active after close = %v, want 0", got)
	}
}

func TestObserver_ClosedWithoutActivation(t *testing.T) {
	o, err := New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	idle, _ := framesock.NewConn()
	o.OnClosed(idle)

	if got := testutil.ToFloat64(o.active); got != 0 {
		t.Errorf("active = %v, want 0", got)
	}
	if got := testutil.ToFloat64(o.connections.WithLabelValues("closed")); got != 1 {
		t.Errorf("closed = %v, want 1", got)
	}
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("first New failed: %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Error("expected error registering twice on one registry")
	}
}
