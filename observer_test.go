package framesock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recorder implements Observer for testing. Events are also pushed to
// buffered channels so tests can wait for them.
type recorder struct {
	connectedCh chan *Conn
	acceptedCh  chan *Conn
	closedCh    chan *Conn
	messageCh   chan []byte
	sentCh      chan []byte

	closed atomic.Int32

	mu       sync.Mutex
	messages [][]byte
}

func newRecorder() *recorder {
	return &recorder{
		connectedCh: make(chan *Conn, 64),
		acceptedCh:  make(chan *Conn, 64),
		closedCh:    make(chan *Conn, 64),
		messageCh:   make(chan []byte, 1024),
		sentCh:      make(chan []byte, 1024),
	}
}

func (r *recorder) OnConnected(c *Conn) { push(r.connectedCh, c) }
func (r *recorder) OnAccepted(c *Conn)  { push(r.acceptedCh, c) }

func (r *recorder) OnClosed(c *Conn) {
	r.closed.Add(1)
	push(r.closedCh, c)
}

func (r *recorder) OnMessage(_ *Conn, payload []byte) {
	r.mu.Lock()
	r.messages = append(r.messages, payload)
	r.mu.Unlock()
	push(r.messageCh, payload)
}

func (r *recorder) OnSent(_ *Conn, payload []byte) { push(r.sentCh, payload) }

func push[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

// wait receives one value from ch or fails the test after five seconds.
func wait[T any](t *testing.T, ch chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for %s", what)
	}
	var zero T
	return zero
}

// never fails the test if ch delivers a value within d.
func never[T any](t *testing.T, ch chan T, d time.Duration, what string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("unexpected %s", what)
	case <-time.After(d):
	}
}

// eventually polls cond until it holds or five seconds pass.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestObservers_FanOut(t *testing.T) {
	a, b := newRecorder(), newRecorder()
	obs := Observers{a, b}
	c := &Conn{}

	obs.OnAccepted(c)
	obs.OnClosed(c)
	obs.OnMessage(c, []byte("in"))
	obs.OnSent(c, []byte("out"))
	obs.OnConnected(c)

	for _, r := range []*recorder{a, b} {
		if len(r.acceptedCh) != 1 || len(r.closedCh) != 1 || len(r.messageCh) != 1 ||
			len(r.sentCh) != 1 || len(r.connectedCh) != 1 {
			t.Error("observer did not receive every event")
		}
	}
}

func TestObserverOrNop(t *testing.T) {
	o := observerOrNop(nil)
	if _, ok := o.(NopObserver); !ok {
		t.Fatalf("observerOrNop(nil) = %T, want NopObserver", o)
	}

	// calls on the no-op observer must not panic
	o.OnAccepted(nil)
	o.OnMessage(nil, nil)

	r := newRecorder()
	if observerOrNop(r) != r {
		t.Error("observerOrNop replaced a non-nil observer")
	}
}
