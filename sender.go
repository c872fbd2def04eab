package framesock

import (
	"encoding/binary"
	"net"
	"sync"

	"github.com/eapache/queue"
	"github.com/someonegg/gox/syncx"
)

// outbound is one framed message waiting for the write goroutine.
type outbound struct {
	frame []byte
}

// payload is the sender's own copy of the caller's bytes.
func (o outbound) payload() []byte {
	return o.frame[prefixSize:]
}

// sender frames outbound payloads and hands them to a single write goroutine.
// The pending queue is unbounded: the only backpressure is the OS socket buffer.
type sender struct {
	conn *Conn

	mu      sync.Mutex
	pending *queue.Queue
	wake    chan struct{}
}

func newSender(c *Conn) *sender {
	return &sender{
		conn:    c,
		pending: queue.New(),
		wake:    make(chan struct{}, 1),
	}
}

// encodeFrame returns a fresh buffer holding the length prefix followed by payload.
func encodeFrame(payload []byte) []byte {
	frame := make([]byte, prefixSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[prefixSize:], payload)
	return frame
}

// send queues payload for writing. Every call owns its own frame buffer,
// so concurrent callers never share memory.
func (s *sender) send(payload []byte) error {
	if s.conn.NetConn() == nil {
		return ErrConnectionClosed
	}
	if len(payload) > s.conn.opts.maxFrameSize {
		return ErrFrameTooLarge
	}

	item := outbound{frame: encodeFrame(payload)}

	s.mu.Lock()
	s.pending.Add(item)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *sender) next() (outbound, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending.Length() == 0 {
		return outbound{}, false
	}
	return s.pending.Remove().(outbound), true
}

// start launches the write goroutine for nc. It exits once closed is signaled
// or a write fails.
func (s *sender) start(nc net.Conn, closed syncx.DoneChanR) {
	go func() {
		for {
			select {
			case <-closed:
				return
			case <-s.wake:
			}

			for {
				item, ok := s.next()
				if !ok {
					break
				}
				n, err := nc.Write(item.frame)
				s.conn.complete(completion{op: opSend, n: n, err: err, payload: item.payload()})
				if err != nil {
					return
				}
			}
		}
	}()
}

// onSent handles the result of one frame write.
func (s *sender) onSent(payload []byte, err error) {
	if err != nil {
		s.conn.logger.Debug("send failed", "id", s.conn.ID(), "addr", s.conn.RemoteAddr(), "error", err)
		_ = s.conn.Close()
		return
	}
	s.conn.observer.OnSent(s.conn, payload)
}
