package framesock

import (
	"encoding/binary"
	"net"

	"github.com/pkg/errors"
)

// prefixSize is the width of the big-endian length prefix in front of every frame.
const prefixSize = 4

type frameState int

const (
	awaitingPrefix frameState = iota
	awaitingPayload
)

// reassembler rebuilds whole frames from the arbitrarily split chunks a
// stream delivers. It is driven by the connection's receive goroutine only,
// which is also the sole user of the connection's receive buffer.
type reassembler struct {
	conn         *Conn
	maxFrameSize int

	state   frameState
	prefix  *accumulator
	payload *accumulator
	stopped bool

	// emit receives each completed payload. The slice is never reused.
	emit func(payload []byte)
}

func newReassembler(c *Conn, maxFrameSize int, emit func([]byte)) *reassembler {
	return &reassembler{
		conn:         c,
		maxFrameSize: maxFrameSize,
		emit:         emit,
	}
}

// start launches the receive loop for nc. Each Read result is routed through
// the connection's completion dispatcher; the next Read is issued only after
// the previous chunk has been parsed.
func (r *reassembler) start(nc net.Conn, buf []byte) {
	go func() {
		for !r.stopped {
			n, err := nc.Read(buf)
			r.conn.complete(completion{op: opReceive, n: n, err: err})
		}
	}()
}

// onReceive handles one finished Read of n bytes into the receive buffer.
func (r *reassembler) onReceive(n int, err error) {
	if n > 0 {
		if perr := r.parse(r.conn.buf[:n]); perr != nil {
			r.stop(perr)
			return
		}
	}
	if n <= 0 || err != nil {
		r.stop(err)
	}
}

func (r *reassembler) stop(cause error) {
	r.stopped = true
	r.conn.logger.Debug("receive stopped", "id", r.conn.ID(), "addr", r.conn.RemoteAddr(), "error", cause)
	_ = r.conn.Close()
}

// parse consumes every byte of chunk, emitting each frame it completes.
func (r *reassembler) parse(chunk []byte) error {
	for len(chunk) > 0 {
		// an observer may close the connection from OnMessage
		if r.conn.IsClosed() {
			return ErrConnectionClosed
		}
		if r.state == awaitingPrefix {
			if r.prefix == nil {
				r.prefix = newAccumulator(prefixSize)
			}
			chunk = chunk[r.prefix.write(chunk):]
			if !r.prefix.full() {
				// chunk is exhausted here
				return nil
			}

			length := binary.BigEndian.Uint32(r.prefix.bytes())
			if uint64(length) > uint64(r.maxFrameSize) {
				return errors.Wrapf(ErrFrameTooLarge, "declared length %d exceeds %d", length, r.maxFrameSize)
			}
			r.payload = newAccumulator(int(length))
			r.state = awaitingPayload
		}

		chunk = chunk[r.payload.write(chunk):]
		if r.payload.full() {
			// zero-length payloads land here straight after their prefix
			r.flush()
		}
	}
	return nil
}

func (r *reassembler) flush() {
	payload := r.payload.bytes()
	r.reset()
	if r.emit != nil {
		r.emit(payload)
	}
}

func (r *reassembler) reset() {
	r.state = awaitingPrefix
	r.prefix = nil
	r.payload = nil
}
