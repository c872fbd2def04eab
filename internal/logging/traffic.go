package logging

import (
	"strconv"

	"github.com/rs/zerolog"

	"github.com/Zereker/framesock"
)

const (
	inbound  = "<--"
	outbound = "-->"
)

// previewLen bounds how much of a payload is echoed into a log line.
const previewLen = 64

// TrafficObserver writes one log line per lifecycle event and per message.
type TrafficObserver struct {
	zl zerolog.Logger
}

// NewTrafficObserver returns an observer logging to zl.
func NewTrafficObserver(zl zerolog.Logger) *TrafficObserver {
	return &TrafficObserver{zl: zl}
}

func (o *TrafficObserver) OnConnected(c *framesock.Conn) {
	o.connection(c, "connection established")
}

func (o *TrafficObserver) OnAccepted(c *framesock.Conn) {
	o.connection(c, "connection established")
}

func (o *TrafficObserver) OnClosed(c *framesock.Conn) {
	o.connection(c, "connection terminated")
}

func (o *TrafficObserver) OnMessage(c *framesock.Conn, payload []byte) {
	o.message(c, inbound, payload)
}

func (o *TrafficObserver) OnSent(c *framesock.Conn, payload []byte) {
	o.message(c, outbound, payload)
}

func (o *TrafficObserver) connection(c *framesock.Conn, msg string) {
	o.zl.Info().
		Uint64("conn", c.ID()).
		Stringer("remote", c.RemoteAddr()).
		Msg(msg)
}

func (o *TrafficObserver) message(c *framesock.Conn, dir string, payload []byte) {
	o.zl.Info().
		Uint64("conn", c.ID()).
		Stringer("remote", c.RemoteAddr()).
		Str("dir", dir).
		Int("bytes", len(payload)).
		Str("payload", Preview(payload)).
		Msg("message")
}

// Preview renders at most previewLen bytes of payload as a quoted ASCII string.
func Preview(payload []byte) string {
	if len(payload) <= previewLen {
		return strconv.QuoteToASCII(string(payload))
	}
	return strconv.QuoteToASCII(string(payload[:previewLen])) + "..."
}
