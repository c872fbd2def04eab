package framesock

// Observer receives lifecycle and traffic notifications.
//
// Callbacks run on the goroutine that completed the underlying socket
// operation, so they may be invoked concurrently for different connections.
// For a single connection, OnMessage calls arrive in stream order.
// OnMessage payloads are never reused by the connection. OnSent receives the
// bytes that were written, copied at Send time, so callers may reuse their
// buffer as soon as Send returns.
type Observer interface {
	// OnConnected is called when an outbound connection has been established.
	OnConnected(c *Conn)
	// OnAccepted is called when an inbound connection has been accepted.
	OnAccepted(c *Conn)
	// OnClosed is called exactly once per connection when it terminates.
	OnClosed(c *Conn)
	// OnMessage is called for every fully reassembled inbound frame.
	OnMessage(c *Conn, payload []byte)
	// OnSent is called after a frame has been written to the socket.
	OnSent(c *Conn, payload []byte)
}

// NopObserver ignores every notification. Embed it to implement only the
// callbacks you care about.
type NopObserver struct{}

func (NopObserver) OnConnected(*Conn)       {}
func (NopObserver) OnAccepted(*Conn)        {}
func (NopObserver) OnClosed(*Conn)          {}
func (NopObserver) OnMessage(*Conn, []byte) {}
func (NopObserver) OnSent(*Conn, []byte)    {}

// Observers fans every notification out to each member in order.
type Observers []Observer

func (obs Observers) OnConnected(c *Conn) {
	for _, o := range obs {
		o.OnConnected(c)
	}
}

func (obs Observers) OnAccepted(c *Conn) {
	for _, o := range obs {
		o.OnAccepted(c)
	}
}

func (obs Observers) OnClosed(c *Conn) {
	for _, o := range obs {
		o.OnClosed(c)
	}
}

func (obs Observers) OnMessage(c *Conn, payload []byte) {
	for _, o := range obs {
		o.OnMessage(c, payload)
	}
}

func (obs Observers) OnSent(c *Conn, payload []byte) {
	for _, o := range obs {
		o.OnSent(c, payload)
	}
}

// observerOrNop turns a nil observer into a no-op one.
func observerOrNop(o Observer) Observer {
	if o == nil {
		return NopObserver{}
	}
	return o
}
