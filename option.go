package framesock

import (
	"math"

	"github.com/pkg/errors"
)

// Default configuration values.
const (
	// DefaultReceiveBufferSize is the size of each connection's receive buffer.
	DefaultReceiveBufferSize = 128
	// DefaultBacklog is the listen backlog used by the server.
	DefaultBacklog = 100
	// DefaultMaxConnections bounds concurrently open server connections.
	DefaultMaxConnections = 100
	// DefaultMaxFrameSize is the largest payload accepted in a single frame (1MB).
	DefaultMaxFrameSize = 1024 * 1024
)

// options holds the configuration shared by Conn, Server and Client.
type options struct {
	logger   Logger
	observer Observer

	receiveBufferSize int    // bytes read from the socket per receive
	backlog           int    // pending connections queued by the kernel
	maxConnections    int    // admission limit of the server
	maxFrameSize      int    // largest payload a frame may declare
	listenAddress     string // host the server binds to, empty for all interfaces

	err error
}

// Option is a function that configures connection, server or client options.
type Option func(*options)

func newOptions(opt ...Option) (options, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	if err := checkOptions(&opts); err != nil {
		return options{}, err
	}
	return opts, nil
}

// checkOptions validates options and fills in defaults for unset values.
func checkOptions(opts *options) error {
	if opts.err != nil {
		return opts.err
	}

	if opts.receiveBufferSize == 0 {
		opts.receiveBufferSize = DefaultReceiveBufferSize
	}

	if opts.backlog == 0 {
		opts.backlog = DefaultBacklog
	}

	if opts.maxConnections == 0 {
		opts.maxConnections = DefaultMaxConnections
	}

	if opts.maxFrameSize == 0 {
		opts.maxFrameSize = DefaultMaxFrameSize
	}
	if uint64(opts.maxFrameSize) > math.MaxUint32 {
		return errors.Wrapf(ErrInvalidOption, "max frame size %d does not fit the length prefix", opts.maxFrameSize)
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	opts.observer = observerOrNop(opts.observer)

	return nil
}

// positive records an error on o when v is not a positive value.
func positive(o *options, name string, v int) bool {
	if v > 0 {
		return true
	}
	if o.err == nil {
		o.err = errors.Wrapf(ErrInvalidOption, "%s must be positive, got %d", name, v)
	}
	return false
}

// ReceiveBufferSize returns an Option that sets the size of the per-connection
// receive buffer. Frames larger than the buffer are reassembled across reads.
func ReceiveBufferSize(size int) Option {
	return func(o *options) {
		if positive(o, "receive buffer size", size) {
			o.receiveBufferSize = size
		}
	}
}

// Backlog returns an Option that sets the listen backlog of the server.
func Backlog(n int) Option {
	return func(o *options) {
		if positive(o, "backlog", n) {
			o.backlog = n
		}
	}
}

// MaxConnections returns an Option that bounds the number of connections
// the server keeps open at the same time.
func MaxConnections(n int) Option {
	return func(o *options) {
		if positive(o, "max connections", n) {
			o.maxConnections = n
		}
	}
}

// MaxFrameSize returns an Option that sets the largest payload a peer may
// announce. Connections announcing more are closed before any allocation.
func MaxFrameSize(size int) Option {
	return func(o *options) {
		if positive(o, "max frame size", size) {
			o.maxFrameSize = size
		}
	}
}

// ListenAddress returns an Option that sets the host the server binds to.
func ListenAddress(host string) Option {
	return func(o *options) {
		o.listenAddress = host
	}
}

// WithLogger returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithObserver returns an Option that sets the notification sink.
// Pass Observers to register several.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}
