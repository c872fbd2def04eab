package framesock

import (
	"testing"

	"github.com/pkg/errors"
)

func TestCheckOptions_DefaultValues(t *testing.T) {
	opts := &options{}

	err := checkOptions(opts)
	if err != nil {
		t.Fatalf("checkOptions failed: %v", err)
	}

	if opts.receiveBufferSize != DefaultReceiveBufferSize {
		t.Errorf("receiveBufferSize = %d, want %d", opts.receiveBufferSize, DefaultReceiveBufferSize)
	}

	if opts.backlog != DefaultBacklog {
		t.Errorf("backlog = %d, want %d", opts.backlog, DefaultBacklog)
	}

	if opts.maxConnections != DefaultMaxConnections {
		t.Errorf("maxConnections = %d, want %d", opts.maxConnections, DefaultMaxConnections)
	}

	if opts.maxFrameSize != DefaultMaxFrameSize {
		t.Errorf("maxFrameSize = %d, want %d", opts.maxFrameSize, DefaultMaxFrameSize)
	}

	if opts.logger == nil {
		t.Error("logger should have default value")
	}

	if opts.observer == nil {
		t.Error("observer should have default value")
	}
}

func TestOptions_Set(t *testing.T) {
	logger := &mockLogger{}
	r := newRecorder()

	opts, err := newOptions(
		ReceiveBufferSize(64),
		Backlog(8),
		MaxConnections(3),
		MaxFrameSize(4096),
		ListenAddress("127.0.0.1"),
		WithLogger(logger),
		WithObserver(r),
	)
	if err != nil {
		t.Fatalf("newOptions failed: %v", err)
	}

	if opts.receiveBufferSize != 64 {
		t.Errorf("receiveBufferSize = %d, want 64", opts.receiveBufferSize)
	}
	if opts.backlog != 8 {
		t.Errorf("backlog = %d, want 8", opts.backlog)
	}
	if opts.maxConnections != 3 {
		t.Errorf("maxConnections = %d, want 3", opts.maxConnections)
	}
	if opts.maxFrameSize != 4096 {
		t.Errorf("maxFrameSize = %d, want 4096", opts.maxFrameSize)
	}
	if opts.listenAddress != "127.0.0.1" {
		t.Errorf("listenAddress = %q, want 127.0.0.1", opts.listenAddress)
	}
	if opts.logger != logger {
		t.Error("logger not set correctly")
	}
	if opts.observer != r {
		t.Error("observer not set correctly")
	}
}

func TestOptions_NonPositive(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"receive buffer zero", ReceiveBufferSize(0)},
		{"receive buffer negative", ReceiveBufferSize(-1)},
		{"backlog", Backlog(0)},
		{"max connections", MaxConnections(-5)},
		{"max frame size", MaxFrameSize(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newOptions(tt.opt)
			if !errors.Is(err, ErrInvalidOption) {
				t.Errorf("expected ErrInvalidOption, got %v", err)
			}
		})
	}
}

func TestOptions_FirstErrorWins(t *testing.T) {
	var opts options
	Backlog(0)(&opts)
	MaxConnections(-1)(&opts)
	Backlog(10)(&opts)

	if !errors.Is(opts.err, ErrInvalidOption) {
		t.Fatalf("err = %v, want ErrInvalidOption", opts.err)
	}
	if got := opts.err.Error(); got != "backlog must be positive, got 0: invalid option" {
		t.Errorf("err = %q", got)
	}
}
