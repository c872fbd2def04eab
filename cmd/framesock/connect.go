package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Zereker/framesock"
	"github.com/Zereker/framesock/internal/logging"
)

func connectCmd() *cobra.Command {
	var (
		host         string
		port         int
		maxFrameSize int
		logLevel     string
	)

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Send stdin lines as frames and print received frames",
		RunE: func(cmd *cobra.Command, _ []string) error {
			zl, err := logging.New("framesock-client", logLevel, os.Stderr)
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout())
			client, err := framesock.NewClient(
				framesock.MaxFrameSize(maxFrameSize),
				framesock.WithLogger(logging.NewAdapter(zl)),
				framesock.WithObserver(framesock.Observers{logging.NewTrafficObserver(zl), p}),
			)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Start(host, port); err != nil {
				return err
			}
			select {
			case <-p.connected:
			case <-client.Conn().Done():
				return fmt.Errorf("connect %s:%d failed", host, port)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return pipeLines(ctx, cmd.InOrStdin(), client)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&host, "host", "127.0.0.1", "server host")
	flags.IntVarP(&port, "port", "p", 9000, "server port")
	flags.IntVar(&maxFrameSize, "max-frame-size", framesock.DefaultMaxFrameSize, "largest accepted payload")
	flags.StringVar(&logLevel, "log-level", "warn", "log level")

	return cmd
}

// pipeLines sends every line of r. Once r ends it keeps the connection open
// for replies until the server closes it or ctx is done.
func pipeLines(ctx context.Context, r io.Reader, client *framesock.Client) error {
	lines := make(chan []byte)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- append([]byte(nil), scanner.Bytes()...)
		}
	}()

	done := client.Conn().Done()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if err := client.Send(line); err != nil {
				return err
			}
		}
	}
}

// printer writes received frames to out and signals the first connect.
type printer struct {
	framesock.NopObserver
	out       io.Writer
	connected chan struct{}
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out, connected: make(chan struct{})}
}

func (p *printer) OnConnected(*framesock.Conn) {
	close(p.connected)
}

func (p *printer) OnMessage(_ *framesock.Conn, payload []byte) {
	fmt.Fprintf(p.out, "%s\n", payload)
}
