package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Zereker/framesock"
)

// echo sends every received frame back to the connection it came from.
type echo struct {
	framesock.NopObserver
	server *framesock.Server
}

func (e *echo) OnAccepted(c *framesock.Conn) {
	slog.Info("add new conn", "connID", c.ID(), "addr", c.RemoteAddr())
}

func (e *echo) OnClosed(c *framesock.Conn) {
	slog.Info("conn closed", "connID", c.ID(), "addr", c.RemoteAddr())
}

func (e *echo) OnMessage(c *framesock.Conn, payload []byte) {
	if _, err := e.server.Send(payload, c, framesock.This); err != nil {
		slog.Error("echo failed", "connID", c.ID(), "error", err)
	}
}

func main() {
	handler := new(echo)

	server, err := framesock.NewServer(
		framesock.ListenAddress("127.0.0.1"),
		framesock.MaxConnections(16),
		framesock.WithObserver(handler),
	)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		return
	}
	handler.server = server

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("server start", "port", 12345)
	if err := server.Serve(ctx, 12345); err != nil && err != context.Canceled {
		slog.Error("server error", "error", err)
	}
}
