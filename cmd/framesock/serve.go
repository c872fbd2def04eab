package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/framesock"
	"github.com/Zereker/framesock/internal/admin"
	"github.com/Zereker/framesock/internal/config"
	"github.com/Zereker/framesock/internal/logging"
	"github.com/Zereker/framesock/internal/metrics"
)

type serveFlags struct {
	configPath     string
	listen         string
	port           int
	backlog        int
	maxConnections int
	bufferSize     int
	maxFrameSize   int
	adminAddress   string
	logLevel       string
	policy         string
}

func serveCmd() *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}
			recipients, err := parsePolicy(f.policy)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, recipients)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.configPath, "config", "c", "", "TOML config file")
	flags.StringVar(&f.listen, "listen", "", "address to bind, empty for all interfaces")
	flags.IntVarP(&f.port, "port", "p", 9000, "TCP port")
	flags.IntVar(&f.backlog, "backlog", framesock.DefaultBacklog, "listen backlog")
	flags.IntVar(&f.maxConnections, "max-connections", framesock.DefaultMaxConnections, "maximum concurrent connections")
	flags.IntVar(&f.bufferSize, "buffer-size", framesock.DefaultReceiveBufferSize, "per-connection receive buffer size")
	flags.IntVar(&f.maxFrameSize, "max-frame-size", framesock.DefaultMaxFrameSize, "largest accepted payload")
	flags.StringVar(&f.adminAddress, "admin", "", "admin HTTP address serving /metrics, /healthz and /connections")
	flags.StringVar(&f.logLevel, "log-level", "info", "log level")
	flags.StringVar(&f.policy, "policy", "others", "relay recipients: all, others or echo")

	return cmd
}

// resolveConfig layers explicitly set flags over the config file over defaults.
func resolveConfig(cmd *cobra.Command, f serveFlags) (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return config.Config{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.ListenAddress = f.listen
	}
	if flags.Changed("port") {
		cfg.Port = f.port
	}
	if flags.Changed("backlog") {
		cfg.Backlog = f.backlog
	}
	if flags.Changed("max-connections") {
		cfg.MaxConnections = f.maxConnections
	}
	if flags.Changed("buffer-size") {
		cfg.ReceiveBufferSize = f.bufferSize
	}
	if flags.Changed("max-frame-size") {
		cfg.MaxFrameSize = f.maxFrameSize
	}
	if flags.Changed("admin") {
		cfg.AdminAddress = f.adminAddress
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}

	return cfg, cfg.Validate()
}

func parsePolicy(s string) (framesock.Recipients, error) {
	switch s {
	case "all":
		return framesock.All, nil
	case "others":
		return framesock.AllExceptThis, nil
	case "echo":
		return framesock.This, nil
	default:
		return 0, fmt.Errorf("unknown policy %q", s)
	}
}

// relay forwards every received message to the recipients chosen by policy.
type relay struct {
	framesock.NopObserver
	server     *framesock.Server
	recipients framesock.Recipients
}

func (r *relay) OnMessage(c *framesock.Conn, payload []byte) {
	_, _ = r.server.Send(payload, c, r.recipients)
}

func runServer(ctx context.Context, cfg config.Config, recipients framesock.Recipients) error {
	zl, err := logging.New("framesock", cfg.LogLevel, os.Stdout)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}

	rl := &relay{recipients: recipients}
	opts := append(cfg.Options(),
		framesock.WithLogger(logging.NewAdapter(zl)),
		framesock.WithObserver(framesock.Observers{logging.NewTrafficObserver(zl), m, rl}),
	)
	server, err := framesock.NewServer(opts...)
	if err != nil {
		return err
	}
	rl.server = server

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := server.Serve(gctx, cfg.Port)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if cfg.AdminAddress != "" {
		httpServer := &http.Server{
			Addr:              cfg.AdminAddress,
			Handler:           admin.NewRouter(server, registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			zl.Info().Str("addr", cfg.AdminAddress).Msg("admin listening")
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
