// Package config loads the framesock binary's TOML configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/Zereker/framesock"
)

// Config holds every knob of the server and client commands.
type Config struct {
	ListenAddress     string
	Port              int
	Backlog           int
	MaxConnections    int
	ReceiveBufferSize int
	MaxFrameSize      int
	AdminAddress      string
	LogLevel          string
}

type fileConfig struct {
	ListenAddress     string `toml:"listen_address"`
	Port              int    `toml:"port"`
	Backlog           int    `toml:"backlog"`
	MaxConnections    int    `toml:"max_connections"`
	ReceiveBufferSize int    `toml:"receive_buffer_size"`
	MaxFrameSize      int    `toml:"max_frame_size"`
	AdminAddress      string `toml:"admin_address"`
	LogLevel          string `toml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:              9000,
		Backlog:           framesock.DefaultBacklog,
		MaxConnections:    framesock.DefaultMaxConnections,
		ReceiveBufferSize: framesock.DefaultReceiveBufferSize,
		MaxFrameSize:      framesock.DefaultMaxFrameSize,
		LogLevel:          "info",
	}
}

// Load reads path on top of Default. Keys missing from the file keep
// their default value.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("listen_address") {
		cfg.ListenAddress = strings.TrimSpace(raw.ListenAddress)
	}
	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("backlog") {
		cfg.Backlog = raw.Backlog
	}
	if meta.IsDefined("max_connections") {
		cfg.MaxConnections = raw.MaxConnections
	}
	if meta.IsDefined("receive_buffer_size") {
		cfg.ReceiveBufferSize = raw.ReceiveBufferSize
	}
	if meta.IsDefined("max_frame_size") {
		cfg.MaxFrameSize = raw.MaxFrameSize
	}
	if meta.IsDefined("admin_address") {
		cfg.AdminAddress = strings.TrimSpace(raw.AdminAddress)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every numeric setting is positive. Port 0 is
// allowed and asks the OS for a free port.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	checks := []struct {
		name  string
		value int
	}{
		{"backlog", c.Backlog},
		{"max_connections", c.MaxConnections},
		{"receive_buffer_size", c.ReceiveBufferSize},
		{"max_frame_size", c.MaxFrameSize},
	}
	for _, check := range checks {
		if check.value <= 0 {
			return fmt.Errorf("config: %s must be positive, got %d", check.name, check.value)
		}
	}
	return nil
}

// Options converts c into framesock options.
func (c Config) Options() []framesock.Option {
	return []framesock.Option{
		framesock.ListenAddress(c.ListenAddress),
		framesock.Backlog(c.Backlog),
		framesock.MaxConnections(c.MaxConnections),
		framesock.ReceiveBufferSize(c.ReceiveBufferSize),
		framesock.MaxFrameSize(c.MaxFrameSize),
	}
}
