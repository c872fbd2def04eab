// Package logging builds the zerolog loggers used by the framesock binary
// and bridges them to the library's Logger and Observer interfaces.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New returns a console logger tagged with app at the given level and makes
// it the global zerolog logger. A nil writer logs to stdout.
func New(app, level string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}
	if w == nil {
		w = os.Stdout
	}

	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).Level(lvl).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger, nil
}

// ParseLevel accepts zerolog level names plus a few aliases; empty means info.
func ParseLevel(raw string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	case "off", "none", "disabled":
		return zerolog.Disabled, nil
	default:
		return zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	}
}

// Adapter exposes a zerolog.Logger as a framesock.Logger. Arguments are
// alternating keys and values, as with log/slog.
type Adapter struct {
	zl zerolog.Logger
}

// NewAdapter wraps zl.
func NewAdapter(zl zerolog.Logger) *Adapter {
	return &Adapter{zl: zl}
}

func (a *Adapter) Debug(msg string, args ...any) { a.log(a.zl.Debug(), msg, args) }
func (a *Adapter) Info(msg string, args ...any)  { a.log(a.zl.Info(), msg, args) }
func (a *Adapter) Warn(msg string, args ...any)  { a.log(a.zl.Warn(), msg, args) }
func (a *Adapter) Error(msg string, args ...any) { a.log(a.zl.Error(), msg, args) }

func (a *Adapter) log(e *zerolog.Event, msg string, args []any) {
	if e == nil {
		return
	}
	if len(args)%2 != 0 {
		args = append(args, "!MISSING")
	}
	e.Fields(args).Msg(msg)
}
