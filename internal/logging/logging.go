// Package logging sets up zerolog for earlyalloc and turns allocator events
// into log records.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/joshuapare/earlyalloc/alloc"
)

// Options configures the logger initialization.
type Options struct {
	Level  string    // zerolog level name; empty means info
	Format string    // "human" (console) or "json"; empty means human
	Out    io.Writer // default os.Stderr
}

// New builds a logger from opts without touching global state.
func New(opts Options) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		var err error
		if level, err = zerolog.ParseLevel(opts.Level); err != nil {
			return zerolog.Nop(), fmt.Errorf("logging: %w", err)
		}
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	base := zerolog.New(out).With().Timestamp().Logger()
	switch opts.Format {
	case "", "human":
		base = base.Output(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339Nano,
		})
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("logging: unknown format %q", opts.Format)
	}
	return base.Level(level), nil
}

// Init configures the global logger. Call from main before any log calls.
func Init(opts Options) error {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger, err := New(opts)
	if err != nil {
		return err
	}
	log.Logger = logger
	return nil
}

// Tracer logs allocator events at debug level, or at warn level when the
// operation failed.
type Tracer struct {
	Logger zerolog.Logger
}

// NewTracer returns a Tracer writing to l.
func NewTracer(l zerolog.Logger) *Tracer {
	return &Tracer{Logger: l}
}

// Trace implements alloc.Tracer.
func (t *Tracer) Trace(ev alloc.Event) {
	e := t.Logger.Debug()
	if ev.Err != nil {
		e = t.Logger.Warn().Err(ev.Err)
	}
	e.Str("event", ev.Kind.String()).
		Str("addr", fmt.Sprintf("%#x", ev.Addr)).
		Uint64("size", uint64(ev.Size)).
		Bool("reclaimed", ev.Reclaimed).
		Str("b_pos", fmt.Sprintf("%#x", ev.BytePos)).
		Str("p_pos", fmt.Sprintf("%#x", ev.PagePos)).
		Uint("b_count", ev.Live).
		Msg("allocator")
}

var _ alloc.Tracer = (*Tracer)(nil)
