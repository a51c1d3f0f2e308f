package observability

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig mirrors config.LoggingConfig without the mapstructure tags.
type LoggingConfig struct {
	Level      string // trace, debug, info, warn, error, fatal, panic
	Format     string // json, console or pretty
	Output     string // stdout or stderr
	AddSource  bool
	TimeFormat string
}

// NewLogger builds the process logger and sets the zerolog global level.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	var out io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	return newLogger(out, cfg).Level(level)
}

// newLogger writes to out; it leaves global zerolog state other than the
// timestamp format alone.
func newLogger(out io.Writer, cfg LoggingConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = cfg.TimeFormat
	if zerolog.TimeFieldFormat == "" {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: zerolog.TimeFieldFormat}
	}

	zctx := zerolog.New(out).With().Timestamp()
	if cfg.AddSource {
		zctx = zctx.Caller()
	}
	return zctx.Logger().Level(parseLevel(cfg.Level))
}

// parseLevel accepts zerolog level names in any case plus "warning".
// Anything else, including "", means info.
func parseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return level
}

// WithPaperContext tags logger with a paper id.
func WithPaperContext(logger zerolog.Logger, paperID string) zerolog.Logger {
	return logger.With().Str("paper_id", paperID).Logger()
}

// WithEventContext tags logger with a bookmark event's id and type.
func WithEventContext(logger zerolog.Logger, eventID, eventType string) zerolog.Logger {
	return logger.With().
		Str("event_id", eventID).
		Str("event_type", eventType).
		Logger()
}

// FromContext returns logger tagged with the request id carried by ctx, or
// logger itself when there is none.
func FromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	id := RequestIDFromContext(ctx)
	if id == "" {
		return logger
	}
	return logger.With().Str("request_id", id).Logger()
}
