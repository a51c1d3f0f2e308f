package papersources

import (
	"context"
	"errors"
	"net"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-feed-service/internal/domain"
)

// Operation labels used for metrics and logs.
const (
	OperationFeed     = "feed"
	OperationDetails  = "details"
	OperationSearch   = "search"
	OperationOverview = "overview"
	OperationPDF      = "pdf"
	OperationUnknown  = "unknown"
)

// Recorder receives source-level measurements. observability.Metrics satisfies it.
type Recorder interface {
	RecordSourceRequest(source, operation string, durationSeconds float64)
	RecordSourceRequestFailed(source, operation, errorType string)
	RecordSourceRateLimited(source string)
	RecordDegradedResult(source, operation string)
}

// NopRecorder discards every measurement.
type NopRecorder struct{}

func (NopRecorder) RecordSourceRequest(string, string, float64)      {}
func (NopRecorder) RecordSourceRequestFailed(string, string, string) {}
func (NopRecorder) RecordSourceRateLimited(string)                   {}
func (NopRecorder) RecordDegradedResult(string, string)              {}

type operationKey struct{}

// WithOperation tags ctx with the source operation being performed so the HTTP
// client can label its measurements.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

// OperationFromContext returns the operation set by WithOperation.
func OperationFromContext(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok && op != "" {
		return op
	}
	return OperationUnknown
}

// ErrorType classifies err into a low-cardinality metric label.
func ErrorType(err error) string {
	var netErr net.Error
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrParse):
		return "parse"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}

// Boundary converts strategy errors into the degraded values callers receive.
// Every conversion is logged and counted once.
type Boundary struct {
	Source   string
	Logger   zerolog.Logger
	Recorder Recorder
}

// NewBoundary creates a Boundary; a nil recorder discards measurements.
func NewBoundary(source string, logger zerolog.Logger, recorder Recorder) Boundary {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return Boundary{
		Source:   source,
		Logger:   logger.With().Str("source", source).Logger(),
		Recorder: recorder,
	}
}

// List returns papers, or an empty list when err is non-nil.
func (b Boundary) List(ctx context.Context, op string, papers []domain.Paper, err error) []domain.Paper {
	if err != nil {
		b.Failed(ctx, op, err)
		return []domain.Paper{}
	}
	if papers == nil {
		return []domain.Paper{}
	}
	return papers
}

// Paper returns p, or the error placeholder for id when err is non-nil.
func (b Boundary) Paper(ctx context.Context, id string, p domain.Paper, err error) domain.Paper {
	if err != nil {
		b.Failed(ctx, OperationDetails, err, "paper_id", id)
		return domain.NewErrorPaper(id, err)
	}
	return p
}

// Failed logs and counts a degraded result. Cancellations are logged at debug
// level since they are caller-initiated.
func (b Boundary) Failed(ctx context.Context, op string, err error, kv ...string) {
	level := zerolog.WarnLevel
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		level = zerolog.DebugLevel
	}
	ev := b.Logger.WithLevel(level).Err(err).Str("operation", op).Str("error_type", ErrorType(err))
	for i := 0; i+1 < len(kv); i += 2 {
		ev = ev.Str(kv[i], kv[i+1])
	}
	ev.Msg("source operation degraded")

	if b.Recorder != nil {
		b.Recorder.RecordDegradedResult(b.Source, op)
	}
}
