package telemetry

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span IDs to every log entry
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger wraps zerolog with OTEL integration
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a new logger with OTEL hooks
func NewLogger(service string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", service).
		Logger().
		Hook(OTELHook{})

	return &Logger{Logger: logger}
}

// WithContext returns a logger with context (for trace propagation)
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// Convenience methods for scan cycle operations

func (l *Logger) LogCycleStart(ctx context.Context, cycle int64) {
	l.WithContext(ctx).Debug().
		Int64("cycle", cycle).
		Str("operation", "scan_cycle").
		Msg("starting scan cycle")
}

func (l *Logger) LogCycleComplete(ctx context.Context, cycle int64, observed, changes, verdicts int, durationMs float64) {
	l.WithContext(ctx).Info().
		Int64("cycle", cycle).
		Int("aps_observed", observed).
		Int("changes", changes).
		Int("verdicts", verdicts).
		Float64("duration_ms", durationMs).
		Str("operation", "scan_cycle").
		Msg("scan cycle completed")
}

func (l *Logger) LogCycleSkipped(ctx context.Context, cycle int64) {
	l.WithContext(ctx).Warn().
		Int64("cycle", cycle).
		Str("operation", "scan_cycle").
		Msg("previous cycle still running, skipping")
}

func (l *Logger) LogScanError(ctx context.Context, err error) {
	l.WithContext(ctx).Error().
		Err(err).
		Str("operation", "scan").
		Msg("scan failed, treating snapshot as empty")
}

func (l *Logger) LogRebaseline(ctx context.Context, bssid string) {
	l.WithContext(ctx).Info().
		Str("bssid", bssid).
		Str("operation", "rebaseline").
		Msg("baseline reset")
}

func (l *Logger) LogStoreError(ctx context.Context, operation string, err error) {
	l.WithContext(ctx).Error().
		Err(err).
		Str("operation", operation).
		Msg("history store operation failed")
}

func (l *Logger) LogSinkError(ctx context.Context, verdictID string, err error) {
	l.WithContext(ctx).Error().
		Err(err).
		Str("verdict_id", verdictID).
		Str("operation", "alert_emit").
		Msg("alert delivery failed")
}
