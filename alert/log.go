package alert

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/apwatch/apwatch/types"
)

// LogSink writes verdicts as structured log lines.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink that logs verdicts.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit implements Sink.
func (s *LogSink) Emit(ctx context.Context, v types.Verdict) error {
	event := s.logger.Info()
	switch v.Severity {
	case types.SeverityWarning:
		event = s.logger.Warn()
	case types.SeverityCritical:
		event = s.logger.Error()
	}

	event.
		Str("verdict_id", v.ID).
		Str("bssid", v.BSSID).
		Str("ssid", v.SSID).
		Str("severity", string(v.Severity)).
		Str("classification", string(v.Classification)).
		Str("rule", v.Rule).
		Time("detected_at", v.Timestamp).
		Msg(v.Reason)
	return nil
}

// Close implements Sink.
func (s *LogSink) Close() error {
	return nil
}
