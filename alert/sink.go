// Package alert defines the verdict delivery boundary. Sinks are
// best-effort: delivery failures are logged, never propagated into the
// scan cycle.
package alert

import (
	"context"

	"github.com/apwatch/apwatch/types"
)

// Sink delivers verdicts to a backend.
type Sink interface {
	// Emit sends one verdict to the backend.
	Emit(ctx context.Context, v types.Verdict) error

	// Close cleans up resources.
	Close() error
}

// MultiSink fans out to multiple sinks.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a sink that delivers to every backend.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Emit sends to all sinks, returns the first error.
func (m *MultiSink) Emit(ctx context.Context, v types.Verdict) error {
	for _, s := range m.sinks {
		if err := s.Emit(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all sinks.
func (m *MultiSink) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
