package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func createContextWithSpan() (context.Context, trace.Span, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	tracer := provider.Tracer("test")
	ctx, span := tracer.Start(context.Background(), "test-span")
	return ctx, span, exporter
}

func TestOTELHook_Run(t *testing.T) {
	tests := []struct {
		name        string
		setupCtx    func() context.Context
		expectTrace bool
	}{
		{
			name: "no context",
			setupCtx: func() context.Context {
				return nil
			},
			expectTrace: false,
		},
		{
			name: "context without span",
			setupCtx: func() context.Context {
				return context.Background()
			},
			expectTrace: false,
		},
		{
			name: "context with valid span",
			setupCtx: func() context.Context {
				ctx, _, _ := createContextWithSpan()
				return ctx
			},
			expectTrace: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf).Hook(OTELHook{})

			event := logger.Info()
			if ctx := tt.setupCtx(); ctx != nil {
				event = event.Ctx(ctx)
			}
			event.Msg("test message")

			var fields map[string]interface{}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &fields))

			_, hasTrace := fields["trace_id"]
			_, hasSpan := fields["span_id"]
			assert.Equal(t, tt.expectTrace, hasTrace)
			assert.Equal(t, tt.expectTrace, hasSpan)
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger("apwatch-test")
	require.NotNil(t, logger)

	ctxLogger := logger.WithContext(context.Background())
	require.NotNil(t, ctxLogger)
}

func TestLoggerConvenienceMethods(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{Logger: zerolog.New(&buf)}
	ctx := context.Background()

	logger.LogCycleComplete(ctx, 7, 12, 3, 1, 42.5)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fields))
	assert.Equal(t, float64(7), fields["cycle"])
	assert.Equal(t, float64(12), fields["aps_observed"])
	assert.Equal(t, "scan_cycle", fields["operation"])
}

func TestRecordChangeEvent(t *testing.T) {
	_, span, exporter := createContextWithSpan()

	RecordChangeEvent(span, "ssid_changed", "AA:BB:CC:DD:EE:FF", "lab", "lab", "evil-lab")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "airspace.change.detected", spans[0].Events[0].Name)
}

func TestRecordVerdictEvent_NilSpan(t *testing.T) {
	// Must not panic
	RecordVerdictEvent(nil, "evil_twin", "AA:BB:CC:DD:EE:FF", "ROGUE", "CRITICAL", true, "duplicate SSID")
	RecordChangeEvent(nil, "new_ap", "AA:BB:CC:DD:EE:FF", "lab", "", "")
}
