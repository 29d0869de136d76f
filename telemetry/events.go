package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RecordChangeEvent emits a structured span event for a detected change
func RecordChangeEvent(
	span trace.Span,
	kind string,
	bssid string,
	ssid string,
	previous string,
	current string,
) {
	if span == nil {
		return
	}

	span.AddEvent("airspace.change.detected", trace.WithAttributes(
		attribute.String("event.type", "airspace.change.detected"),
		attribute.String("change.kind", kind),
		attribute.String("ap.bssid", bssid),
		attribute.String("ap.ssid", ssid),
		attribute.String("change.previous", previous),
		attribute.String("change.current", current),
	))
}

// RecordVerdictEvent emits a structured span event for a classification verdict
func RecordVerdictEvent(
	span trace.Span,
	rule string,
	bssid string,
	classification string,
	severity string,
	forwarded bool,
	reason string,
) {
	if span == nil {
		return
	}

	span.AddEvent("airspace.verdict.made", trace.WithAttributes(
		attribute.String("event.type", "airspace.verdict.made"),
		attribute.String("verdict.rule", rule),
		attribute.String("ap.bssid", bssid),
		attribute.String("verdict.classification", classification),
		attribute.String("verdict.severity", severity),
		attribute.Bool("verdict.forwarded", forwarded),
		attribute.String("verdict.reason", reason),
	))
}
