// Package monitor owns the scan cycle: it acquires snapshots, drives the
// diff and classification pipeline, filters verdicts through trust
// policies, and hands the survivors to the alert sink.
package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/apwatch/apwatch/alert"
	"github.com/apwatch/apwatch/classify"
	"github.com/apwatch/apwatch/diff"
	"github.com/apwatch/apwatch/history"
	"github.com/apwatch/apwatch/scanner"
	"github.com/apwatch/apwatch/telemetry"
	"github.com/apwatch/apwatch/trust"
	"github.com/apwatch/apwatch/types"
	"github.com/apwatch/apwatch/wal"
)

// Deps wires the engine's collaborators. Scanner, Store, Differ,
// Classifier, Sink and Logger are required; Trust and Journal are
// optional.
type Deps struct {
	Scanner     scanner.Scanner
	Normalizer  *scanner.Normalizer
	Store       *history.Store
	Differ      *diff.Engine
	Classifier  *classify.Classifier
	Trust       *trust.Engine
	Sink        alert.Sink
	Journal     *wal.WAL
	Logger      *telemetry.Logger
	ScanTimeout time.Duration
}

// Engine is the single logical owner of the scan cycle. Cycles never
// overlap: RunCycle reports Skipped when a previous cycle is still
// in flight.
type Engine struct {
	deps  Deps
	cycle atomic.Int64
	busy  atomic.Bool
}

// CycleReport summarizes one cycle for logging and metrics.
type CycleReport struct {
	Cycle     int64
	Skipped   bool
	Observed  int
	Changes   int
	Verdicts  int
	Forwarded int
	Duration  time.Duration
}

// NewEngine creates a cycle engine.
func NewEngine(deps Deps) *Engine {
	if deps.Normalizer == nil {
		deps.Normalizer = scanner.NewNormalizer()
	}
	if deps.ScanTimeout == 0 {
		deps.ScanTimeout = 8 * time.Second
	}
	return &Engine{deps: deps}
}

// RunCycle executes one scan-diff-classify-alert cycle.
func (e *Engine) RunCycle(ctx context.Context, now time.Time) (CycleReport, error) {
	cycle := e.cycle.Add(1)
	report := CycleReport{Cycle: cycle}

	if !e.busy.CompareAndSwap(false, true) {
		report.Skipped = true
		e.deps.Logger.LogCycleSkipped(ctx, cycle)
		e.journal(wal.EntrySkipped, "", map[string]int64{"cycle": cycle})
		return report, nil
	}
	defer e.busy.Store(false)

	ctx, span := telemetry.Tracer.Start(ctx, "scan_cycle")
	defer span.End()
	span.SetAttributes(attribute.Int64("cycle", cycle))

	start := time.Now()
	e.deps.Logger.LogCycleStart(ctx, cycle)

	snapshot := e.acquireSnapshot(ctx, now)
	report.Observed = len(snapshot)
	e.journal(wal.EntryObserved, "", snapshotSummary(snapshot))

	changes, err := e.deps.Differ.Run(snapshot, now)
	if err != nil {
		e.deps.Logger.LogStoreError(ctx, "diff", err)
		return report, err
	}
	report.Changes = len(changes)
	e.recordChanges(ctx, span, changes)

	result, err := e.deps.Classifier.Run(changes, now)
	if err != nil {
		e.deps.Logger.LogStoreError(ctx, "classify", err)
		return report, err
	}
	report.Verdicts = len(result.All)

	forwarded := e.deliver(ctx, span, result)
	report.Forwarded = forwarded
	report.Duration = time.Since(start)

	e.recordCycleMetrics(ctx, report)
	e.deps.Logger.LogCycleComplete(ctx, cycle, report.Observed, report.Changes,
		forwarded, float64(report.Duration.Milliseconds()))

	return report, nil
}

// acquireSnapshot scans with a timeout. A failed or timed-out scan
// yields an empty snapshot so absence tracking still runs; a single
// missed cycle never evicts anything.
func (e *Engine) acquireSnapshot(ctx context.Context, now time.Time) []types.Observation {
	scanCtx, cancel := context.WithTimeout(ctx, e.deps.ScanTimeout)
	defer cancel()

	raw, err := e.deps.Scanner.Scan(scanCtx)
	if err != nil {
		e.deps.Logger.LogScanError(ctx, err)
		e.journalErr(wal.EntryObserved, "", nil, err)
		return nil
	}

	snapshot, warnings := e.deps.Normalizer.Normalize(raw, now)
	for _, w := range warnings {
		e.deps.Logger.WithContext(ctx).Warn().
			Str("bssid", w.BSSID).
			Str("reason", w.Reason).
			Msg("dropped or adjusted scan entry")
	}
	return snapshot
}

// deliver filters verdicts through trust policies and forwards the
// survivors to the sink. Sink failures are logged, never propagated.
func (e *Engine) deliver(ctx context.Context, span trace.Span, result classify.Result) int {
	forwarded := 0
	for _, v := range result.Forward {
		v, drop := e.applyTrust(ctx, v)
		if drop {
			telemetry.RecordVerdictEvent(span, v.Rule, v.BSSID,
				string(v.Classification), string(v.Severity), false, v.Reason)
			continue
		}

		e.journal(wal.EntryVerdict, v.BSSID, v)
		telemetry.RecordVerdictEvent(span, v.Rule, v.BSSID,
			string(v.Classification), string(v.Severity), true, v.Reason)
		if telemetry.VerdictsEmitted != nil {
			telemetry.VerdictsEmitted.Add(ctx, 1,
				metric.WithAttributes(attribute.String("classification", string(v.Classification))))
		}
		if err := e.deps.Sink.Emit(ctx, v); err != nil {
			e.deps.Logger.LogSinkError(ctx, v.ID, err)
			e.journalErr(wal.EntryAlerted, v.BSSID, v.ID, err)
			continue
		}
		e.journal(wal.EntryAlerted, v.BSSID, v.ID)
		forwarded++
	}

	suppressed := len(result.All) - len(result.Forward)
	if suppressed > 0 && telemetry.AlertsSuppressed != nil {
		telemetry.AlertsSuppressed.Add(ctx, int64(suppressed))
	}
	return forwarded
}

// applyTrust evaluates trust policies for one verdict. Ignore drops it;
// Trusted downgrades it to benign/info before delivery.
func (e *Engine) applyTrust(ctx context.Context, v types.Verdict) (types.Verdict, bool) {
	if e.deps.Trust == nil || e.deps.Trust.Empty() {
		return v, false
	}

	input := trust.Input{Verdict: v}
	if rec, ok := e.deps.Store.Get(v.BSSID); ok {
		input.Record = rec
	}

	decision, err := e.deps.Trust.Evaluate(ctx, input)
	if err != nil {
		e.deps.Logger.WithContext(ctx).Error().
			Err(err).
			Str("bssid", v.BSSID).
			Msg("trust evaluation failed, keeping verdict")
		return v, false
	}

	if decision.Ignore {
		e.journal(wal.EntrySkipped, v.BSSID, map[string]string{
			"verdict_id": v.ID,
			"reason":     "ignored by trust policy",
		})
		return v, true
	}
	if decision.Trusted {
		v.Classification = types.ClassBenign
		v.Severity = types.SeverityInfo
		v.Reason = v.Reason + " (trusted by policy)"
	}
	return v, false
}

func (e *Engine) recordChanges(ctx context.Context, span trace.Span, changes []diff.Change) {
	for _, ch := range changes {
		e.journal(wal.EntryChange, ch.BSSID, ch)
		telemetry.RecordChangeEvent(span, string(ch.Kind), ch.BSSID, ch.SSID,
			ch.Previous, ch.Current)
		if telemetry.ChangeEvents != nil {
			telemetry.ChangeEvents.Add(ctx, 1,
				metric.WithAttributes(attribute.String("kind", string(ch.Kind))))
		}
	}
}

func (e *Engine) recordCycleMetrics(ctx context.Context, report CycleReport) {
	if telemetry.ScanCycles != nil {
		telemetry.ScanCycles.Add(ctx, 1)
	}
	if telemetry.APsObserved != nil {
		telemetry.APsObserved.Record(ctx, int64(report.Observed))
	}
	if telemetry.CycleDuration != nil {
		telemetry.CycleDuration.Record(ctx, report.Duration.Seconds())
	}
	if telemetry.StoreRecords != nil {
		telemetry.StoreRecords.Record(ctx, int64(e.deps.Store.Count()))
	}
	if telemetry.StoreRevision != nil {
		telemetry.StoreRevision.Record(ctx, e.deps.Store.CurrentRevision())
	}
}

// Rebaseline resets an AP's trusted baseline to its latest observation.
func (e *Engine) Rebaseline(ctx context.Context, bssid string) error {
	normalized, err := types.NormalizeBSSID(bssid)
	if err != nil {
		return err
	}
	if _, err := e.deps.Store.Rebaseline(normalized); err != nil {
		return err
	}
	e.deps.Logger.LogRebaseline(ctx, normalized)
	e.journal(wal.EntryRebaselined, normalized, nil)
	return nil
}

// CycleCount returns the number of cycles attempted so far.
func (e *Engine) CycleCount() int64 {
	return e.cycle.Load()
}

func (e *Engine) journal(entryType wal.EntryType, bssid string, data interface{}) {
	if e.deps.Journal == nil {
		return
	}
	if err := e.deps.Journal.Append(entryType, bssid, data); err != nil {
		e.deps.Logger.Error().Err(err).Msg("journal append failed")
	}
}

func (e *Engine) journalErr(entryType wal.EntryType, bssid string, data interface{}, cause error) {
	if e.deps.Journal == nil {
		return
	}
	if err := e.deps.Journal.AppendError(entryType, bssid, data, cause); err != nil {
		e.deps.Logger.Error().Err(err).Msg("journal append failed")
	}
}

func snapshotSummary(snapshot []types.Observation) map[string]interface{} {
	bssids := make([]string, 0, len(snapshot))
	for _, obs := range snapshot {
		bssids = append(bssids, obs.BSSID)
	}
	return map[string]interface{}{
		"count":  len(snapshot),
		"bssids": bssids,
	}
}
