// Package diff compares normalized scan snapshots against the history
// store and produces ordered change events.
package diff

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/apwatch/apwatch/history"
	"github.com/apwatch/apwatch/types"
)

// Options tune change detection.
type Options struct {
	// SignalThresholdDBM is the deviation from the recent mean beyond
	// which a signal reading counts as anomalous.
	SignalThresholdDBM float64
	// Ranks orders encryption protocols for downgrade detection.
	Ranks types.EncryptionRanks
}

// DefaultOptions returns the standard detection tuning.
func DefaultOptions() Options {
	return Options{
		SignalThresholdDBM: 20,
		Ranks:              types.DefaultEncryptionRanks(),
	}
}

// Engine diffs snapshots against the store. It is the only writer of
// store state during a cycle: it compares first, then upserts and marks
// absences for every AP touched.
type Engine struct {
	store  *history.Store
	opts   Options
	logger zerolog.Logger
}

// NewEngine creates a diff engine over the given store.
func NewEngine(store *history.Store, opts Options, logger zerolog.Logger) *Engine {
	if opts.SignalThresholdDBM <= 0 {
		opts.SignalThresholdDBM = DefaultOptions().SignalThresholdDBM
	}
	if opts.Ranks == nil {
		opts.Ranks = types.DefaultEncryptionRanks()
	}
	return &Engine{store: store, opts: opts, logger: logger}
}

// Run processes one snapshot: collision detection first, then per-AP
// comparison against baselines, then absence handling and eviction.
// Event order is deterministic so classifier rules evaluate consistently.
func (e *Engine) Run(snapshot []types.Observation, now time.Time) ([]Change, error) {
	known := e.knownBefore(snapshot)

	changes := e.detectCollisions(snapshot, known, now)
	perAP, err := e.compareAndUpsert(snapshot, known, now)
	if err != nil {
		return nil, err
	}
	changes = append(changes, perAP...)

	vanished, err := e.handleAbsences(snapshot, now)
	if err != nil {
		return nil, err
	}
	changes = append(changes, vanished...)

	return changes, nil
}

// knownBefore records which snapshot BSSIDs the store knew prior to this
// cycle's upserts, keyed by BSSID with the record as value (nil for new).
func (e *Engine) knownBefore(snapshot []types.Observation) map[string]*history.Record {
	known := make(map[string]*history.Record, len(snapshot))
	for _, obs := range snapshot {
		rec, found := e.store.Get(obs.BSSID)
		if !found {
			known[obs.BSSID] = nil
			continue
		}
		known[obs.BSSID] = rec
	}
	return known
}

// detectCollisions groups the snapshot by SSID and flags BSSIDs
// broadcasting a name they are not recorded under. Same network name
// from an unrecognized radio is the evil-twin signature.
func (e *Engine) detectCollisions(snapshot []types.Observation, known map[string]*history.Record, now time.Time) []Change {
	bySSID := make(map[string][]types.Observation)
	for _, obs := range snapshot {
		if obs.SSID == "" {
			continue
		}
		bySSID[obs.SSID] = append(bySSID[obs.SSID], obs)
	}

	ssids := make([]string, 0, len(bySSID))
	for ssid := range bySSID {
		ssids = append(ssids, ssid)
	}
	sort.Strings(ssids)

	var changes []Change
	for _, ssid := range ssids {
		group := bySSID[ssid]
		if len(group) < 2 {
			continue
		}
		changes = append(changes, e.collisionsInGroup(ssid, group, known, now)...)
	}
	return changes
}

// collisionsInGroup emits one collision event per BSSID in the group
// that is not already recorded under the shared SSID.
func (e *Engine) collisionsInGroup(ssid string, group []types.Observation, known map[string]*history.Record, now time.Time) []Change {
	established := ""
	for _, obs := range group {
		if rec := known[obs.BSSID]; rec != nil && rec.BaselineSSID == ssid {
			established = obs.BSSID
			break
		}
	}
	if established == "" {
		// Nobody owns this SSID yet; nothing to collide with.
		return nil
	}

	var changes []Change
	for _, obs := range group {
		if rec := known[obs.BSSID]; rec != nil && rec.BaselineSSID == ssid {
			continue
		}
		changes = append(changes, Change{
			Kind:         KindSSIDCollision,
			BSSID:        obs.BSSID,
			SSID:         ssid,
			RelatedBSSID: established,
			NewlySeen:    known[obs.BSSID] == nil,
			Timestamp:    now,
			Details:      fmt.Sprintf("SSID %q also broadcast by %s", ssid, established),
		})
	}
	return changes
}

// compareAndUpsert diffs each observation against its baseline, then
// records the observation. Comparison always runs against pre-cycle
// state.
func (e *Engine) compareAndUpsert(snapshot []types.Observation, known map[string]*history.Record, now time.Time) ([]Change, error) {
	var changes []Change

	for _, obs := range snapshot {
		rec := known[obs.BSSID]
		if rec == nil {
			changes = append(changes, Change{
				Kind:      KindNewAP,
				BSSID:     obs.BSSID,
				SSID:      obs.SSID,
				Current:   fmt.Sprintf("%s (%s, %d dBm)", obs.SSID, obs.Encryption, obs.SignalDBM),
				NewlySeen: true,
				Timestamp: now,
				Details:   "new access point observed",
			})
		} else {
			changes = append(changes, e.compareKnown(rec, obs, now)...)
		}

		anomalous := rec != nil && e.isSignalAnomalous(rec, obs)

		if _, _, err := e.store.Upsert(obs); err != nil {
			return nil, fmt.Errorf("failed to record observation for %s: %w", obs.BSSID, err)
		}

		streak, err := e.store.NoteAnomaly(obs.BSSID, anomalous)
		if err != nil {
			return nil, err
		}
		if anomalous {
			mean, _ := rec.MeanSignal()
			changes = append(changes, Change{
				Kind:      KindSignalAnomaly,
				BSSID:     obs.BSSID,
				SSID:      obs.SSID,
				Previous:  fmt.Sprintf("%.0f dBm mean", mean),
				Current:   fmt.Sprintf("%d dBm", obs.SignalDBM),
				Streak:    streak,
				Timestamp: now,
				Details:   "signal strength deviates from recent history",
			})
		}
	}

	return changes, nil
}

// compareKnown checks a known AP's identity against its trusted baseline.
func (e *Engine) compareKnown(rec *history.Record, obs types.Observation, now time.Time) []Change {
	var changes []Change

	if obs.SSID != rec.BaselineSSID {
		changes = append(changes, Change{
			Kind:      KindSSIDChanged,
			BSSID:     obs.BSSID,
			SSID:      obs.SSID,
			Previous:  rec.BaselineSSID,
			Current:   obs.SSID,
			Timestamp: now,
			Details:   "SSID differs from trusted baseline",
		})
	}

	if obs.Encryption != rec.BaselineEncryption {
		downgrade := e.opts.Ranks.IsDowngrade(rec.BaselineEncryption, obs.Encryption)
		details := "encryption differs from trusted baseline"
		if downgrade {
			details = "encryption downgraded from trusted baseline"
		}
		changes = append(changes, Change{
			Kind:      KindEncryptionChanged,
			BSSID:     obs.BSSID,
			SSID:      obs.SSID,
			Previous:  string(rec.BaselineEncryption),
			Current:   string(obs.Encryption),
			Downgrade: downgrade,
			Timestamp: now,
			Details:   details,
		})
	}

	return changes
}

// isSignalAnomalous compares the new reading against the mean of the
// pre-cycle history window.
func (e *Engine) isSignalAnomalous(rec *history.Record, obs types.Observation) bool {
	mean, ok := rec.MeanSignal()
	if !ok {
		return false
	}
	deviation := float64(obs.SignalDBM) - mean
	if deviation < 0 {
		deviation = -deviation
	}
	return deviation > e.opts.SignalThresholdDBM
}

// handleAbsences marks every known AP missing from the snapshot and
// emits a vanish event on the first transition to stale. Eviction runs
// last; records evicted while still carrying an unresolved critical
// alert get a final vanish event.
func (e *Engine) handleAbsences(snapshot []types.Observation, now time.Time) ([]Change, error) {
	present := make(map[string]bool, len(snapshot))
	for _, obs := range snapshot {
		present[obs.BSSID] = true
	}

	var changes []Change
	for _, rec := range e.store.All() {
		if present[rec.BSSID] {
			continue
		}
		becameStale, err := e.store.MarkAbsent(rec.BSSID, now)
		if err != nil {
			return nil, err
		}
		if becameStale {
			changes = append(changes, Change{
				Kind:      KindVanishedAP,
				BSSID:     rec.BSSID,
				SSID:      rec.BaselineSSID,
				Previous:  rec.BaselineSSID,
				Timestamp: now,
				Details:   "access point no longer observed",
			})
		}
	}

	evicted, err := e.store.EvictExpired(now)
	if err != nil {
		return nil, err
	}
	for _, rec := range evicted {
		e.logger.Debug().Str("bssid", rec.BSSID).Msg("evicted expired record")
		if rec.AlertState.Unresolved() {
			changes = append(changes, Change{
				Kind:      KindVanishedAP,
				BSSID:     rec.BSSID,
				SSID:      rec.BaselineSSID,
				Previous:  rec.BaselineSSID,
				Timestamp: now,
				Details:   "access point with unresolved alert evicted after retention window",
			})
		}
	}

	return changes, nil
}
