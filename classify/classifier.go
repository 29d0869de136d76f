// Package classify turns diff events into rogue/benign verdicts using an
// ordered rule table, then de-duplicates against stored alert state.
package classify

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/apwatch/apwatch/diff"
	"github.com/apwatch/apwatch/history"
	"github.com/apwatch/apwatch/types"
)

// Options tune classification.
type Options struct {
	// EscalateAfter is the consecutive-anomaly cycle count at which an
	// erratic signal escalates from quiet to suspicious.
	EscalateAfter int
}

// DefaultOptions returns the standard classifier tuning.
func DefaultOptions() Options {
	return Options{EscalateAfter: 3}
}

// Result is the outcome of classifying one cycle. All holds every verdict
// issued; Forward holds the subset that passed suppression and should
// reach the alert sink.
type Result struct {
	All     []types.Verdict
	Forward []types.Verdict
}

// Classifier evaluates the rule table over one cycle's change events.
type Classifier struct {
	store  *history.Store
	rules  []rule
	logger zerolog.Logger
}

// New creates a classifier bound to the history store.
func New(store *history.Store, opts Options, logger zerolog.Logger) *Classifier {
	if opts.EscalateAfter <= 0 {
		opts.EscalateAfter = DefaultOptions().EscalateAfter
	}
	return &Classifier{
		store:  store,
		rules:  ruleTable(opts.EscalateAfter),
		logger: logger,
	}
}

// Run classifies the cycle's changes. One verdict per BSSID at most:
// changes are grouped per AP and the first matching rule wins. Forwarded
// verdicts update the AP's stored alert state; suppressed ones do not.
func (c *Classifier) Run(changes []diff.Change, now time.Time) (Result, error) {
	var result Result

	for _, group := range groupByBSSID(changes) {
		out := c.evaluate(group.changes)
		if out == nil {
			continue
		}

		v := types.Verdict{
			ID:             uuid.New().String(),
			BSSID:          group.bssid,
			SSID:           group.ssid(),
			Severity:       out.severity,
			Classification: out.classification,
			Rule:           out.rule,
			Reason:         out.reason,
			Timestamp:      now,
		}
		result.All = append(result.All, v)

		if out.quiet {
			c.logger.Debug().Str("bssid", v.BSSID).Str("rule", v.Rule).Msg("verdict kept quiet")
			continue
		}

		rec, _ := c.store.Get(group.bssid)
		var state *types.AlertState
		if rec != nil {
			state = rec.AlertState
		}
		if !state.ShouldForward(&v) {
			c.logger.Debug().Str("bssid", v.BSSID).Str("rule", v.Rule).Msg("verdict suppressed by alert state")
			continue
		}

		result.Forward = append(result.Forward, v)
		if rec != nil {
			err := c.store.SetAlertState(group.bssid, types.AlertState{
				Classification: v.Classification,
				Severity:       v.Severity,
				Rule:           v.Rule,
				UpdatedAt:      now,
			})
			if err != nil {
				return result, err
			}
		}
	}

	return result, nil
}

// evaluate runs the rule table over one AP's changes, first match wins.
func (c *Classifier) evaluate(group []diff.Change) *outcome {
	for _, r := range c.rules {
		if out := r.match(group); out != nil {
			return out
		}
	}
	return nil
}

// apGroup collects one BSSID's changes in event order.
type apGroup struct {
	bssid   string
	changes []diff.Change
}

func (g *apGroup) ssid() string {
	for _, c := range g.changes {
		if c.SSID != "" {
			return c.SSID
		}
	}
	return ""
}

// groupByBSSID partitions changes per AP, preserving the order in which
// BSSIDs first appear so verdict order tracks event order.
func groupByBSSID(changes []diff.Change) []*apGroup {
	index := make(map[string]*apGroup)
	var groups []*apGroup

	for _, c := range changes {
		g, ok := index[c.BSSID]
		if !ok {
			g = &apGroup{bssid: c.BSSID}
			index[c.BSSID] = g
			groups = append(groups, g)
		}
		g.changes = append(g.changes, c)
	}
	return groups
}
