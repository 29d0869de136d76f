package classify

import (
	"fmt"

	"github.com/apwatch/apwatch/diff"
	"github.com/apwatch/apwatch/types"
)

// Rule names referenced in verdicts and tests.
const (
	RuleEvilTwin            = "evil_twin"
	RuleEncryptionDowngrade = "encryption_downgrade"
	RuleIdentityChanged     = "identity_changed"
	RuleNewAP               = "new_ap"
	RuleSignalErratic       = "signal_erratic"
	RuleSignalFlutter       = "signal_flutter"
	RuleVanished            = "vanished"
)

// outcome is one rule's judgement before de-duplication. Quiet outcomes
// are recorded but never forwarded to the alert sink.
type outcome struct {
	rule           string
	classification types.Classification
	severity       types.Severity
	reason         string
	quiet          bool
}

// matchFunc inspects one AP's change events for the cycle. A nil return
// passes evaluation to the next rule.
type matchFunc func(group []diff.Change) *outcome

// rule pairs a predicate with the verdict it produces. Rules are
// evaluated in table order, first match wins per BSSID.
type rule struct {
	name        string
	description string
	match       matchFunc
}

// ruleTable builds the fixed-priority rule set. escalateAfter is the
// consecutive-anomaly count at which erratic signal stops being quiet.
func ruleTable(escalateAfter int) []rule {
	return []rule{
		{
			name:        RuleEvilTwin,
			description: "known SSID broadcast from an unrecognized access point",
			match: func(group []diff.Change) *outcome {
				for _, c := range group {
					if c.Kind == diff.KindSSIDCollision && c.NewlySeen {
						return &outcome{
							rule:           RuleEvilTwin,
							classification: types.ClassRogue,
							severity:       types.SeverityCritical,
							reason: fmt.Sprintf(
								"evil twin: known SSID %q broadcast from unrecognized access point (established: %s)",
								c.SSID, c.RelatedBSSID),
						}
					}
				}
				return nil
			},
		},
		{
			name:        RuleEncryptionDowngrade,
			description: "encryption downgrade on a known access point",
			match: func(group []diff.Change) *outcome {
				for _, c := range group {
					if c.Kind == diff.KindEncryptionChanged && c.Downgrade {
						return &outcome{
							rule:           RuleEncryptionDowngrade,
							classification: types.ClassRogue,
							severity:       types.SeverityCritical,
							reason: fmt.Sprintf(
								"encryption downgrade on known access point (%s -> %s) - possible spoofing or misconfiguration",
								c.Previous, c.Current),
						}
					}
				}
				return nil
			},
		},
		{
			name:        RuleIdentityChanged,
			description: "access point changed SSID without rebaseline",
			match: func(group []diff.Change) *outcome {
				for _, c := range group {
					if c.Kind == diff.KindSSIDChanged {
						return &outcome{
							rule:           RuleIdentityChanged,
							classification: types.ClassSuspicious,
							severity:       types.SeverityWarning,
							reason: fmt.Sprintf(
								"access point identity changed name without rebaseline (%q -> %q)",
								c.Previous, c.Current),
						}
					}
				}
				return nil
			},
		},
		{
			name:        RuleNewAP,
			description: "first sighting of an access point",
			match: func(group []diff.Change) *outcome {
				for _, c := range group {
					if c.Kind == diff.KindNewAP {
						return &outcome{
							rule:           RuleNewAP,
							classification: types.ClassUnknown,
							severity:       types.SeverityInfo,
							reason:         "new access point observed, not yet classified",
						}
					}
				}
				return nil
			},
		},
		{
			name:        RuleSignalErratic,
			description: "signal anomaly repeated across consecutive cycles",
			match: func(group []diff.Change) *outcome {
				for _, c := range group {
					if c.Kind == diff.KindSignalAnomaly && c.Streak >= escalateAfter {
						return &outcome{
							rule:           RuleSignalErratic,
							classification: types.ClassSuspicious,
							severity:       types.SeverityWarning,
							reason: fmt.Sprintf(
								"erratic signal pattern across %d consecutive cycles", c.Streak),
						}
					}
				}
				return nil
			},
		},
		{
			name:        RuleSignalFlutter,
			description: "isolated signal anomaly, weak evidence on its own",
			match: func(group []diff.Change) *outcome {
				for _, c := range group {
					if c.Kind == diff.KindSignalAnomaly {
						return &outcome{
							rule:           RuleSignalFlutter,
							classification: types.ClassBenign,
							severity:       types.SeverityInfo,
							reason:         "signal strength deviated from recent history",
							quiet:          true,
						}
					}
				}
				return nil
			},
		},
		{
			name:        RuleVanished,
			description: "access point no longer observed",
			match: func(group []diff.Change) *outcome {
				for _, c := range group {
					if c.Kind == diff.KindVanishedAP {
						return &outcome{
							rule:           RuleVanished,
							classification: types.ClassBenign,
							severity:       types.SeverityInfo,
							reason:         "access point no longer observed",
						}
					}
				}
				return nil
			},
		},
	}
}
