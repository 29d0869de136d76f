package types

import (
	"fmt"
	"time"
)

// Severity grades how urgently an operator should look at a verdict.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// severityRank orders severities for escalation comparison.
var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityCritical: 2,
}

// Escalates reports whether s is strictly more severe than other.
func (s Severity) Escalates(other Severity) bool {
	return severityRank[s] > severityRank[other]
}

// Classification is the rogue/benign judgement attached to a verdict.
type Classification string

const (
	ClassBenign     Classification = "benign"
	ClassSuspicious Classification = "suspicious"
	ClassRogue      Classification = "rogue"
	ClassUnknown    Classification = "unknown"
)

// Verdict is the classifier's judgement for one AP in one scan cycle.
type Verdict struct {
	ID             string         `json:"id"`
	BSSID          string         `json:"bssid"`
	SSID           string         `json:"ssid,omitempty"`
	Severity       Severity       `json:"severity"`
	Classification Classification `json:"classification"`
	Rule           string         `json:"rule"`
	Reason         string         `json:"reason"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Line renders the verdict in the one-line sink format.
func (v *Verdict) Line() string {
	ssid := v.SSID
	if ssid == "" {
		ssid = "<hidden>"
	}
	return fmt.Sprintf("%s %s %s bssid=%s ssid=%q %s",
		v.Timestamp.UTC().Format(time.RFC3339),
		v.Severity, v.Classification, v.BSSID, ssid, v.Reason)
}

// AlertState remembers the last verdict forwarded for an AP so repeated
// identical verdicts can be suppressed.
type AlertState struct {
	Classification Classification `json:"classification"`
	Severity       Severity       `json:"severity"`
	Rule           string         `json:"rule,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Unresolved reports whether the AP still carries an open critical alert.
func (a *AlertState) Unresolved() bool {
	return a != nil && a.Severity == SeverityCritical
}

// ShouldForward decides whether a new verdict differs enough from the
// stored state to reach the alert sink. Changed classification or a
// severity escalation passes; everything else is suppressed.
func (a *AlertState) ShouldForward(v *Verdict) bool {
	if a == nil {
		return true
	}
	if v.Classification != a.Classification {
		return true
	}
	return v.Severity.Escalates(a.Severity)
}
