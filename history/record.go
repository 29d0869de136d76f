package history

import (
	"time"

	"github.com/apwatch/apwatch/types"
)

// Record is the persistent per-BSSID state owned by the Store. The
// baseline fields are the trusted reference set on first sighting and
// changed only through an explicit rebaseline.
type Record struct {
	BSSID              string              `json:"bssid"`
	FirstSeen          time.Time           `json:"first_seen"`
	LastSeen           time.Time           `json:"last_seen"`
	BaselineSSID       string              `json:"baseline_ssid"`
	BaselineEncryption types.Encryption    `json:"baseline_encryption"`
	Recent             []types.Observation `json:"recent,omitempty"`
	Stale              bool                `json:"stale,omitempty"`
	StaleSince         time.Time           `json:"stale_since,omitempty"`
	AnomalyStreak      int                 `json:"anomaly_streak,omitempty"`
	AlertState         *types.AlertState   `json:"alert_state,omitempty"`
}

// Latest returns the most recent observation, or nil if none recorded.
func (r *Record) Latest() *types.Observation {
	if len(r.Recent) == 0 {
		return nil
	}
	return &r.Recent[len(r.Recent)-1]
}

// MeanSignal returns the mean signal strength over recorded
// observations. The second return value is false when no history exists.
func (r *Record) MeanSignal() (float64, bool) {
	if len(r.Recent) == 0 {
		return 0, false
	}
	sum := 0
	for _, obs := range r.Recent {
		sum += obs.SignalDBM
	}
	return float64(sum) / float64(len(r.Recent)), true
}

// clone returns a deep copy so callers can never mutate store-owned state.
func (r *Record) clone() *Record {
	cp := *r
	if r.Recent != nil {
		cp.Recent = make([]types.Observation, len(r.Recent))
		copy(cp.Recent, r.Recent)
	}
	if r.AlertState != nil {
		state := *r.AlertState
		cp.AlertState = &state
	}
	return &cp
}
