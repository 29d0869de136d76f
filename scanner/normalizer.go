package scanner

import (
	"strings"
	"time"

	"github.com/apwatch/apwatch/types"
)

// Warning records a non-fatal normalization problem. Warnings are
// reported to the caller; the rest of the snapshot is unaffected.
type Warning struct {
	BSSID  string `json:"bssid,omitempty"`
	Reason string `json:"reason"`
}

// Normalizer converts raw scanner entries into canonical observations.
type Normalizer struct{}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize canonicalizes and deduplicates a raw snapshot. Entries with
// unparseable MAC addresses are dropped with a warning. Out-of-range
// signal levels are clamped with a warning. Duplicate BSSIDs within one
// snapshot are scanner noise: the later entry wins.
func (n *Normalizer) Normalize(raw []RawEntry, now time.Time) ([]types.Observation, []Warning) {
	var warnings []Warning
	byBSSID := make(map[string]int, len(raw))
	observations := make([]types.Observation, 0, len(raw))

	for _, entry := range raw {
		bssid, err := types.NormalizeBSSID(entry.BSSID)
		if err != nil {
			warnings = append(warnings, Warning{
				BSSID:  entry.BSSID,
				Reason: "unparseable MAC address, entry dropped",
			})
			continue
		}

		signal, clamped := types.ClampSignal(entry.SignalDBM)
		if clamped {
			warnings = append(warnings, Warning{
				BSSID:  bssid,
				Reason: "signal strength outside plausible range, clamped",
			})
		}

		obs := types.Observation{
			BSSID:      bssid,
			SSID:       strings.TrimSpace(entry.SSID),
			SignalDBM:  signal,
			Encryption: types.ParseEncryption(entry.Security),
			Channel:    entry.Channel,
			ObservedAt: now,
		}

		if idx, seen := byBSSID[bssid]; seen {
			observations[idx] = obs
			warnings = append(warnings, Warning{
				BSSID:  bssid,
				Reason: "duplicate BSSID in snapshot, later entry wins",
			})
			continue
		}

		byBSSID[bssid] = len(observations)
		observations = append(observations, obs)
	}

	return observations, warnings
}
