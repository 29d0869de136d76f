package diff

import "time"

// Kind categorizes detected changes.
type Kind string

const (
	// KindNewAP - a BSSID observed for the first time
	KindNewAP Kind = "new_ap"

	// KindVanishedAP - a known BSSID crossed the absence threshold
	KindVanishedAP Kind = "vanished_ap"

	// KindSSIDChanged - SSID differs from the trusted baseline
	KindSSIDChanged Kind = "ssid_changed"

	// KindEncryptionChanged - encryption differs from the trusted baseline
	KindEncryptionChanged Kind = "encryption_changed"

	// KindSignalAnomaly - signal deviates sharply from recent history
	KindSignalAnomaly Kind = "signal_anomaly"

	// KindSSIDCollision - a non-empty SSID broadcast by multiple BSSIDs
	KindSSIDCollision Kind = "ssid_collision"
)

// Change is one detected difference between the current snapshot and
// recorded history. Previous/Current carry the kind-specific before and
// after values rendered as strings.
type Change struct {
	Kind         Kind      `json:"kind"`
	BSSID        string    `json:"bssid"`
	SSID         string    `json:"ssid,omitempty"`
	RelatedBSSID string    `json:"related_bssid,omitempty"`
	Previous     string    `json:"previous,omitempty"`
	Current      string    `json:"current,omitempty"`
	Downgrade    bool      `json:"downgrade,omitempty"`
	NewlySeen    bool      `json:"newly_seen,omitempty"`
	Streak       int       `json:"streak,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Details      string    `json:"details"`
}
