package types

import (
	"fmt"
	"strings"
	"time"
)

// Plausible signal bounds in dBm. Anything outside is scanner noise
// and gets clamped during normalization.
const (
	MinSignalDBM = -120
	MaxSignalDBM = 0
)

// Observation is a single access point sighting from one scan cycle.
type Observation struct {
	BSSID      string     `json:"bssid"`
	SSID       string     `json:"ssid"`
	SignalDBM  int        `json:"signal_dbm"`
	Encryption Encryption `json:"encryption"`
	Channel    int        `json:"channel,omitempty"`
	ObservedAt time.Time  `json:"observed_at"`
}

// Hidden reports whether the AP broadcasts no network name.
func (o *Observation) Hidden() bool {
	return o.SSID == ""
}

// NormalizeBSSID canonicalizes a MAC address to uppercase colon-separated
// form (AA:BB:CC:DD:EE:FF). Accepts colon, dash, dot separators or bare
// hex. Returns an error for anything that is not 6 bytes of hex.
func NormalizeBSSID(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		case r >= 'a' && r <= 'f':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'F':
			return r
		case r == ':' || r == '-' || r == '.':
			return -1
		default:
			return 'x' // poison invalid characters
		}
	}, strings.TrimSpace(raw))

	if len(cleaned) != 12 || strings.ContainsRune(cleaned, 'x') {
		return "", fmt.Errorf("invalid MAC address %q", raw)
	}

	var b strings.Builder
	b.Grow(17)
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(cleaned[i : i+2])
	}
	return b.String(), nil
}

// ClampSignal forces a reported signal level into plausible dBm bounds.
// The second return value reports whether clamping happened.
func ClampSignal(dbm int) (int, bool) {
	if dbm < MinSignalDBM {
		return MinSignalDBM, true
	}
	if dbm > MaxSignalDBM {
		return MaxSignalDBM, true
	}
	return dbm, false
}
