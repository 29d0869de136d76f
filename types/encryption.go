package types

import "strings"

// Encryption identifies the strongest security protocol advertised by an AP.
type Encryption string

const (
	EncryptionOpen    Encryption = "OPEN"
	EncryptionWEP     Encryption = "WEP"
	EncryptionWPA     Encryption = "WPA"
	EncryptionWPA2    Encryption = "WPA2"
	EncryptionWPA3    Encryption = "WPA3"
	EncryptionUnknown Encryption = "UNKNOWN"
)

// ParseEncryption maps a scanner capability descriptor to an Encryption.
// Descriptors vary by tool: iw prints RSN/WPA blocks, iwlist prints
// "IE: IEEE 802.11i/WPA2" lines, nmcli prints "WPA2 WPA3". The strongest
// protocol mentioned wins.
func ParseEncryption(descriptor string) Encryption {
	d := strings.ToUpper(descriptor)

	switch {
	case strings.Contains(d, "WPA3") || strings.Contains(d, "SAE"):
		return EncryptionWPA3
	case strings.Contains(d, "WPA2") || strings.Contains(d, "RSN") || strings.Contains(d, "802.11I"):
		return EncryptionWPA2
	case strings.Contains(d, "WPA"):
		return EncryptionWPA
	case strings.Contains(d, "WEP"):
		return EncryptionWEP
	case d == "" || strings.Contains(d, "NONE") || strings.Contains(d, "OPEN") || strings.Contains(d, "OFF"):
		return EncryptionOpen
	default:
		return EncryptionUnknown
	}
}

// EncryptionRanks orders protocols by strength for downgrade detection.
// A transition from a higher rank to a lower rank is a downgrade.
type EncryptionRanks map[Encryption]int

// DefaultEncryptionRanks follows the conventional strength ordering.
// UNKNOWN is left out on purpose: transitions to or from UNKNOWN are
// never treated as downgrades.
func DefaultEncryptionRanks() EncryptionRanks {
	return EncryptionRanks{
		EncryptionOpen: 0,
		EncryptionWEP:  1,
		EncryptionWPA:  2,
		EncryptionWPA2: 3,
		EncryptionWPA3: 4,
	}
}

// IsDowngrade reports whether moving from previous to current lowers the
// protection rank. Unranked protocols never count.
func (r EncryptionRanks) IsDowngrade(previous, current Encryption) bool {
	prevRank, ok := r[previous]
	if !ok {
		return false
	}
	curRank, ok := r[current]
	if !ok {
		return false
	}
	return curRank < prevRank
}
