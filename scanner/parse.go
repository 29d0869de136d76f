package scanner

import (
	"regexp"
	"strconv"
	"strings"
)

// Scan-output line patterns for iw and iwlist.
var (
	iwBSSRe        = regexp.MustCompile(`^BSS ([0-9a-fA-F:]{17})`)
	iwSignalRe     = regexp.MustCompile(`signal:\s*(-?\d+)(?:\.\d+)?\s*dBm`)
	iwChannelRe    = regexp.MustCompile(`DS Parameter set: channel (\d+)`)
	iwlistCellRe   = regexp.MustCompile(`Cell \d+ - Address: ([0-9a-fA-F:]{17})`)
	iwlistESSIDRe  = regexp.MustCompile(`ESSID:"(.*)"`)
	iwlistSignalRe = regexp.MustCompile(`Signal level[=:]\s*(-?\d+)\s*dBm`)
	iwlistChanRe   = regexp.MustCompile(`Channel[:=](\d+)`)
)

// ParseIWOutput parses the output of `iw dev <iface> scan` into raw
// entries. Unrecognized lines are skipped; a BSS block without a signal
// line still yields an entry.
func ParseIWOutput(out string) []RawEntry {
	var entries []RawEntry
	var current *RawEntry

	for _, line := range strings.Split(out, "\n") {
		if m := iwBSSRe.FindStringSubmatch(line); m != nil {
			if current != nil {
				entries = append(entries, *current)
			}
			current = &RawEntry{BSSID: m[1]}
			continue
		}
		if current == nil {
			continue
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "SSID:"):
			current.SSID = strings.TrimSpace(strings.TrimPrefix(trimmed, "SSID:"))
		case strings.HasPrefix(trimmed, "RSN:"), strings.HasPrefix(trimmed, "WPA:"):
			appendSecurity(current, strings.TrimSuffix(strings.Fields(trimmed)[0], ":"))
		case strings.Contains(trimmed, "Authentication suites:"):
			appendSecurity(current, trimmed)
		default:
			if m := iwSignalRe.FindStringSubmatch(trimmed); m != nil {
				current.SignalDBM, _ = strconv.Atoi(m[1])
			} else if m := iwChannelRe.FindStringSubmatch(trimmed); m != nil {
				current.Channel, _ = strconv.Atoi(m[1])
			}
		}
	}

	if current != nil {
		entries = append(entries, *current)
	}
	return entries
}

// ParseIWListOutput parses the output of `iwlist <iface> scanning`.
func ParseIWListOutput(out string) []RawEntry {
	var entries []RawEntry
	var current *RawEntry
	encryptionOn := false

	flush := func() {
		if current == nil {
			return
		}
		// iwlist reports "Encryption key:on" with no protocol details
		// on some drivers. Record the bare fact so normalization does
		// not mistake the network for open.
		if encryptionOn && current.Security == "" {
			current.Security = "Encryption key:on"
		}
		entries = append(entries, *current)
	}

	for _, line := range strings.Split(out, "\n") {
		if m := iwlistCellRe.FindStringSubmatch(line); m != nil {
			flush()
			current = &RawEntry{BSSID: m[1]}
			encryptionOn = false
			continue
		}
		if current == nil {
			continue
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "IE:"):
			appendSecurity(current, strings.TrimSpace(strings.TrimPrefix(trimmed, "IE:")))
		case strings.Contains(trimmed, "Encryption key:on"):
			encryptionOn = true
		case strings.Contains(trimmed, "Encryption key:off"):
			current.Security = "Encryption key:off"
		default:
			if m := iwlistESSIDRe.FindStringSubmatch(trimmed); m != nil {
				current.SSID = m[1]
			} else if m := iwlistSignalRe.FindStringSubmatch(trimmed); m != nil {
				current.SignalDBM, _ = strconv.Atoi(m[1])
			} else if m := iwlistChanRe.FindStringSubmatch(trimmed); m != nil {
				current.Channel, _ = strconv.Atoi(m[1])
			}
		}
	}

	flush()
	return entries
}

func appendSecurity(e *RawEntry, fragment string) {
	if fragment == "" {
		return
	}
	if e.Security == "" {
		e.Security = fragment
		return
	}
	e.Security += " " + fragment
}
