// Package scanner acquires raw Wi-Fi scan snapshots and normalizes them
// into canonical observations.
package scanner

import (
	"context"
)

// RawEntry is one access point as reported by the scanning tool, before
// any cleanup. Field contents are whatever the tool printed.
type RawEntry struct {
	BSSID     string
	SSID      string
	SignalDBM int
	Security  string
	Channel   int
}

// Scanner produces one raw snapshot per call. Implementations wrap an
// OS-level mechanism (iw, iwlist, a test fixture) and may block; callers
// apply their own timeout through ctx.
type Scanner interface {
	Scan(ctx context.Context) ([]RawEntry, error)
}

// ScannerFunc adapts a function to the Scanner interface.
type ScannerFunc func(ctx context.Context) ([]RawEntry, error)

// Scan implements Scanner.
func (f ScannerFunc) Scan(ctx context.Context) ([]RawEntry, error) {
	return f(ctx)
}

// StaticScanner always returns the same snapshot. Used in tests and for
// replaying recorded environments.
type StaticScanner struct {
	Entries []RawEntry
	Err     error
}

// Scan implements Scanner.
func (s *StaticScanner) Scan(ctx context.Context) ([]RawEntry, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]RawEntry, len(s.Entries))
	copy(out, s.Entries)
	return out, nil
}
