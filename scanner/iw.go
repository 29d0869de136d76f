package scanner

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"
)

// commandRunner abstracts process execution so parsers can be tested
// without a radio.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// IWScanner shells out to `iw dev <iface> scan`, falling back to
// `iwlist <iface> scanning` on hosts that only ship the legacy tool.
type IWScanner struct {
	iface  string
	runner commandRunner
	logger zerolog.Logger
}

// NewIWScanner creates a scanner for the given wireless interface.
func NewIWScanner(iface string, logger zerolog.Logger) *IWScanner {
	return &IWScanner{
		iface:  iface,
		runner: execRunner,
		logger: logger,
	}
}

// Scan implements Scanner.
func (s *IWScanner) Scan(ctx context.Context) ([]RawEntry, error) {
	out, err := s.runner(ctx, "iw", "dev", s.iface, "scan")
	if err == nil {
		return ParseIWOutput(string(out)), nil
	}

	s.logger.Debug().Err(err).Str("interface", s.iface).Msg("iw scan failed, trying iwlist")

	out, fallbackErr := s.runner(ctx, "iwlist", s.iface, "scanning")
	if fallbackErr != nil {
		return nil, fmt.Errorf("scan on %s failed: iw: %v, iwlist: %w", s.iface, err, fallbackErr)
	}
	return ParseIWListOutput(string(out)), nil
}
