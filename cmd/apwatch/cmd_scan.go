package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/apwatch/apwatch/scanner"
	"github.com/apwatch/apwatch/telemetry"
	"github.com/apwatch/apwatch/types"
)

var (
	scanOutput  string
	scanTimeout time.Duration
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single scan and print the visible access points",
	Long: `Run one scan of the wireless interface and print every visible
access point with its normalized BSSID, SSID, encryption, channel and
signal level. Nothing is stored and no alerts are raised; this is the
quick way to see what apwatch sees.`,
	Example: `  apwatch scan --interface wlan0      # Table of visible APs
  apwatch scan -i wlan0 -o json       # JSON output
  apwatch scan -i wlan0 --timeout 15s # Slow hardware`,
	RunE: runScanOnce,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "table", "Output format: table, json")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 10*time.Second, "Scan timeout")
}

func runScanOnce(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	validOutputs := []string{"table", "json"}
	if !contains(validOutputs, scanOutput) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)",
			scanOutput, strings.Join(validOutputs, ", "))
	}

	logger := telemetry.NewLogger("apwatch")
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	raw, err := scanner.NewIWScanner(cfg.Scan.Interface, logger.Logger).Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	snapshot, warnings := scanner.NewNormalizer().Normalize(raw, time.Now())
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s: %s\n", w.BSSID, w.Reason)
	}

	switch scanOutput {
	case "json":
		return printJSON(os.Stdout, snapshot)
	default:
		return printTable(os.Stdout, snapshot)
	}
}

func printJSON(out io.Writer, snapshot []types.Observation) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(snapshot)
}

func printTable(out io.Writer, snapshot []types.Observation) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BSSID\tSSID\tENCRYPTION\tCHANNEL\tSIGNAL")
	for _, obs := range snapshot {
		ssid := obs.SSID
		if ssid == "" {
			ssid = "<hidden>"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d dBm\n",
			obs.BSSID, ssid, obs.Encryption, obs.Channel, obs.SignalDBM)
	}
	return w.Flush()
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
