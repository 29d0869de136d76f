package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/apwatch/apwatch/history"
	"github.com/apwatch/apwatch/types"
)

// rebaselineCmd represents the rebaseline command
var rebaselineCmd = &cobra.Command{
	Use:   "rebaseline <bssid>",
	Short: "Accept an AP's current identity as its new trusted baseline",
	Long: `Reset one AP's trusted baseline to its most recent observation.

Use this after a deliberate change: an SSID rename, an encryption
upgrade, or a known AP replacement. The AP's alert suppression state is
cleared, so any future drift from the new baseline alerts again.

The daemon must not be running: this edits the store directly. Against
a running daemon use POST /-/rebaseline on the control port instead.`,
	Example: `  apwatch rebaseline AA:BB:CC:DD:EE:FF
  apwatch rebaseline aa-bb-cc-dd-ee-ff --storage /var/lib/apwatch`,
	Args: cobra.ExactArgs(1),
	RunE: runRebaseline,
}

var rebaselineStorage string

func init() {
	rootCmd.AddCommand(rebaselineCmd)

	rebaselineCmd.Flags().StringVar(&rebaselineStorage, "storage", "", "Storage directory (overrides config)")
}

func runRebaseline(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfigForStore()
	if err != nil {
		return err
	}
	if rebaselineStorage != "" {
		cfg.Storage.Dir = rebaselineStorage
	}

	bssid, err := types.NormalizeBSSID(args[0])
	if err != nil {
		return fmt.Errorf("invalid BSSID %q: %w", args[0], err)
	}

	store, err := history.Open(cfg.Storage.Dir, history.Options{
		HistoryWindow: cfg.History.Window,
		StaleAfter:    cfg.History.StaleAfter,
		RetainFor:     cfg.History.RetainFor,
	})
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer func() { _ = store.Close() }()

	rec, err := store.Rebaseline(bssid)
	if err != nil {
		return err
	}

	ssid := rec.BaselineSSID
	if ssid == "" {
		ssid = "<hidden>"
	}
	fmt.Printf("Rebaselined %s: ssid=%s encryption=%s\n", bssid, ssid, rec.BaselineEncryption)
	return nil
}
