package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/apwatch/apwatch/wal"
)

var (
	replaySince time.Duration
	replayType  string
	replayBSSID string
)

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay the journal of observations, changes and verdicts",
	Long: `Replay the on-disk journal and print every recorded entry as a
JSON line. The journal records what apwatch saw, what changed, what it
decided, and what it delivered, so replay answers "why did this alert
fire" and "what did the airspace look like last night".`,
	Example: `  apwatch replay                          # Everything retained
  apwatch replay --since 24h              # Last day only
  apwatch replay --type verdict           # Only classification verdicts
  apwatch replay --bssid AA:BB:CC:DD:EE:FF`,
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().DurationVar(&replaySince, "since", 0, "Only entries newer than this age (e.g. 24h)")
	replayCmd.Flags().StringVar(&replayType, "type", "", "Filter by entry type (observed, change, verdict, alerted, rebaselined, skipped)")
	replayCmd.Flags().StringVar(&replayBSSID, "bssid", "", "Filter by BSSID")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfigForStore()
	if err != nil {
		return err
	}

	var since time.Time
	if replaySince > 0 {
		since = time.Now().Add(-replaySince)
	}

	count := 0
	enc := json.NewEncoder(os.Stdout)
	err = wal.Replay(cfg.Storage.WALDir, wal.DefaultConfig(), since, func(entry *wal.Entry) error {
		if replayType != "" && string(entry.Type) != replayType {
			return nil
		}
		if replayBSSID != "" && entry.BSSID != replayBSSID {
			return nil
		}
		count++
		return enc.Encode(entry)
	})
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "%d entries\n", count)
	return nil
}
