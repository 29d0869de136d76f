package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/apwatch/apwatch/history"
	"github.com/apwatch/apwatch/wal"
)

var (
	cleanupKeepRevisions int64
	cleanupJournalDays   int
)

// cleanupCmd represents the cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Compact stored history and prune old journal files",
	Long: `Compact the history store and remove journal files past the
retention window. The daemon must not be running; cleanup takes
exclusive ownership of the on-disk state.`,
	Example: `  apwatch cleanup                       # Default retention
  apwatch cleanup --keep-revisions 500  # Keep more observation history
  apwatch cleanup --journal-days 7      # Shorter journal retention`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().Int64Var(&cleanupKeepRevisions, "keep-revisions", 1000, "Observation revisions to keep in the store")
	cleanupCmd.Flags().IntVar(&cleanupJournalDays, "journal-days", 0, "Journal retention in days (overrides default)")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfigForStore()
	if err != nil {
		return err
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

	if err := store.Compact(cleanupKeepRevisions); err != nil {
		return fmt.Errorf("compaction failed: %w", err)
	}
	fmt.Printf("Compacted store, %d APs tracked, revision %d\n",
		store.Count(), store.CurrentRevision())

	walConfig := wal.DefaultConfig()
	if cleanupJournalDays > 0 {
		walConfig.RetentionDays = cleanupJournalDays
	}

	stats, err := wal.CleanupWithStats(cfg.Storage.WALDir, walConfig)
	if err != nil {
		return fmt.Errorf("journal cleanup failed: %w", err)
	}
	fmt.Printf("Removed %d journal files, freed %d bytes\n",
		stats.FilesRemoved, stats.BytesFreed)
	return nil
}
