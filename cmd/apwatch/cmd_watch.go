package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/apwatch/apwatch/alert"
	"github.com/apwatch/apwatch/classify"
	"github.com/apwatch/apwatch/config"
	"github.com/apwatch/apwatch/diff"
	"github.com/apwatch/apwatch/history"
	"github.com/apwatch/apwatch/monitor"
	"github.com/apwatch/apwatch/scanner"
	"github.com/apwatch/apwatch/telemetry"
	"github.com/apwatch/apwatch/trust"
	"github.com/apwatch/apwatch/wal"
)

var (
	watchInterval time.Duration
	watchListen   string
	watchStorage  string
	watchOnce     bool
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the continuous airspace monitoring daemon",
	Long: `Run apwatch in daemon mode for continuous airspace monitoring.

The daemon scans the wireless interface at a fixed interval, diffs every
snapshot against recorded AP history, classifies changes through the
rogue rule table, and delivers verdicts to the configured alert sinks.

Features:
- Fixed-interval scan loop, cycles never overlap
- First-seen baselines with per-AP history in bbolt
- Prometheus metrics on /metrics, health on /health
- Baseline reset via POST /-/rebaseline
- Graceful shutdown on SIGTERM/SIGINT`,
	Example: `  apwatch watch --interface wlan0            # Watch wlan0 with defaults
  apwatch watch -i wlan0 --interval 30s      # Scan every 30 seconds
  apwatch watch -i wlan0 --once              # One cycle, then exit
  apwatch watch -c /etc/apwatch/apwatch.yaml # Full config file
  apwatch watch -i wlan0 --listen :9464      # Custom metrics address`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Scan interval (overrides config)")
	watchCmd.Flags().StringVar(&watchListen, "listen", "", "Metrics/control server address (overrides config)")
	watchCmd.Flags().StringVar(&watchStorage, "storage", "", "Storage directory (overrides config)")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Run one cycle and exit")
}

func runWatch(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	if watchInterval > 0 {
		cfg.Scan.Interval = watchInterval
	}
	if watchListen != "" {
		cfg.Telemetry.ListenAddr = watchListen
	}
	if watchStorage != "" {
		cfg.Storage.Dir = watchStorage
		cfg.Storage.WALDir = watchStorage + "/wal"
	}

	ctx := context.Background()
	logger := telemetry.NewLogger("apwatch")

	shutdown, err := telemetry.InitOTEL(ctx, telemetry.Config{
		ServiceName:    "apwatch",
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		OTELEndpoint:   cfg.Telemetry.OTELEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	engine, cleanup, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info().
		Str("interface", cfg.Scan.Interface).
		Dur("interval", cfg.Scan.Interval).
		Str("storage", cfg.Storage.Dir).
		Str("listen", cfg.Telemetry.ListenAddr).
		Bool("once", watchOnce).
		Msg("apwatch starting")

	if watchOnce {
		report, err := engine.RunCycle(ctx, time.Now())
		if err != nil {
			return err
		}
		logger.Info().
			Int("aps_observed", report.Observed).
			Int("changes", report.Changes).
			Int("verdicts", report.Verdicts).
			Msg("one cycle complete")
		return nil
	}

	daemon := monitor.NewDaemon(engine, cfg.Scan.Interval, cfg.Telemetry.ListenAddr, logger)
	return daemon.Run(ctx)
}

// buildEngine assembles the cycle engine from config. The returned
// cleanup closes the store, journal and sink in reverse order.
func buildEngine(ctx context.Context, cfg *config.Config, logger *telemetry.Logger) (*monitor.Engine, func(), error) {
	store, err := history.Open(cfg.Storage.Dir, history.Options{
		HistoryWindow: cfg.History.Window,
		StaleAfter:    cfg.History.StaleAfter,
		RetainFor:     cfg.History.RetainFor,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history store: %w", err)
	}

	journal, err := wal.Open(cfg.Storage.WALDir, wal.DefaultConfig())
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to open journal: %w", err)
	}

	trustEngine := trust.NewEngine(logger.Logger)
	if cfg.Policy.Dir != "" {
		if err := trustEngine.LoadDir(ctx, cfg.Policy.Dir); err != nil {
			_ = journal.Close()
			_ = store.Close()
			return nil, nil, fmt.Errorf("failed to load trust policies: %w", err)
		}
	}

	sink, err := buildSink(cfg, logger)
	if err != nil {
		_ = journal.Close()
		_ = store.Close()
		return nil, nil, err
	}

	engine := monitor.NewEngine(monitor.Deps{
		Scanner:    scanner.NewIWScanner(cfg.Scan.Interface, logger.Logger),
		Normalizer: scanner.NewNormalizer(),
		Store:      store,
		Differ: diff.NewEngine(store, diff.Options{
			SignalThresholdDBM: float64(cfg.Detect.SignalThresholdDBM),
			Ranks:              cfg.Detect.Ranks(),
		}, logger.Logger),
		Classifier: classify.New(store, classify.Options{
			EscalateAfter: cfg.Detect.EscalateAfter,
		}, logger.Logger),
		Trust:       trustEngine,
		Sink:        sink,
		Journal:     journal,
		Logger:      logger,
		ScanTimeout: cfg.Scan.Timeout,
	})

	cleanup := func() {
		_ = sink.Close()
		_ = journal.Close()
		_ = store.Close()
	}
	return engine, cleanup, nil
}

// buildSink wires the configured alert sinks behind an async queue so
// slow delivery never delays the scan loop.
func buildSink(cfg *config.Config, logger *telemetry.Logger) (alert.Sink, error) {
	var sinks []alert.Sink

	if cfg.Alerts.Log {
		sinks = append(sinks, alert.NewLogSink(logger.Logger))
	}
	if cfg.Alerts.File != "" {
		fileSink, err := alert.NewFileSink(cfg.Alerts.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open alert file: %w", err)
		}
		sinks = append(sinks, fileSink)
	}
	if cfg.Alerts.WebhookURL != "" {
		sinks = append(sinks, alert.NewWebhookSink(cfg.Alerts.WebhookURL, cfg.Alerts.Timeout))
	}
	if len(sinks) == 0 {
		sinks = append(sinks, alert.NewLogSink(logger.Logger))
	}

	return alert.NewAsyncSink(alert.NewMultiSink(sinks...), cfg.Alerts.QueueSize, logger.Logger), nil
}
