package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/apwatch/apwatch/config"
)

var (
	version = "0.1.0"

	cfgPath      string
	debug        bool
	watchedIface string

	rootCmd = &cobra.Command{
		Use:   "apwatch",
		Short: "Rogue Access Point Watchdog",
		Long: `Apwatch - Rogue Access Point Watchdog

Apwatch continuously scans the local wireless airspace, tracks every
access point it has seen, and raises an alert the moment an AP changes
identity, drops its encryption, or starts impersonating a network you
trust. First sight is trusted; everything after is compared against it.`,
		Version: version,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// init sets up the root command
func init() {
	rootCmd.SetVersionTemplate(`Apwatch {{.Version}} - Rogue Access Point Watchdog
`)
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&watchedIface, "interface", "i", "", "Wireless interface to scan")
}

// resolveConfig loads the config file when given, otherwise starts from
// defaults; the --interface flag wins over the file either way.
func resolveConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if cfgPath != "" {
		cfg, err = config.LoadConfig(cfgPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.DefaultConfig()
	}

	if watchedIface != "" {
		cfg.Scan.Interface = watchedIface
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveConfigForStore is resolveConfig without the interface
// requirement, for commands that only touch on-disk state.
func resolveConfigForStore() (*config.Config, error) {
	if cfgPath == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
