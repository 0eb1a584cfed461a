package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tidbyt.dev/transit"
	"tidbyt.dev/transit/config"
	"tidbyt.dev/transit/metrics"
	"tidbyt.dev/transit/model"
	"tidbyt.dev/transit/storage"
)

var rootCmd = &cobra.Command{
	Use:               "transit",
	Short:             "Transit itinerary tool",
	Long:              "Imports transit networks and searches them for itineraries",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	configPath  string
	networkURL  string
	headers     []string
	backend     string
	directory   string
	postgresDSN string
	logLevel    string
	walkRadius  float64
)

// Populated by setup.
var (
	cfg     *config.Config
	logger  *slog.Logger
	store   storage.Storage
	manager *transit.Manager
	stats   *metrics.Metrics
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML config file")
	flags.StringVarP(&networkURL, "url", "u", "", "Network archive URL or path")
	flags.StringSliceVarP(&headers, "header", "", []string{}, "HTTP header for fetching the network, as <key>:<value>")
	flags.StringVarP(&backend, "backend", "", "", "Storage backend (memory, sqlite or postgres)")
	flags.StringVarP(&directory, "directory", "", "", "Directory for the sqlite database")
	flags.StringVarP(&postgresDSN, "postgres-dsn", "", "", "Postgres connection string")
	flags.StringVarP(&logLevel, "log-level", "", "", "Log level (debug, info, warn or error)")
	flags.Float64VarP(&walkRadius, "walk-radius", "", 0, "Generate walks between stops this many meters apart")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseHeaders(headers []string) (map[string]string, error) {
	parsed := map[string]string{}
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("'%s' is not on form <key>:<value>", header)
		}
		parsed[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return parsed, nil
}

// Loads config, applies flags on top and sets up logging, storage
// and the network manager.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.Network.URL = networkURL
	}
	if flags.Changed("backend") {
		cfg.Storage.Backend = backend
	}
	if flags.Changed("directory") {
		cfg.Storage.Directory = directory
	}
	if flags.Changed("postgres-dsn") {
		cfg.Storage.PostgresDSN = postgresDSN
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("walk-radius") {
		cfg.Walk.RadiusMeters = walkRadius
	}
	if flags.Changed("header") {
		parsed, err := parseHeaders(headers)
		if err != nil {
			return fmt.Errorf("invalid header: %w", err)
		}
		if cfg.Network.Headers == nil {
			cfg.Network.Headers = map[string]string{}
		}
		for k, v := range parsed {
			cfg.Network.Headers[k] = v
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(logger)

	switch cfg.Storage.Backend {
	case "memory":
		store = storage.NewMemoryStorage()
	case "sqlite":
		store, err = storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: true, Directory: cfg.Storage.Directory})
	case "postgres":
		store, err = storage.NewPSQLStorage(cfg.Storage.PostgresDSN, false)
	}
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}

	stats = metrics.New()

	manager = transit.NewManager(store)
	manager.RefreshInterval = cfg.Network.RefreshInterval
	manager.CacheTTL = cfg.Network.CacheTTL
	manager.WalkRadius = cfg.Walk.RadiusMeters
	manager.WalkSpeed = cfg.Walk.SpeedMPS
	manager.Logger = logger
	manager.Metrics = stats

	return nil
}

// Loads the configured network, importing it if it's missing or
// stale.
func loadNetwork(ctx context.Context) (*model.Network, *storage.NetworkMetadata, error) {
	if cfg.Network.URL == "" {
		return nil, nil, fmt.Errorf("network URL is required")
	}

	network, metadata, err := manager.RefreshAndLoad(ctx, cfg.Network.URL, cfg.Network.Headers)
	if err != nil {
		return nil, nil, fmt.Errorf("loading network: %w", err)
	}

	return network, metadata, nil
}
