// coinsync polls CoinGecko for prices, records newly seen top coins in a
// tabular store, and serves the catalog over HTTP.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/seenimoa/coinsync/internal/app"
	"github.com/seenimoa/coinsync/internal/config"
	"github.com/seenimoa/coinsync/pkg/logger"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var (
	cfg *config.Config
	log zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "coinsync",
	Short: "coinsync — crypto price poller and coin catalog",
	Long: `coinsync keeps an in-memory cache of USD prices for tracked coins,
records newly seen top-market-cap coins in Airtable (or PostgreSQL),
and serves the catalog with the freshest prices over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Logging.Level = level
		}
		log = logger.NewWithConfig(logger.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func buildApp(ctx context.Context) (*app.App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return app.New(ctx, cfg, log, version)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("coinsync %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server + background jobs) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the price refresher, catalog sync and HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if runSync, _ := cmd.Flags().GetBool("sync-on-start"); runSync {
			if _, err := a.Catalog.Sync(ctx); err != nil {
				log.Warn().Err(err).Msg("initial catalog sync failed")
			}
		}

		log.Info().
			Str("addr", cfg.Server.Addr()).
			Dur("refresh_every", cfg.Schedule.RefreshInterval).
			Dur("sync_every", cfg.Schedule.SyncInterval).
			Msg("starting coinsync")
		return a.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().Bool("sync-on-start", false, "run one catalog sync before the first interval elapses")
}

// --- Refresh Command ---

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh prices of tracked coins once and print them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Refresher.Refresh(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Updated %d prices\n", n)
		return printJSON(a.Cache.Snapshot())
	},
}

// --- Sync Command ---

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Record newly seen top coins once and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Catalog.Sync(ctx)
		if err != nil {
			return err
		}
		if err := printJSON(report); err != nil {
			return err
		}
		if len(report.Failed) > 0 {
			return fmt.Errorf("%d of %d coins failed to sync", len(report.Failed), report.Fetched)
		}
		return nil
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and credential status",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  coinsync — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Store:         %s (coins: %q, data: %q, view: %q)\n",
			cfg.Store.Backend, cfg.Store.CoinsTable, cfg.Store.DataTable, cfg.Store.View)
		fmt.Printf("    Seen set:      %s\n", cfg.Seen.Backend)
		fmt.Printf("    Price API:     %s\n", cfg.CoinGecko.BaseURL)
		fmt.Printf("    Schedule:      refresh every %s, sync top %d every %s\n",
			cfg.Schedule.RefreshInterval, cfg.Schedule.TopN, cfg.Schedule.SyncInterval)
		fmt.Printf("    API Server:    %s\n", cfg.Server.Addr())
		fmt.Println()

		fmt.Println("  Credentials:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		if err := cfg.Validate(); err != nil {
			fmt.Printf("\n  ⚠️  %v\n", err)
		}
		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
