// Command txnwatch extracts transactions from bank alerts, categorizes them and
// tracks monthly spending caps.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/txnwatch/internal/daemon"
	"github.com/ArionMiles/txnwatch/pkg/config"
	"github.com/ArionMiles/txnwatch/pkg/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// options holds the persistent flags shared by every subcommand.
type options struct {
	configFile string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "txnwatch",
		Short: "Bank alert transaction tracker",
		Long: "txnwatch reads bank and payment alerts, extracts the transaction they describe,\n" +
			"remembers the category of every merchant and warns when a monthly cap is close.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", config.DefaultConfigFile, "JSON config file, skipped if missing")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", config.DefaultEnvFile, "dotenv file, skipped if missing")

	root.AddCommand(
		newRunCmd(opts),
		newSetupCmd(opts),
		newStatusCmd(opts),
		newPluginsCmd(),
		newIngestCmd(opts),
		newCategorizeCmd(opts),
		newTransactionsCmd(opts),
		newCapsCmd(opts),
		newProfileCmd(opts),
		newExportCmd(opts),
	)
	return root
}

// load reads the configuration and installs the configured default logger.
func (o *options) load() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configFile, o.envFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := logging.Setup(logging.FromValues(cfg.LogLevel, cfg.LogFormat))
	return cfg, logger, nil
}

// engine opens the configured store and builds the pipeline over it. The
// returned function closes the store.
func (o *options) engine(ctx context.Context) (*daemon.Engine, config.Config, func(), error) {
	cfg, logger, err := o.load()
	if err != nil {
		return nil, cfg, nil, err
	}

	st, closeStore, err := daemon.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, cfg, nil, err
	}

	engine, err := daemon.NewEngine(ctx, st, daemon.EngineOptions{SeedLabels: cfg.SeedLabels}, logger)
	if err != nil {
		closeStore()
		return nil, cfg, nil, fmt.Errorf("building engine: %w", err)
	}
	return engine, cfg, closeStore, nil
}
