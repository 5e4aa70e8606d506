package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/txnwatch/internal/daemon"
	"github.com/ArionMiles/txnwatch/internal/plugins"
	"github.com/ArionMiles/txnwatch/pkg/client"
)

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the daemon",
		Long: "Run the configured readers (TXNWATCH_READERS) through the pipeline, fan events\n" +
			"out to the configured writers (TXNWATCH_WRITERS) and serve the HTTP API on HTTP_ADDR.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			engine, cfg, closeStore, err := opts.engine(ctx)
			if err != nil {
				return err
			}
			defer closeStore()
			logger := slog.Default()

			registry := plugins.Default()
			scopes, err := registry.Scopes(cfg.ReaderNames(), cfg.WriterNames())
			if err != nil {
				return err
			}

			var httpClient *http.Client
			if len(scopes) > 0 {
				httpClient, err = client.New(client.Config{
					SecretFile: cfg.SecretsFile,
					TokenFile:  cfg.TokenFile,
					Logger:     logger.With("component", "oauth"),
				}, scopes...)
				if err != nil {
					return fmt.Errorf("creating http client: %w", err)
				}
			}

			return daemon.New(registry, httpClient, logger).Run(ctx, cfg, engine)
		},
	}
}

func newPluginsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List the available readers and writers",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			registry := plugins.Default()
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Readers:")
			for _, p := range registry.ListReaders() {
				fmt.Fprintf(out, "  %-8s %s\n", p.Name(), p.Description())
			}
			fmt.Fprintln(out, "Writers:")
			for _, p := range registry.ListWriters() {
				fmt.Fprintf(out, "  %-8s %s\n", p.Name(), p.Description())
			}
		},
	}
}
