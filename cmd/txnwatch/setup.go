package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/txnwatch/internal/plugins"
	"github.com/ArionMiles/txnwatch/pkg/client"
)

func newSetupCmd(opts *options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Authorize txnwatch to use Gmail and Google Sheets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "=== txnwatch setup ===")
			fmt.Fprintln(out)

			if _, err := os.Stat(cfg.SecretsFile); errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("credentials file not found: %s\n\nTo get your credentials:\n"+
					"1. Go to https://console.cloud.google.com/apis/credentials\n"+
					"2. Create an OAuth 2.0 Client ID (Desktop application)\n"+
					"3. Download the JSON file and save it as '%s'", cfg.SecretsFile, cfg.SecretsFile)
			}

			if !force {
				if _, err := os.Stat(cfg.TokenFile); err == nil {
					fmt.Fprintf(out, "Already authenticated! Token file exists: %s\n\n", cfg.TokenFile)
					fmt.Fprintln(out, "To re-authenticate, run: txnwatch setup --force")
					return nil
				}
			} else {
				if err := os.Remove(cfg.TokenFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
					logger.Warn("failed to remove existing token", "error", err)
				}
				fmt.Fprintln(out, "Forcing re-authentication...")
				fmt.Fprintln(out)
			}

			scopes, err := allScopes(plugins.Default())
			if err != nil {
				return err
			}

			fmt.Fprintln(out, "Requested permissions:")
			for _, s := range scopes {
				fmt.Fprintf(out, "  - %s\n", s)
			}
			fmt.Fprintln(out)

			_, err = client.New(client.Config{
				SecretFile: cfg.SecretsFile,
				TokenFile:  cfg.TokenFile,
				Out:        out,
				Logger:     slog.Default().With("component", "oauth"),
			}, scopes...)
			if err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "=== Setup complete ===")
			fmt.Fprintf(out, "Token saved to: %s\n\n", cfg.TokenFile)
			fmt.Fprintln(out, "Next: set TXNWATCH_READERS=gmail and run 'txnwatch run'.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "discard the cached token and authenticate again")
	return cmd
}

// allScopes returns the OAuth scopes of every registered plugin.
func allScopes(r *plugins.Registry) ([]string, error) {
	var readers, writers []string
	for _, p := range r.ListReaders() {
		readers = append(readers, p.Name())
	}
	for _, p := range r.ListWriters() {
		writers = append(writers, p.Name())
	}
	return r.Scopes(readers, writers)
}
