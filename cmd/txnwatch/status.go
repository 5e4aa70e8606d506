package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/txnwatch/internal/daemon"
	"github.com/ArionMiles/txnwatch/internal/plugins"
	"github.com/ArionMiles/txnwatch/pkg/client"
	"github.com/ArionMiles/txnwatch/pkg/config"
	"github.com/ArionMiles/txnwatch/pkg/labels"
)

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check configuration, storage and authentication",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := &statusCheck{out: cmd.OutOrStdout(), ok: true}

			fmt.Fprintln(s.out, "=== txnwatch status ===")
			fmt.Fprintln(s.out)

			cfg, ok := s.config(opts)
			if !ok {
				s.final()
				return nil
			}
			s.store(cmd.Context(), cfg)
			s.labels(cfg.SeedLabels)

			scopes, err := plugins.Default().Scopes(cfg.ReaderNames(), cfg.WriterNames())
			if err != nil {
				s.fail("Plugins", err)
			} else if len(scopes) > 0 {
				s.google(cmd.Context(), cfg, scopes)
			}

			s.final()
			return nil
		},
	}
}

type statusCheck struct {
	out io.Writer
	ok  bool
}

func (s *statusCheck) pass(label, detail string) {
	fmt.Fprintf(s.out, "%s: ✓ %s\n", label, detail)
}

func (s *statusCheck) fail(label string, err error) {
	fmt.Fprintf(s.out, "%s: ✗ %v\n", label, err)
	s.ok = false
}

func (s *statusCheck) config(opts *options) (config.Config, bool) {
	if _, err := os.Stat(opts.configFile); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(s.out, "Config file (%s): - not found, using environment only\n", opts.configFile)
	}

	cfg, err := config.Load(opts.configFile, opts.envFile)
	if err != nil {
		s.fail("Configuration", err)
		return cfg, false
	}
	s.pass("Configuration", fmt.Sprintf("store=%s readers=%v writers=%v", cfg.Store, cfg.ReaderNames(), cfg.WriterNames()))
	return cfg, true
}

func (s *statusCheck) store(ctx context.Context, cfg config.Config) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, closeStore, err := daemon.OpenStore(ctx, cfg, nil)
	defer closeStore()
	if err != nil {
		s.fail("Store", err)
		return
	}

	engine, err := daemon.NewEngine(ctx, st, daemon.EngineOptions{}, nil)
	if err != nil {
		s.fail("Store", err)
		return
	}
	entries, err := engine.Ledger.Entries(ctx)
	if err != nil {
		s.fail("Store", err)
		return
	}
	s.pass("Store", fmt.Sprintf("%s, %d ledger entries", cfg.Store, len(entries)))
}

func (s *statusCheck) labels(enabled bool) {
	seed, err := labels.DefaultSeed()
	if err != nil {
		s.fail("Built-in labels", err)
		return
	}
	if !enabled {
		s.pass("Built-in labels", fmt.Sprintf("%d merchants, not seeded (TXNWATCH_SEED_LABELS=false)", len(seed)))
		return
	}
	s.pass("Built-in labels", fmt.Sprintf("%d merchants, seeded on startup", len(seed)))
}

func (s *statusCheck) google(ctx context.Context, cfg config.Config, scopes []string) {
	if _, err := os.Stat(cfg.SecretsFile); err != nil {
		s.fail(fmt.Sprintf("Credentials file (%s)", cfg.SecretsFile), errors.New("not found"))
		return
	}
	s.pass(fmt.Sprintf("Credentials file (%s)", cfg.SecretsFile), "found")

	token, err := client.LoadToken(cfg.TokenFile)
	if err != nil {
		s.fail(fmt.Sprintf("OAuth token (%s)", cfg.TokenFile), errors.New("not found (run 'txnwatch setup')"))
		return
	}
	if token.Expiry.Before(time.Now()) {
		fmt.Fprintf(s.out, "OAuth token (%s): ⚠ expired (will refresh on next run)\n", cfg.TokenFile)
	} else {
		s.pass(fmt.Sprintf("OAuth token (%s)", cfg.TokenFile), "valid until "+token.Expiry.Format(time.RFC3339))
	}

	httpClient, err := client.New(client.Config{SecretFile: cfg.SecretsFile, TokenFile: cfg.TokenFile}, scopes...)
	if err != nil {
		s.fail("OAuth client", err)
		return
	}

	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "API connectivity:")
	for _, name := range cfg.ReaderNames() {
		if name == "gmail" {
			s.check("  Gmail API", pingGmail(ctx, httpClient))
		}
	}
	for _, name := range cfg.WriterNames() {
		if name == "sheets" {
			s.check("  Sheets API", pingSheets(ctx, httpClient, cfg.GSheetsID))
		}
	}
}

func (s *statusCheck) check(label string, err error) {
	if err != nil {
		s.fail(label, err)
		return
	}
	s.pass(label, "connected")
}

func (s *statusCheck) final() {
	fmt.Fprintln(s.out)
	if s.ok {
		fmt.Fprintln(s.out, "Status: ✓ ready to run")
		return
	}
	fmt.Fprintln(s.out, "Status: ✗ configuration issues detected")
	fmt.Fprintln(s.out, "Fix the issues above, then run 'txnwatch status' again.")
}

func pingGmail(ctx context.Context, httpClient *http.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}
	if _, err := svc.Users.Labels.List("me").Context(ctx).Do(); err != nil {
		return fmt.Errorf("API call failed: %w", err)
	}
	return nil
}

// pingSheets fetches the configured spreadsheet, or only builds the service
// when the sheet will be created by title on first run.
func pingSheets(ctx context.Context, httpClient *http.Client, sheetID string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	svc, err := sheetsapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}
	if sheetID == "" {
		return nil
	}
	if _, err := svc.Spreadsheets.Get(sheetID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("API call failed: %w", err)
	}
	return nil
}
