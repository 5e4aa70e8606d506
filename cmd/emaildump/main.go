// Command emaildump copies bank alert e-mails from Gmail into an mbox file.
// The file can be replayed with the mbox reader, which makes it useful for
// collecting test fixtures and for backfilling the ledger.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"os"
	"time"

	"github.com/emersion/go-mbox"
	"github.com/spf13/cobra"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/ArionMiles/txnwatch/pkg/client"
	"github.com/ArionMiles/txnwatch/pkg/config"
	"github.com/ArionMiles/txnwatch/pkg/logging"
)

// defaultQuery matches alerts whether or not they have been read.
const defaultQuery = "debited OR credited OR spent"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configFile string
		envFile    string
		query      string
		output     string
		limit      int64
	)

	cmd := &cobra.Command{
		Use:          "emaildump",
		Short:        "Copy bank alert e-mails from Gmail into an mbox file",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, envFile)
			if err != nil {
				return err
			}
			logger := logging.Setup(logging.FromValues(cfg.LogLevel, cfg.LogFormat))

			httpClient, err := client.New(client.Config{
				SecretFile: cfg.SecretsFile,
				TokenFile:  cfg.TokenFile,
				Logger:     logger,
			}, gmailapi.GmailReadonlyScope)
			if err != nil {
				return fmt.Errorf("creating http client: %w", err)
			}

			svc, err := gmailapi.NewService(cmd.Context(), option.WithHTTPClient(httpClient))
			if err != nil {
				return fmt.Errorf("creating gmail service: %w", err)
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			count, err := dump(cmd.Context(), svc, query, limit, f, logger)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}

			logger.Info("email dump complete", "messages", count, "file", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "config", config.DefaultConfigFile, "JSON config file, skipped if missing")
	cmd.Flags().StringVar(&envFile, "env-file", config.DefaultEnvFile, "dotenv file, skipped if missing")
	cmd.Flags().StringVarP(&query, "query", "q", defaultQuery, "Gmail search query")
	cmd.Flags().StringVarP(&output, "output", "o", "alerts.mbox", "mbox file to write")
	cmd.Flags().Int64VarP(&limit, "limit", "n", 50, "maximum number of messages")
	return cmd
}

// dump writes up to limit messages matching query to w in mbox format and
// returns how many were written. Messages that cannot be fetched are skipped.
func dump(ctx context.Context, svc *gmailapi.Service, query string, limit int64, w io.Writer, logger *slog.Logger) (int, error) {
	resp, err := svc.Users.Messages.List("me").Q(query).MaxResults(limit).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("listing messages: %w", err)
	}

	mw := mbox.NewWriter(w)
	count := 0
	for _, m := range resp.Messages {
		msg, err := svc.Users.Messages.Get("me", m.Id).Format("raw").Context(ctx).Do()
		if err != nil {
			logger.Warn("failed to fetch message", "message_id", m.Id, "error", err)
			continue
		}

		raw, err := decodeRaw(msg.Raw)
		if err != nil {
			logger.Warn("failed to decode message", "message_id", m.Id, "error", err)
			continue
		}

		entry, err := mw.CreateMessage(envelopeSender(raw), time.UnixMilli(msg.InternalDate))
		if err != nil {
			return count, fmt.Errorf("writing mbox: %w", err)
		}
		if _, err := entry.Write(raw); err != nil {
			return count, fmt.Errorf("writing mbox: %w", err)
		}
		count++
		logger.Debug("dumped message", "message_id", m.Id)
	}

	if err := mw.Close(); err != nil {
		return count, fmt.Errorf("writing mbox: %w", err)
	}
	return count, nil
}

// decodeRaw accepts the base64url RFC 822 message with or without padding.
func decodeRaw(s string) ([]byte, error) {
	if b, err := base64.URLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}

// envelopeSender returns the address in the From header for the mbox "From "
// line.
func envelopeSender(raw []byte) string {
	m, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return "MAILER-DAEMON"
	}
	addr, err := mail.ParseAddress(m.Header.Get("From"))
	if err != nil {
		return "MAILER-DAEMON"
	}
	return addr.Address
}
