package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/txnwatch/internal/server"
	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/caps"
	"github.com/ArionMiles/txnwatch/pkg/export"
)

// SourceCLI is the message source recorded for messages passed to 'txnwatch ingest'.
const SourceCLI = "cli"

func newIngestCmd(opts *options) *cobra.Command {
	var (
		sender string
		at     string
	)

	cmd := &cobra.Command{
		Use:   "ingest [body]",
		Short: "Run one message through the pipeline",
		Long:  "Run one alert body through the pipeline. The body is read from stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := messageBody(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			observedAt := time.Now()
			if at != "" {
				observedAt, err = time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}

			engine, _, closeStore, err := opts.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			res, err := engine.Pipeline.Ingest(cmd.Context(), api.Message{
				Sender:     sender,
				Body:       body,
				ObservedAt: observedAt,
				Source:     SourceCLI,
			})
			if err != nil {
				return err
			}
			if res.Alert != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", caps.Title(*res.Alert), caps.Message(*res.Alert))
			}

			return printJSON(cmd.OutOrStdout(), server.IngestResponse{
				Outcome:     res.Outcome,
				Transaction: res.Transaction,
				Entry:       res.Entry,
				Alert:       res.Alert,
			})
		},
	}

	cmd.Flags().StringVar(&sender, "sender", "", "sender ID of the alert, such as VM-HDFCBK")
	cmd.Flags().StringVar(&at, "at", "", "time the alert was received (RFC 3339), defaults to now")
	return cmd
}

func messageBody(stdin io.Reader, args []string) (string, error) {
	body := ""
	if len(args) == 1 {
		body = args[0]
	} else {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		body = string(data)
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return "", errors.New("message body is empty")
	}
	return body, nil
}

func newCategorizeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "categorize <id> <category>",
		Short: "Assign a category to a pending transaction",
		Long: "Assign a category to a ledger entry. The choice is remembered for the merchant, so its\n" +
			"future transactions are categorized automatically.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, category := args[0], strings.TrimSpace(args[1])
			if category == "" {
				return errors.New("category is required")
			}

			engine, _, closeStore, err := opts.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			ok, err := engine.Pipeline.AssignCategory(cmd.Context(), id, category)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("transaction %s not found", id)
			}

			entry, err := engine.Ledger.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s -> %s\n", entry.ID, entry.Amount, entry.Merchant, entry.Category)
			return nil
		},
	}
}

func newTransactionsCmd(opts *options) *cobra.Command {
	var (
		pending  bool
		category string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"ls"},
		Short:   "List ledger entries",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, _, closeStore, err := opts.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			entries, err := engine.Ledger.Entries(cmd.Context())
			if err != nil {
				return err
			}

			filter := export.Filter{Category: category}
			shown := make([]api.LedgerEntry, 0, len(entries))
			for _, e := range entries {
				if pending && e.IsCategorized {
					continue
				}
				if filter.Match(e) {
					shown = append(shown, e)
				}
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), server.TransactionsResponse{Transactions: shown, Total: len(shown)})
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tAMOUNT\tMERCHANT\tCATEGORY")
			for _, e := range shown {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.ObservedAt.Format(time.DateTime), e.Amount, e.Merchant, e.Category)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&pending, "pending", false, "only show entries awaiting a category")
	cmd.Flags().StringVar(&category, "category", "", "only show entries in this category")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
