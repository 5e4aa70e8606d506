package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/export"
)

func newExportCmd(opts *options) *cobra.Command {
	var (
		format   string
		from     string
		to       string
		category string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the ledger as CSV or an Excel workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var write func(io.Writer, []api.LedgerEntry, export.Filter) error
			switch format {
			case "csv":
				write = export.CSV
			case "xlsx":
				write = export.XLSX
			default:
				return fmt.Errorf("unknown format %q (want csv or xlsx)", format)
			}
			if format == "xlsx" && output == "" {
				return fmt.Errorf("xlsx export needs --output")
			}

			filter, err := parseFilter(from, to, category)
			if err != nil {
				return err
			}

			engine, _, closeStore, err := opts.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			entries, err := engine.Ledger.Entries(cmd.Context())
			if err != nil {
				return err
			}

			if output == "" {
				return write(cmd.OutOrStdout(), entries, filter)
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			if err := write(f, entries, filter); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "csv or xlsx")
	cmd.Flags().StringVar(&from, "from", "", "first day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "first day to exclude (YYYY-MM-DD)")
	cmd.Flags().StringVar(&category, "category", "", "only export this category")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, stdout when empty")
	return cmd
}

func parseFilter(from, to, category string) (export.Filter, error) {
	f := export.Filter{Category: category}
	var err error
	if from != "" {
		if f.From, err = time.ParseInLocation(time.DateOnly, from, time.Local); err != nil {
			return f, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if to != "" {
		if f.To, err = time.ParseInLocation(time.DateOnly, to, time.Local); err != nil {
			return f, fmt.Errorf("invalid --to: %w", err)
		}
	}
	return f, nil
}
