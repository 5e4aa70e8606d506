package main

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/txnwatch/pkg/api"
)

func newCapsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "caps",
		Short: "Manage monthly category caps",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Show every cap with this month's spend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, _, closeStore, err := opts.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			configured, err := engine.Settings.Caps(cmd.Context())
			if err != nil {
				return err
			}
			categories := make([]string, 0, len(configured))
			for c := range configured {
				categories = append(categories, c)
			}
			slices.Sort(categories)

			now := time.Now()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tTYPE\tVALUE\tCAP\tSPENT\tUSED\tSTATUS")
			for _, category := range categories {
				cfg := configured[category]
				d, err := engine.Caps.Decide(cmd.Context(), category, now)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%s\t%d%%\t%s\n",
					category, cfg.Kind, cfg.Value,
					d.CapAmount.StringFixed(2), d.Spend.StringFixed(2), d.PctUsed, d.Severity)
			}
			return tw.Flush()
		},
	}

	set := &cobra.Command{
		Use:   "set <category> <absolute|percentage> <value>",
		Short: "Set the monthly cap of a category",
		Long: "Set the monthly cap of a category. An absolute cap is in rupees, a percentage cap\n" +
			"is a share of the monthly income set with 'txnwatch profile set'.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid cap value %q: %w", args[2], err)
			}

			engine, _, closeStore, err := opts.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			cfg := api.CapConfig{Kind: api.CapKind(args[1]), Value: value}
			if err := engine.Settings.SetCap(cmd.Context(), args[0], cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cap set: %s %s %v\n", args[0], cfg.Kind, cfg.Value)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:     "remove <category>",
		Aliases: []string{"rm"},
		Short:   "Remove the cap of a category",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, closeStore, err := opts.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			return engine.Settings.RemoveCap(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(list, set, remove)
	return cmd
}

func newProfileCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update the user profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, _, closeStore, err := opts.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			profile, err := engine.Settings.Profile(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), profile)
		},
	}

	var (
		name   string
		income float64
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Update the name and monthly income",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if income < 0 {
				return errors.New("monthly income cannot be negative")
			}

			engine, _, closeStore, err := opts.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			profile, err := engine.Settings.Profile(cmd.Context())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("name") {
				profile.Name = name
			}
			if cmd.Flags().Changed("income") {
				profile.MonthlyIncome = income
			}
			if err := engine.Settings.SetProfile(cmd.Context(), profile); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), profile)
		},
	}
	set.Flags().StringVar(&name, "name", "", "display name")
	set.Flags().Float64Var(&income, "income", 0, "monthly income in rupees")

	cmd.AddCommand(set)
	return cmd
}
