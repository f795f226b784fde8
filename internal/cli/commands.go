// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shiba-arcade/hackatime-sync/internal/models"
	"github.com/shiba-arcade/hackatime-sync/internal/sync"
	"github.com/shiba-arcade/hackatime-sync/internal/validation"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

func newSyncCommand(st *rootState) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass and print its summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summary, err := st.services.Sync.TriggerSyncWithOptions(cmd.Context(), sync.PassOptions{DryRun: dryRun})
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute allocations without writing to Airtable")
	cmd.Annotations = map[string]string{storeAnnotation: string(StoreReadWrite)}
	return cmd
}

func newProjectsCommand(st *rootState) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "projects <slackId>",
		Short: "List a user's Hackatime projects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slackID := args[0]
			if err := validation.ValidateVar("slackId", slackID, "required,slackid"); err != nil {
				return err
			}
			stats, err := st.services.Stats.UserStats(cmd.Context(), slackID)
			if err != nil {
				return fmt.Errorf("fetch hackatime stats: %w", err)
			}
			if stats == nil {
				stats = &models.UserStats{}
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), stats)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PROJECT\tSECONDS\tHOURS")
			for _, p := range stats.Projects {
				fmt.Fprintf(tw, "%s\t%d\t%.2f\n", p.Name, p.TotalSeconds, float64(p.TotalSeconds)/3600)
			}
			fmt.Fprintf(tw, "TOTAL\t%d\t%.2f\n", stats.TotalSeconds, float64(stats.TotalSeconds)/3600)
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON")
	return cmd
}

func newApportionCommand(st *rootState) *cobra.Command {
	var (
		slackID string
		email   string
		dryRun  bool
	)
	cmd := &cobra.Command{
		Use:   "apportion",
		Short: "Recompute one user's game seconds and post hours",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := sync.PassOptions{DryRun: dryRun}

			var (
				report *models.ApportionReport
				err    error
			)
			switch {
			case slackID != "" && email != "":
				return errors.New("use either --slack-id or --email, not both")
			case slackID != "":
				report, err = st.services.Apportion.RunForSlackID(cmd.Context(), slackID, opts)
			case email != "":
				report, err = st.services.Apportion.RunForEmail(cmd.Context(), email, opts)
			default:
				return errors.New("one of --slack-id or --email is required")
			}
			if err != nil {
				return fmt.Errorf("apportion failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&slackID, "slack-id", "", "Slack member id of the user")
	cmd.Flags().StringVar(&email, "email", "", "Email to resolve through the Users table")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute hours without writing to Airtable")
	return cmd
}

func newRunsCommand(st *rootState) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent sync runs from the run store or the running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 || limit > maxRunsLimit {
				return fmt.Errorf("--limit must be between 1 and %d", maxRunsLimit)
			}
			runs, err := st.services.Runs.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			if runs == nil {
				runs = []models.SyncRun{}
			}
			return printJSON(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", defaultRunsLimit, "Number of runs to show")
	cmd.Annotations = map[string]string{storeAnnotation: string(StoreReadOnly)}
	return cmd
}
