package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/invoice-readiness/internal/cli"
	"github.com/Veraticus/invoice-readiness/internal/common"
	"github.com/Veraticus/invoice-readiness/internal/storage"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect saved readiness reports",
		Long: `Show, list and clean up saved readiness reports.

Reports are kept for the configured retention period (7 days by default)
and are no longer readable once expired.`,
	}

	cmd.AddCommand(reportShowCmd())
	cmd.AddCommand(reportListCmd())
	cmd.AddCommand(reportPurgeCmd())

	return cmd
}

func reportShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <report-id>",
		Short: "Show a saved report",
		Args:  cobra.ExactArgs(1),
		RunE:  runReportShow,
	}
	cmd.Flags().String("output", outputSummary, "Output format (summary, json)")
	return cmd
}

func reportListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent reports",
		Args:  cobra.NoArgs,
		RunE:  runReportList,
	}
	cmd.Flags().Int("limit", storage.DefaultRecentLimit, "Maximum number of reports to list")
	return cmd
}

func reportPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired reports",
		Args:  cobra.NoArgs,
		RunE:  runReportPurge,
	}
}

func runReportShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	output, _ := cmd.Flags().GetString("output")
	if err := validateOutput(output); err != nil {
		return err
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	store, err := initStorage(ctx, settings)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	report, err := store.GetReport(ctx, args[0])
	if errors.Is(err, common.ErrNotFound) {
		return common.NewUserError(fmt.Sprintf("Report %s not found", args[0]), err)
	}
	if err != nil {
		return err
	}

	return writeReport(cmd.OutOrStdout(), report, output)
}

func runReportList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("%w: --limit must be positive", common.ErrInvalidInput)
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	store, err := initStorage(ctx, settings)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	summaries, err := store.RecentReports(ctx, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(out, cli.FormatInfo("No reports found"))
		return nil
	}

	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.ID,
			s.CreatedAt.Local().Format(time.DateTime),
			strconv.Itoa(s.ScoresOverall),
		})
	}

	fmt.Fprintln(out, cli.FormatTitle("Recent Reports"))
	fmt.Fprintln(out, cli.RenderTable([]string{"ID", "Created", "Score"}, rows))
	return nil
}

func runReportPurge(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	store, err := initStorage(ctx, settings)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	purged, err := store.PurgeExpired(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Purged %d expired reports", purged)))
	return nil
}
