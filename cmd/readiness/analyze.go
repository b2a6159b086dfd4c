package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/invoice-readiness/internal/analysis"
	"github.com/Veraticus/invoice-readiness/internal/cli"
	"github.com/Veraticus/invoice-readiness/internal/common"
	"github.com/Veraticus/invoice-readiness/internal/storage"
)

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Score the e-invoicing readiness of an invoice sample",
		Long: `Analyze an invoice sample against the GETS v0.1 schema and country rules.

The analysis detects which canonical fields the data carries, runs the
validation rules, combines everything into a readiness score out of 100 and
builds a mapping skeleton. Pass a file to analyze it directly, or --upload-id
to analyze a stored upload.

Examples:
  # Analyze a CSV file without storing anything
  readiness analyze invoices.csv --country KSA

  # Analyze a stored upload and keep the report
  readiness analyze --upload-id u_123 --webhooks --retries --save

  # Machine readable output
  readiness analyze invoices.csv --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runAnalyze,
	}

	cmd.Flags().String("upload-id", "", "Analyze a stored upload instead of a file")
	cmd.Flags().String("country", "", "Country whose e-invoicing rules apply (file input only)")
	cmd.Flags().String("erp", "", "Source ERP system label (file input only)")
	questionnaireFlags(cmd)

	cmd.Flags().String("output", outputSummary, "Output format (summary, json)")
	cmd.Flags().Bool("save", false, "Store the upload and report")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Set up interrupt handling
	interruptHandler := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx = interruptHandler.HandleInterrupts(ctx, "Analysis", "Nothing was saved.")

	// Parse flags
	uploadID, _ := cmd.Flags().GetString("upload-id")
	country, _ := cmd.Flags().GetString("country")
	erp, _ := cmd.Flags().GetString("erp")
	output, _ := cmd.Flags().GetString("output")
	save, _ := cmd.Flags().GetBool("save")
	q := questionnaireFromFlags(cmd)

	if err := validateOutput(output); err != nil {
		return err
	}
	if (uploadID == "") == (len(args) == 0) {
		return fmt.Errorf("%w: provide either a file or --upload-id", common.ErrInvalidInput)
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	var store *storage.Storage
	if uploadID != "" || save {
		store, err = initStorage(ctx, settings)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
	}

	var uploads analysis.UploadSource
	if store != nil {
		uploads = store
	}
	engine, err := newAnalyzer(settings, uploads)
	if err != nil {
		return err
	}

	var (
		progress analysis.ProgressCallback
		bar      *cli.StageProgress
	)
	if output == outputSummary {
		bar = cli.NewStageProgress(cmd.ErrOrStderr(), "Analyzing")
		progress = bar.Update
	}

	var report *analysis.Report
	if uploadID != "" {
		report, err = engine.Analyze(ctx, uploadID, q, progress)
		if errors.Is(err, common.ErrNotFound) {
			return common.NewUserError(fmt.Sprintf("Upload %s not found", uploadID), err)
		}
	} else {
		if country == "" {
			country = settings.Analysis.DefaultCountry
		}
		upload, readErr := readUpload(newParser(settings), args[0], country, erp)
		if readErr != nil {
			return readErr
		}
		if save {
			if err := store.SaveUpload(ctx, upload); err != nil {
				return fmt.Errorf("failed to save upload: %w", err)
			}
		}
		report, err = engine.AnalyzeUpload(ctx, upload, q, progress)
	}
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		if interruptHandler.WasInterrupted() {
			return nil
		}
		return fmt.Errorf("analysis failed: %w", err)
	}

	if save {
		if err := store.SaveReport(ctx, report); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		slog.Info("Saved report", "report_id", report.ReportID, "upload_id", report.UploadID)
	}

	return writeReport(cmd.OutOrStdout(), report, output)
}
