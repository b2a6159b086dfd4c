package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/invoice-readiness/internal/analysis"
	"github.com/Veraticus/invoice-readiness/internal/cli"
	"github.com/Veraticus/invoice-readiness/internal/common"
	"github.com/Veraticus/invoice-readiness/internal/config"
	"github.com/Veraticus/invoice-readiness/internal/mapping"
	"github.com/Veraticus/invoice-readiness/internal/model"
)

func templateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template [file]",
		Short: "Export a mapping template for an invoice sample",
		Long: `Export the mapping skeleton of an invoice sample as a JSON or YAML template.

The template lists every canonical GETS field with the source column it was
matched to (if any), its status and confidence, plus instructions for the
integration team. The sample can be a file, a stored upload or a saved report.

Examples:
  # YAML template straight from a CSV export
  readiness template invoices.csv --format yaml

  # Template from a saved report, written to a file
  readiness template --report-id r_123 --out mapping.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runTemplate,
	}

	cmd.Flags().String("upload-id", "", "Build the template from a stored upload")
	cmd.Flags().String("report-id", "", "Reuse the skeleton of a saved report")
	cmd.Flags().String("format", string(mapping.FormatJSON), "Template format (json, yaml)")
	cmd.Flags().String("out", "", "Write the template to a file instead of stdout")

	return cmd
}

func runTemplate(cmd *cobra.Command, args []string) error {
	uploadID, _ := cmd.Flags().GetString("upload-id")
	reportID, _ := cmd.Flags().GetString("report-id")
	formatName, _ := cmd.Flags().GetString("format")
	outPath, _ := cmd.Flags().GetString("out")

	format, err := mapping.ParseFormat(formatName)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	sources := 0
	for _, set := range []bool{len(args) > 0, uploadID != "", reportID != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return fmt.Errorf("%w: provide exactly one of a file, --upload-id or --report-id", common.ErrInvalidInput)
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	skeleton, err := templateSkeleton(cmd, settings, args, uploadID, reportID)
	if err != nil {
		return err
	}

	data, err := mapping.ExportTemplate(skeleton, format)
	if err != nil {
		return err
	}

	if outPath == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	outPath = config.ExpandPath(outPath)
	if err := os.WriteFile(outPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	common.LogDebug("Wrote mapping template", common.Fields{"path": outPath, "format": string(format)})
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Template written to "+outPath))
	return nil
}

// templateSkeleton resolves the mapping skeleton from whichever source was given.
func templateSkeleton(cmd *cobra.Command, settings *config.Settings, args []string, uploadID, reportID string) (mapping.Skeleton, error) {
	ctx := cmd.Context()

	if len(args) > 0 {
		engine, err := newAnalyzer(settings, nil)
		if err != nil {
			return mapping.Skeleton{}, err
		}
		upload, err := readUpload(newParser(settings), args[0], settings.Analysis.DefaultCountry, "")
		if err != nil {
			return mapping.Skeleton{}, err
		}
		report, err := engine.AnalyzeUpload(ctx, upload, model.Questionnaire{}, nil)
		if err != nil {
			return mapping.Skeleton{}, err
		}
		return report.MappingSkeleton, nil
	}

	store, err := initStorage(ctx, settings)
	if err != nil {
		return mapping.Skeleton{}, err
	}
	defer func() { _ = store.Close() }()

	var report *analysis.Report
	if reportID != "" {
		report, err = store.GetReport(ctx, reportID)
		if errors.Is(err, common.ErrNotFound) {
			return mapping.Skeleton{}, common.NewUserError(fmt.Sprintf("Report %s not found", reportID), err)
		}
	} else {
		var engine *analysis.Engine
		engine, err = newAnalyzer(settings, store)
		if err != nil {
			return mapping.Skeleton{}, err
		}
		report, err = engine.Analyze(ctx, uploadID, model.Questionnaire{}, nil)
		if errors.Is(err, common.ErrNotFound) {
			return mapping.Skeleton{}, common.NewUserError(fmt.Sprintf("Upload %s not found", uploadID), err)
		}
	}
	if err != nil {
		return mapping.Skeleton{}, err
	}
	return report.MappingSkeleton, nil
}
