package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/invoice-readiness/internal/analysis"
	"github.com/Veraticus/invoice-readiness/internal/common"
	"github.com/Veraticus/invoice-readiness/internal/config"
	"github.com/Veraticus/invoice-readiness/internal/ingest"
	"github.com/Veraticus/invoice-readiness/internal/mapping"
	"github.com/Veraticus/invoice-readiness/internal/model"
	"github.com/Veraticus/invoice-readiness/internal/rules"
	"github.com/Veraticus/invoice-readiness/internal/storage"
)

// Output formats shared by analyze and report show.
const (
	outputSummary = "summary"
	outputJSON    = "json"
)

// defaultERP labels uploads whose source system was not given.
const defaultERP = "Unknown"

// loadSettings reads the typed settings from the global viper instance.
func loadSettings() (*config.Settings, error) {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, common.NewUserError("Invalid configuration", err)
	}
	return settings, nil
}

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context, settings *config.Settings) (*storage.Storage, error) {
	store, err := storage.Open(ctx, settings.StorageOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// newAnalyzer builds the analysis engine from settings. uploads may be nil
// when only in-memory uploads are analyzed.
func newAnalyzer(settings *config.Settings, uploads analysis.UploadSource) (*analysis.Engine, error) {
	ruleOpts, err := settings.RuleOptions()
	if err != nil {
		return nil, err
	}
	mapperOpts, err := settings.MapperOptions()
	if err != nil {
		return nil, err
	}

	cfg := analysis.DefaultConfig()
	cfg.DefaultCountry = settings.Analysis.DefaultCountry
	cfg.DBLabel = storage.LabelFor(settings.Database.Driver)
	cfg.MaxRows = settings.Analysis.MaxRows

	return analysis.NewEngine(analysis.Deps{
		Uploads: uploads,
		Rules:   rules.NewEngine(ruleOpts...),
		Mapper:  mapping.NewMapper(mapperOpts...),
	}, cfg)
}

// newParser returns a parser capped at the configured row limit.
func newParser(settings *config.Settings) *ingest.Parser {
	return ingest.NewParser(ingest.WithMaxRows(settings.Analysis.MaxRows))
}

// readUpload parses a CSV or JSON file into an unsaved upload.
func readUpload(parser *ingest.Parser, path, country, erp string) (*model.Upload, error) {
	path = config.ExpandPath(path)
	f, err := os.Open(path) //nolint:gosec // reading a user-supplied file is the point
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("Cannot open %s", path), err)
	}
	defer func() { _ = f.Close() }()

	records, err := parser.ParseFile(filepath.Base(path), f)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("Cannot parse %s", filepath.Base(path)), err)
	}

	if erp == "" {
		erp = defaultERP
	}
	return &model.Upload{
		Country:    country,
		ERP:        erp,
		Records:    records,
		RowsParsed: len(records),
	}, nil
}

// validateOutput checks an --output value.
func validateOutput(output string) error {
	switch output {
	case outputSummary, outputJSON:
		return nil
	default:
		return fmt.Errorf("%w: invalid output format: %s (valid options: summary, json)", common.ErrInvalidInput, output)
	}
}

// writeReport prints a report in the chosen output format.
func writeReport(w io.Writer, report *analysis.Report, output string) error {
	if output == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	formatter := analysis.NewCLIFormatter()
	if _, err := fmt.Fprintln(w, formatter.FormatSummary(report)); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, formatter.FormatFindings(report))
	return err
}

// questionnaireFlags registers the technical posture answers on cmd.
func questionnaireFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("webhooks", false, "Integration can receive webhooks")
	cmd.Flags().Bool("sandbox", false, "A sandbox environment is available")
	cmd.Flags().Bool("retries", false, "Failed submissions are retried")
}

// questionnaireFromFlags reads the answers registered by questionnaireFlags.
func questionnaireFromFlags(cmd *cobra.Command) model.Questionnaire {
	webhooks, _ := cmd.Flags().GetBool("webhooks")
	sandbox, _ := cmd.Flags().GetBool("sandbox")
	retries, _ := cmd.Flags().GetBool("retries")
	return model.Questionnaire{
		Webhooks:   webhooks,
		SandboxEnv: sandbox,
		Retries:    retries,
	}
}
