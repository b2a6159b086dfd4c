package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/invoice-readiness/internal/analysis"
	"github.com/Veraticus/invoice-readiness/internal/common"
	"github.com/Veraticus/invoice-readiness/internal/config"
	"github.com/Veraticus/invoice-readiness/internal/mapping"
	"github.com/Veraticus/invoice-readiness/internal/schema"
	"github.com/Veraticus/invoice-readiness/internal/storage"
	"github.com/Veraticus/invoice-readiness/internal/testutil"
)

// setupCommandEnv points the global viper at a fresh database in a temp dir
// and returns the directory.
func setupCommandEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	viper.Reset()
	config.SetDefaults(viper.GetViper())
	viper.Set("database.path", filepath.Join(dir, "readiness.db"))
	t.Cleanup(viper.Reset)

	return dir
}

func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// writeCleanSample writes the clean UAE fixture as a JSON upload file.
func writeCleanSample(t *testing.T, dir string) string {
	t.Helper()
	data, err := json.Marshal(testutil.CleanUAEUpload().Records)
	require.NoError(t, err)

	path := filepath.Join(dir, "clean.json")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func decodeReport(t *testing.T, out string) *analysis.Report {
	t.Helper()
	var report analysis.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	return &report
}

func TestUploadCommand(t *testing.T) {
	dir := setupCommandEnv(t)
	sample := writeCleanSample(t, dir)

	out, err := runCommand(t, uploadCmd(), sample, "--erp", "Odoo")
	require.NoError(t, err)
	assert.Contains(t, out, "Uploaded 2 rows")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	uploadID := lines[len(lines)-1]
	assert.True(t, strings.HasPrefix(uploadID, "u_"), "got %q", uploadID)

	settings, err := loadSettings()
	require.NoError(t, err)
	store, err := initStorage(context.Background(), settings)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	upload, err := store.GetUpload(context.Background(), uploadID)
	require.NoError(t, err)
	assert.Equal(t, "UAE", upload.Country, "default country applies")
	assert.Equal(t, "Odoo", upload.ERP)
	assert.Equal(t, 2, upload.RowsParsed)
}

func TestUploadCommand_Errors(t *testing.T) {
	dir := setupCommandEnv(t)

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0600))

	tests := []struct {
		wantErr error
		name    string
		args    []string
	}{
		{name: "unsupported format", args: []string{txt}, wantErr: common.ErrUnsupportedFormat},
		{name: "missing file", args: []string{filepath.Join(dir, "nope.csv")}, wantErr: os.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCommand(t, uploadCmd(), tt.args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var userErr *common.UserError
			assert.ErrorAs(t, err, &userErr)
		})
	}

	_, err := runCommand(t, uploadCmd())
	assert.Error(t, err, "file argument is required")
}

func TestAnalyzeCommand_File(t *testing.T) {
	dir := setupCommandEnv(t)
	sample := writeCleanSample(t, dir)

	out, err := runCommand(t, analyzeCmd(), sample, "--output", "json", "--webhooks", "--sandbox", "--retries")
	require.NoError(t, err)

	report := decodeReport(t, out)
	assert.Empty(t, report.ReportID, "nothing saved without --save")
	assert.Empty(t, report.Coverage.Missing)
	assert.Equal(t, 35, report.Scores.Coverage)
	assert.Equal(t, 30, report.Scores.Rules)
	assert.Equal(t, "UAE", report.Meta.Country)
	assert.Equal(t, "SQLite", report.Meta.DB)

	_, statErr := os.Stat(filepath.Join(dir, "readiness.db"))
	assert.ErrorIs(t, statErr, os.ErrNotExist, "file analysis without --save does not touch the database")
}

func TestAnalyzeCommand_SaveAndShow(t *testing.T) {
	dir := setupCommandEnv(t)
	sample := writeCleanSample(t, dir)

	out, err := runCommand(t, analyzeCmd(), sample, "--output", "json", "--save")
	require.NoError(t, err)

	saved := decodeReport(t, out)
	require.True(t, strings.HasPrefix(saved.ReportID, "r_"), "got %q", saved.ReportID)
	require.True(t, strings.HasPrefix(saved.UploadID, "u_"), "got %q", saved.UploadID)

	// Re-analyzing the stored upload gives the same scores.
	out, err = runCommand(t, analyzeCmd(), "--upload-id", saved.UploadID, "--output", "json")
	require.NoError(t, err)
	again := decodeReport(t, out)
	assert.Equal(t, saved.Scores, again.Scores)
	assert.Equal(t, saved.UploadID, again.UploadID)

	out, err = runCommand(t, reportCmd(), "show", saved.ReportID, "--output", "json")
	require.NoError(t, err)
	shown := decodeReport(t, out)
	assert.Equal(t, saved.ReportID, shown.ReportID)
	assert.Equal(t, saved.Scores, shown.Scores)

	out, err = runCommand(t, reportCmd(), "show", saved.ReportID)
	require.NoError(t, err)
	assert.Contains(t, out, "E-Invoicing Readiness Report")
	assert.Contains(t, out, saved.ReportID)

	out, err = runCommand(t, reportCmd(), "list", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Recent Reports")
	assert.Contains(t, out, saved.ReportID)
}

func TestAnalyzeCommand_Summary(t *testing.T) {
	dir := setupCommandEnv(t)
	sample := writeCleanSample(t, dir)

	out, err := runCommand(t, analyzeCmd(), sample)
	require.NoError(t, err)
	assert.Contains(t, out, "Readiness Score")
	assert.Contains(t, out, "Rule Findings")
}

func TestAnalyzeCommand_Errors(t *testing.T) {
	dir := setupCommandEnv(t)
	sample := writeCleanSample(t, dir)

	tests := []struct {
		wantErr error
		name    string
		args    []string
	}{
		{name: "no input", args: nil, wantErr: common.ErrInvalidInput},
		{name: "file and upload id", args: []string{sample, "--upload-id", "u_1"}, wantErr: common.ErrInvalidInput},
		{name: "bad output", args: []string{sample, "--output", "xml"}, wantErr: common.ErrInvalidInput},
		{name: "unknown upload", args: []string{"--upload-id", "u_missing"}, wantErr: common.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCommand(t, analyzeCmd(), tt.args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAnalyzeCommand_InvalidConfig(t *testing.T) {
	dir := setupCommandEnv(t)
	sample := writeCleanSample(t, dir)
	viper.Set("mapping.scorer", "soundex")

	_, err := runCommand(t, analyzeCmd(), sample)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestReportCommand_Errors(t *testing.T) {
	setupCommandEnv(t)

	_, err := runCommand(t, reportCmd(), "show", "r_missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = runCommand(t, reportCmd(), "list", "--limit", "0")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	out, err := runCommand(t, reportCmd(), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No reports found")

	out, err = runCommand(t, reportCmd(), "purge")
	require.NoError(t, err)
	assert.Contains(t, out, "Purged 0 expired reports")
}

func TestTemplateCommand(t *testing.T) {
	dir := setupCommandEnv(t)
	sample := writeCleanSample(t, dir)

	out, err := runCommand(t, templateCmd(), sample)
	require.NoError(t, err)

	tmpl, err := mapping.ParseTemplate([]byte(out), mapping.FormatJSON)
	require.NoError(t, err)
	assert.Len(t, tmpl.Mappings, len(schema.Fields()))
	assert.Equal(t, mapping.StatusExactMatch, tmpl.Mappings[schema.InvoiceID].Status)

	outPath := filepath.Join(dir, "mapping.yaml")
	out, err = runCommand(t, templateCmd(), sample, "--format", "yaml", "--out", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Template written to")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	tmpl, err = mapping.ParseTemplate(data, mapping.FormatYAML)
	require.NoError(t, err)
	assert.Len(t, tmpl.Mappings, len(schema.Fields()))
}

func TestTemplateCommand_FromReport(t *testing.T) {
	dir := setupCommandEnv(t)
	sample := writeCleanSample(t, dir)

	out, err := runCommand(t, analyzeCmd(), sample, "--output", "json", "--save")
	require.NoError(t, err)
	saved := decodeReport(t, out)

	fromReport, err := runCommand(t, templateCmd(), "--report-id", saved.ReportID)
	require.NoError(t, err)
	fromUpload, err := runCommand(t, templateCmd(), "--upload-id", saved.UploadID)
	require.NoError(t, err)

	a, err := mapping.ParseTemplate([]byte(fromReport), mapping.FormatJSON)
	require.NoError(t, err)
	b, err := mapping.ParseTemplate([]byte(fromUpload), mapping.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, a.Mappings, b.Mappings)
}

func TestTemplateCommand_Errors(t *testing.T) {
	dir := setupCommandEnv(t)
	sample := writeCleanSample(t, dir)

	tests := []struct {
		wantErr error
		name    string
		args    []string
	}{
		{name: "no source", args: nil, wantErr: common.ErrInvalidInput},
		{name: "two sources", args: []string{sample, "--report-id", "r_1"}, wantErr: common.ErrInvalidInput},
		{name: "bad format", args: []string{sample, "--format", "xml"}, wantErr: common.ErrInvalidInput},
		{name: "unknown report", args: []string{"--report-id", "r_missing"}, wantErr: common.ErrNotFound},
		{name: "unknown upload", args: []string{"--upload-id", "u_missing"}, wantErr: common.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCommand(t, templateCmd(), tt.args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMigrateCommand(t *testing.T) {
	setupCommandEnv(t)

	out, err := runCommand(t, migrateCmd(), "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 0")
	assert.Contains(t, out, "Pending migrations")

	out, err = runCommand(t, migrateCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "completed successfully")

	out, err = runCommand(t, migrateCmd(), "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 3")
	assert.NotContains(t, out, "Pending migrations")
	assert.Equal(t, 3, storage.ExpectedSchemaVersion)
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, versionCmd())
	require.NoError(t, err)
	assert.Equal(t, "readiness dev\n", out)
}

func TestRootCommand_Wiring(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"upload", "analyze", "report", "template", "serve", "migrate", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}

	for _, flag := range []string{"config", "log-level", "log-format", "db-path"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flag), "missing flag %s", flag)
	}
}
