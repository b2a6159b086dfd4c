package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/invoice-readiness/internal/common"
	"github.com/Veraticus/invoice-readiness/internal/mapping"
	"github.com/Veraticus/invoice-readiness/internal/model"
	"github.com/Veraticus/invoice-readiness/internal/rules"
	"github.com/Veraticus/invoice-readiness/internal/scoring"
)

// ErrNoUploadSource is returned by Analyze when the engine has no store.
var ErrNoUploadSource = errors.New("no upload source configured")

// Engine composes the pipeline stages. It holds no per-analysis state, so a
// single Engine may serve concurrent analyses.
type Engine struct {
	uploads UploadSource
	rules   *rules.Engine
	mapper  *mapping.Mapper
	clock   func() time.Time
	config  Config
}

// NewEngine creates an analysis engine.
func NewEngine(deps Deps, config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis config: %w", err)
	}

	e := &Engine{
		uploads: deps.Uploads,
		rules:   deps.Rules,
		mapper:  deps.Mapper,
		clock:   deps.Clock,
		config:  config,
	}
	if e.rules == nil {
		e.rules = rules.NewEngine()
	}
	if e.mapper == nil {
		e.mapper = mapping.NewMapper()
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	return e, nil
}

// Analyze loads a stored upload and analyzes it. A missing upload surfaces as
// common.ErrNotFound.
func (e *Engine) Analyze(ctx context.Context, uploadID string, q model.Questionnaire, progress ProgressCallback) (*Report, error) {
	if progress == nil {
		progress = func(string, int) {}
	}
	if e.uploads == nil {
		return nil, ErrNoUploadSource
	}

	progress(StageLoading, 5)
	upload, err := e.uploads.GetUpload(ctx, uploadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load upload %s: %w", uploadID, err)
	}

	return e.AnalyzeUpload(ctx, upload, q, progress)
}

// AnalyzeUpload analyzes an upload that is already in memory. Uploads stored
// without a country are checked against the default country's rules while
// the report keeps the stored value.
func (e *Engine) AnalyzeUpload(ctx context.Context, upload *model.Upload, q model.Questionnaire, progress ProgressCallback) (*Report, error) {
	if upload == nil {
		return nil, fmt.Errorf("%w: nil upload", common.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	country := upload.Country
	if country == "" {
		country = e.config.DefaultCountry
	}

	report, err := e.run(upload.Records, country, q, progress)
	if err != nil {
		return nil, err
	}

	report.UploadID = upload.ID
	report.Meta.Country = upload.Country
	report.Meta.ERP = upload.ERP

	slog.Info("Analysis complete",
		"upload_id", upload.ID,
		"rows", len(upload.Records),
		"country", country,
		"overall", report.Scores.Overall)

	return report, nil
}

// AnalyzeRecords runs the pipeline over records for the given country.
func (e *Engine) AnalyzeRecords(records []model.Record, country string, q model.Questionnaire) (*Report, error) {
	report, err := e.run(records, country, q, nil)
	if err != nil {
		return nil, err
	}
	report.Meta.Country = country
	return report, nil
}

func (e *Engine) run(records []model.Record, country string, q model.Questionnaire, progress ProgressCallback) (*Report, error) {
	if progress == nil {
		progress = func(string, int) {}
	}

	if len(records) > e.config.MaxRows {
		return nil, fmt.Errorf("%w: %d records exceeds the limit of %d", common.ErrTooManyRows, len(records), e.config.MaxRows)
	}

	var sourceFields []string
	if len(records) > 0 {
		sourceFields = records[0].Columns()
	}
	if len(sourceFields) > e.config.MaxColumns {
		return nil, fmt.Errorf("%w: %d columns exceeds the limit of %d", common.ErrInvalidInput, len(sourceFields), e.config.MaxColumns)
	}

	progress(StageMapping, 20)
	coverage := e.mapper.Detect(sourceFields)

	progress(StageRules, 45)
	findings := e.rules.Run(records, country)

	progress(StageScoring, 70)
	scores := scoring.CalculateScores(records, coverage, findings, q)

	progress(StageSkeleton, 85)
	now := e.clock().UTC()
	skeleton := mapping.GenerateMappingSkeleton(coverage, now)

	report := &Report{
		Coverage:         coverage,
		RuleFindings:     findings,
		Gaps:             Gaps(coverage, findings),
		FieldSuggestions: mapping.Suggestions(coverage.Close),
		RuleExplanations: rules.Explanations(findings),
		Scores:           scores,
		MappingSkeleton:  skeleton,
		Meta: Meta{
			RowsParsed: len(records),
			LinesTotal: len(records),
			DB:         e.config.DBLabel,
			AnalyzedAt: now,
		},
	}
	if report.RuleFindings == nil {
		report.RuleFindings = []rules.Result{}
	}

	progress(StageComplete, 100)
	return report, nil
}

// Gaps lists what keeps a sample from being ready: one line per missing
// canonical field, then one per failing finding.
func Gaps(coverage mapping.Coverage, findings []rules.Result) []string {
	gaps := make([]string, 0, len(coverage.Missing))
	for _, field := range coverage.Missing {
		gaps = append(gaps, fmt.Sprintf("Missing required field: %s", field))
	}
	for _, f := range findings {
		if f.OK {
			continue
		}
		if f.Explanation != "" {
			gaps = append(gaps, f.Explanation)
		} else {
			gaps = append(gaps, fmt.Sprintf("Rule %s failed", f.Rule))
		}
	}
	return gaps
}
