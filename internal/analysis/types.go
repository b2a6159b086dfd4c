package analysis

import (
	"time"

	"github.com/Veraticus/invoice-readiness/internal/mapping"
	"github.com/Veraticus/invoice-readiness/internal/rules"
	"github.com/Veraticus/invoice-readiness/internal/scoring"
)

// Report is the outcome of one readiness analysis. It is built once and never
// modified after it is returned, except for ReportID which is set when the
// report is persisted.
type Report struct {
	Meta            Meta             `json:"meta"`
	MappingSkeleton mapping.Skeleton `json:"mappingSkeleton"`
	UploadID        string           `json:"uploadId,omitempty"`
	ReportID        string           `json:"reportId,omitempty"`
	Coverage        mapping.Coverage `json:"coverage"`
	RuleFindings    []rules.Result   `json:"ruleFindings"`
	// Gaps lists one line per missing field followed by one line per
	// failing finding.
	Gaps []string `json:"gaps"`
	// FieldSuggestions and RuleExplanations are derived from Coverage.Close
	// and RuleFindings respectively.
	FieldSuggestions []string       `json:"fieldSuggestions"`
	RuleExplanations []string       `json:"ruleExplanations"`
	Scores           scoring.Scores `json:"scores"`
}

// Meta describes the analyzed sample.
type Meta struct {
	AnalyzedAt time.Time `json:"analyzedAt"`
	Country    string    `json:"country"`
	ERP        string    `json:"erp"`
	DB         string    `json:"db"`
	RowsParsed int       `json:"rowsParsed"`
	LinesTotal int       `json:"linesTotal"`
}

// Failed returns the failing rule findings.
func (r *Report) Failed() []rules.Result {
	var out []rules.Result
	for _, f := range r.RuleFindings {
		if !f.OK {
			out = append(out, f)
		}
	}
	return out
}

// ProgressCallback is called at each pipeline stage with a completion percentage.
type ProgressCallback func(stage string, percent int)

// Pipeline stages reported through ProgressCallback.
const (
	StageLoading  = "Loading upload"
	StageMapping  = "Detecting field mapping"
	StageRules    = "Running validation rules"
	StageScoring  = "Calculating scores"
	StageSkeleton = "Building mapping skeleton"
	StageComplete = "Analysis complete"
)
