// Package scoring turns coverage, rule findings and questionnaire answers
// into the readiness score.
package scoring

import (
	"math"

	"github.com/Veraticus/invoice-readiness/internal/mapping"
	"github.com/Veraticus/invoice-readiness/internal/model"
	"github.com/Veraticus/invoice-readiness/internal/rules"
	"github.com/Veraticus/invoice-readiness/internal/schema"
)

// Category caps. They sum to MaxOverall.
const (
	MaxData     = 25
	MaxCoverage = 35
	MaxRules    = 30
	MaxPosture  = 10
	MaxOverall  = 100
)

// SampleRows is the row count that earns the full data score.
const SampleRows = 200

// Questions is the size of the technical posture questionnaire.
const Questions = 3

// Scores is the readiness breakdown. Every category is clamped to its cap.
type Scores struct {
	Data     int `json:"data"`
	Coverage int `json:"coverage"`
	Rules    int `json:"rules"`
	Posture  int `json:"posture"`
	Overall  int `json:"overall"`
}

// CalculateScores computes all four categories and the overall score.
func CalculateScores(records []model.Record, cov mapping.Coverage, findings []rules.Result, q model.Questionnaire) Scores {
	s := Scores{
		Data:     DataScore(len(records)),
		Coverage: CoverageScore(cov.Matched),
		Rules:    RulesScore(rules.PassedStandard(findings)),
		Posture:  PostureScore(q.Answered()),
	}
	s.Overall = clamp(s.Data+s.Coverage+s.Rules+s.Posture, MaxOverall)
	return s
}

// DataScore rewards larger samples up to SampleRows.
func DataScore(rows int) int {
	return scaled(float64(rows), SampleRows, MaxData)
}

// CoverageScore weighs exactly matched fields by class against
// schema.MaxWeight. Close matches earn nothing until they are mapped.
func CoverageScore(matched []schema.Field) int {
	var weight float64
	for _, f := range matched {
		weight += schema.Weight(f)
	}
	return scaled(weight, schema.MaxWeight, MaxCoverage)
}

// RulesScore is the share of standard rules passed.
func RulesScore(passed int) int {
	return scaled(float64(passed), float64(len(rules.StandardIDs())), MaxRules)
}

// PostureScore is the share of questionnaire answers that are yes.
func PostureScore(answered int) int {
	return scaled(float64(answered), Questions, MaxPosture)
}

// scaled maps n/of onto 0..max, rounding half away from zero.
func scaled(n, of float64, maxPoints int) int {
	if of <= 0 || n <= 0 {
		return 0
	}
	return clamp(int(math.Round(n/of*float64(maxPoints))), maxPoints)
}

func clamp(v, maxPoints int) int {
	return max(0, min(v, maxPoints))
}
