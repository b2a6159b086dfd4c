// Package mapping matches uploaded column names to the canonical GETS schema
// and derives mapping templates from the result.
package mapping

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/Veraticus/invoice-readiness/internal/schema"
)

// DefaultThreshold is the confidence a best candidate must exceed to be
// reported as a close match.
const DefaultThreshold = 0.7

// FieldMatch is a suggested, non-exact mapping for a canonical field.
type FieldMatch struct {
	Target     schema.Field `json:"target"`
	Candidate  string       `json:"candidate"`
	Confidence float64      `json:"confidence"`
}

// Coverage classifies every canonical field exactly once as matched, close or
// missing. Close and Missing follow the canonical declaration order.
type Coverage struct {
	Matched []schema.Field `json:"matched"`
	Close   []FieldMatch   `json:"close"`
	Missing []schema.Field `json:"missing"`
}

// Mapper detects field coverage for a list of source column names.
type Mapper struct {
	scorer    Scorer
	fields    []schema.Field
	threshold float64
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithScorer swaps the similarity strategy.
func WithScorer(s Scorer) Option {
	return func(m *Mapper) {
		if s != nil {
			m.scorer = s
		}
	}
}

// WithThreshold raises the close-match threshold. Values below
// DefaultThreshold are clamped to it.
func WithThreshold(t float64) Option {
	return func(m *Mapper) {
		m.threshold = max(t, DefaultThreshold)
	}
}

// NewMapper creates a mapper over the canonical schema.
func NewMapper(opts ...Option) *Mapper {
	m := &Mapper{
		scorer:    ContainmentScorer,
		fields:    schema.Fields(),
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DetectFieldMapping classifies source fields with the default mapper.
func DetectFieldMapping(sourceFields []string) Coverage {
	return NewMapper().Detect(sourceFields)
}

// Detect classifies every canonical field against the source column names.
// An exact normalized match lands in Matched. Otherwise the best-scoring
// column becomes a close match if its rounded confidence beats the threshold;
// ties keep the earlier column.
func (m *Mapper) Detect(sourceFields []string) Coverage {
	normalized := make([]string, len(sourceFields))
	for i, f := range sourceFields {
		normalized[i] = schema.Normalize(f)
	}

	cov := Coverage{
		Matched: []schema.Field{},
		Close:   []FieldMatch{},
		Missing: []schema.Field{},
	}

	for _, target := range m.fields {
		normTarget := schema.Normalize(string(target))

		if exactIndex(normalized, normTarget) >= 0 {
			cov.Matched = append(cov.Matched, target)
			continue
		}

		best, bestScore := -1, 0.0
		for i, source := range sourceFields {
			score := m.scorer(string(target), source)
			if score > bestScore {
				best, bestScore = i, score
			}
		}

		if confidence := roundConfidence(bestScore); best >= 0 && confidence > m.threshold {
			cov.Close = append(cov.Close, FieldMatch{
				Target:     target,
				Candidate:  sourceFields[best],
				Confidence: confidence,
			})
			continue
		}

		cov.Missing = append(cov.Missing, target)
	}

	slog.Debug("Detected field coverage",
		"source_fields", len(sourceFields),
		"matched", len(cov.Matched),
		"close", len(cov.Close),
		"missing", len(cov.Missing))

	return cov
}

func exactIndex(normalized []string, target string) int {
	if target == "" {
		return -1
	}
	for i, n := range normalized {
		if n == target {
			return i
		}
	}
	return -1
}

func roundConfidence(c float64) float64 {
	return math.Round(c*100) / 100
}

// Suggestions renders a human-readable hint for each close match.
func Suggestions(close []FieldMatch) []string {
	out := make([]string, 0, len(close))
	for _, match := range close {
		switch {
		case match.Confidence > 0.8:
			out = append(out, fmt.Sprintf("%q likely maps to %q (high similarity)", match.Candidate, match.Target))
		case match.Confidence > 0.7:
			out = append(out, fmt.Sprintf("Consider mapping %q to %q", match.Candidate, match.Target))
		default:
			out = append(out, fmt.Sprintf("%q might correspond to %q - review this mapping", match.Candidate, match.Target))
		}
	}
	return out
}
