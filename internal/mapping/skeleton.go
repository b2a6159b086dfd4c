package mapping

import (
	"time"

	"github.com/Veraticus/invoice-readiness/internal/model"
	"github.com/Veraticus/invoice-readiness/internal/schema"
)

// SkeletonVersion is the mapping template format version.
const SkeletonVersion = "1.0"

// Status describes how a canonical field was resolved.
type Status string

// Mapping statuses.
const (
	StatusExactMatch Status = "exact_match"
	StatusSuggested  Status = "suggested"
	StatusMissing    Status = "missing"
)

// FieldMapping is one entry of a mapping template.
type FieldMapping struct {
	SourceField string  `json:"sourceField" yaml:"sourceField"`
	Status      Status  `json:"status" yaml:"status"`
	Notes       string  `json:"notes" yaml:"notes"`
	Confidence  float64 `json:"confidence" yaml:"confidence"`
}

// Skeleton maps every canonical field to its source column (or a placeholder).
type Skeleton struct {
	GeneratedAt   time.Time                     `json:"generatedAt" yaml:"generatedAt"`
	FieldMappings map[schema.Field]FieldMapping `json:"fieldMappings" yaml:"fieldMappings"`
	Version       string                        `json:"version" yaml:"version"`
}

// GenerateMappingSkeleton derives a mapping template from coverage alone.
// Matched fields map to themselves since the source column normalizes to the
// canonical name.
func GenerateMappingSkeleton(cov Coverage, generatedAt time.Time) Skeleton {
	s := Skeleton{
		Version:       SkeletonVersion,
		GeneratedAt:   generatedAt.UTC(),
		FieldMappings: make(map[schema.Field]FieldMapping, len(cov.Matched)+len(cov.Close)+len(cov.Missing)),
	}

	for _, field := range cov.Matched {
		s.FieldMappings[field] = FieldMapping{
			SourceField: string(field),
			Confidence:  1.0,
			Status:      StatusExactMatch,
			Notes:       "Automatically matched",
		}
	}

	for _, match := range cov.Close {
		s.FieldMappings[match.Target] = FieldMapping{
			SourceField: match.Candidate,
			Confidence:  match.Confidence,
			Status:      StatusSuggested,
			Notes:       "Similarity score: " + model.FormatNumber(match.Confidence),
		}
	}

	for _, field := range cov.Missing {
		s.FieldMappings[field] = FieldMapping{
			Status: StatusMissing,
			Notes:  "Field not found in source data",
		}
	}

	return s
}

// Present returns the canonical fields that have a source column, in
// canonical order.
func (s Skeleton) Present() []schema.Field {
	var out []schema.Field
	for _, f := range schema.Fields() {
		if m, ok := s.FieldMappings[f]; ok && m.Status != StatusMissing {
			out = append(out, f)
		}
	}
	return out
}
