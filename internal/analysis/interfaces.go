package analysis

import (
	"context"

	"github.com/Veraticus/invoice-readiness/internal/model"
)

// UploadSource retrieves stored uploads for analysis.
type UploadSource interface {
	// GetUpload returns the upload or an error wrapping common.ErrNotFound.
	GetUpload(ctx context.Context, uploadID string) (*model.Upload, error)
}

// ReportStore manages readiness report persistence.
type ReportStore interface {
	// SaveReport stores a report and sets its ReportID.
	SaveReport(ctx context.Context, report *Report) error
	// GetReport retrieves a report by ID.
	GetReport(ctx context.Context, reportID string) (*Report, error)
}

// ReportFormatter formats reports for display.
type ReportFormatter interface {
	// FormatSummary creates a high-level summary of the report.
	FormatSummary(report *Report) string
	// FormatFindings lists every rule finding.
	FormatFindings(report *Report) string
}
