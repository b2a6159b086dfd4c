// Package storage persists uploads and readiness reports in SQLite or Postgres.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/invoice-readiness/internal/analysis"
	"github.com/Veraticus/invoice-readiness/internal/model"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
	ErrInvalidLimit = errors.New("limit cannot be negative")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateUpload(upload *model.Upload) error {
	if upload == nil {
		return fmt.Errorf("%w: upload", ErrNilParameter)
	}
	return nil
}

func validateReport(report *analysis.Report) error {
	if report == nil {
		return fmt.Errorf("%w: report", ErrNilParameter)
	}
	return nil
}

func validateLimit(limit int) error {
	if limit < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	return nil
}
