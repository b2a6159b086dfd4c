// Package analysis runs the readiness pipeline over an upload: field mapping,
// rule validation, scoring and mapping skeleton generation.
package analysis

import (
	"fmt"
	"time"

	"github.com/Veraticus/invoice-readiness/internal/common"
	"github.com/Veraticus/invoice-readiness/internal/mapping"
	"github.com/Veraticus/invoice-readiness/internal/rules"
)

// Deps contains the collaborators of the analysis engine. Every field is
// optional; missing ones fall back to defaults.
type Deps struct {
	// Uploads provides stored uploads. Required only by Analyze.
	Uploads UploadSource
	// Rules evaluates validation rules.
	Rules *rules.Engine
	// Mapper detects field coverage.
	Mapper *mapping.Mapper
	// Clock stamps reports.
	Clock func() time.Time
}

// Config holds configuration options for the analysis engine.
type Config struct {
	// DefaultCountry selects country rules for uploads stored without one.
	DefaultCountry string
	// DBLabel is reported in report metadata.
	DBLabel string
	// MaxRows is the largest record set accepted.
	MaxRows int
	// MaxColumns is the largest source field list accepted.
	MaxColumns int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DefaultCountry: rules.CountryUAE,
		DBLabel:        "SQLite",
		MaxRows:        200,
		MaxColumns:     500,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.DefaultCountry == "" {
		return fmt.Errorf("%w: default country is required", common.ErrInvalidConfig)
	}
	if c.MaxRows <= 0 {
		return fmt.Errorf("%w: max rows must be positive, got %d", common.ErrInvalidConfig, c.MaxRows)
	}
	if c.MaxColumns <= 0 {
		return fmt.Errorf("%w: max columns must be positive, got %d", common.ErrInvalidConfig, c.MaxColumns)
	}
	return nil
}
