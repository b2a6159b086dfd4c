// Package ingest parses uploaded CSV and JSON invoice samples into records.
package ingest

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Veraticus/invoice-readiness/internal/common"
	"github.com/Veraticus/invoice-readiness/internal/model"
)

// Limits applied to every upload.
const (
	DefaultMaxRows  = 200
	DefaultMaxBytes = 5 << 20
)

var utf8BOM = []byte("\xef\xbb\xbf")

// Format identifies an upload file type.
type Format string

// Supported upload formats.
const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// DetectFormat picks the format from a file name's extension.
func DetectFormat(name string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	switch Format(ext) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q (use CSV or JSON)", common.ErrUnsupportedFormat, name)
	}
}

// Parser turns raw upload bytes into records.
type Parser struct {
	maxRows  int
	maxBytes int64
}

// Option configures a Parser.
type Option func(*Parser)

// WithMaxRows caps the number of data rows kept.
func WithMaxRows(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxRows = n
		}
	}
}

// WithMaxBytes caps the upload size.
func WithMaxBytes(n int64) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxBytes = n
		}
	}
}

// NewParser creates a parser with the default limits.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		maxRows:  DefaultMaxRows,
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFile reads an upload and dispatches on the file name's extension.
func (p *Parser) ParseFile(name string, r io.Reader) ([]model.Record, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return nil, err
	}

	content, err := p.read(r)
	if err != nil {
		return nil, err
	}

	var records []model.Record
	switch format {
	case FormatCSV:
		records, err = p.parseCSV(content)
	case FormatJSON:
		records, err = p.parseJSON(content)
	}
	if err != nil {
		return nil, err
	}

	slog.Debug("Parsed upload",
		"file", name,
		"format", string(format),
		"bytes", len(content),
		"rows", len(records))

	return records, nil
}

// ParseCSV parses CSV text. The first non-blank line is the header.
func (p *Parser) ParseCSV(r io.Reader) ([]model.Record, error) {
	content, err := p.read(r)
	if err != nil {
		return nil, err
	}
	return p.parseCSV(content)
}

// ParseJSON parses a JSON array of objects or a single object.
func (p *Parser) ParseJSON(r io.Reader) ([]model.Record, error) {
	content, err := p.read(r)
	if err != nil {
		return nil, err
	}
	return p.parseJSON(content)
}

func (p *Parser) read(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil reader", common.ErrInvalidInput)
	}

	content, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(content)) > p.maxBytes {
		return nil, fmt.Errorf("%w: upload exceeds %d bytes", common.ErrInvalidInput, p.maxBytes)
	}

	return bytes.TrimPrefix(content, utf8BOM), nil
}
