package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Veraticus/invoice-readiness/internal/common"
	"github.com/Veraticus/invoice-readiness/internal/model"
)

var nonWord = regexp.MustCompile(`\W`)

// delimiters in preference order; ties go to the earlier entry.
var delimiters = []rune{',', ';', '\t', '|'}

// NormalizeHeader trims and lower-cases a header and replaces every non-word
// character with an underscore.
func NormalizeHeader(h string) string {
	return nonWord.ReplaceAllString(strings.ToLower(strings.TrimSpace(h)), "_")
}

// DetectDelimiter returns the candidate delimiter that splits the line into
// the most fields. Delimiters inside double-quoted headers are not counted.
func DetectDelimiter(line string) rune {
	counts := make(map[rune]int, len(delimiters))
	quoted := false
	for _, r := range line {
		if r == '"' {
			quoted = !quoted
			continue
		}
		if !quoted {
			counts[r]++
		}
	}

	best := delimiters[0]
	maxCount := 0
	for _, d := range delimiters {
		if counts[d] > maxCount {
			maxCount = counts[d]
			best = d
		}
	}
	return best
}

// ConvertValue infers a cell's type: numbers become float64, true/false
// become bool, everything else stays a trimmed string.
func ConvertValue(raw string) any {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}

	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}

	return value
}

func (p *Parser) parseCSV(content []byte) ([]model.Record, error) {
	headerLine := firstNonBlankLine(content)
	if headerLine == "" {
		return []model.Record{}, nil
	}

	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = DetectDelimiter(headerLine)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	var headers []string
	records := []model.Record{}

	for len(records) < p.maxRows {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: CSV parsing failed: %v", common.ErrInvalidInput, err)
		}
		if blank(fields) {
			continue
		}

		if headers == nil {
			headers = make([]string, len(fields))
			for i, h := range fields {
				headers[i] = NormalizeHeader(h)
			}
			continue
		}

		var row model.Record
		for i, header := range headers {
			var raw string
			if i < len(fields) {
				raw = fields[i]
			}
			row.Set(header, ConvertValue(raw))
		}
		records = append(records, row)
	}

	return records, nil
}

func firstNonBlankLine(content []byte) string {
	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) != "" {
			return strings.TrimRight(line, "\r")
		}
	}
	return ""
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
