package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Veraticus/invoice-readiness/internal/schema"
	"gopkg.in/yaml.v3"
)

// Format is a mapping template serialization.
type Format string

// Supported template formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat resolves a format name; "yml" is accepted as YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported template format %q (valid: json, yaml)", s)
	}
}

// Template is the exportable form of a mapping skeleton, handed to
// integration teams to fill in.
type Template struct {
	Mappings     map[schema.Field]FieldMapping `json:"mappings" yaml:"mappings"`
	Name         string                        `json:"name" yaml:"name"`
	Description  string                        `json:"description" yaml:"description"`
	Version      string                        `json:"version" yaml:"version"`
	Instructions []string                      `json:"instructions" yaml:"instructions"`
}

// NewTemplate wraps a skeleton with the template header and instructions.
func NewTemplate(s Skeleton) Template {
	return Template{
		Name:        "E-Invoicing Field Mapping",
		Description: "Generated mapping template for GETS v0.1 compliance",
		Version:     SkeletonVersion,
		Mappings:    s.FieldMappings,
		Instructions: []string{
			"1. Review suggested mappings",
			"2. Fill in missing source fields",
			"3. Update confidence scores as needed",
			"4. Use this template in your integration",
		},
	}
}

// ExportTemplate renders a skeleton as a template document.
func ExportTemplate(s Skeleton, format Format) ([]byte, error) {
	tmpl := NewTemplate(s)

	switch format {
	case FormatJSON:
		out, err := json.MarshalIndent(tmpl, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode template: %w", err)
		}
		return out, nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(tmpl); err != nil {
			return nil, fmt.Errorf("failed to encode template: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode template: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported template format %q", format)
	}
}

// ParseTemplate reads a template document back. Mapping keys must be
// canonical fields.
func ParseTemplate(data []byte, format Format) (*Template, error) {
	var tmpl Template

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &tmpl); err != nil {
			return nil, fmt.Errorf("failed to decode template: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &tmpl); err != nil {
			return nil, fmt.Errorf("failed to decode template: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported template format %q", format)
	}

	for field := range tmpl.Mappings {
		if !schema.IsCanonical(field) {
			return nil, fmt.Errorf("template maps unknown field %q", field)
		}
	}

	return &tmpl, nil
}
