package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/invoice-readiness/internal/mapping"
	"github.com/Veraticus/invoice-readiness/internal/model"
	"github.com/Veraticus/invoice-readiness/internal/rules"
	"github.com/Veraticus/invoice-readiness/internal/schema"
	"github.com/Veraticus/invoice-readiness/internal/scoring"
)

// maxGapsShown limits the gap list in the summary view.
const maxGapsShown = 10

// CLIFormatter implements ReportFormatter for terminal display.
type CLIFormatter struct {
	styles *Styles
}

// NewCLIFormatter creates a new CLI formatter with default styles.
func NewCLIFormatter() *CLIFormatter {
	return &CLIFormatter{
		styles: NewStyles(),
	}
}

// FormatSummary creates a high-level summary of the report.
func (f *CLIFormatter) FormatSummary(report *Report) string {
	if report == nil {
		return f.styles.Error.Render("No report available")
	}

	sections := []string{
		f.formatHeader(report),
		f.formatScores(report.Scores),
		f.formatCoverage(report.Coverage),
	}

	if len(report.Gaps) > 0 {
		sections = append(sections, f.formatGaps(report.Gaps))
	}

	if len(report.FieldSuggestions) > 0 {
		sections = append(sections, f.formatSuggestions(report.FieldSuggestions))
	}

	return strings.Join(sections, "\n\n")
}

// FormatFindings lists every rule finding with its diagnostics.
func (f *CLIFormatter) FormatFindings(report *Report) string {
	if report == nil {
		return f.styles.Error.Render("No report available")
	}

	title := f.styles.Subtitle.Render("Rule Findings:")
	if len(report.RuleFindings) == 0 {
		return title + "\n" + f.styles.Subtle.Render("No rules evaluated")
	}

	lines := make([]string, 0, len(report.RuleFindings))
	for _, finding := range report.RuleFindings {
		lines = append(lines, f.formatFinding(finding))
	}

	return title + "\n" + strings.Join(lines, "\n")
}

// FormatSkeleton renders the mapping skeleton as a table in canonical order.
func (f *CLIFormatter) FormatSkeleton(s mapping.Skeleton) string {
	fieldWidth := 24
	sourceWidth := 24
	statusWidth := 12

	header := f.styles.Subtle.Bold(true).Render(fmt.Sprintf("%-*s %-*s %-*s %s",
		fieldWidth, "Canonical Field",
		sourceWidth, "Source Column",
		statusWidth, "Status",
		"Confidence"))

	rows := []string{header}
	for _, field := range fieldOrder(s) {
		m := s.FieldMappings[field]

		source := m.SourceField
		if source == "" {
			source = "-"
		}
		source = fitColumn(source, sourceWidth)

		status := string(m.Status)
		var styled string
		switch m.Status {
		case mapping.StatusExactMatch:
			styled = f.styles.Success.Render(fmt.Sprintf("%-*s", statusWidth, status))
		case mapping.StatusSuggested:
			styled = f.styles.Warning.Render(fmt.Sprintf("%-*s", statusWidth, status))
		default:
			styled = f.styles.Error.Render(fmt.Sprintf("%-*s", statusWidth, status))
		}

		confidence := "-"
		if m.Status != mapping.StatusMissing {
			confidence = fmt.Sprintf("%.0f%%", m.Confidence*100)
		}

		rows = append(rows, fmt.Sprintf("%-*s %s %s %s",
			fieldWidth, field,
			source,
			styled,
			confidence))
	}

	return f.styles.RenderBox(strings.Join(rows, "\n"), "Mapping Skeleton v"+s.Version, f.styles.MappingBox)
}

// formatHeader creates the report header section.
func (f *CLIFormatter) formatHeader(report *Report) string {
	title := f.styles.Title.Render("📊 E-Invoicing Readiness Report")

	var details []string
	if report.ReportID != "" {
		details = append(details, "Report: "+report.ReportID)
	}
	if report.UploadID != "" {
		details = append(details, "Upload: "+report.UploadID)
	}
	country := report.Meta.Country
	if country == "" {
		country = "-"
	}
	details = append(details,
		"Country: "+country,
		fmt.Sprintf("Rows: %d", report.Meta.RowsParsed))
	if report.Meta.ERP != "" {
		details = append(details, "ERP: "+report.Meta.ERP)
	}

	info := f.styles.Subtitle.Render(strings.Join(details, " | "))
	generated := f.styles.Subtle.Render("Analyzed: " + report.Meta.AnalyzedAt.Format(time.RFC3339))

	return fmt.Sprintf("%s\n%s\n%s", title, info, generated)
}

// formatScores renders the overall score and one bar per category.
func (f *CLIFormatter) formatScores(s scoring.Scores) string {
	overallStyle := f.styles.ForScore(s.Overall, scoring.MaxOverall)

	var emoji string
	switch {
	case s.Overall >= 80:
		emoji = "🎯"
	case s.Overall >= 50:
		emoji = "⚠️"
	default:
		emoji = "❌"
	}

	lines := []string{
		overallStyle.Bold(true).Render(fmt.Sprintf("%s Readiness Score: %d/%d", emoji, s.Overall, scoring.MaxOverall)),
		overallStyle.Render(f.styles.RenderProgressBar(float64(s.Overall)/scoring.MaxOverall, 30)),
		"",
	}

	categories := []struct {
		label string
		score int
		max   int
	}{
		{"Data", s.Data, scoring.MaxData},
		{"Coverage", s.Coverage, scoring.MaxCoverage},
		{"Rules", s.Rules, scoring.MaxRules},
		{"Posture", s.Posture, scoring.MaxPosture},
	}

	for _, c := range categories {
		style := f.styles.ForScore(c.score, c.max)
		bar := style.Render(f.styles.RenderProgressBar(float64(c.score)/float64(c.max), 20))
		lines = append(lines, fmt.Sprintf("%-9s %s %s", c.label, bar, f.styles.Subtle.Render(fmt.Sprintf("%d/%d", c.score, c.max))))
	}

	return f.styles.RenderBox(strings.Join(lines, "\n"), "", f.styles.ScoreBox)
}

// formatCoverage summarizes field coverage counts.
func (f *CLIFormatter) formatCoverage(cov mapping.Coverage) string {
	title := f.styles.Subtitle.Render("Field Coverage:")

	lines := []string{
		f.styles.Success.Render(fmt.Sprintf("✓ Matched: %d", len(cov.Matched))),
		f.styles.Warning.Render(fmt.Sprintf("~ Close:   %d", len(cov.Close))),
		f.styles.Error.Render(fmt.Sprintf("✗ Missing: %d", len(cov.Missing))),
	}

	return title + "\n" + strings.Join(lines, "\n")
}

// formatGaps lists the first gaps.
func (f *CLIFormatter) formatGaps(gaps []string) string {
	shown := gaps
	if len(shown) > maxGapsShown {
		shown = shown[:maxGapsShown]
	}

	lines := make([]string, 0, len(shown)+1)
	for _, gap := range shown {
		lines = append(lines, f.styles.Warning.Render("•")+" "+gap)
	}
	if len(gaps) > maxGapsShown {
		lines = append(lines, f.styles.Subtle.Render(fmt.Sprintf("... and %d more", len(gaps)-maxGapsShown)))
	}

	return f.styles.RenderBox(strings.Join(lines, "\n"), fmt.Sprintf("Gaps (%d)", len(gaps)), f.styles.GapBox)
}

// formatSuggestions lists the mapping hints.
func (f *CLIFormatter) formatSuggestions(suggestions []string) string {
	title := f.styles.Subtitle.Render("💡 Mapping Suggestions:")

	lines := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		lines = append(lines, f.styles.Info.Render("•")+" "+s)
	}

	return title + "\n" + strings.Join(lines, "\n")
}

// formatFinding renders one finding with any diagnostics it carries.
func (f *CLIFormatter) formatFinding(r rules.Result) string {
	var head string
	if r.OK {
		head = f.styles.Success.Render("✓ " + string(r.Rule))
	} else {
		head = f.styles.Error.Render("✗ " + string(r.Rule))
	}

	line := head + " " + r.Explanation

	var details []string
	if r.ExampleLine != nil {
		details = append(details, fmt.Sprintf("line %d", *r.ExampleLine))
	}
	if r.Expected != nil {
		details = append(details, "expected "+model.FormatNumber(*r.Expected))
	}
	if r.Got != nil {
		details = append(details, "got "+model.FormatNumber(*r.Got))
	}
	if r.Value != "" {
		details = append(details, r.Value)
	}
	if len(details) > 0 {
		line += "\n  " + f.styles.Subtle.Render(strings.Join(details, " | "))
	}

	return line
}

// fieldOrder returns the skeleton's fields in canonical order.
// fitColumn truncates s on rune boundaries and pads it to width display cells.
func fitColumn(s string, width int) string {
	if runes := []rune(s); len(runes) > width-1 {
		s = string(runes[:width-4]) + "..."
	}
	return s + strings.Repeat(" ", max(0, width-lipgloss.Width(s)))
}

func fieldOrder(s mapping.Skeleton) []schema.Field {
	out := make([]schema.Field, 0, len(s.FieldMappings))
	for _, field := range schema.Fields() {
		if _, ok := s.FieldMappings[field]; ok {
			out = append(out, field)
		}
	}
	return out
}
