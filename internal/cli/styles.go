// Package cli provides styled terminal output using lipgloss.
package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette.
var (
	PrimaryColor = lipgloss.Color("#4C8BF5")
	SuccessColor = lipgloss.Color("#2EB67D")
	WarningColor = lipgloss.Color("#F2A900")
	ErrorColor   = lipgloss.Color("#E01E5A")
	InfoColor    = lipgloss.Color("#36C5F0")
	SubtleColor  = lipgloss.Color("#6B7280")
	borderColor  = lipgloss.Color("#3F3F46")
)

// Text styles shared by commands and the report formatter.
var (
	TitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor).MarginBottom(1)
	SubtitleStyle = lipgloss.NewStyle().Foreground(SubtleColor).MarginBottom(1)
	SuccessStyle  = lipgloss.NewStyle().Foreground(SuccessColor)
	WarningStyle  = lipgloss.NewStyle().Foreground(WarningColor)
	ErrorStyle    = lipgloss.NewStyle().Foreground(ErrorColor)
	InfoStyle     = lipgloss.NewStyle().Foreground(InfoColor)
	SubtleStyle   = lipgloss.NewStyle().Foreground(SubtleColor)

	// BoxStyle frames RenderBox output.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)

	// TableHeaderStyle underlines the RenderTable header row.
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(borderColor)

	TableCellStyle = lipgloss.NewStyle().PaddingRight(2)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	InvoiceIcon = "🧾"
)

// FormatSuccess prefixes message with the success icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError prefixes message with the error icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning prefixes message with the warning icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo prefixes message with the info icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle renders a section title.
func FormatTitle(title string) string {
	return TitleStyle.Render(InvoiceIcon + " " + title)
}

// RenderBox frames content under a title.
func RenderBox(title, content string) string {
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.UnsetMargins().Render(title),
		content))
}

// RenderTable lays out rows under a styled header. Column widths fit the
// widest cell.
func RenderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	line := func(cells []string) string {
		parts := make([]string, len(widths))
		for i := range widths {
			var cell string
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = TableCellStyle.Render(fmt.Sprintf("%-*s", widths[i], cell))
		}
		return strings.TrimRight(strings.Join(parts, ""), " ")
	}

	out := []string{TableHeaderStyle.Render(line(headers))}
	for _, row := range rows {
		out = append(out, line(row))
	}
	return strings.Join(out, "\n")
}
