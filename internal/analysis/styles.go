package analysis

import (
	"strings"

	"github.com/Veraticus/invoice-readiness/internal/cli"
	"github.com/charmbracelet/lipgloss"
)

// Styles holds the lipgloss styles used when rendering a report.
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Info     lipgloss.Style
	Subtle   lipgloss.Style
	Normal   lipgloss.Style

	Box        lipgloss.Style
	ScoreBox   lipgloss.Style
	GapBox     lipgloss.Style
	MappingBox lipgloss.Style
}

func panel(border lipgloss.Border, color lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Border(border).BorderForeground(color).Padding(0, 1)
}

// NewStyles builds the report styles from the shared CLI palette.
func NewStyles() *Styles {
	return &Styles{
		Title:    cli.TitleStyle,
		Subtitle: cli.SubtitleStyle,
		Success:  cli.SuccessStyle,
		Warning:  cli.WarningStyle,
		Error:    cli.ErrorStyle,
		Info:     cli.InfoStyle,
		Subtle:   cli.SubtleStyle,
		Normal:   lipgloss.NewStyle(),

		Box:        panel(lipgloss.RoundedBorder(), cli.SubtleColor),
		ScoreBox:   panel(lipgloss.DoubleBorder(), cli.InfoColor).MarginTop(1),
		GapBox:     panel(lipgloss.RoundedBorder(), cli.WarningColor).MarginTop(1),
		MappingBox: panel(lipgloss.RoundedBorder(), cli.SuccessColor).MarginTop(1),
	}
}

// WithWidth narrows every panel to fit a terminal under 100 columns.
func (s *Styles) WithWidth(width int) *Styles {
	out := *s
	if width <= 0 || width >= 100 {
		return &out
	}
	inner := width - 4
	out.Box = s.Box.Width(inner)
	out.ScoreBox = s.ScoreBox.Width(inner)
	out.GapBox = s.GapBox.Width(inner)
	out.MappingBox = s.MappingBox.Width(inner)
	return &out
}

// ForScore colors a score by how close it sits to its cap.
func (s *Styles) ForScore(score, maxPoints int) lipgloss.Style {
	if maxPoints <= 0 {
		return s.Normal
	}
	switch ratio := float64(score) / float64(maxPoints); {
	case ratio >= 0.8:
		return s.Success
	case ratio >= 0.5:
		return s.Warning
	}
	return s.Error
}

// RenderProgressBar draws an unstyled bar; width defaults to 30.
func (s *Styles) RenderProgressBar(progress float64, width int) string {
	if width <= 0 {
		width = 30
	}
	filled := max(0, min(int(float64(width)*progress), width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// RenderBox wraps content in style, prefixing an optional bold title line.
func (s *Styles) RenderBox(content, title string, style lipgloss.Style) string {
	if title == "" {
		return style.Render(content)
	}
	return style.Render(s.Info.Bold(true).Render(" "+title+" ") + "\n" + content)
}
