package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// StageProgress renders pipeline progress as a percentage bar. Update
// matches the analysis progress callback signature.
type StageProgress struct {
	bar     *progressbar.ProgressBar
	writer  io.Writer
	current int
	mu      sync.Mutex
}

// NewStageProgress creates a 0-100 progress bar writing to w.
func NewStageProgress(w io.Writer, description string) *StageProgress {
	if w == nil {
		w = os.Stderr
	}
	p := &StageProgress{writer: w}
	p.bar = progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan][bold]%s[reset]", description)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return p
}

// Update moves the bar to percent and shows the stage name. Progress never
// moves backwards.
func (p *StageProgress) Update(stage string, percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	percent = max(0, min(percent, 100))
	if percent < p.current {
		return
	}
	p.current = percent

	p.bar.Describe(fmt.Sprintf("[cyan][bold]%s[reset]", stage))
	if err := p.bar.Set(percent); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Percent returns the last percentage shown.
func (p *StageProgress) Percent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Finish completes the bar if the pipeline stopped early.
func (p *StageProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar.IsFinished() {
		return
	}
	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
}
