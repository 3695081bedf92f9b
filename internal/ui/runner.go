package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// RunnerConfig describes a one-shot command.
type RunnerConfig struct {
	Title           string    // e.g., "Device scan"
	Command         string    // e.g., "castwatch scan"
	Params          []Param   // Shown in the header
	Steps           []string  // Step names, in order
	Troubleshooting []string  // Tips shown when the operation fails
	Output          io.Writer // Default: os.Stdout
	Width           int       // Default: terminal width
}

// Runner prints header, step progress and a result box around an operation.
type Runner struct {
	config   RunnerConfig
	header   *Header
	progress *Progress
	output   io.Writer
	width    int
	now      func() time.Time
}

// Operation does the work of a command. It reports steps through onStep and
// returns the details shown in the success box.
type Operation func(ctx context.Context, onStep StepCallback) ([]Param, error)

// NewRunner creates a runner for a command
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	width := config.Width
	if width <= 0 {
		width = GetTerminalWidth()
	}

	var progress *Progress
	if len(config.Steps) > 0 {
		progress = NewProgress(config.Steps...)
		progress.SetWidth(width)
	}

	return &Runner{
		config:   config,
		header:   NewHeader(config.Title, config.Command, config.Params...).SetWidth(width),
		progress: progress,
		output:   config.Output,
		width:    width,
		now:      time.Now,
	}
}

// Run executes op between the header and the result box and returns its error.
func (r *Runner) Run(ctx context.Context, op Operation) error {
	start := r.now()

	r.println(r.header.Render())
	r.println("")

	details, err := op(ctx, r.stepCallback())
	duration := r.now().Sub(start).Round(time.Millisecond)

	r.println("")
	if err != nil {
		result := NewFailureResult(r.config.Title+" failed", err, r.config.Troubleshooting)
		r.println(result.SetWidth(r.width).Render())
		return err
	}

	details = append(details, Param{Key: "Duration", Value: duration.String()})
	result := NewSuccessResult(r.config.Title+" complete", details...)
	r.println(result.SetWidth(r.width).Render())
	return nil
}

// Progress returns the step tracker, or nil when no steps were configured.
func (r *Runner) Progress() *Progress {
	return r.progress
}

func (r *Runner) stepCallback() StepCallback {
	return func(stepNumber int, status StepStatus, message string) {
		if r.progress == nil || stepNumber < 1 || stepNumber > len(r.progress.Steps) {
			return
		}
		r.progress.UpdateStep(stepNumber, status, message)

		line := r.progress.renderStepLine(r.progress.Steps[stepNumber-1])
		switch status {
		case StepRunning:
			// Overwritten by the final line of the step.
			_, _ = fmt.Fprint(r.output, line+"\r")
		case StepComplete, StepFailed, StepSkipped:
			r.println(line)
		}
	}
}

func (r *Runner) println(s string) {
	_, _ = fmt.Fprintln(r.output, s)
}
