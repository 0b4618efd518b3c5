package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/muurk/mowerble/internal/mower"
	"github.com/muurk/mowerble/internal/schema"
)

// RunnerConfig holds configuration for one mower operation
type RunnerConfig struct {
	Title   string            // Operation title (e.g., "Override")
	Command string            // Full command (e.g., "mowerctl override --hours 3")
	Params  map[string]string // Parameters to display in header
	Output  io.Writer         // Output writer (default: os.Stdout)
	Width   int               // Terminal width (default: detected)
}

// Runner drives the header → progress → result flow of a mower operation
type Runner struct {
	config   RunnerConfig
	header   *Header
	progress *Progress
	output   io.Writer
	width    int
	now      func() time.Time
}

// NewRunner creates a runner for one operation
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	width := config.Width
	if width <= 0 {
		width = GetTerminalWidth()
	}

	progress := NewProgress("", 0)
	progress.SetWidth(width)

	return &Runner{
		config:   config,
		header:   NewHeader(config.Title, config.Command, config.Params).SetWidth(width),
		progress: progress,
		output:   config.Output,
		width:    width,
		now:      time.Now,
	}
}

// Operation is the work a Runner wraps. It reports steps through onStep
// and returns the details shown in the success box.
type Operation func(onStep StepCallback) (map[string]string, error)

// Run prints the header, executes op and prints its result
func (r *Runner) Run(op Operation) error {
	start := r.now()

	_, _ = fmt.Fprintln(r.output, r.header.Render())
	_, _ = fmt.Fprintln(r.output)

	details, err := op(r.onStep)
	duration := r.now().Sub(start)

	r.finish(err)
	_, _ = fmt.Fprintln(r.output)

	if err != nil {
		result := NewFailureResult(r.config.Title+" failed", err, nil).SetWidth(r.width)
		_, _ = fmt.Fprintln(r.output, result.Render())
		return err
	}

	if details == nil {
		details = make(map[string]string)
	}
	details["Duration"] = duration.Round(time.Millisecond).String()
	result := NewSuccessResult(r.config.Title+" complete", details).SetWidth(r.width)
	_, _ = fmt.Fprintln(r.output, result.Render())
	return nil
}

// Progress returns the step tracker
func (r *Runner) Progress() *Progress { return r.progress }

func (r *Runner) onStep(stepNumber int, name string, status StepStatus, message string) {
	if stepNumber > r.progress.Total() {
		r.progress.Resize(stepNumber)
	}
	if stepNumber < 1 {
		return
	}
	if name != "" {
		r.progress.NameStep(stepNumber, name)
	}

	switch status {
	case StepPending:
		r.progress.UpdateStep(stepNumber, status, message)
		return
	case StepFailed:
		r.progress.FailStep(stepNumber, message)
		for _, step := range r.progress.Steps[stepNumber-1:] {
			_, _ = fmt.Fprintln(r.output, r.progress.renderStepLine(step))
		}
		return
	case StepRunning:
		r.progress.StartStep(stepNumber, message)
		// Overwritten when the step settles
		_, _ = fmt.Fprint(r.output, r.progress.renderStepLine(r.progress.Steps[stepNumber-1])+"\r")
		return
	case StepComplete:
		r.progress.CompleteStep(stepNumber, message)
	default:
		r.progress.UpdateStep(stepNumber, status, message)
	}
	_, _ = fmt.Fprintln(r.output, r.progress.renderStepLine(r.progress.Steps[stepNumber-1]))
}

// finish settles the step that was still running when the operation returned
func (r *Runner) finish(err error) {
	for _, step := range r.progress.Steps {
		if step.Status != StepRunning {
			continue
		}
		if err != nil {
			r.onStep(step.Number, "", StepFailed, "")
		} else {
			r.onStep(step.Number, "", StepComplete, "")
		}
	}
}

// MowerProgress adapts onStep to mower.Progress. Each reported step
// completes the one before it; Run settles the last.
func MowerProgress(onStep StepCallback) mower.Progress {
	prev := 0
	var prevName schema.Name
	return func(step, total int, name schema.Name) {
		if prev > 0 && prev != step {
			onStep(prev, string(prevName), StepComplete, "")
		}
		// Declare the remaining steps so the list shows them as pending
		if total > step {
			onStep(total, "", StepPending, "")
		}
		onStep(step, string(name), StepRunning, "")
		prev, prevName = step, name
	}
}
