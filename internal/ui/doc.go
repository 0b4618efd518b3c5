// Package ui provides terminal UI components for the mowerctl CLI.
//
// This package uses Bubble Tea and Lipgloss to render styled terminal
// output. The components follow a "run once and exit" pattern: they
// render output but never wait for user interaction, except for the
// explicit confirmation prompt.
//
// # Architecture
//
//   - Header: command banner showing operation name and parameters
//   - Progress: progress bar with step list
//   - Result: success, failure and warning boxes
//   - RenderReport: status panel for a mower.Report
//
// Runner orchestrates header → progress → result for composite mower
// operations:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:   "Override",
//	    Command: "mowerctl override --hours 3",
//	    Params:  map[string]string{"Mower": "garden"},
//	})
//
//	err := runner.Run(func(onStep ui.StepCallback) (map[string]string, error) {
//	    m := mower.New(transport, channel, mower.WithProgress(ui.MowerProgress(onStep)))
//	    ...
//	})
//
// Failure boxes take their troubleshooting tips from protocol.Hint.
//
// # Logging Integration
//
// Logging is controlled by the MOWERBLE_LOG_LEVEL environment variable or
// the --log-level flag. When unset, zap logging is silent so the UI output
// stays clean.
package ui
