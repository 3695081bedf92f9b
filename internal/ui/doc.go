// Package ui renders the terminal output of the castwatch one-shot commands.
//
// Output follows a "run once and exit" pattern built on Lipgloss, with the
// progress bar from Bubbles and a single Bubble Tea render for plain content.
// Nothing here is interactive except Confirm.
//
// A command is framed by a Runner:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:   "Device scan",
//	    Command: "castwatch scan",
//	    Steps:   []string{"Browse for devices", "Read statuses"},
//	})
//
//	err := runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) ([]ui.Param, error) {
//	    onStep(1, ui.StepRunning, "")
//	    // ...
//	    onStep(1, ui.StepComplete, "2 devices")
//	    return []ui.Param{{Key: "Devices", Value: "2"}}, nil
//	})
//
// Logging stays silent unless CASTWATCH_LOG_LEVEL is set, so zap output does
// not interleave with the boxes.
package ui
