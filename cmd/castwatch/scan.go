package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/castwatch/castwatch/internal/cast"
	"github.com/castwatch/castwatch/internal/logging"
	"github.com/castwatch/castwatch/internal/monitor"
	"github.com/castwatch/castwatch/internal/ui"
)

var scanTimeout time.Duration

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover receivers and read their status once",
	Long: `Browse for cast receivers over mDNS, read each one's media status once,
and print the result as a table.`,
	Example: `  # Scan with the configured timeout
  castwatch scan

  # Listen longer on a busy network
  castwatch scan --timeout 5s`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 0, "How long to listen for advertisements (default: discovery.timeout)")
	rootCmd.AddCommand(scanCmd)
}

var scanTroubleshooting = []string{
	"Make sure this machine is on the same network as the receivers",
	"Check that multicast (UDP 5353) is not blocked by a firewall",
	"Try a longer --timeout on busy or slow networks",
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Silent unless asked, so log lines do not break the boxes.
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}
	defer logging.Sync()

	scanner := cfg.Scanner()
	if scanTimeout > 0 {
		scanner.Timeout = scanTimeout
	}

	pool := cast.NewPool()
	defer func() { _ = pool.Close() }()

	mon := monitor.New(scanner, pool, cfg.MonitorSettings())

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Device scan",
		Command: "castwatch scan",
		Params: []ui.Param{
			{Key: "Service", Value: scanner.Service},
			{Key: "Timeout", Value: scanner.Timeout.String()},
		},
		Steps:           []string{"Browse for devices", "Read statuses"},
		Troubleshooting: scanTroubleshooting,
		Output:          cmd.OutOrStdout(),
	})

	var rows []ui.DeviceRow
	err = runner.Run(cmd.Context(), func(ctx context.Context, onStep ui.StepCallback) ([]ui.Param, error) {
		onStep(1, ui.StepRunning, "")
		if _, err := mon.RefreshDevices(ctx); err != nil {
			onStep(1, ui.StepFailed, "")
			return nil, err
		}
		devices := mon.CurrentDevices()
		onStep(1, ui.StepComplete, plural(len(devices), "device"))

		if len(devices) == 0 {
			onStep(2, ui.StepSkipped, "nothing to read")
			return []ui.Param{{Key: "Devices", Value: "0"}}, nil
		}

		onStep(2, ui.StepRunning, "")
		if _, err := mon.UpdateStatuses(ctx, cfg.Monitor.Retries); err != nil {
			onStep(2, ui.StepFailed, "")
			return nil, err
		}
		statuses := mon.Statuses()
		onStep(2, ui.StepComplete, fmt.Sprintf("%d ready", len(statuses)))

		rows = deviceRows(devices, statuses)
		return []ui.Param{
			{Key: "Devices", Value: strconv.Itoa(len(devices))},
			{Key: "Playing", Value: strconv.Itoa(countPlaying(rows))},
		}, nil
	})
	if err != nil {
		if cast.IsNetworkError(err) {
			fmt.Fprintln(cmd.ErrOrStderr(), cast.GetTroubleshootingHint(err))
		}
		return err
	}

	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		p := ui.NewPrinter(out)
		p.Newline()
		p.PrintWarning("No devices found",
			ui.Param{Key: "Service", Value: scanner.Service},
			ui.Param{Key: "Domain", Value: scanner.Domain},
		)
		return nil
	}
	if ui.IsTerminal(out) {
		return ui.RenderOnce(out, "\n"+ui.RenderDeviceTable(rows, ui.GetTerminalWidth()))
	}
	p := ui.NewPrinter(out)
	p.Newline()
	p.PrintDevices(rows)
	return nil
}

// deviceRows builds the scan table. Devices without a ready status are shown
// as not responding.
func deviceRows(devices []monitor.Device, statuses monitor.Snapshot) []ui.DeviceRow {
	rows := make([]ui.DeviceRow, 0, len(devices))
	for _, d := range devices {
		row := ui.DeviceRow{Name: d.Name, Address: d.Addr(), Model: d.Model}

		status, ok := statuses[d.Name]
		switch {
		case !ok:
			row.Note = "no status"
		case status.Title != "":
			row.Playing = status.Title
		case status.ContentID != "":
			row.Playing = status.ContentID
		default:
			row.Note = "idle"
		}
		rows = append(rows, row)
	}
	return rows
}

func countPlaying(rows []ui.DeviceRow) int {
	n := 0
	for _, r := range rows {
		if r.Playing != "" {
			n++
		}
	}
	return n
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
