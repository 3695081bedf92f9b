package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// DeviceRow is one line of the scan table.
type DeviceRow struct {
	Name    string
	Address string
	Model   string
	Playing string // Title or content id; empty when nothing plays
	Note    string // Shown muted when Playing is empty, e.g. "idle" or an error
}

// RenderDeviceTable renders rows as aligned columns.
func RenderDeviceTable(rows []DeviceRow, width int) string {
	if len(rows) == 0 {
		return StepPendingStyle.Render("  No devices found")
	}

	headers := []string{"NAME", "ADDRESS", "MODEL", "PLAYING"}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i, cell := range []string{r.Name, r.Address, r.Model} {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	// The last column takes what is left and truncates.
	used := 2
	for _, w := range widths[:3] {
		used += w + 2
	}
	last := clampWidth(width) - used
	if last < 10 {
		last = 10
	}

	cell := func(s string, w int) string {
		if lipgloss.Width(s) > w {
			runes := []rune(s)
			for lipgloss.Width(string(runes)) > w-1 && len(runes) > 0 {
				runes = runes[:len(runes)-1]
			}
			s = string(runes) + "…"
		}
		return s + strings.Repeat(" ", w-lipgloss.Width(s))
	}

	var lines []string
	head := "  "
	for i, h := range headers[:3] {
		head += cell(h, widths[i]) + "  "
	}
	lines = append(lines, TableHeaderStyle.Render(head+headers[3]))

	for _, r := range rows {
		line := "  " + cell(r.Name, widths[0]) + "  " + cell(r.Address, widths[1]) + "  " + cell(r.Model, widths[2]) + "  "
		if r.Playing != "" {
			line += StepCompleteStyle.Render(cell(r.Playing, last))
		} else {
			line += StepPendingStyle.Render(cell(r.Note, last))
		}
		lines = append(lines, strings.TrimRight(line, " "))
	}

	return strings.Join(lines, "\n")
}
