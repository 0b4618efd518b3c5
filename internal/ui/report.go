package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/mowerble/internal/mower"
)

// LowBatteryLevel is the charge below which the battery is highlighted
const LowBatteryLevel = 20

// RenderReport renders a status snapshot as a panel. Sections the mower
// did not answer are left out.
func RenderReport(r *mower.Report, width int) string {
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	title := strings.TrimSpace(r.Manufacturer + " " + r.Model)
	if r.Name != "" {
		title = fmt.Sprintf("%s (%s)", r.Name, title)
	}

	sections := []string{SectionTitleStyle.Render(title)}

	status := map[string]string{
		"State":    r.State.String(),
		"Activity": r.Activity.String(),
		"Battery":  renderBattery(r.BatteryLevel, r.Charging),
	}
	if r.SerialNumber != 0 {
		status["Serial"] = fmt.Sprintf("%d", r.SerialNumber)
	}
	if r.NextStart.IsZero() {
		status["Next start"] = "not scheduled"
	} else {
		status["Next start"] = r.NextStart.Format("Mon 2 Jan 15:04")
	}
	sections = append(sections, strings.Join(renderDetails(status), "\n"))

	if s := r.Statistics; s != nil {
		stats := map[string]string{
			"Running":       hours(s.TotalRunningTime),
			"Cutting":       hours(s.TotalCuttingTime),
			"Charging":      hours(s.TotalChargingTime),
			"Searching":     hours(s.TotalSearchingTime),
			"Blade usage":   hours(s.CuttingBladeUsageTime),
			"Collisions":    fmt.Sprintf("%d", s.NumberOfCollisions),
			"Charge cycles": fmt.Sprintf("%d", s.NumberOfChargingCycles),
		}
		sections = append(sections,
			SectionTitleStyle.Render("Statistics"),
			strings.Join(renderDetails(stats), "\n"),
		)
	}

	if msg := r.LastMessage; msg != nil && msg.Code != 0 {
		line := msg.Code.String()
		if !msg.Time.IsZero() {
			line = msg.Time.Format("2006-01-02 15:04") + "  " + line
		}
		sections = append(sections,
			SectionTitleStyle.Render("Last message"),
			ResultValueStyle.Render("   "+line),
		)
	}

	return PanelStyle(width).Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func renderBattery(level int, charging bool) string {
	text := fmt.Sprintf("%d%%", level)
	if charging {
		text += " (charging)"
	}
	if level < LowBatteryLevel && !charging {
		return BatteryLowStyle.Render(text)
	}
	return text
}

func hours(d time.Duration) string {
	return fmt.Sprintf("%.1f h", d.Hours())
}
