package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ConfirmPhrase is what the user types to accept a confirmation
const ConfirmPhrase = "yes"

// Confirm displays a warning box and asks the user to type ConfirmPhrase.
// It returns true only for that exact answer.
func Confirm(in io.Reader, out io.Writer, title string, warnings []string, note string) bool {
	width := GetTerminalWidth()

	lines := []string{"", WarningTitleStyle.Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, title)), ""}

	bulletStyle := lipgloss.NewStyle().Foreground(TextColor)
	for _, warning := range warnings {
		lines = append(lines, bulletStyle.Render("   • "+warning))
	}
	lines = append(lines, "")

	if note != "" {
		noteStyle := lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true).
			Width(width - 12).
			PaddingLeft(3)
		lines = append(lines, noteStyle.Render(note), "")
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(WarningColor).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))

	_, _ = fmt.Fprintln(out, box)
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprint(out, WarningTitleStyle.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", ConfirmPhrase)))

	input, err := bufio.NewReader(in).ReadString('\n')
	_, _ = fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(input), ConfirmPhrase) {
		return true
	}

	_, _ = fmt.Fprintln(out, lipgloss.NewStyle().Foreground(MutedColor).Render("  Operation cancelled."))
	_, _ = fmt.Fprintln(out)
	return false
}

// LongOverrideThreshold is the override length in hours above which
// mowerctl asks for confirmation
const LongOverrideThreshold = 12.0

// ConfirmLongOverride is the confirmation shown before a long override
func ConfirmLongOverride(in io.Reader, out io.Writer, hours float64) bool {
	return Confirm(in, out,
		"LONG OVERRIDE",
		[]string{
			fmt.Sprintf("The mower ignores its schedule for %.1f hours", hours),
			"It keeps mowing through the night unless parked or paused",
			"Run 'mowerctl park' to cancel the override early",
		},
		"The override is stored on the mower and survives this command exiting.",
	)
}
