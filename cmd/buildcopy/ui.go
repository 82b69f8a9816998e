package main

import (
	"fmt"
	"io"
	"strings"

	"buildcopy/internal/plugin"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7B61FF"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#73F59F"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	summaryStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7B61FF"))
)

func successText(s string) string { return successStyle.Render(s) }
func warningText(s string) string { return warningStyle.Render(s) }
func errorText(s string) string   { return errorStyle.Render(s) }
func infoText(s string) string    { return mutedStyle.Render(s) }

// renderReport prints one line per destination followed by a summary box.
func renderReport(w io.Writer, report plugin.Report) {
	fmt.Fprintln(w, titleStyle.Render("Copy results"))

	var copied, skipped, failed, removed int
	for _, res := range report.Results {
		var status string
		switch {
		case res.Error != nil:
			failed++
			status = errorText("failed ")
		case res.Skipped:
			skipped++
			status = warningText("skipped")
		default:
			copied++
			status = successText("copied ")
		}
		removed += len(res.Removed)

		line := fmt.Sprintf("  %s %s -> %s", status, res.Source, res.Destination)
		if len(res.Removed) > 0 {
			line += infoText(fmt.Sprintf(" (pruned %s)", strings.Join(res.Removed, ", ")))
		}
		fmt.Fprintln(w, line)
	}

	for _, f := range report.Failures {
		fmt.Fprintln(w, errorText(fmt.Sprintf("  pattern %d: %s: %v", f.Pattern, f.Source, f.Err)))
	}

	summary := fmt.Sprintf("%d copied, %d skipped, %d failed, %d pruned", copied, skipped, failed, removed)
	if report.Watching > 0 {
		summary += fmt.Sprintf("\nwatching %d source(s)", report.Watching)
	}
	fmt.Fprintln(w, summaryStyle.Render(summary))
}
