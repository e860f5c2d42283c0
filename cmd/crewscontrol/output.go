package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/ShayCichocki/crewscontrol/internal/crewerr"
	"github.com/ShayCichocki/crewscontrol/internal/orchestrator"
	"github.com/ShayCichocki/crewscontrol/internal/retry"
)

var (
	bannerStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4)
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")).Padding(1, 4)
)

// printBanner prints a padded welcome line.
func printBanner(msg string) {
	fmt.Println(bannerStyle.Render(msg))
}

// printError prints a padded error to stderr.
func printError(err error) {
	fmt.Fprintln(os.Stderr, errorStyle.Render(errorMessage(err)))
}

// errorMessage prefixes err with its kind. Graph and path-safety errors
// abort the run whatever exit_on_error says, so they are marked as such.
func errorMessage(err error) string {
	heading := "Error"
	switch crewerr.Kind(err) {
	case crewerr.ErrConfiguration:
		heading = "Configuration error"
	case crewerr.ErrGraph:
		heading = "Dependency graph error"
	case crewerr.ErrPathSafety:
		heading = "Path safety error"
	case crewerr.ErrCacheIO:
		heading = "Cache error"
	}
	msg := heading + ": " + err.Error()
	if crewerr.IsFatal(err) {
		msg += "\nRun aborted."
	}
	return msg
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

func printSummary(summary *orchestrator.RunSummary) {
	if summary == nil {
		return
	}
	for _, res := range summary.Results {
		switch {
		case res.CacheHit:
			printStatus("●", fmt.Sprintf("%s (cached)", res.Unit), color.FgCyan)
		case res.Status == retry.Succeeded:
			printStatus("✓", res.Unit, color.FgGreen)
		case res.Status == retry.RateLimited:
			printStatus("⚠", fmt.Sprintf("%s: %s", res.Unit, res.Text), color.FgYellow)
		default:
			printStatus("✗", fmt.Sprintf("%s: %s", res.Unit, res.Text), color.FgRed)
		}
	}
	for _, v := range summary.Validations {
		if v.Outcome.Passed() {
			printStatus("✓", fmt.Sprintf("validation %s -> %s", v.Unit, v.Path), color.FgGreen)
			continue
		}
		printStatus("✗", fmt.Sprintf("validation %s -> %s", v.Unit, v.Path), color.FgRed)
		for _, f := range v.Outcome.Failures() {
			fmt.Printf("    %s\n", f)
		}
	}
	if !summary.FinishedAt.IsZero() {
		fmt.Printf("\nRun %s finished in %s\n", summary.RunID, formatDuration(summary.FinishedAt.Sub(summary.StartedAt)))
	}
}

func printReport(report *orchestrator.SuccessReport) {
	fmt.Printf("Success percentage: %.2f%%\n", report.Percentage)
	if len(report.Failures) == 0 {
		printStatus("✓", "All files succeeded!", color.FgGreen)
		return
	}
	fmt.Println("Failed files and reasons:")
	for _, f := range report.Failures {
		fmt.Printf("%s:\n", color.RedString(f.File))
		for _, reason := range f.Reasons {
			fmt.Printf("  %s\n", reason)
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s > 0 {
			return fmt.Sprintf("%dm%ds", m, s)
		}
		return fmt.Sprintf("%dm", m)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if m > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dh", h)
}
