package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/mattsolo1/grove-core/tui/theme"

	"github.com/mattsolo1/grove-backlog/pkg/diff"
	"github.com/mattsolo1/grove-backlog/pkg/sync"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.DefaultColors.LightText)

	successStyle = lipgloss.NewStyle().
			Foreground(theme.DefaultColors.Green)

	warnStyle = lipgloss.NewStyle().
			Foreground(theme.DefaultColors.Yellow)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("9"))

	dimStyle = lipgloss.NewStyle().
			Foreground(theme.DefaultColors.MutedText)
)

func colorEnabled() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// paint renders s with style only when stdout is a terminal.
func paint(style lipgloss.Style, s string) string {
	if !colorEnabled() {
		return s
	}
	return style.Render(s)
}

func actionStyle(r sync.Result) lipgloss.Style {
	switch {
	case r.Action == sync.ActionConflict:
		return warnStyle
	case !r.Success:
		return errorStyle
	case r.Action == sync.ActionSkip:
		return dimStyle
	}
	return successStyle
}

func formatResult(r sync.Result) string {
	var b strings.Builder
	status := string(r.Action)
	if !r.Success && r.Action != sync.ActionConflict {
		status += " failed"
	}
	b.WriteString(paint(actionStyle(r), fmt.Sprintf("%-16s", status)))
	b.WriteString(" ")
	b.WriteString(r.LocalID)
	if r.RemoteID != 0 {
		b.WriteString(paint(dimStyle, fmt.Sprintf(" #%d", r.RemoteID)))
	}
	if r.Message != "" {
		b.WriteString(paint(dimStyle, "  "+r.Message))
	}
	if r.Err != nil && r.Action != sync.ActionConflict {
		b.WriteString("\n" + strings.Repeat(" ", 17) + paint(errorStyle, r.Err.Error()))
	}
	return b.String()
}

func formatResults(title string, results []sync.Result) string {
	var b strings.Builder
	b.WriteString(paint(headerStyle, title))
	b.WriteString("\n")
	if len(results) == 0 {
		b.WriteString(paint(dimStyle, "  nothing to do"))
		b.WriteString("\n")
	}
	for _, r := range results {
		b.WriteString("  ")
		b.WriteString(formatResult(r))
		b.WriteString("\n")
	}
	return b.String()
}

func formatReport(report sync.Report) string {
	parts := []string{
		fmt.Sprintf("%d created", report.Created),
		fmt.Sprintf("%d updated", report.Updated),
		fmt.Sprintf("%d skipped", report.Skipped),
	}
	if report.Pulled > 0 {
		parts = append(parts, fmt.Sprintf("%d pulled", report.Pulled))
	}
	if report.Linked > 0 {
		parts = append(parts, fmt.Sprintf("%d linked", report.Linked))
	}
	conflicts := fmt.Sprintf("%d conflicts", report.Conflicts)
	if report.Conflicts > 0 {
		conflicts = paint(warnStyle, conflicts)
	}
	failed := fmt.Sprintf("%d failed", report.Failed)
	if report.Failed > 0 {
		failed = paint(errorStyle, failed)
	}
	return strings.Join(append(parts, conflicts, failed), ", ")
}

func statusStyle(s diff.Status) lipgloss.Style {
	switch s {
	case diff.StatusNew:
		return successStyle
	case diff.StatusModified:
		return headerStyle
	case diff.StatusConflict:
		return warnStyle
	}
	return dimStyle
}

func formatDiff(results []diff.Result, verbose bool) string {
	var b strings.Builder
	for _, r := range results {
		if r.Status == diff.StatusUnchanged && !verbose {
			continue
		}
		b.WriteString(paint(statusStyle(r.Status), fmt.Sprintf("%-10s", r.Status)))
		b.WriteString(" ")
		b.WriteString(r.LocalID)
		if r.RemoteID != 0 {
			b.WriteString(paint(dimStyle, fmt.Sprintf(" #%d (rev %d, remote rev %d)", r.RemoteID, r.LocalRevision, r.RemoteRevision)))
		}
		b.WriteString("\n")
		for _, c := range r.Changes {
			b.WriteString("    ")
			b.WriteString(c.String())
			if c.Local == nil {
				b.WriteString(paint(dimStyle, "  (remote only, not pushed)"))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func formatDiffSummary(s diff.Summary) string {
	return fmt.Sprintf("%d new, %d modified, %d conflict, %d unchanged", s.New, s.Modified, s.Conflict, s.Unchanged)
}

// sortedKeys returns the keys of m in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
