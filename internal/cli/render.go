package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"sync2notion/internal/batch"
	"sync2notion/internal/report"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	bannerStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

var levelColors = map[report.Level]lipgloss.Color{
	report.LevelSuccess: lipgloss.Color("42"),
	report.LevelWarning: lipgloss.Color("214"),
	report.LevelError:   lipgloss.Color("203"),
	report.LevelInfo:    lipgloss.Color("39"),
}

// progressLine renders one finished item as "[i/n] ok    name  message".
func progressLine(r batch.Result, total int) string {
	status := okStyle.Render("ok  ")
	if !r.Outcome.IsSuccess() {
		status = failStyle.Render("fail")
	}
	line := fmt.Sprintf("[%d/%d] %s  %s", r.Job.SequenceIndex+1, total, status, r.Job.Source.DisplayName())
	if r.Outcome.Message != "" {
		line += "  " + mutedStyle.Render(r.Outcome.Message)
	}
	return line
}

func renderItems(w io.Writer, items []report.Item) {
	for _, item := range items {
		mark := okStyle.Render("✓")
		if !item.Success {
			mark = failStyle.Render("✗")
		}
		fmt.Fprintf(w, "%s %s\n", mark, item.Name)
		switch {
		case item.Link != "":
			fmt.Fprintf(w, "    %s\n", item.Link)
		case item.Identifier != "":
			fmt.Fprintf(w, "    page id %s\n", item.Identifier)
		}
		if len(item.Skipped) > 0 {
			fmt.Fprintf(w, "    %s\n", mutedStyle.Render(fmt.Sprintf("skipped contents (%d):", len(item.Skipped))))
			for _, block := range item.Skipped {
				fmt.Fprintf(w, "      %s\n", strings.ReplaceAll(block, "\n", "\n      "))
			}
		}
	}
}

func renderBanner(w io.Writer, summary report.Summary) {
	text := summary.Text
	if summary.HelpReference {
		text += "\n" + mutedStyle.Render("See `sync2notion setup` for setup and troubleshooting.")
	}
	style := bannerStyle.BorderForeground(levelColors[summary.Level])
	fmt.Fprintln(w, style.Render(text))
}

func renderHelp(w io.Writer, sections []report.HelpSection) {
	for i, section := range sections {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, titleStyle.Render(section.Title))
		for n, entry := range section.Entries {
			if entry.Term != "" {
				fmt.Fprintf(w, "  - %s: %s\n", entry.Term, entry.Text)
				continue
			}
			fmt.Fprintf(w, "  %d. %s\n", n+1, entry.Text)
		}
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v) //nolint:wrapcheck
}
