package cli

import (
	"fmt"
	"strings"
	"time"

	"callctx/internal/data/history"
	"callctx/internal/ui/report"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Width(12)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#334155")).
			Padding(0, 1)
)

// renderSummary is the short run overview printed after an analysis.
func renderSummary(doc report.Document) string {
	unresolved := successStyle.Render("0")
	if doc.Unresolved > 0 {
		unresolved = warnStyle.Render(fmt.Sprintf("%d", doc.Unresolved))
	}
	rows := []string{
		titleStyle.Render("callctx " + doc.Seed),
		row("file", doc.SeedFile),
		row("functions", fmt.Sprintf("%d", len(doc.Functions))),
		row("calls", fmt.Sprintf("%d", len(doc.Edges))),
		labelStyle.Render("unresolved") + unresolved,
	}
	if len(doc.Diagnostics) > 0 {
		rows = append(rows, labelStyle.Render("warnings")+warnStyle.Render(fmt.Sprintf("%d", len(doc.Diagnostics))))
	}
	if doc.RunID != "" {
		rows = append(rows, row("run", doc.RunID))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)) + "\n"
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

// renderRuns lists stored runs one per line.
func renderRuns(runs []history.Run) string {
	if len(runs) == 0 {
		return "no stored runs\n"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%-36s  %-20s  %-24s  %5s  %5s  %5s", "RUN", "CREATED", "SEED", "FUNCS", "CALLS", "UNRES")))
	b.WriteString("\n")
	for _, run := range runs {
		b.WriteString(fmt.Sprintf("%-36s  %-20s  %-24s  %5d  %5d  %5d\n",
			run.ID,
			run.CreatedAt.Local().Format(time.DateTime),
			truncate(run.Seed, 24),
			run.FunctionCount,
			run.EdgeCount,
			run.UnresolvedCount,
		))
	}
	return b.String()
}

func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	return s[:width-1] + "…"
}
