package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	haltStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// renderView produces the full dashboard. Caller holds m.mu.
func (m *Model) renderView() string {
	var sections []string

	sections = append(sections, m.renderHeader())

	if m.err != nil {
		sections = append(sections, haltStyle.Render(fmt.Sprintf("  telemetry: %v", m.err)))
	} else if len(m.rows) == 0 {
		sections = append(sections, dimStyle.Render("  no rotation cycles recorded yet"))
	} else {
		sections = append(sections, m.renderPools())
	}

	sections = append(sections, m.renderStatusBar())

	if m.showHelp {
		sections = append(sections, m.help.View(m.keys))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderHeader() string {
	title := titleStyle.Render("Greenroom Fleet")
	stats := dimStyle.Render(fmt.Sprintf("%d pools", len(m.rows)))

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(stats) - 2
	if gap < 1 {
		gap = 1
	}
	return title + strings.Repeat(" ", gap) + stats + "\n"
}

func (m *Model) renderPools() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("  %-10s %-9s %9s %8s %7s %6s  %s",
		"POOL", "STATE", "PROCESSED", "SKIPPED", "HALTED", "UNITS", "LAST CYCLE")))
	b.WriteString("\n")

	for _, row := range m.rows {
		state := okStyle.Render("ok")
		if row.HaltedFlag {
			state = haltStyle.Render("halted")
		}
		b.WriteString(fmt.Sprintf("  %-10s %-9s %9d %8d %7d %6d  %s\n",
			row.Pool, state, row.Processed, row.Skipped, row.Halted, row.Units,
			dimStyle.Render(relativeTime(row.Time))))
		if row.HaltedFlag && row.HaltReason != "" {
			b.WriteString(haltStyle.Render(fmt.Sprintf("             └ %s", row.HaltReason)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m *Model) renderStatusBar() string {
	refreshed := "never"
	if !m.lastFetch.IsZero() {
		refreshed = relativeTime(m.lastFetch)
	}
	return dimStyle.Render(fmt.Sprintf("  refreshed %s · r refresh · ? help · q quit", refreshed))
}

// relativeTime formats an event time as a short age.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}
