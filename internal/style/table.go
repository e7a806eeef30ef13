package style

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Alignment specifies column text alignment.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// Column defines one table column.
type Column struct {
	Name  string
	Width int
	Align Alignment
}

// Table renders fixed-width columnar output for list commands.
type Table struct {
	columns []Column
	rows    [][]string
	indent  string
}

// NewTable creates a table with the given columns.
func NewTable(columns ...Column) *Table {
	return &Table{columns: columns, indent: "  "}
}

// SetIndent sets the left indent for every rendered line.
func (t *Table) SetIndent(indent string) *Table {
	t.indent = indent
	return t
}

// AddRow appends a row. Missing cells render empty; extra cells are dropped.
func (t *Table) AddRow(values ...string) *Table {
	t.rows = append(t.rows, values)
	return t
}

// Render returns the table: bold header, dim separator, then rows.
// Cell widths are measured with lipgloss so pre-styled values line up.
func (t *Table) Render() string {
	if len(t.columns) == 0 {
		return ""
	}

	var sb strings.Builder

	sb.WriteString(t.indent)
	total := 0
	for i, col := range t.columns {
		sb.WriteString(cell(Bold.Render(col.Name), col.Width, col.Align))
		total += col.Width
		if i < len(t.columns)-1 {
			sb.WriteString(" ")
			total++
		}
	}
	sb.WriteString("\n")

	sb.WriteString(t.indent)
	sb.WriteString(Dim.Render(strings.Repeat("─", total)))
	sb.WriteString("\n")

	for _, row := range t.rows {
		sb.WriteString(t.indent)
		for i, col := range t.columns {
			val := ""
			if i < len(row) {
				val = row[i]
			}
			sb.WriteString(cell(val, col.Width, col.Align))
			if i < len(t.columns)-1 {
				sb.WriteString(" ")
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// cell pads or truncates a value to width, ANSI-aware.
func cell(val string, width int, align Alignment) string {
	w := lipgloss.Width(val)
	if w > width {
		return truncate(val, width)
	}
	pad := strings.Repeat(" ", width-w)
	if align == AlignRight {
		return pad + val
	}
	return val + pad
}

// truncate shortens a value to width with an ellipsis. Styled values are
// truncated conservatively: the style reset stays intact because lipgloss
// always emits it before the text ends up here.
func truncate(val string, width int) string {
	if width <= 1 {
		return "…"
	}
	runes := []rune(val)
	if len(runes) <= width {
		return val
	}
	return string(runes[:width-1]) + "…"
}
