// Package style provides consistent terminal styling using Lipgloss.
package style

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Shared styles for command output.
var (
	Bold    = lipgloss.NewStyle().Bold(true)
	Dim     = lipgloss.NewStyle().Faint(true)
	Success = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	Warning = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	Error   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	Accent  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// Rendered prefixes for aligned status lines.
var (
	SuccessPrefix = Success.Render("✓")
	WarningPrefix = Warning.Render("!")
	ErrorPrefix   = Error.Render("✗")
	ArrowPrefix   = Accent.Render("→")
)

// Interactive reports whether stdout is a terminal. Non-interactive output
// (pipes, CI) gets no styling; lipgloss handles the degradation but some
// callers also skip decorative output entirely.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Header prints a bold section header.
func Header(format string, args ...any) {
	fmt.Println(Bold.Render(fmt.Sprintf(format, args...)))
}

// Print writes a plain formatted line to stdout.
func Print(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}

// PrintSuccess writes a green checkmarked line.
func PrintSuccess(format string, args ...any) {
	fmt.Printf("%s %s\n", Success.Render("✓"), fmt.Sprintf(format, args...))
}

// PrintWarning writes a yellow warning line to stderr.
func PrintWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", Warning.Render("!"), fmt.Sprintf(format, args...))
}

// PrintError writes a red error line to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", Error.Render("✗"), fmt.Sprintf(format, args...))
}
