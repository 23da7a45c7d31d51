package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// terminalWidth reports the current stdout width, falling back to 80
// columns when stdout isn't a terminal (piped output, CI logs).
func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	ruleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

// rule renders a horizontal divider sized to the terminal width, the way a
// live event feed separates sections of output.
func rule() string {
	w := terminalWidth()
	if w > 120 {
		w = 120
	}
	line := make([]byte, w)
	for i := range line {
		line[i] = '-'
	}
	return ruleStyle.Render(string(line))
}
