package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	keyword   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Render
	paragraph = lipgloss.NewStyle().Width(78).Padding(0, 0, 0, 2).Render

	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"})
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F25D94"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Render
)

// stdoutIsTerminal reports whether stdout is an interactive terminal.
func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) //nolint:gosec
}

// terminalWidth returns the stdout width, or fallback when it is unknown.
func terminalWidth(fallback int) int {
	if !stdoutIsTerminal() {
		return fallback
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd())) //nolint:gosec
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}

func init() {
	// plain output when piped
	if !stdoutIsTerminal() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}
