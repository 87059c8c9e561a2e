package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	accentColor = lipgloss.Color("#3C8DBC")
	mutedColor  = lipgloss.Color("#888888")
	warnColor   = lipgloss.Color("#FFA500")
	errorColor  = lipgloss.Color("#A40000")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			MarginBottom(1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(warnColor).
			MarginTop(1)

	keyStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(14)

	valueStyle = lipgloss.NewStyle().Bold(true)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)
)

func printError(msg string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("Error:"), msg)
}

func keyValue(key string, value any) string {
	return keyStyle.Render(key+":") + " " + valueStyle.Render(fmt.Sprint(value))
}
