// Package style provides small lipgloss helpers for terminal output.
package style

import (
	"github.com/audiobook-dl/audiobook-dl/color"
	"github.com/charmbracelet/lipgloss"
)

// Colors of boxed messages.
var (
	Text        = lipgloss.Color("#cdd6f4")
	AccentColor = lipgloss.Color("#cba6f7")
	HiRed       = lipgloss.Color("#f38ba8")
)

func New() lipgloss.Style {
	return lipgloss.NewStyle()
}

// Fg returns a function rendering its input in the foreground color c.
func Fg(c lipgloss.Color) func(string) string {
	return func(s string) string { return New().Foreground(c).Render(s) }
}

var (
	Faint = func(s string) string { return New().Faint(true).Render(s) }
	Bold  = func(s string) string { return New().Bold(true).Render(s) }
)

// Tag renders s as a padded label.
func Tag(fg, bg lipgloss.Color) func(string) string {
	return func(s string) string { return New().Foreground(fg).Background(bg).Padding(0, 1).Render(s) }
}

// SourceTag labels the name of an audiobook service.
var SourceTag = Tag(color.New("230"), color.New("62"))
