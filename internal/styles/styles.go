// Package styles provides shared lipgloss styles for CLI output.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Tokyo Night color palette.
var (
	ColorGreen  = lipgloss.Color("#9ece6a")
	ColorYellow = lipgloss.Color("#e0af68")
	ColorRed    = lipgloss.Color("#d75f6b")
	ColorBlue   = lipgloss.Color("#7aa2f7")
	ColorGray   = lipgloss.Color("#565f89")
	ColorWhite  = lipgloss.Color("#c0caf5")
)

// ProgressFilledStyle styles the completed part of a progress bar.
var ProgressFilledStyle = lipgloss.NewStyle().
	Foreground(ColorGreen)

// ProgressEmptyStyle styles the remaining part of a progress bar.
var ProgressEmptyStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// LabelStyle styles the label in front of a progress bar.
var LabelStyle = lipgloss.NewStyle().
	Foreground(ColorBlue).
	Bold(true)

// PeerStyle styles a remote address in received-data headers.
var PeerStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Bold(true)

// MutedStyle styles secondary details such as content types.
var MutedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// StatusStyle returns the style for a session close status.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "normal":
		return lipgloss.NewStyle().Foreground(ColorGreen)
	case "offline", "notfound":
		return lipgloss.NewStyle().Foreground(ColorYellow)
	default:
		return lipgloss.NewStyle().Foreground(ColorRed)
	}
}
