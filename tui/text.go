package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	highlightColor = lipgloss.AdaptiveColor{Light: "#0B7A75", Dark: "#00FFFF"}
	mutedColor     = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"}
	titleColor     = lipgloss.AdaptiveColor{Light: "#071330", Dark: "#F652A0"}
	detailColor    = lipgloss.AdaptiveColor{Light: "#214358", Dark: "#AEB8C4"}
)

func Title(text string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(titleColor).Render(text)
}

// Bold highlights a value inside a message, such as a receipt id.
func Bold(text string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(highlightColor).Render(text)
}

// Secondary renders follow-up detail under a status line.
func Secondary(text string) string {
	return lipgloss.NewStyle().Foreground(detailColor).Render(text)
}

func Muted(text string) string {
	return lipgloss.NewStyle().Foreground(mutedColor).Render(text)
}

// WatchHeader is the first line of every refresh in watch mode.
func WatchHeader(title string, every time.Duration) string {
	return Title(title) + Muted(fmt.Sprintf("  every %s, ctrl-c to quit", every))
}

// QuotaLine describes how many submissions are left in the current window.
func QuotaLine(remaining int) string {
	switch remaining {
	case 0:
		return Secondary("That was your last message for now.")
	case 1:
		return Secondary("You can send 1 more message shortly.")
	default:
		return Secondary(fmt.Sprintf("You can send %d more messages shortly.", remaining))
	}
}
