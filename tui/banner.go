package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	bannerForegroupColor = lipgloss.AdaptiveColor{Light: "#a60853", Dark: "#F652A0"}
	bannerBorderColor    = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#AAAAAA"}
	bannerTitleColor     = lipgloss.AdaptiveColor{Light: "#00AAAA", Dark: "#00FFFF"}
	bannerMaxWidth       = 60
	bannerStyle          = lipgloss.NewStyle().
				Padding(1).
				Border(lipgloss.RoundedBorder()).
				BorderForeground(bannerBorderColor)
	bannerBodyStyle  = lipgloss.NewStyle().Width(bannerMaxWidth).Foreground(bannerForegroupColor)
	bannerTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(bannerTitleColor)
)

// Banner renders title over body in a rounded box.
func Banner(title string, body string) string {
	return bannerStyle.Render(bannerTitleStyle.Render(title) + "\n\n" + bannerBodyStyle.Render(body))
}

func ShowBanner(w io.Writer, title string, body string) {
	if !HasTTY {
		return
	}
	fmt.Fprintln(w, Banner(title, body))
}
