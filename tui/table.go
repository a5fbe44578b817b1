package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/cyberfolio/folio-core/ticker"
	"github.com/dustin/go-humanize"
)

var (
	tableBorderColor = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#AAAAAA"}
	tableBorderStyle = lipgloss.NewStyle().Foreground(tableBorderColor)
	priceUpColor     = lipgloss.AdaptiveColor{Light: "#009900", Dark: "#00FF00"}
	priceDownColor   = lipgloss.AdaptiveColor{Light: "#990000", Dark: "#FF0000"}
	priceUpStyle     = lipgloss.NewStyle().Foreground(priceUpColor)
	priceDownStyle   = lipgloss.NewStyle().Foreground(priceDownColor)
	symbolStyle      = lipgloss.NewStyle().Bold(true).Foreground(highlightColor)
)

func Table(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorderStyle).
		Headers(headers...).
		Rows(rows...).
		String()
}

// FormatPrice renders a USD price with thousands separators.
func FormatPrice(price float64) string {
	return "$" + humanize.FormatFloat("#,###.##", price)
}

// FormatChange renders a 24h change as a signed percentage with an arrow.
func FormatChange(change float64) string {
	if change >= 0 {
		return fmt.Sprintf("▲ +%.2f%%", change)
	}
	return fmt.Sprintf("▼ %.2f%%", change)
}

// PriceTable renders a snapshot, gains in green and losses in red.
func PriceTable(snap ticker.Snapshot) string {
	rows := make([][]string, 0, len(snap.Quotes))
	for _, q := range snap.Quotes {
		style := priceDownStyle
		if q.Up() {
			style = priceUpStyle
		}
		rows = append(rows, []string{
			symbolStyle.Render(q.Symbol),
			FormatPrice(q.Price),
			style.Render(FormatChange(q.Change24h)),
		})
	}
	out := Table([]string{"Symbol", "Price", "24h"}, rows)
	if !snap.FetchedAt.IsZero() {
		out += "\n" + Muted("updated "+snap.FetchedAt.Local().Format(time.TimeOnly))
	}
	return out
}
