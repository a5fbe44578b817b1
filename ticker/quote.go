// Package ticker fetches and caches a small board of crypto spot prices.
package ticker

import (
	"strings"
	"time"
)

// DefaultSymbols is the board shown when no symbols are configured.
var DefaultSymbols = []string{"BTC", "ETH", "SOL", "BNB", "XRP"}

var coinIDs = map[string]string{
	"BTC": "bitcoin",
	"ETH": "ethereum",
	"SOL": "solana",
	"BNB": "binancecoin",
	"XRP": "ripple",
}

// CoinID maps a ticker symbol to its CoinGecko id. Unknown symbols are
// assumed to already be ids.
func CoinID(symbol string) string {
	if id, ok := coinIDs[strings.ToUpper(symbol)]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

type Quote struct {
	Symbol    string  `json:"symbol" msgpack:"symbol"`
	Price     float64 `json:"price" msgpack:"price"`
	Change24h float64 `json:"change_24h" msgpack:"change_24h"`
}

// Up reports whether the price rose over the last day.
func (q Quote) Up() bool {
	return q.Change24h >= 0
}

type Snapshot struct {
	Quotes    []Quote   `json:"quotes" msgpack:"quotes"`
	FetchedAt time.Time `json:"fetched_at" msgpack:"fetched_at"`
}
