package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Client actions accepted over the WebSocket.
const (
	ActionAddTicker    = "addTicker"
	ActionRemoveTicker = "removeTicker"
)

// PriceNotFound is the sentinel price sent to a client whose requested
// symbol failed existence validation.
const PriceNotFound = -1

// pageURLTemplate is the canonical symbol page. %s is the normalized symbol.
const pageURLTemplate = "https://www.tradingview.com/symbols/%s/?exchange=BINANCE"

var (
	// ErrEmptySymbol is returned when a symbol normalizes to the empty string.
	ErrEmptySymbol = errors.New("empty symbol")

	// ErrUnparsablePrice is returned when rendered price text contains no
	// parsable numeric value.
	ErrUnparsablePrice = errors.New("unparsable price text")
)

// ClientCommand is an inbound message from a client.
type ClientCommand struct {
	Action string `json:"action"`
	Ticker string `json:"ticker"`
	UserID string `json:"userId"`
}

// PriceUpdate is an outbound message to a client. Price is PriceNotFound
// when the requested ticker does not exist.
type PriceUpdate struct {
	Ticker string  `json:"ticker"`
	Price  float64 `json:"price"`
}

// NormalizeSymbol trims whitespace and uppercases a client-supplied ticker.
// Returns ErrEmptySymbol if nothing remains.
func NormalizeSymbol(s string) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(s))
	if sym == "" {
		return "", ErrEmptySymbol
	}
	return sym, nil
}

// PageURL returns the canonical page URL for a normalized symbol.
func PageURL(symbol string) string {
	return fmt.Sprintf(pageURLTemplate, symbol)
}

// ParsePrice extracts a numeric price from rendered element text.
// Thousands separators, currency signs and spaces are stripped; only
// digits and the decimal point survive.
func ParsePrice(text string) (float64, error) {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, ErrUnparsablePrice
	}
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, ErrUnparsablePrice
	}
	return price, nil
}
