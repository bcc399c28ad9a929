package market

import (
	"fmt"
	"strings"
)

// Instrument identifies a tradable pair on a venue, e.g. binance BTC/USDT.
type Instrument struct {
	Venue  string `json:"venue" yaml:"venue"`
	Symbol string `json:"symbol" yaml:"symbol"`
}

func (i Instrument) Key() string {
	return i.Venue + ":" + i.Symbol
}

func (i Instrument) String() string { return i.Key() }

// ParseInstrument parses "venue:symbol".
func ParseInstrument(s string) (Instrument, error) {
	venue, symbol, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || venue == "" || symbol == "" {
		return Instrument{}, fmt.Errorf("bad instrument %q (want venue:symbol)", s)
	}
	return Instrument{Venue: venue, Symbol: symbol}, nil
}
