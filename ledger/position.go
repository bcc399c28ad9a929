package ledger

import (
	"time"

	"github.com/rustyeddy/cryptosim/market"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Position is the open inventory of one instrument. A position that is
// closed and later reopened gets a new ID.
type Position struct {
	ID            string            `json:"id"`
	Instrument    market.Instrument `json:"instrument"`
	Quantity      float64           `json:"quantity"`
	AvgEntryPrice float64           `json:"avg_entry_price"`
	OpenedAt      time.Time         `json:"opened_at"`
}

// Cost is the inventory value at entry prices.
func (p Position) Cost() float64 { return p.Quantity * p.AvgEntryPrice }

// Value marks the position at price.
func (p Position) Value(price float64) float64 { return p.Quantity * price }

// Return is the unrealized fractional move from the average entry price.
func (p Position) Return(price float64) float64 {
	if p.AvgEntryPrice <= 0 {
		return 0
	}
	return (price - p.AvgEntryPrice) / p.AvgEntryPrice
}

// Fill is an append-only record of one execution against the ledger.
// Price is the effective price after slippage; MarketPrice is the quote the
// order was priced from. RealizedPnL is set only on fills that reduce a
// position and is net of that fill's commission.
type Fill struct {
	ID          string            `json:"id"`
	PositionID  string            `json:"position_id"`
	Instrument  market.Instrument `json:"instrument"`
	Side        Side              `json:"side"`
	Quantity    float64           `json:"quantity"`
	Price       float64           `json:"price"`
	MarketPrice float64           `json:"market_price"`
	Commission  float64           `json:"commission"`
	Slippage    float64           `json:"slippage"`
	Time        time.Time         `json:"time"`
	RealizedPnL *float64          `json:"realized_pnl,omitempty"`
	Reason      string            `json:"reason"`
}

// Closing reports whether the fill reduced a position.
func (f Fill) Closing() bool { return f.RealizedPnL != nil }

// Order is a priced request to the ledger. Commission is an absolute
// amount in account currency; SlippageBps adjusts Price against the trader.
type Order struct {
	Instrument  market.Instrument
	Quantity    float64
	Price       float64
	Time        time.Time
	Commission  float64
	SlippageBps float64
	Reason      string
}

// FillPrice applies slippage: buys pay more, sells receive less.
func FillPrice(side Side, price, slippageBps float64) float64 {
	adj := slippageBps / 10_000
	if side == Buy {
		return price * (1 + adj)
	}
	return price * (1 - adj)
}
