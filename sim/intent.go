package sim

import (
	"time"

	"github.com/rustyeddy/cryptosim/guard"
	"github.com/rustyeddy/cryptosim/market"
	"github.com/rustyeddy/cryptosim/risk"
)

// Intent is one trade request handed to the Simulator. Price is the market
// quote before slippage. Quantity is ignored for a full CLOSE.
type Intent struct {
	Kind       guard.Kind        `json:"kind"`
	Instrument market.Instrument `json:"instrument"`
	Quantity   float64           `json:"quantity"`
	Price      float64           `json:"price"`
	Time       time.Time         `json:"time"`
	Reason     risk.Reason       `json:"reason"`
}

// Rejection reports an intent or signal the engine did not act on.
type Rejection struct {
	Kind       guard.Kind        `json:"kind,omitempty"`
	Instrument market.Instrument `json:"instrument"`
	Reason     risk.Reason       `json:"reason"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Time       time.Time         `json:"time"`
}

// Costs is the execution cost model, in basis points of notional.
type Costs struct {
	CommissionBps float64 `json:"commission_bps" yaml:"commission_bps"`
	SlippageBps   float64 `json:"slippage_bps" yaml:"slippage_bps"`
}

func (c Costs) Commission(notional float64) float64 {
	return notional * c.CommissionBps / 10_000
}
