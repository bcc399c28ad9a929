package risk

import "math"

// SizingInputs describes the cash available for a new entry.
type SizingInputs struct {
	Cash          float64
	Price         float64
	EntryFraction float64 // 0.95
	SlippageBps   float64
	CommissionBps float64
}

// EntryQuantity sizes a buy so that quantity*fill_price plus commission
// spends EntryFraction of cash, never more.
func EntryQuantity(in SizingInputs) float64 {
	if in.Cash <= 0 || in.Price <= 0 || in.EntryFraction <= 0 {
		return 0
	}
	budget := in.Cash * math.Min(in.EntryFraction, 1)
	unit := in.Price * (1 + in.SlippageBps/10_000) * (1 + in.CommissionBps/10_000)
	return budget / unit
}

// CostFraction is the share of notional lost to slippage and commission on
// a sell, used when sizing exposure reductions.
func CostFraction(slippageBps, commissionBps float64) float64 {
	s := slippageBps / 10_000
	return s + (1-s)*commissionBps/10_000
}
