package risk

import (
	"sort"

	"github.com/rustyeddy/cryptosim/ledger"
	"github.com/rustyeddy/cryptosim/market"
)

// ExposureInputs is the portfolio view PlanExposure works from.
type ExposureInputs struct {
	Positions []ledger.Position
	Prices    map[market.Instrument]float64
	Cash      float64
	// CostFraction is the share of notional lost per sell (see CostFraction).
	CostFraction float64
}

// PlanExposure returns the quantity to sell per instrument so that
// positions_value/equity is back at or under MaxExposurePct after costs.
// It returns nil when the rule is off or the cap holds.
func PlanExposure(p Policy, in ExposureInputs) map[market.Instrument]float64 {
	limit := p.MaxExposurePct
	if limit <= 0 {
		return nil
	}

	type held struct {
		pos   ledger.Position
		price float64
		value float64
	}
	var book []held
	var value float64
	for _, pos := range in.Positions {
		px, ok := in.Prices[pos.Instrument]
		if !ok || px <= 0 || pos.Quantity <= 0 {
			continue
		}
		h := held{pos: pos, price: px, value: pos.Value(px)}
		book = append(book, h)
		value += h.value
	}

	equity := in.Cash + value
	if equity <= 0 || value/equity <= limit {
		return nil
	}

	sort.Slice(book, func(i, j int) bool {
		a, b := book[i], book[j]
		switch p.ExposureTieBreak {
		case Worst:
			ra, rb := a.pos.Return(a.price), b.pos.Return(b.price)
			if ra != rb {
				return ra < rb
			}
		default:
			if a.value != b.value {
				return a.value > b.value
			}
		}
		return a.pos.Instrument.Key() < b.pos.Instrument.Key()
	})

	need := (value - limit*equity) / (1 - limit*in.CostFraction)
	plan := make(map[market.Instrument]float64)
	for _, h := range book {
		if need <= 0 {
			break
		}
		if need >= h.value {
			plan[h.pos.Instrument] = h.pos.Quantity
			need -= h.value
			continue
		}
		plan[h.pos.Instrument] = need / h.price
		need = 0
	}
	return plan
}
