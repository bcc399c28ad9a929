package risk

import (
	"fmt"

	"github.com/rustyeddy/cryptosim/ledger"
	"github.com/rustyeddy/cryptosim/market"
)

type Reason string

const (
	StopLoss      Reason = "STOP_LOSS"
	TakeProfit    Reason = "TAKE_PROFIT"
	TrailingExit  Reason = "TRAILING_STOP"
	MaxExposure   Reason = "MAX_EXPOSURE"
	StalePosition Reason = "STALE_POSITION"

	Signal    Reason = "SIGNAL"
	EndOfData Reason = "END_OF_DATA"
	Manual    Reason = "MANUAL"
)

// Intervention is a protective exit emitted by Evaluate. Quantity equals
// the full position unless the exposure rule asks for a partial reduction.
type Intervention struct {
	Instrument market.Instrument `json:"instrument"`
	Reason     Reason            `json:"reason"`
	Quantity   float64           `json:"quantity"`
	Full       bool              `json:"full"`
	Price      float64           `json:"price"`
	Detail     string            `json:"detail"`
}

// TrailState is the per-position high-water mark. It only moves up and is
// reset when a different position ID is evaluated.
type TrailState struct {
	PositionID string  `json:"position_id"`
	HighWater  float64 `json:"high_water"`
	Armed      bool    `json:"armed"`
}

// State carries what Evaluate needs beyond the position and bar.
type State struct {
	Trail TrailState
	// ExposureReduction is this position's share of a PlanExposure result.
	ExposureReduction float64
}

// Evaluate runs the exit rules in priority order against one position and
// returns at most one intervention plus the updated trailing state:
// stop-loss, take-profit, trailing stop, max exposure, position age.
func Evaluate(p Policy, pos ledger.Position, bar market.Bar, st State) ([]Intervention, TrailState) {
	trail := advanceTrail(p, pos, bar, st.Trail)
	if pos.Quantity <= 0 {
		return nil, trail
	}

	price := bar.Close
	ret := pos.Return(price)
	exit := func(r Reason, qty float64, detail string) []Intervention {
		return []Intervention{{
			Instrument: pos.Instrument,
			Reason:     r,
			Quantity:   qty,
			Full:       qty >= pos.Quantity,
			Price:      price,
			Detail:     detail,
		}}
	}

	if p.StopLossPct > 0 && ret <= -p.StopLossPct {
		return exit(StopLoss, pos.Quantity,
			fmt.Sprintf("return %.4f <= -%.4f", ret, p.StopLossPct)), trail
	}
	if p.TakeProfitPct > 0 && ret >= p.TakeProfitPct {
		return exit(TakeProfit, pos.Quantity,
			fmt.Sprintf("return %.4f >= %.4f", ret, p.TakeProfitPct)), trail
	}
	if trail.Armed {
		level := trail.HighWater * (1 - p.Trailing.TrailPct)
		if price < level {
			return exit(TrailingExit, pos.Quantity,
				fmt.Sprintf("price %.8f < trail %.8f (high %.8f)", price, level, trail.HighWater)), trail
		}
	}
	if q := st.ExposureReduction; q > 0 {
		if q > pos.Quantity {
			q = pos.Quantity
		}
		return exit(MaxExposure, q,
			fmt.Sprintf("reduce %.8f of %.8f", q, pos.Quantity)), trail
	}
	if p.MaxPositionAge > 0 {
		if age := bar.Time.Sub(pos.OpenedAt); age > p.MaxPositionAge {
			return exit(StalePosition, pos.Quantity,
				fmt.Sprintf("age %s > %s", age, p.MaxPositionAge)), trail
		}
	}

	return nil, trail
}

func advanceTrail(p Policy, pos ledger.Position, bar market.Bar, ts TrailState) TrailState {
	if pos.Quantity <= 0 {
		return TrailState{}
	}
	if ts.PositionID != pos.ID {
		ts = TrailState{PositionID: pos.ID, HighWater: pos.AvgEntryPrice}
	}
	high := bar.High
	if bar.Close > high {
		high = bar.Close
	}
	if high > ts.HighWater {
		ts.HighWater = high
	}
	if p.Trailing.Enabled() && !ts.Armed && pos.Return(ts.HighWater) >= p.Trailing.ActivatePct {
		ts.Armed = true
	}
	return ts
}
