package sim

import (
	"fmt"

	"github.com/rustyeddy/cryptosim/guard"
	"github.com/rustyeddy/cryptosim/ledger"
	"github.com/rustyeddy/cryptosim/simerr"
)

// Simulator applies intents to a Ledger under the current trading mode.
type Simulator struct {
	ledger *ledger.Ledger
	costs  Costs
}

func NewSimulator(l *ledger.Ledger, costs Costs) *Simulator {
	return &Simulator{ledger: l, costs: costs}
}

func (s *Simulator) Ledger() *ledger.Ledger { return s.ledger }
func (s *Simulator) Costs() Costs { return s.costs }

// Execute gates in against mode, prices commission and slippage, and
// forwards it to the ledger. Every failure comes back as an error that
// matches one of the simerr sentinels; the ledger is untouched on error.
func (s *Simulator) Execute(in Intent, mode guard.Mode) (ledger.Fill, error) {
	if err := guard.Allow(mode, in.Kind); err != nil {
		return ledger.Fill{}, err
	}

	o := ledger.Order{
		Instrument:  in.Instrument,
		Quantity:    in.Quantity,
		Price:       in.Price,
		Time:        in.Time,
		SlippageBps: s.costs.SlippageBps,
		Reason:      string(in.Reason),
	}

	switch in.Kind {
	case guard.Open:
		o.Commission = s.costs.Commission(o.Quantity * ledger.FillPrice(ledger.Buy, in.Price, s.costs.SlippageBps))
		return s.ledger.OpenOrAdd(o)

	case guard.Close, guard.PartialClose:
		if in.Kind == guard.Close {
			pos, ok := s.ledger.Position(in.Instrument)
			if !ok {
				return ledger.Fill{}, fmt.Errorf("close %s: %w", in.Instrument, simerr.ErrNoSuchPosition)
			}
			o.Quantity = pos.Quantity
		}
		o.Commission = s.costs.Commission(o.Quantity * ledger.FillPrice(ledger.Sell, in.Price, s.costs.SlippageBps))
		return s.ledger.CloseOrReduce(o)

	default:
		return ledger.Fill{}, fmt.Errorf("unknown intent kind %q", in.Kind)
	}
}
