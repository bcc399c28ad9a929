package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/cryptosim/market"
	"github.com/rustyeddy/cryptosim/pkg/id"
	"github.com/rustyeddy/cryptosim/simerr"
)

// cashEpsilon absorbs float rounding when an order spends the whole balance.
const cashEpsilon = 1e-9

// Ledger owns cash and open positions. It is the only mutator of balances;
// every mutation appends exactly one Fill.
type Ledger struct {
	mu        sync.RWMutex
	cash      float64
	positions map[market.Instrument]*Position
	lastFill  map[market.Instrument]time.Time
	fills     []Fill
	ids       *id.Generator
}

// New returns a ledger holding cash and no positions. A nil generator uses
// a randomly seeded one.
func New(cash float64, ids *id.Generator) *Ledger {
	if ids == nil {
		ids = id.NewGenerator()
	}
	return &Ledger{
		cash:      cash,
		positions: make(map[market.Instrument]*Position),
		lastFill:  make(map[market.Instrument]time.Time),
		ids:       ids,
	}
}

// OpenOrAdd buys o.Quantity, creating the position or averaging into it.
func (l *Ledger) OpenOrAdd(o Order) (Fill, error) {
	if err := checkOrder(o); err != nil {
		return Fill{}, fmt.Errorf("open %s: %w", o.Instrument, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	price := FillPrice(Buy, o.Price, o.SlippageBps)
	cost := o.Quantity*price + o.Commission
	if cost > l.cash+cashEpsilon {
		return Fill{}, fmt.Errorf("open %s: need %.8f have %.8f: %w",
			o.Instrument, cost, l.cash, simerr.ErrInsufficientCash)
	}

	p, ok := l.positions[o.Instrument]
	if !ok {
		p = &Position{
			ID:         l.ids.At(o.Time),
			Instrument: o.Instrument,
			OpenedAt:   o.Time,
		}
		l.positions[o.Instrument] = p
	}
	newQty := p.Quantity + o.Quantity
	p.AvgEntryPrice = (p.Quantity*p.AvgEntryPrice + o.Quantity*price) / newQty
	p.Quantity = newQty

	l.cash -= cost
	if l.cash < 0 {
		l.cash = 0
	}

	return l.appendFillLocked(Fill{
		PositionID:  p.ID,
		Instrument:  o.Instrument,
		Side:        Buy,
		Quantity:    o.Quantity,
		Price:       price,
		MarketPrice: o.Price,
		Commission:  o.Commission,
		Slippage:    o.Quantity * (price - o.Price),
		Time:        o.Time,
		Reason:      o.Reason,
	}), nil
}

// CloseOrReduce sells o.Quantity of an open position. Selling more than
// is held fails with ErrOverSell and leaves the ledger untouched.
func (l *Ledger) CloseOrReduce(o Order) (Fill, error) {
	if err := checkOrder(o); err != nil {
		return Fill{}, fmt.Errorf("close %s: %w", o.Instrument, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[o.Instrument]
	if !ok {
		return Fill{}, fmt.Errorf("close %s: %w", o.Instrument, simerr.ErrNoSuchPosition)
	}
	if o.Quantity > p.Quantity {
		return Fill{}, fmt.Errorf("close %s: sell %.8f of %.8f: %w",
			o.Instrument, o.Quantity, p.Quantity, simerr.ErrOverSell)
	}

	price := FillPrice(Sell, o.Price, o.SlippageBps)
	pnl := (price-p.AvgEntryPrice)*o.Quantity - o.Commission

	l.cash += o.Quantity*price - o.Commission
	p.Quantity -= o.Quantity
	posID := p.ID
	if p.Quantity == 0 {
		delete(l.positions, o.Instrument)
	}

	return l.appendFillLocked(Fill{
		PositionID:  posID,
		Instrument:  o.Instrument,
		Side:        Sell,
		Quantity:    o.Quantity,
		Price:       price,
		MarketPrice: o.Price,
		Commission:  o.Commission,
		Slippage:    o.Quantity * (o.Price - price),
		Time:        o.Time,
		RealizedPnL: &pnl,
		Reason:      o.Reason,
	}), nil
}

func (l *Ledger) appendFillLocked(f Fill) Fill {
	f.ID = l.ids.At(f.Time)
	l.fills = append(l.fills, f)
	if f.Time.After(l.lastFill[f.Instrument]) {
		l.lastFill[f.Instrument] = f.Time
	}
	return f
}

// MarkToMarket sums quantity*price over open positions. A position with no
// price in prices is reported as ErrStaleMark rather than valued at zero.
func (l *Ledger) MarkToMarket(prices map[market.Instrument]float64) (float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var value float64
	for inst, p := range l.positions {
		px, ok := prices[inst]
		if !ok || px <= 0 {
			return 0, fmt.Errorf("mark %s: %w", inst, simerr.ErrStaleMark)
		}
		value += p.Value(px)
	}
	return value, nil
}

func (l *Ledger) Cash() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// Position returns a copy of the open position for inst.
func (l *Ledger) Position(inst market.Instrument) (Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.positions[inst]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions returns copies of all open positions ordered by instrument key.
func (l *Ledger) Positions() []Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Instrument.Key() < out[j].Instrument.Key()
	})
	return out
}

// Fills returns a copy of the fill log.
func (l *Ledger) Fills() []Fill {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Fill(nil), l.fills...)
}

// LastFill returns the time of the most recent fill on inst.
func (l *Ledger) LastFill(inst market.Instrument) (time.Time, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.lastFill[inst]
	return t, ok
}

func checkOrder(o Order) error {
	if !(o.Quantity > 0) {
		return simerr.ErrInvalidQuantity
	}
	if !(o.Price > 0) {
		return fmt.Errorf("price %v must be positive", o.Price)
	}
	if o.Commission < 0 || o.SlippageBps < 0 {
		return fmt.Errorf("negative commission or slippage")
	}
	return nil
}
