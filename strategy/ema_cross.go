package strategy

import (
	"fmt"
	"math"

	"github.com/rustyeddy/cryptosim/indicators"
	"github.com/rustyeddy/cryptosim/market"
)

type EMACrossConfig struct {
	FastPeriod int
	SlowPeriod int
	// ATRPeriod scales the EMA spread into a probability. 0 uses SlowPeriod.
	ATRPeriod int
	// MinSpread suppresses crosses with |fast-slow| below it, in price units.
	MinSpread float64
	// MinADX > 0 only lets a cross through once ADX(ADXPeriod) is ready and
	// at least MinADX, with the DI lines agreeing with the direction.
	MinADX    float64
	ADXPeriod int
}

// EMACross signals when a fast EMA crosses a slow EMA. It fires only on the
// cross itself, not on every bar while the EMAs stay crossed. Probability
// grows with the spread measured in ATRs: 0.5 +/- 0.5*min(1, spread/ATR).
type EMACross struct {
	fast *indicators.ExponentialMA
	slow *indicators.ExponentialMA
	atr  *indicators.ATR
	adx  *indicators.ADX

	// -1 fast below slow, 0 unknown, +1 fast above slow
	prevRel   int
	minSpread float64
	minADX    float64
	name      string
}

func NewEMACross(cfg EMACrossConfig) (*EMACross, error) {
	if cfg.FastPeriod <= 0 || cfg.SlowPeriod <= 0 {
		return nil, fmt.Errorf("ema-cross periods must be > 0")
	}
	if cfg.FastPeriod >= cfg.SlowPeriod {
		return nil, fmt.Errorf("ema-cross requires fast period < slow period")
	}
	if cfg.MinADX < 0 {
		return nil, fmt.Errorf("ema-cross min ADX must be >= 0")
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = cfg.SlowPeriod
	}
	if cfg.ADXPeriod <= 0 {
		cfg.ADXPeriod = 14
	}
	x := &EMACross{
		fast:      indicators.NewEMA(cfg.FastPeriod),
		slow:      indicators.NewEMA(cfg.SlowPeriod),
		atr:       indicators.NewATR(cfg.ATRPeriod),
		minSpread: cfg.MinSpread,
		minADX:    cfg.MinADX,
		name:      fmt.Sprintf("EMA_CROSS(%d,%d)", cfg.FastPeriod, cfg.SlowPeriod),
	}
	if cfg.MinADX > 0 {
		x.adx = indicators.NewADX(cfg.ADXPeriod)
		x.name = fmt.Sprintf("EMA_CROSS_ADX(%d,%d,ADX%d@%.1f)", cfg.FastPeriod, cfg.SlowPeriod, cfg.ADXPeriod, cfg.MinADX)
	}
	return x, nil
}

func (x *EMACross) Name() string { return x.name }

func (x *EMACross) Reset() {
	x.fast.Reset()
	x.slow.Reset()
	x.atr.Reset()
	if x.adx != nil {
		x.adx.Reset()
	}
	x.prevRel = 0
}

func (x *EMACross) Ready() bool {
	return x.fast.Ready() && x.slow.Ready()
}

func (x *EMACross) Update(b market.Bar) market.Signal {
	x.fast.Update(b)
	x.slow.Update(b)
	x.atr.Update(b)
	if x.adx != nil {
		x.adx.Update(b)
	}

	if !x.Ready() {
		return hold(b)
	}

	diff := x.fast.Value() - x.slow.Value()
	if x.minSpread > 0 && math.Abs(diff) < x.minSpread {
		return hold(b)
	}

	rel := 0
	switch {
	case diff > 0:
		rel = +1
	case diff < 0:
		rel = -1
	}

	prev := x.prevRel
	x.prevRel = rel
	switch {
	case prev == -1 && rel == +1 && x.trending(+1):
		return market.Signal{Time: b.Time, Direction: market.Buy, Probability: 0.5 + x.confidence(diff)}
	case prev == +1 && rel == -1 && x.trending(-1):
		return market.Signal{Time: b.Time, Direction: market.Sell, Probability: 0.5 - x.confidence(diff)}
	default:
		// first ready bar sets the baseline
		return hold(b)
	}
}

// trending reports whether the ADX filter, when enabled, confirms a cross
// in direction dir. A filtered cross is dropped, not deferred.
func (x *EMACross) trending(dir int) bool {
	if x.adx == nil {
		return true
	}
	if !x.adx.Ready() || x.adx.Value() < x.minADX {
		return false
	}
	if dir > 0 {
		return x.adx.PlusDI() > x.adx.MinusDI()
	}
	return x.adx.MinusDI() > x.adx.PlusDI()
}

// confidence is in [0, 0.5].
func (x *EMACross) confidence(diff float64) float64 {
	atr := x.atr.Value()
	if atr <= 0 {
		return 0.5
	}
	return 0.5 * math.Min(1, math.Abs(diff)/atr)
}
