// Package strategy holds baseline signal generators. They stand in for the
// external model when producing signal files for backtests and live runs.
package strategy

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/cryptosim/market"
)

// Strategy consumes closed bars and emits one signal per bar, computed at
// that bar's close.
type Strategy interface {
	Name() string
	Reset()
	Ready() bool
	Update(b market.Bar) market.Signal
}

// Generate runs s over bars from a reset state and returns the non-HOLD
// signals.
func Generate(s Strategy, bars []market.Bar) []market.Signal {
	s.Reset()
	var out []market.Signal
	for _, b := range bars {
		if sig := s.Update(b); sig.Direction != market.Hold {
			out = append(out, sig)
		}
	}
	return out
}

// ByName builds a strategy from its CLI name.
func ByName(name string, cfg EMACrossConfig) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ema-cross", "emacross":
		return NewEMACross(cfg)
	case "ema-cross-adx":
		if cfg.MinADX == 0 {
			cfg.MinADX = 20
		}
		return NewEMACross(cfg)
	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: ema-cross, ema-cross-adx)", name)
	}
}

func hold(b market.Bar) market.Signal {
	return market.Signal{Time: b.Time, Direction: market.Hold, Probability: 0.5}
}
