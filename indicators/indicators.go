// Package indicators provides streaming technical indicators over closed bars.
package indicators

import "github.com/rustyeddy/cryptosim/market"

// Indicator computes a single streaming value from bars.
// It is deterministic and safe to use in live, replay, and backtests.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next *closed* bar and updates internal state.
	Update(b market.Bar)

	// Ready reports whether Value() is meaningful (warmup completed).
	Ready() bool

	// Value returns the current value, or 0 before Ready.
	Value() float64
}
