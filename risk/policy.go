package risk

import (
	"fmt"
	"time"

	"github.com/rustyeddy/cryptosim/simerr"
)

// TieBreak picks which positions a max-exposure reduction sells first.
type TieBreak string

const (
	// Largest sells the biggest positions by market value first.
	Largest TieBreak = "largest"
	// Worst sells the most unprofitable positions first.
	Worst TieBreak = "worst"
)

// TrailingStop arms once the unrealized gain reaches ActivatePct and then
// exits when price falls TrailPct below the high-water mark.
type TrailingStop struct {
	ActivatePct float64 `json:"activate_pct" yaml:"activate_pct"`
	TrailPct    float64 `json:"trail_pct" yaml:"trail_pct"`
}

func (ts TrailingStop) Enabled() bool { return ts.TrailPct > 0 }

// Policy is an immutable snapshot of risk settings. Zero values disable the
// optional rules. Build it with NewPolicy; replace it whole, never patch it
// in place while evaluations are running.
type Policy struct {
	StopLossPct    float64       `json:"stop_loss_pct,omitempty" yaml:"stop_loss_pct"`       // 0.10
	TakeProfitPct  float64       `json:"take_profit_pct,omitempty" yaml:"take_profit_pct"`   // 0.25
	Trailing       TrailingStop  `json:"trailing_stop" yaml:"trailing_stop"`
	MaxExposurePct float64       `json:"max_exposure_pct,omitempty" yaml:"max_exposure_pct"` // 0.50
	MaxPositionAge time.Duration `json:"max_position_age,omitempty" yaml:"max_position_age"`
	Cooldown       time.Duration `json:"cooldown" yaml:"cooldown"`
	MinProbGap     float64       `json:"min_prob_gap" yaml:"min_prob_gap"` // 0.05 => need p >= 0.55 or <= 0.45

	// Sizing and replay settings.
	EntryFraction    float64  `json:"entry_fraction" yaml:"entry_fraction"` // share of cash per entry
	MinBars          int      `json:"min_bars" yaml:"min_bars"`
	ExposureTieBreak TieBreak `json:"exposure_tie_break" yaml:"exposure_tie_break"`
}

// DefaultPolicy has no exits enabled and conservative entry settings.
func DefaultPolicy() Policy {
	return Policy{
		Cooldown:         0,
		MinProbGap:       0,
		EntryFraction:    0.95,
		MinBars:          10,
		ExposureTieBreak: Largest,
	}
}

// NewPolicy fills unset sizing defaults and validates p.
func NewPolicy(p Policy) (Policy, error) {
	def := DefaultPolicy()
	if p.EntryFraction == 0 {
		p.EntryFraction = def.EntryFraction
	}
	if p.MinBars == 0 {
		p.MinBars = def.MinBars
	}
	if p.ExposureTieBreak == "" {
		p.ExposureTieBreak = def.ExposureTieBreak
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks bounds once so evaluation code never has to.
func (p Policy) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), simerr.ErrInvalidPolicy)
	}

	if p.StopLossPct < 0 || p.StopLossPct >= 1 {
		return bad("stop_loss_pct %v must be in [0,1)", p.StopLossPct)
	}
	if p.TakeProfitPct < 0 {
		return bad("take_profit_pct %v must be >= 0", p.TakeProfitPct)
	}
	if p.Trailing.ActivatePct < 0 {
		return bad("trailing_stop.activate_pct %v must be >= 0", p.Trailing.ActivatePct)
	}
	if p.Trailing.TrailPct < 0 || p.Trailing.TrailPct >= 1 {
		return bad("trailing_stop.trail_pct %v must be in [0,1)", p.Trailing.TrailPct)
	}
	if p.MaxExposurePct < 0 || p.MaxExposurePct > 1 {
		return bad("max_exposure_pct %v must be in [0,1]", p.MaxExposurePct)
	}
	if p.MaxPositionAge < 0 {
		return bad("max_position_age %v must be >= 0", p.MaxPositionAge)
	}
	if p.Cooldown < 0 {
		return bad("cooldown %v must be >= 0", p.Cooldown)
	}
	if p.MinProbGap < 0 || p.MinProbGap > 0.5 {
		return bad("min_prob_gap %v must be in [0,0.5]", p.MinProbGap)
	}
	if p.EntryFraction <= 0 || p.EntryFraction > 1 {
		return bad("entry_fraction %v must be in (0,1]", p.EntryFraction)
	}
	if p.MinBars < 2 {
		return bad("min_bars %d must be >= 2", p.MinBars)
	}
	switch p.ExposureTieBreak {
	case Largest, Worst:
	default:
		return bad("unknown exposure_tie_break %q", p.ExposureTieBreak)
	}
	return nil
}
