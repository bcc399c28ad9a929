package risk

import (
	"testing"
	"time"

	"github.com/rustyeddy/cryptosim/simerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPolicyDefaults(t *testing.T) {
	t.Parallel()

	p, err := NewPolicy(Policy{StopLossPct: 0.1})
	require.NoError(t, err)
	assert.Equal(t, 0.95, p.EntryFraction)
	assert.Equal(t, 10, p.MinBars)
	assert.Equal(t, Largest, p.ExposureTieBreak)
	assert.Equal(t, 0.1, p.StopLossPct)
}

func TestPolicyValidate(t *testing.T) {
	t.Parallel()

	valid := DefaultPolicy()

	tests := []struct {
		name   string
		mutate func(p *Policy)
		errMsg string
	}{
		{"default ok", func(p *Policy) {}, ""},
		{"stop loss too big", func(p *Policy) { p.StopLossPct = 1 }, "stop_loss_pct"},
		{"negative take profit", func(p *Policy) { p.TakeProfitPct = -0.1 }, "take_profit_pct"},
		{"trail pct", func(p *Policy) { p.Trailing.TrailPct = 1.5 }, "trail_pct"},
		{"trail activate", func(p *Policy) { p.Trailing.ActivatePct = -1 }, "activate_pct"},
		{"exposure above one", func(p *Policy) { p.MaxExposurePct = 1.2 }, "max_exposure_pct"},
		{"negative age", func(p *Policy) { p.MaxPositionAge = -time.Hour }, "max_position_age"},
		{"negative cooldown", func(p *Policy) { p.Cooldown = -time.Minute }, "cooldown"},
		{"prob gap", func(p *Policy) { p.MinProbGap = 0.6 }, "min_prob_gap"},
		{"entry fraction", func(p *Policy) { p.EntryFraction = 1.01 }, "entry_fraction"},
		{"min bars", func(p *Policy) { p.MinBars = 1 }, "min_bars"},
		{"tie break", func(p *Policy) { p.ExposureTieBreak = "random" }, "exposure_tie_break"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, simerr.ErrInvalidPolicy)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
