package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestADXStrongTrend(t *testing.T) {
	t.Parallel()
	bars := testBars()

	adx := NewADX(2)
	assert.Equal(t, 4, adx.Warmup())
	for _, b := range bars[:3] {
		adx.Update(b)
		assert.False(t, adx.Ready())
	}
	assert.Equal(t, 0.0, adx.Value())

	// every bar makes a higher high and a higher low, so only +DM moves
	adx.Update(bars[3])
	assert.True(t, adx.Ready())
	assert.InDelta(t, 100.0, adx.Value(), 1e-9)
	assert.Greater(t, adx.PlusDI(), 0.0)
	assert.Equal(t, 0.0, adx.MinusDI())

	adx.Update(bars[4])
	assert.InDelta(t, 100.0, adx.Value(), 1e-9)

	adx.Reset()
	assert.False(t, adx.Ready())
	var _ Indicator = adx
}

func TestADXChoppyMarketStaysLow(t *testing.T) {
	t.Parallel()
	base := testBars()[0]

	adx := NewADX(3)
	// alternate outside moves up and down by the same amount
	for i := 0; i < 12; i++ {
		b := base
		b.Time = base.Time.Add(time.Duration(i) * time.Hour)
		if i%2 == 0 {
			b.High, b.Low = 110, 100
		} else {
			b.High, b.Low = 112, 98
		}
		adx.Update(b)
	}
	assert.True(t, adx.Ready())
	// equal up and down moves cancel, so neither DM registers
	assert.InDelta(t, 0.0, adx.Value(), 1e-9)
}
