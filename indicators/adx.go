package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/cryptosim/market"
)

// ADX is Wilder's Average Directional Index. It needs period bar-to-bar
// deltas to seed the smoothed TR and DM sums, then period DX values to
// seed the ADX itself. The first DX comes with the seed, so it is ready
// after 2*period bars.
type ADX struct {
	period  int
	prev    market.Bar
	hasPrev bool
	periods int

	sumTR, sumPlusDM, sumMinusDM float64
	smTR, smPlusDM, smMinusDM    float64

	plusDI, minusDI float64
	dxSum           float64
	dxCount         int
	adx             float64
	ready           bool
}

func NewADX(period int) *ADX {
	return &ADX{period: period}
}

func (a *ADX) Name() string { return fmt.Sprintf("ADX(%d)", a.period) }
func (a *ADX) Warmup() int  { return 2 * a.period }
func (a *ADX) Ready() bool  { return a.ready }

func (a *ADX) Reset() {
	*a = ADX{period: a.period}
}

func (a *ADX) Update(b market.Bar) {
	if !a.hasPrev {
		a.prev = b
		a.hasPrev = true
		return
	}

	tr := trueRange(b, a.prev)
	up := b.High - a.prev.High
	down := a.prev.Low - b.Low
	var plusDM, minusDM float64
	if up > down && up > 0 {
		plusDM = up
	}
	if down > up && down > 0 {
		minusDM = down
	}
	a.prev = b
	a.periods++

	n := float64(a.period)
	if a.periods <= a.period {
		a.sumTR += tr
		a.sumPlusDM += plusDM
		a.sumMinusDM += minusDM
		if a.periods < a.period {
			return
		}
		a.smTR, a.smPlusDM, a.smMinusDM = a.sumTR, a.sumPlusDM, a.sumMinusDM
	} else {
		a.smTR = a.smTR - a.smTR/n + tr
		a.smPlusDM = a.smPlusDM - a.smPlusDM/n + plusDM
		a.smMinusDM = a.smMinusDM - a.smMinusDM/n + minusDM
	}

	a.plusDI, a.minusDI = directional(a.smPlusDM, a.smMinusDM, a.smTR)
	dx := directionalIndex(a.plusDI, a.minusDI)

	if a.ready {
		a.adx = (a.adx*(n-1) + dx) / n
		return
	}
	a.dxSum += dx
	a.dxCount++
	if a.dxCount >= a.period {
		a.adx = a.dxSum / n
		a.ready = true
	}
}

func (a *ADX) Value() float64 {
	if !a.ready {
		return 0
	}
	return a.adx
}

func (a *ADX) PlusDI() float64  { return a.plusDI }
func (a *ADX) MinusDI() float64 { return a.minusDI }

func directional(smPlusDM, smMinusDM, smTR float64) (float64, float64) {
	if smTR <= 0 {
		return 0, 0
	}
	return 100 * smPlusDM / smTR, 100 * smMinusDM / smTR
}

func directionalIndex(plusDI, minusDI float64) float64 {
	den := plusDI + minusDI
	if den <= 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / den
}
