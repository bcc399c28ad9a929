package market

import (
	"fmt"
	"time"
)

// Bar is one OHLCV candle for a single instrument and timeframe.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// ValidateBars checks that bars are strictly ordered by time and carry
// positive prices. Duplicate timestamps are rejected here as well, since
// the engine treats a repeated timestamp as an already-processed tick.
func ValidateBars(bars []Bar) error {
	for i, b := range bars {
		if b.Close <= 0 || b.Open <= 0 {
			return fmt.Errorf("bar %d (%s): non-positive price", i, b.Time.Format(time.RFC3339))
		}
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return fmt.Errorf("bar %d (%s): not after previous bar %s",
				i, b.Time.Format(time.RFC3339), bars[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}

// Interval returns the spacing between the first two bars, or 0.
func Interval(bars []Bar) time.Duration {
	if len(bars) < 2 {
		return 0
	}
	return bars[1].Time.Sub(bars[0].Time)
}
