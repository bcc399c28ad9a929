package market

import (
	"fmt"
	"strings"
	"time"
)

type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
	Hold Direction = "HOLD"
)

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToUpper(strings.TrimSpace(s))); d {
	case Buy, Sell, Hold:
		return d, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// Signal is the model output computed at the close of the bar with the
// same timestamp.
type Signal struct {
	Time        time.Time `json:"time"`
	Direction   Direction `json:"direction"`
	Probability float64   `json:"probability"`
}

func (s Signal) Validate() error {
	if _, err := ParseDirection(string(s.Direction)); err != nil {
		return err
	}
	if s.Probability < 0 || s.Probability > 1 {
		return fmt.Errorf("probability %v outside [0,1]", s.Probability)
	}
	return nil
}
