package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/cryptosim/market"
)

type Violation struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Decision says whether a fresh signal may become a trade intent.
type Decision struct {
	Allowed    bool
	Violations []Violation
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Reason joins violation codes, or "" when allowed.
func (d Decision) Reason() string {
	s := ""
	for i, v := range d.Violations {
		if i > 0 {
			s += ","
		}
		s += v.Code
	}
	return s
}

// EntryCheck is what the gate needs to know about a signal.
type EntryCheck struct {
	Now      time.Time
	Signal   market.Signal
	LastFill time.Time // zero when the pair never traded
}

const probGapTolerance = 1e-12

// CheckEntry applies the minimum probability gap to BUY and SELL signals
// and the per-pair cooldown to BUY signals.
func CheckEntry(p Policy, in EntryCheck) Decision {
	d := Decision{Allowed: true}

	if in.Signal.Direction == market.Hold {
		d.add("HOLD", "hold signal")
		return d
	}

	// probabilities sitting exactly on the boundary pass on both sides
	gap := math.Abs(in.Signal.Probability - 0.5)
	if gap+probGapTolerance < p.MinProbGap {
		d.add("PROB_GAP",
			fmt.Sprintf("probability %.3f within %.3f of 0.5", in.Signal.Probability, p.MinProbGap))
	}

	if in.Signal.Direction == market.Buy && p.Cooldown > 0 && !in.LastFill.IsZero() {
		if since := in.Now.Sub(in.LastFill); since < p.Cooldown {
			d.add("COOLDOWN",
				fmt.Sprintf("last fill %s ago, cooldown %s", since, p.Cooldown))
		}
	}

	return d
}
