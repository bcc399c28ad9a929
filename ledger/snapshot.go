package ledger

import (
	"sort"
	"time"

	"github.com/rustyeddy/cryptosim/market"
)

// Snapshot is the persisted form of a ledger. The fill log is not part of
// it; fills are journaled separately.
type Snapshot struct {
	Cash      float64    `json:"cash"`
	Positions []Position `json:"positions"`
	LastFills []LastFill `json:"last_fills,omitempty"`
	SavedAt   time.Time  `json:"saved_at"`
}

type LastFill struct {
	Instrument market.Instrument `json:"instrument"`
	Time       time.Time         `json:"time"`
}

func (l *Ledger) Snapshot(now time.Time) Snapshot {
	positions := l.Positions()

	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := Snapshot{Cash: l.cash, Positions: positions, SavedAt: now}
	for inst, t := range l.lastFill {
		snap.LastFills = append(snap.LastFills, LastFill{Instrument: inst, Time: t})
	}
	sort.Slice(snap.LastFills, func(i, j int) bool {
		return snap.LastFills[i].Instrument.Key() < snap.LastFills[j].Instrument.Key()
	})
	return snap
}

// Restore replaces cash and positions with the snapshot contents.
func (l *Ledger) Restore(s Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cash = s.Cash
	l.positions = make(map[market.Instrument]*Position, len(s.Positions))
	for _, p := range s.Positions {
		if p.Quantity <= 0 {
			continue
		}
		p := p
		l.positions[p.Instrument] = &p
	}
	l.lastFill = make(map[market.Instrument]time.Time, len(s.LastFills))
	for _, lf := range s.LastFills {
		l.lastFill[lf.Instrument] = lf.Time
	}
}
