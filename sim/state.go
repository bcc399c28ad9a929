package sim

import (
	"fmt"
	"sort"
	"time"

	"github.com/rustyeddy/cryptosim/ledger"
	"github.com/rustyeddy/cryptosim/market"
	"github.com/rustyeddy/cryptosim/risk"
)

// BookState is the persisted per-instrument engine state.
type BookState struct {
	Instrument market.Instrument `json:"instrument"`
	LastBar    time.Time         `json:"last_bar"`
	LastSignal time.Time         `json:"last_signal"`
	Bars       int               `json:"bars"`
	Pending    []PendingSignal   `json:"pending,omitempty"`
	Trail      risk.TrailState   `json:"trail"`
	Mark       float64           `json:"mark"`
	MarkTime   time.Time         `json:"mark_time"`
}

// State is the ledger snapshot plus what the engine needs to resume
// without replaying or re-arming anything.
type State struct {
	Ledger ledger.Snapshot `json:"ledger"`
	Books  []BookState     `json:"books"`
}

// Snapshot captures the engine. Steps in flight finish first for each
// instrument because every book lock is taken in turn.
func (e *Engine) Snapshot(now time.Time) State {
	e.mu.Lock()
	insts := make([]market.Instrument, 0, len(e.books))
	for inst := range e.books {
		insts = append(insts, inst)
	}
	e.mu.Unlock()
	sort.Slice(insts, func(i, j int) bool { return insts[i].Key() < insts[j].Key() })

	st := State{Ledger: e.ledger.Snapshot(now)}
	for _, inst := range insts {
		b := e.book(inst)
		b.mu.Lock()
		bs := BookState{
			Instrument: inst,
			LastBar:    b.lastBar,
			LastSignal: b.lastSignal,
			Bars:       b.bars,
			Pending:    append([]PendingSignal(nil), b.pending...),
			Trail:      b.trail,
		}
		b.mu.Unlock()
		if m, err := e.marks.Get(inst); err == nil {
			bs.Mark, bs.MarkTime = m.Price, m.Time
		}
		st.Books = append(st.Books, bs)
	}
	return st
}

// Restore loads st into an engine that has not stepped yet.
func (e *Engine) Restore(st State) error {
	for _, bs := range st.Books {
		if bs.Bars < 0 {
			return fmt.Errorf("restore %s: negative bar count", bs.Instrument)
		}
	}
	e.ledger.Restore(st.Ledger)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.books = make(map[market.Instrument]*book, len(st.Books))
	for _, bs := range st.Books {
		e.books[bs.Instrument] = &book{
			lastBar:    bs.LastBar,
			lastSignal: bs.LastSignal,
			bars:       bs.Bars,
			pending:    append([]PendingSignal(nil), bs.Pending...),
			trail:      bs.Trail,
		}
		if bs.Mark > 0 {
			e.marks.Set(bs.Instrument, bs.Mark, bs.MarkTime)
		}
	}
	return nil
}
