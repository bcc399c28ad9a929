// Package journal is the audit trail of fills, equity points and mode
// changes. It is written after the fact and never read back by the engine.
package journal

import (
	"github.com/rustyeddy/cryptosim/equity"
	"github.com/rustyeddy/cryptosim/guard"
	"github.com/rustyeddy/cryptosim/ledger"
)

// LiveRun is the run ID used for the live daemon's records.
const LiveRun = "live"

type Journal interface {
	RecordFill(run string, f ledger.Fill) error
	RecordEquity(run string, p equity.Point) error
	RecordModeChange(tr guard.Transition) error
	Close() error
}

// Discard is a Journal that drops everything.
var Discard Journal = discard{}

type discard struct{}

func (discard) RecordFill(string, ledger.Fill) error { return nil }
func (discard) RecordEquity(string, equity.Point) error { return nil }
func (discard) RecordModeChange(guard.Transition) error { return nil }
func (discard) Close() error { return nil }
