package store

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rustyeddy/cryptosim/equity"
	"github.com/rustyeddy/cryptosim/guard"
	"github.com/rustyeddy/cryptosim/sim"
)

const (
	LedgerFile = "ledger.json"
	ModeFile   = "mode.json"
	EquityFile = "equity.json"
)

// State is everything the live runner persists. A nil field was not found
// on load and is skipped on save.
type State struct {
	Engine *sim.State
	Mode   *guard.Record
	Equity *equity.History
}

// Repository keeps the ledger snapshot, the mode record and the equity
// history as three independently written files under one directory.
type Repository struct {
	Ledger *File[sim.State]
	Mode   *File[guard.Record]
	Equity *File[equity.History]
}

func NewRepository(dir string) *Repository {
	return &Repository{
		Ledger: NewFile[sim.State](filepath.Join(dir, LedgerFile)),
		Mode:   NewFile[guard.Record](filepath.Join(dir, ModeFile)),
		Equity: NewFile[equity.History](filepath.Join(dir, EquityFile)),
	}
}

func (r *Repository) LoadAll() (State, error) {
	var st State

	eng, ok, err := r.Ledger.Load()
	if err != nil {
		return State{}, errors.Wrap(err, "load ledger")
	}
	if ok {
		st.Engine = &eng
	}

	mode, ok, err := r.Mode.Load()
	if err != nil {
		return State{}, errors.Wrap(err, "load mode")
	}
	if ok {
		st.Mode = &mode
	}

	hist, ok, err := r.Equity.Load()
	if err != nil {
		return State{}, errors.Wrap(err, "load equity")
	}
	if ok {
		st.Equity = &hist
	}
	return st, nil
}

// SaveAll writes each present record. The mode is written first so an
// operator lock survives even if a later write fails.
func (r *Repository) SaveAll(st State) error {
	if st.Mode != nil {
		if err := r.Mode.Save(*st.Mode); err != nil {
			return errors.Wrap(err, "save mode")
		}
	}
	if st.Engine != nil {
		if err := r.Ledger.Save(*st.Engine); err != nil {
			return errors.Wrap(err, "save ledger")
		}
	}
	if st.Equity != nil {
		if err := r.Equity.Save(*st.Equity); err != nil {
			return errors.Wrap(err, "save equity")
		}
	}
	return nil
}
