package guard

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rustyeddy/cryptosim/simerr"
	"go.uber.org/zap"
)

// Mode is the process-wide trading mode.
type Mode string

const (
	Live      Mode = "live"
	CloseOnly Mode = "close_only"
	Locked    Mode = "locked"
)

// ParseMode accepts the mode names case-insensitively, with '-' or '_'.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	switch m {
	case Live, CloseOnly, Locked:
		return m, nil
	default:
		return "", fmt.Errorf("unknown trading mode %q", s)
	}
}

func (m Mode) Valid() bool {
	_, err := ParseMode(string(m))
	return err == nil
}

// Kind is the type of trade intent being gated.
type Kind string

const (
	Open         Kind = "OPEN"
	Close        Kind = "CLOSE"
	PartialClose Kind = "PARTIAL_CLOSE"
)

// Allow reports whether mode m accepts an intent of kind k. The returned
// error is ErrTradingLocked or ErrEntriesDisabled.
func Allow(m Mode, k Kind) error {
	switch m {
	case Locked:
		return fmt.Errorf("%s intent in %s mode: %w", k, m, simerr.ErrTradingLocked)
	case CloseOnly:
		if k == Open {
			return fmt.Errorf("%s intent in %s mode: %w", k, m, simerr.ErrEntriesDisabled)
		}
	}
	return nil
}

// Transition is one operator mode change.
type Transition struct {
	From   Mode      `json:"from"`
	To     Mode      `json:"to"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Guard owns the trading mode. Every state may move to every other state;
// the engine reads the mode once per bar so a change applies from the next
// evaluated bar.
type Guard struct {
	mu     sync.RWMutex
	mode   Mode
	log    []Transition
	logger *zap.Logger

	// OnChange, when set, is called after each transition outside the lock.
	OnChange func(Transition)
}

func New(initial Mode, logger *zap.Logger) (*Guard, error) {
	if !initial.Valid() {
		return nil, fmt.Errorf("initial mode %q invalid", initial)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{mode: initial, logger: logger}, nil
}

func (g *Guard) Mode() Mode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mode
}

// Allow gates kind against the current mode.
func (g *Guard) Allow(k Kind) error {
	return Allow(g.Mode(), k)
}

// Set moves the guard to mode. Setting the current mode is a no-op and
// returns false.
func (g *Guard) Set(mode Mode, reason string, at time.Time) (bool, error) {
	if !mode.Valid() {
		return false, fmt.Errorf("set mode %q: invalid", mode)
	}

	g.mu.Lock()
	if g.mode == mode {
		g.mu.Unlock()
		return false, nil
	}
	tr := Transition{From: g.mode, To: mode, Reason: reason, At: at.UTC()}
	g.mode = mode
	g.log = append(g.log, tr)
	cb := g.OnChange
	g.mu.Unlock()

	g.logger.Warn("trading mode changed",
		zap.String("from", string(tr.From)),
		zap.String("to", string(tr.To)),
		zap.String("reason", reason),
		zap.Time("at", tr.At),
	)
	if cb != nil {
		cb(tr)
	}
	return true, nil
}

// Transitions returns a copy of the transition log.
func (g *Guard) Transitions() []Transition {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Transition(nil), g.log...)
}

// Record is the persisted form of the guard.
type Record struct {
	Mode        Mode         `json:"mode"`
	Transitions []Transition `json:"transitions,omitempty"`
	SavedAt     time.Time    `json:"saved_at"`
}

// maxLoggedTransitions bounds the log carried in a Record.
const maxLoggedTransitions = 100

func (g *Guard) Record(now time.Time) Record {
	g.mu.RLock()
	defer g.mu.RUnlock()
	tr := g.log
	if len(tr) > maxLoggedTransitions {
		tr = tr[len(tr)-maxLoggedTransitions:]
	}
	return Record{
		Mode:        g.mode,
		Transitions: append([]Transition(nil), tr...),
		SavedAt:     now.UTC(),
	}
}

// Restore replaces the guard state with r without firing OnChange.
func (g *Guard) Restore(r Record) error {
	if !r.Mode.Valid() {
		return fmt.Errorf("restore mode %q: invalid", r.Mode)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mode = r.Mode
	g.log = append([]Transition(nil), r.Transitions...)
	return nil
}
