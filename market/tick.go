package market

import (
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/cryptosim/simerr"
)

// Mark is the latest known price of an instrument.
type Mark struct {
	Price float64
	Time  time.Time
}

// MarkStore keeps the last close per instrument for mark-to-market.
type MarkStore struct {
	mu    sync.RWMutex
	marks map[Instrument]Mark
}

func NewMarkStore() *MarkStore {
	return &MarkStore{marks: make(map[Instrument]Mark)}
}

func (ms *MarkStore) Set(inst Instrument, price float64, t time.Time) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.marks[inst] = Mark{Price: price, Time: t}
}

func (ms *MarkStore) Get(inst Instrument) (Mark, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	m, ok := ms.marks[inst]
	if !ok || m.Price <= 0 {
		return Mark{}, fmt.Errorf("mark %s: %w", inst, simerr.ErrStaleMark)
	}
	return m, nil
}

// Prices returns a copy of all marks as plain prices.
func (ms *MarkStore) Prices() map[Instrument]float64 {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	out := make(map[Instrument]float64, len(ms.marks))
	for k, m := range ms.marks {
		out[k] = m.Price
	}
	return out
}
