package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator hands out ULIDs stamped with a caller-supplied time.
//
// ULIDs sort by their timestamp, so fills and positions journaled with bar
// times stay in replay order in SQLite indexes. Entropy is monotonic within
// the same millisecond.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewGenerator returns a generator seeded from crypto/rand.
func NewGenerator() *Generator {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return NewSeeded(seed)
}

// NewSeeded returns a generator whose output depends only on seed and the
// sequence of timestamps passed to At. Backtests use it so two runs over
// the same inputs produce identical IDs.
func NewSeeded(seed int64) *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)}
}

// At returns a new ULID string for time t.
func (g *Generator) At(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if t.Before(time.UnixMilli(0)) {
		t = time.UnixMilli(0)
	}
	id, err := ulid.New(ulid.Timestamp(t.UTC()), g.entropy)
	if err != nil {
		// Only happens when monotonic entropy overflows within one millisecond.
		panic(err)
	}
	return id.String()
}

var std = NewGenerator()

// New returns a ULID for the current wall-clock time.
func New() string {
	return std.At(time.Now())
}
