package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustyeddy/cryptosim/equity"
	"github.com/rustyeddy/cryptosim/guard"
	"github.com/rustyeddy/cryptosim/ledger"
	"github.com/rustyeddy/cryptosim/market"
	"github.com/rustyeddy/cryptosim/risk"
	"github.com/rustyeddy/cryptosim/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestFileMissingIsNotAnError(t *testing.T) {
	t.Parallel()

	f := NewFile[record](filepath.Join(t.TempDir(), "nope.json"))
	_, ok, err := f.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileSaveLoadLeavesNoTemp(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "state")
	f := NewFile[record](filepath.Join(dir, "r.json"))

	require.NoError(t, f.Save(record{Name: "a", Value: 1}))
	require.NoError(t, f.Save(record{Name: "b", Value: 2.5}))

	got, ok, err := f.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, record{Name: "b", Value: 2.5}, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "r.json", entries[0].Name())
}

func TestFileCorruptIsReported(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, _, err := NewFile[record](path).Load()
	assert.ErrorContains(t, err, "decode")
}

func TestFileFailedSaveKeepsOldContents(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f := NewFile[map[string]any](filepath.Join(dir, "m.json"))
	require.NoError(t, f.Save(map[string]any{"ok": true}))

	// channels cannot be encoded
	err := f.Save(map[string]any{"ch": make(chan int)})
	require.Error(t, err)

	got, ok, err := f.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, true, got["ok"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo := NewRepository(dir)

	empty, err := repo.LoadAll()
	require.NoError(t, err)
	assert.Nil(t, empty.Engine)
	assert.Nil(t, empty.Mode)
	assert.Nil(t, empty.Equity)

	at := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	btc := market.Instrument{Venue: "binance", Symbol: "BTCUSDT"}
	eng := sim.State{
		Ledger: ledger.Snapshot{
			Cash:      512.25,
			Positions: []ledger.Position{{ID: "P1", Instrument: btc, Quantity: 0.01, AvgEntryPrice: 50_000, OpenedAt: at}},
			LastFills: []ledger.LastFill{{Instrument: btc, Time: at}},
			SavedAt:   at,
		},
		Books: []sim.BookState{{
			Instrument: btc,
			LastBar:    at,
			Bars:       3,
			Trail:      risk.TrailState{PositionID: "P1", HighWater: 51_000, Armed: true},
			Mark:       50_500,
			MarkTime:   at,
		}},
	}
	mode := guard.Record{Mode: guard.CloseOnly, SavedAt: at,
		Transitions: []guard.Transition{{From: guard.Live, To: guard.CloseOnly, Reason: "maintenance", At: at}}}
	hist := equity.History{MaxPoints: 10, Points: []equity.Point{equity.NewPoint(at, 512.25, 505)}}

	require.NoError(t, repo.SaveAll(State{Engine: &eng, Mode: &mode, Equity: &hist}))

	got, err := NewRepository(dir).LoadAll()
	require.NoError(t, err)
	require.NotNil(t, got.Engine)
	require.NotNil(t, got.Mode)
	require.NotNil(t, got.Equity)

	assert.Equal(t, eng.Ledger.Cash, got.Engine.Ledger.Cash)
	require.Len(t, got.Engine.Ledger.Positions, 1)
	assert.Equal(t, "P1", got.Engine.Ledger.Positions[0].ID)
	assert.True(t, got.Engine.Ledger.Positions[0].OpenedAt.Equal(at))
	assert.Equal(t, eng.Books[0].Trail, got.Engine.Books[0].Trail)
	assert.Equal(t, guard.CloseOnly, got.Mode.Mode)
	assert.Equal(t, "maintenance", got.Mode.Transitions[0].Reason)
	assert.Equal(t, 1017.25, got.Equity.Points[0].Equity)

	// a partial save only touches what it carries
	locked := guard.Record{Mode: guard.Locked, SavedAt: at}
	require.NoError(t, repo.SaveAll(State{Mode: &locked}))
	got, err = repo.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, guard.Locked, got.Mode.Mode)
	assert.Equal(t, 512.25, got.Engine.Ledger.Cash)
}
