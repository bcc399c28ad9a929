package guard

import (
	"testing"
	"time"

	"github.com/rustyeddy/cryptosim/simerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"live", Live, true},
		{"LIVE", Live, true},
		{"close-only", CloseOnly, true},
		{" close_only ", CloseOnly, true},
		{"Locked", Locked, true},
		{"paused", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestAllowMatrix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode Mode
		kind Kind
		want error
	}{
		{Live, Open, nil},
		{Live, Close, nil},
		{Live, PartialClose, nil},
		{CloseOnly, Open, simerr.ErrEntriesDisabled},
		{CloseOnly, Close, nil},
		{CloseOnly, PartialClose, nil},
		{Locked, Open, simerr.ErrTradingLocked},
		{Locked, Close, simerr.ErrTradingLocked},
		{Locked, PartialClose, simerr.ErrTradingLocked},
	}
	for _, tt := range tests {
		err := Allow(tt.mode, tt.kind)
		if tt.want == nil {
			assert.NoError(t, err, "%s/%s", tt.mode, tt.kind)
			continue
		}
		assert.ErrorIs(t, err, tt.want, "%s/%s", tt.mode, tt.kind)
	}
}

func TestGuardTransitions(t *testing.T) {
	t.Parallel()

	g, err := New(Live, zaptest.NewLogger(t))
	require.NoError(t, err)

	var seen []Transition
	g.OnChange = func(tr Transition) { seen = append(seen, tr) }

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	path := []Mode{CloseOnly, Locked, Live, Locked, CloseOnly, Live}
	for i, m := range path {
		changed, err := g.Set(m, "operator", at.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, m, g.Mode())
	}

	changed, err := g.Set(Live, "again", at)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = g.Set("halt", "bad", at)
	assert.Error(t, err)
	assert.Equal(t, Live, g.Mode())

	log := g.Transitions()
	require.Len(t, log, len(path))
	assert.Equal(t, seen, log)
	assert.Equal(t, Live, log[0].From)
	assert.Equal(t, CloseOnly, log[0].To)
	assert.Equal(t, "operator", log[0].Reason)
}

func TestGuardRecordRestore(t *testing.T) {
	t.Parallel()

	g, err := New(Live, nil)
	require.NoError(t, err)
	_, err = g.Set(Locked, "incident", time.Unix(100, 0))
	require.NoError(t, err)

	rec := g.Record(time.Unix(200, 0))
	assert.Equal(t, Locked, rec.Mode)
	require.Len(t, rec.Transitions, 1)

	g2, err := New(Live, nil)
	require.NoError(t, err)
	require.NoError(t, g2.Restore(rec))
	assert.Equal(t, Locked, g2.Mode())
	assert.ErrorIs(t, g2.Allow(Close), simerr.ErrTradingLocked)
	assert.Len(t, g2.Transitions(), 1)

	assert.Error(t, g2.Restore(Record{Mode: "nope"}))
}
