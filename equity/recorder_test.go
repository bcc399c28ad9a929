package equity

import (
	"testing"
	"time"

	"github.com/rustyeddy/cryptosim/simerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func hour(n int) time.Time { return t0.Add(time.Duration(n) * time.Hour) }

func TestRecordIsIdempotentPerTimestamp(t *testing.T) {
	t.Parallel()

	once := NewRecorder(0, 0)
	twice := NewRecorder(0, 0)
	for i := 0; i < 5; i++ {
		_, err := once.Record(hour(i), 1000, float64(i))
		require.NoError(t, err)
		_, err = twice.Record(hour(i), 999, 0)
		require.NoError(t, err)
		_, err = twice.Record(hour(i), 1000, float64(i))
		require.NoError(t, err)
	}

	assert.Equal(t, once.Len(), twice.Len())
	assert.Equal(t, once.Points(), twice.Points())

	// overwrite an older point in place
	p, err := twice.Record(hour(2), 500, 1)
	require.NoError(t, err)
	assert.Equal(t, 501.0, p.Equity)
	assert.Equal(t, 5, twice.Len())
	assert.Equal(t, 501.0, twice.Window(hour(2), hour(2))[0].Equity)
}

func TestRecordRejectsOutOfOrder(t *testing.T) {
	t.Parallel()

	r := NewRecorder(0, 0)
	_, err := r.Record(hour(0), 1, 0)
	require.NoError(t, err)
	_, err = r.Record(hour(2), 1, 0)
	require.NoError(t, err)

	_, err = r.Record(hour(1), 1, 0)
	assert.ErrorIs(t, err, simerr.ErrOutOfOrder)
	assert.Equal(t, 2, r.Len())
}

func TestRecorderBounds(t *testing.T) {
	t.Parallel()

	byCount := NewRecorder(3, 0)
	byAge := NewRecorder(0, 2*time.Hour)
	for i := 0; i < 10; i++ {
		_, err := byCount.Record(hour(i), float64(i), 0)
		require.NoError(t, err)
		_, err = byAge.Record(hour(i), float64(i), 0)
		require.NoError(t, err)
	}

	pts := byCount.Points()
	require.Len(t, pts, 3)
	assert.Equal(t, hour(7), pts[0].Time)

	pts = byAge.Points()
	require.Len(t, pts, 3)
	assert.Equal(t, hour(7), pts[0].Time)
	assert.Equal(t, hour(9), pts[2].Time)
}

func TestWindow(t *testing.T) {
	t.Parallel()

	r := NewRecorder(0, 0)
	for i := 0; i < 6; i++ {
		_, err := r.Record(hour(i), 100, 0)
		require.NoError(t, err)
	}

	assert.Len(t, r.Window(hour(1), hour(3)), 3)
	assert.Len(t, r.Window(time.Time{}, hour(1)), 2)
	assert.Len(t, r.Window(hour(4), time.Time{}), 2)
	assert.Empty(t, r.Window(hour(7), hour(9)))
	assert.Empty(t, r.Window(hour(3), hour(2)))

	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, hour(5), latest.Time)

	_, ok = NewRecorder(0, 0).Latest()
	assert.False(t, ok)
}

func TestHistoryRestore(t *testing.T) {
	t.Parallel()

	r := NewRecorder(100, 0)
	for i := 0; i < 4; i++ {
		_, err := r.Record(hour(i), 100, float64(i))
		require.NoError(t, err)
	}
	h := r.History()

	r2 := NewRecorder(2, 0)
	require.NoError(t, r2.Restore(h))
	assert.Equal(t, h.Points[2:], r2.Points())

	bad := History{Points: []Point{NewPoint(hour(1), 1, 0), NewPoint(hour(1), 1, 0)}}
	assert.ErrorIs(t, r2.Restore(bad), simerr.ErrOutOfOrder)
}
