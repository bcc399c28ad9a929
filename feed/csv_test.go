package feed

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustyeddy/cryptosim/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestReadAllBarsFiltersInstrument(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "bars.csv", `time,venue,symbol,open,high,low,close,volume
2024-01-01T00:00:00Z,binance,BTCUSDT,100,105,99,104,12.5

2024-01-01T00:00:00Z,binance,ETHUSDT,10,11,9,10.5,3
1704070800,binance,BTCUSDT,104,106,101,102
`)

	btc := market.Instrument{Venue: "binance", Symbol: "BTCUSDT"}
	bars, err := ReadAllBars(path, Filter{Instrument: btc})
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, market.Bar{
		Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Open: 100, High: 105, Low: 99, Close: 104, Volume: 12.5,
	}, bars[0])
	assert.Equal(t, time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), bars[1].Time)
	assert.Equal(t, 0.0, bars[1].Volume)

	all, err := ReadAllBars(path, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestBarFeedStreamsWithInstrument(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "bars.csv", "2024-01-01T00:00:00Z,kraken,XBTUSD,1,2,0.5,1.5,0\n")
	f, err := NewCSVBarFeed(path, Filter{})
	require.NoError(t, err)
	defer f.Close()

	br, ok, err := f.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "kraken:XBTUSD", br.Instrument.Key())

	_, ok, err = f.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadAllSignals(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "signals.csv", `time,venue,symbol,direction,probability
2024-01-01T00:00:00Z,binance,BTCUSDT,buy,0.71
2024-01-01T01:00:00Z,binance,BTCUSDT,HOLD,0.5
`)
	sigs, err := ReadAllSignals(path, Filter{})
	require.NoError(t, err)
	require.Len(t, sigs, 2)
	assert.Equal(t, market.Buy, sigs[0].Direction)
	assert.Equal(t, 0.71, sigs[0].Probability)
	assert.Equal(t, market.Hold, sigs[1].Direction)
}

func TestBadRowsReportLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		signals bool
		body    string
		want    string
	}{
		{name: "short bar", body: "2024-01-01T00:00:00Z,binance,BTCUSDT,1,2\n", want: "line 1"},
		{name: "bad price", body: "time\n2024-01-01T00:00:00Z,binance,BTCUSDT,1,x,1,1\n", want: "bad high"},
		{name: "bad time", body: "yesterday,binance,BTCUSDT,1,1,1,1\n", want: "bad time"},
		{name: "missing symbol", body: "2024-01-01T00:00:00Z,binance,,1,1,1,1\n", want: "missing venue"},
		{name: "bad direction", signals: true, body: "2024-01-01T00:00:00Z,binance,BTCUSDT,SHORT,0.5\n", want: "unknown direction"},
		{name: "probability range", signals: true, body: "2024-01-01T00:00:00Z,binance,BTCUSDT,BUY,1.5\n", want: "outside [0,1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeFile(t, "in.csv", tt.body)
			var err error
			if tt.signals {
				_, err = ReadAllSignals(path, Filter{})
			} else {
				_, err = ReadAllBars(path, Filter{})
			}
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestMissingFile(t *testing.T) {
	t.Parallel()

	_, err := ReadAllBars(filepath.Join(t.TempDir(), "none.csv"), Filter{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteSignalsReadsBack(t *testing.T) {
	t.Parallel()

	inst := market.Instrument{Venue: "binance", Symbol: "ETHUSDT"}
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sigs := []market.Signal{
		{Time: t0, Direction: market.Buy, Probability: 0.8125},
		{Time: t0.Add(time.Hour), Direction: market.Sell, Probability: 0.25},
	}

	path := filepath.Join(t.TempDir(), "out.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteSignals(f, inst, sigs))
	require.NoError(t, f.Close())

	got, err := ReadAllSignals(path, Filter{Instrument: inst})
	require.NoError(t, err)
	assert.Equal(t, sigs, got)
}
