package backtest

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintResult(t *testing.T) {
	t.Parallel()

	bars, signals := scenarioInputs()
	res, err := Run(context.Background(), bars, signals, scenarioConfig())
	require.NoError(t, err)

	var buf bytes.Buffer
	PrintResult(&buf, res)
	out := buf.String()

	assert.Contains(t, out, "Run ID:        "+res.RunID)
	assert.Contains(t, out, "Instrument:    binance:BTCUSDT")
	assert.Contains(t, out, "Trades:        1")
	assert.Contains(t, out, "Profit Factor: 0.000")
	assert.Contains(t, out, "Beats:         false")
	assert.Contains(t, out, "Max Drawdown:")
}

func TestWriteOrg(t *testing.T) {
	t.Parallel()

	bars, signals := scenarioInputs()
	res, err := Run(context.Background(), bars, signals, scenarioConfig())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteOrg(&buf, res))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "* BACKTEST: binance:BTCUSDT 2024-01-01 to 2024-01-01\n"))
	assert.Contains(t, out, ":RUN_ID:       "+res.RunID+"\n")
	assert.Contains(t, out, ":TRADES:       1\n")
	assert.Contains(t, out, ":CALMAR:       ")
	assert.Contains(t, out, "| Stop loss %      | 10.00 |")
	assert.Equal(t, 2, strings.Count(out, "| 2024-01-01 "), "one row per fill")
	assert.Contains(t, out, "STOP_LOSS |")
}
