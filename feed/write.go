package feed

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rustyeddy/cryptosim/market"
)

var signalHeader = []string{"time", "venue", "symbol", "direction", "probability"}

// WriteSignals writes sigs for inst in the signals CSV format, header first.
func WriteSignals(w io.Writer, inst market.Instrument, sigs []market.Signal) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(signalHeader); err != nil {
		return errors.Wrap(err, "write header")
	}
	for _, s := range sigs {
		rec := []string{
			s.Time.UTC().Format(time.RFC3339),
			inst.Venue,
			inst.Symbol,
			string(s.Direction),
			strconv.FormatFloat(s.Probability, 'f', 6, 64),
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrap(err, "write signal")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush signals")
}
