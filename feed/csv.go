// Package feed reads bars and model signals from CSV files.
//
// Bars:    time,venue,symbol,open,high,low,close[,volume]
// Signals: time,venue,symbol,direction,probability
//
// time is RFC3339, RFC3339Nano or unix seconds. A single header row whose
// first column is "time" is skipped, as are empty rows.
package feed

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rustyeddy/cryptosim/market"
)

// BarRow is a bar tagged with the instrument it belongs to.
type BarRow struct {
	Instrument market.Instrument
	Bar        market.Bar
}

// SignalRow is a signal tagged with its instrument.
type SignalRow struct {
	Instrument market.Instrument
	Signal     market.Signal
}

// Filter keeps rows for one instrument. The zero value keeps everything.
type Filter struct {
	Instrument market.Instrument
}

func (f Filter) keep(inst market.Instrument) bool {
	return f.Instrument == (market.Instrument{}) || f.Instrument == inst
}

type reader struct {
	f        *os.File
	r        *csv.Reader
	line     int
	sawFirst bool
}

func open(path string) (*reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return &reader{f: f, r: r}, nil
}

func (r *reader) Close() error {
	if r.f != nil {
		return r.f.Close()
	}
	return nil
}

// row returns the next data row, or nil at EOF.
func (r *reader) row() ([]string, error) {
	for {
		row, err := r.r.Read()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		r.line++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		if !r.sawFirst {
			r.sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}
		return row, nil
	}
}

// CSVBarFeed streams bars in file order.
type CSVBarFeed struct {
	*reader
	filter Filter
}

func NewCSVBarFeed(path string, filter Filter) (*CSVBarFeed, error) {
	r, err := open(path)
	if err != nil {
		return nil, err
	}
	return &CSVBarFeed{reader: r, filter: filter}, nil
}

func (f *CSVBarFeed) Next() (BarRow, bool, error) {
	for {
		row, err := f.row()
		if err != nil || row == nil {
			return BarRow{}, false, err
		}
		br, err := parseBarRow(row)
		if err != nil {
			return BarRow{}, false, errors.Wrapf(err, "bars line %d", f.line)
		}
		if !f.filter.keep(br.Instrument) {
			continue
		}
		return br, true, nil
	}
}

// CSVSignalFeed streams signals in file order.
type CSVSignalFeed struct {
	*reader
	filter Filter
}

func NewCSVSignalFeed(path string, filter Filter) (*CSVSignalFeed, error) {
	r, err := open(path)
	if err != nil {
		return nil, err
	}
	return &CSVSignalFeed{reader: r, filter: filter}, nil
}

func (f *CSVSignalFeed) Next() (SignalRow, bool, error) {
	for {
		row, err := f.row()
		if err != nil || row == nil {
			return SignalRow{}, false, err
		}
		sr, err := parseSignalRow(row)
		if err != nil {
			return SignalRow{}, false, errors.Wrapf(err, "signals line %d", f.line)
		}
		if !f.filter.keep(sr.Instrument) {
			continue
		}
		return sr, true, nil
	}
}

// ReadAllBars loads every bar for the filtered instrument.
func ReadAllBars(path string, filter Filter) ([]market.Bar, error) {
	f, err := NewCSVBarFeed(path, filter)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var bars []market.Bar
	for {
		br, ok, err := f.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return bars, nil
		}
		bars = append(bars, br.Bar)
	}
}

// ReadAllSignals loads every signal for the filtered instrument.
func ReadAllSignals(path string, filter Filter) ([]market.Signal, error) {
	f, err := NewCSVSignalFeed(path, filter)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sigs []market.Signal
	for {
		sr, ok, err := f.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return sigs, nil
		}
		sigs = append(sigs, sr.Signal)
	}
}

func parseBarRow(row []string) (BarRow, error) {
	if len(row) < 7 {
		return BarRow{}, errors.Errorf("want at least 7 columns, got %d", len(row))
	}
	t, err := parseTime(row[0])
	if err != nil {
		return BarRow{}, err
	}
	inst, err := parseInstrument(row[1], row[2])
	if err != nil {
		return BarRow{}, err
	}

	var px [5]float64
	names := [5]string{"open", "high", "low", "close", "volume"}
	for i := range px {
		col := 3 + i
		if col >= len(row) {
			break
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
		if err != nil {
			return BarRow{}, errors.Wrapf(err, "bad %s %q", names[i], row[col])
		}
		px[i] = v
	}

	return BarRow{
		Instrument: inst,
		Bar: market.Bar{
			Time:   t,
			Open:   px[0],
			High:   px[1],
			Low:    px[2],
			Close:  px[3],
			Volume: px[4],
		},
	}, nil
}

func parseSignalRow(row []string) (SignalRow, error) {
	if len(row) < 5 {
		return SignalRow{}, errors.Errorf("want 5 columns, got %d", len(row))
	}
	t, err := parseTime(row[0])
	if err != nil {
		return SignalRow{}, err
	}
	inst, err := parseInstrument(row[1], row[2])
	if err != nil {
		return SignalRow{}, err
	}
	dir, err := market.ParseDirection(row[3])
	if err != nil {
		return SignalRow{}, err
	}
	p, err := strconv.ParseFloat(strings.TrimSpace(row[4]), 64)
	if err != nil {
		return SignalRow{}, errors.Wrapf(err, "bad probability %q", row[4])
	}
	sig := market.Signal{Time: t, Direction: dir, Probability: p}
	if err := sig.Validate(); err != nil {
		return SignalRow{}, err
	}
	return SignalRow{Instrument: inst, Signal: sig}, nil
}

func parseInstrument(venue, symbol string) (market.Instrument, error) {
	inst := market.Instrument{Venue: strings.TrimSpace(venue), Symbol: strings.TrimSpace(symbol)}
	if inst.Venue == "" || inst.Symbol == "" {
		return market.Instrument{}, errors.New("missing venue or symbol")
	}
	return inst, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, errors.Errorf("bad time %q", s)
}
