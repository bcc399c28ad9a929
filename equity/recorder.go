package equity

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/cryptosim/simerr"
)

// Point is a point-in-time valuation of the account. Equity is always
// derived from Cash and PositionsValue, never stored separately.
type Point struct {
	Time           time.Time `json:"time"`
	Cash           float64   `json:"cash"`
	PositionsValue float64   `json:"positions_value"`
	Equity         float64   `json:"equity"`
}

func NewPoint(t time.Time, cash, positionsValue float64) Point {
	return Point{
		Time:           t.UTC(),
		Cash:           cash,
		PositionsValue: positionsValue,
		Equity:         cash + positionsValue,
	}
}

// Recorder keeps a time-ordered equity history. A zero MaxPoints or MaxAge
// leaves that bound off, which is what a single backtest run wants.
type Recorder struct {
	mu        sync.RWMutex
	points    []Point
	maxPoints int
	maxAge    time.Duration
}

func NewRecorder(maxPoints int, maxAge time.Duration) *Recorder {
	return &Recorder{maxPoints: maxPoints, maxAge: maxAge}
}

// Record stores one point. A point with the timestamp of one already held
// replaces it, so retried ticks never duplicate. A point older than the
// newest one that matches nothing is rejected with ErrOutOfOrder.
func (r *Recorder) Record(t time.Time, cash, positionsValue float64) (Point, error) {
	p := NewPoint(t, cash, positionsValue)

	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.points)
	if n == 0 || p.Time.After(r.points[n-1].Time) {
		r.points = append(r.points, p)
		r.trimLocked()
		return p, nil
	}

	i := sort.Search(n, func(i int) bool { return !r.points[i].Time.Before(p.Time) })
	if i < n && r.points[i].Time.Equal(p.Time) {
		r.points[i] = p
		return p, nil
	}
	return Point{}, fmt.Errorf("record %s before %s: %w",
		p.Time.Format(time.RFC3339), r.points[n-1].Time.Format(time.RFC3339), simerr.ErrOutOfOrder)
}

func (r *Recorder) trimLocked() {
	drop := 0
	if r.maxPoints > 0 && len(r.points) > r.maxPoints {
		drop = len(r.points) - r.maxPoints
	}
	if r.maxAge > 0 {
		cutoff := r.points[len(r.points)-1].Time.Add(-r.maxAge)
		for drop < len(r.points) && r.points[drop].Time.Before(cutoff) {
			drop++
		}
	}
	if drop > 0 {
		r.points = append(r.points[:0:0], r.points[drop:]...)
	}
}

// Window returns points with from <= Time <= to. A zero bound is open.
func (r *Recorder) Window(from, to time.Time) []Point {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lo := 0
	if !from.IsZero() {
		lo = sort.Search(len(r.points), func(i int) bool { return !r.points[i].Time.Before(from) })
	}
	hi := len(r.points)
	if !to.IsZero() {
		hi = sort.Search(len(r.points), func(i int) bool { return r.points[i].Time.After(to) })
	}
	if lo >= hi {
		return []Point{}
	}
	return append([]Point(nil), r.points[lo:hi]...)
}

func (r *Recorder) Points() []Point {
	return r.Window(time.Time{}, time.Time{})
}

func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.points)
}

func (r *Recorder) Latest() (Point, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.points) == 0 {
		return Point{}, false
	}
	return r.points[len(r.points)-1], true
}

// History is the persisted form of a recorder.
type History struct {
	MaxPoints int           `json:"max_points"`
	MaxAge    time.Duration `json:"max_age"`
	Points    []Point       `json:"points"`
}

func (r *Recorder) History() History {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return History{
		MaxPoints: r.maxPoints,
		MaxAge:    r.maxAge,
		Points:    append([]Point(nil), r.points...),
	}
}

// Restore replaces the buffer with h.Points, keeping the recorder's own
// bounds. Points must be strictly increasing in time.
func (r *Recorder) Restore(h History) error {
	for i := 1; i < len(h.Points); i++ {
		if !h.Points[i].Time.After(h.Points[i-1].Time) {
			return fmt.Errorf("restore point %d: %w", i, simerr.ErrOutOfOrder)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.points = make([]Point, 0, len(h.Points))
	for _, p := range h.Points {
		r.points = append(r.points, NewPoint(p.Time, p.Cash, p.PositionsValue))
	}
	if len(r.points) > 0 {
		r.trimLocked()
	}
	return nil
}
