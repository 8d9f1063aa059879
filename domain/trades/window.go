// Package trades keeps a rolling window of executed trades and derives
// volume figures over a trailing horizon.
package trades

import (
	"time"

	"github.com/shopspring/decimal"

	"marketstate/domain/numeric"
)

const (
	DefaultRetention = 70 * time.Second
	DefaultReporting = 60 * time.Second
)

// Record is a trade event as transmitted by the venue.
type Record struct {
	EventType    string `json:"e"`
	EventTime    uint64 `json:"E"`
	Symbol       string `json:"s"`
	TradeID      uint64 `json:"t"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    uint64 `json:"T"`
	IsBuyerMaker bool   `json:"m"`
	Ignore       bool   `json:"M"`
}

type Trade struct {
	ID               uint64
	Price            decimal.Decimal
	Quantity         decimal.Decimal
	OccurredAtMillis uint64
	IsBuyerMaker     bool
}

type Option func(*Window)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Window) { w.now = now }
}

func WithRetention(d time.Duration) Option {
	return func(w *Window) { w.retention = d }
}

func WithReporting(d time.Duration) Option {
	return func(w *Window) { w.reporting = d }
}

// Window holds trades oldest first. Entries are evicted lazily on insert
// once they are older than the retention horizon; queries only look at
// entries inside the reporting horizon, boundary included.
//
// Not safe for concurrent use.
type Window struct {
	parser    *numeric.Parser
	entries   *Ring[Trade]
	now       func() time.Time
	retention time.Duration
	reporting time.Duration
}

func NewWindow(parser *numeric.Parser, opts ...Option) *Window {
	w := &Window{
		parser:    parser,
		entries:   NewRing[Trade](1024),
		now:       time.Now,
		retention: DefaultRetention,
		reporting: DefaultReporting,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Insert evicts expired entries and appends r. It returns false when r is
// itself already past retention; such a trade is never stored.
func (w *Window) Insert(r Record) bool {
	now := w.nowMillis()
	retention := uint64(w.retention.Milliseconds())

	for {
		t, ok := w.entries.Front()
		if !ok || age(now, t.OccurredAtMillis) <= retention {
			break
		}
		w.entries.PopFront()
	}

	if age(now, r.TradeTime) > retention {
		return false
	}

	w.entries.PushBack(Trade{
		ID:               r.TradeID,
		Price:            w.parser.Parse(r.Price),
		Quantity:         w.parser.Parse(r.Quantity),
		OccurredAtMillis: r.TradeTime,
		IsBuyerMaker:     r.IsBuyerMaker,
	})
	return true
}

func (w *Window) TotalVolume() float64 {
	sum, _ := w.reported()
	return sum.InexactFloat64()
}

// AverageVolumePerTrade is 0 when no trade falls inside the horizon.
func (w *Window) AverageVolumePerTrade() float64 {
	sum, n := w.reported()
	if n == 0 {
		return 0
	}
	return sum.Div(decimal.NewFromInt(int64(n))).InexactFloat64()
}

// Len counts every retained entry, including ones outside the reporting
// horizon that have not been evicted yet.
func (w *Window) Len() int {
	return w.entries.Len()
}

func (w *Window) reported() (decimal.Decimal, int) {
	now := w.nowMillis()
	horizon := uint64(w.reporting.Milliseconds())

	sum := decimal.Zero
	n := 0
	w.entries.Each(func(t Trade) bool {
		if age(now, t.OccurredAtMillis) <= horizon {
			sum = sum.Add(t.Quantity)
			n++
		}
		return true
	})
	return sum, n
}

func (w *Window) nowMillis() uint64 {
	return uint64(w.now().UnixMilli())
}

// age treats trades stamped in the future as brand new.
func age(now, at uint64) uint64 {
	if at >= now {
		return 0
	}
	return now - at
}
