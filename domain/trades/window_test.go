package trades

import (
	"math/rand"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"marketstate/domain/numeric"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestWindow() (*Window, *fakeClock) {
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	return NewWindow(numeric.NewParser(nil), WithClock(clock.Now)), clock
}

func rec(id uint64, qty string, at time.Time) Record {
	return Record{
		EventType: "trade",
		Symbol:    "BTCUSDT",
		TradeID:   id,
		Price:     "50000",
		Quantity:  qty,
		TradeTime: uint64(at.UnixMilli()),
	}
}

func TestEmptyWindow(t *testing.T) {
	w, _ := newTestWindow()

	if v := w.TotalVolume(); v != 0 {
		t.Errorf("TotalVolume = %v, want 0", v)
	}
	if v := w.AverageVolumePerTrade(); v != 0 {
		t.Errorf("AverageVolumePerTrade = %v, want 0", v)
	}
}

func TestBoundaryTradeIncluded(t *testing.T) {
	w, clock := newTestWindow()
	now := clock.Now()

	w.Insert(rec(1, "1.5", now.Add(-60*time.Second)))
	w.Insert(rec(2, "2", now.Add(-60*time.Second-time.Millisecond)))
	w.Insert(rec(3, "0.5", now))

	if v := w.TotalVolume(); v != 2 {
		t.Errorf("TotalVolume = %v, want 2", v)
	}
	if v := w.AverageVolumePerTrade(); v != 1 {
		t.Errorf("AverageVolumePerTrade = %v, want 1", v)
	}
	// the 60.001s trade is retained but not reported
	if w.Len() != 3 {
		t.Errorf("Len = %d, want 3", w.Len())
	}
}

func TestExpiredTradeRejected(t *testing.T) {
	w, clock := newTestWindow()

	if w.Insert(rec(1, "5", clock.Now().Add(-70*time.Second-time.Millisecond))) {
		t.Fatal("expected trade past retention to be rejected")
	}
	if w.Len() != 0 {
		t.Errorf("Len = %d, want 0", w.Len())
	}
}

func TestEvictionOnInsert(t *testing.T) {
	w, clock := newTestWindow()

	w.Insert(rec(1, "1", clock.Now()))
	w.Insert(rec(2, "1", clock.Now()))

	clock.Advance(71 * time.Second)
	w.Insert(rec(3, "4", clock.Now()))

	if w.Len() != 1 {
		t.Fatalf("Len = %d, want 1", w.Len())
	}
	if v := w.TotalVolume(); v != 4 {
		t.Errorf("TotalVolume = %v, want 4", v)
	}
}

func TestAgingOutOfReportingHorizon(t *testing.T) {
	w, clock := newTestWindow()

	w.Insert(rec(1, "3", clock.Now()))
	clock.Advance(61 * time.Second)

	if v := w.TotalVolume(); v != 0 {
		t.Errorf("TotalVolume = %v, want 0", v)
	}
	// still retained until the next insert evicts it
	if w.Len() != 1 {
		t.Errorf("Len = %d, want 1", w.Len())
	}
}

func TestUnparseableQuantityCountsAsZero(t *testing.T) {
	parser := numeric.NewParser(nil)
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	w := NewWindow(parser, WithClock(clock.Now))

	w.Insert(rec(1, "garbage", clock.Now()))
	w.Insert(rec(2, "2", clock.Now()))

	if v := w.TotalVolume(); v != 2 {
		t.Errorf("TotalVolume = %v, want 2", v)
	}
	if v := w.AverageVolumePerTrade(); v != 1 {
		t.Errorf("AverageVolumePerTrade = %v, want 1", v)
	}
	if parser.Coerced() != 1 {
		t.Errorf("Coerced = %d, want 1", parser.Coerced())
	}
}

func TestRandomTradesWithBoundary(t *testing.T) {
	w, clock := newTestWindow()
	now := clock.Now()
	rng := rand.New(rand.NewSource(7))

	ages := make([]int64, 1000)
	for i := range ages {
		ages[i] = rng.Int63n(70_000)
	}
	ages = append(ages, 60_000)
	// stream order is oldest first
	sort.Slice(ages, func(i, j int) bool { return ages[i] > ages[j] })

	want := decimal.Zero
	reported := 0
	for i, a := range ages {
		qty := strconv.Itoa(i%9 + 1)
		if !w.Insert(rec(uint64(i), qty, now.Add(-time.Duration(a)*time.Millisecond))) {
			t.Fatalf("trade aged %dms rejected", a)
		}
		if a <= 60_000 {
			want = want.Add(decimal.RequireFromString(qty))
			reported++
		}
	}

	if got := w.TotalVolume(); got != want.InexactFloat64() {
		t.Errorf("TotalVolume = %v, want %v", got, want.InexactFloat64())
	}
	avg := want.Div(decimal.NewFromInt(int64(reported))).InexactFloat64()
	if got := w.AverageVolumePerTrade(); got != avg {
		t.Errorf("AverageVolumePerTrade = %v, want %v", got, avg)
	}
	if w.Len() != len(ages) {
		t.Errorf("Len = %d, want %d", w.Len(), len(ages))
	}

	// once everything is past retention, a fresh insert leaves only itself
	clock.Advance(70*time.Second + time.Millisecond)
	w.Insert(rec(9999, "1", clock.Now()))
	if w.Len() != 1 || w.TotalVolume() != 1 {
		t.Errorf("after expiry Len = %d TotalVolume = %v", w.Len(), w.TotalVolume())
	}
}
