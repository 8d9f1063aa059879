package ticker

import (
	"testing"

	"marketstate/domain/numeric"
)

func quote(bid, bidQty, ask, askQty string) Quote {
	return Quote{
		UpdateID:     123,
		Symbol:       "BTCUSDT",
		BestBidPrice: bid,
		BestBidQty:   bidQty,
		BestAskPrice: ask,
		BestAskQty:   askQty,
	}
}

func TestMetrics(t *testing.T) {
	tests := []struct {
		name         string
		q            Quote
		wantMid      float64
		wantWeighted float64
	}{
		{"regular", quote("50000.0", "2.0", "51000.0", "3.0"), 50500, 50600},
		{"zero quantities", quote("50000.0", "0.0", "51000.0", "0.0"), 50500, 0},
		{"zero prices", quote("0.0", "2.0", "0.0", "3.0"), 0, 0},
		{"unparseable bid", quote("n/a", "2.0", "51000", "3.0"), 25500, 30600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCache(numeric.NewParser(nil))
			c.Update(tt.q)

			if got := c.MidPrice(); got != tt.wantMid {
				t.Errorf("MidPrice = %v, want %v", got, tt.wantMid)
			}
			if got := c.MidWeightedPrice(); got != tt.wantWeighted {
				t.Errorf("MidWeightedPrice = %v, want %v", got, tt.wantWeighted)
			}
		})
	}
}

func TestUpdateOverwritesWholesale(t *testing.T) {
	c := NewCache(numeric.NewParser(nil))
	c.Update(quote("1", "1", "2", "1"))

	c.Update(Quote{UpdateID: 9, Symbol: "ETHUSDT", BestAskPrice: "3"})
	s := c.Snapshot()

	if s.UpdateID != 9 || s.Symbol != "ETHUSDT" {
		t.Errorf("unexpected header: %+v", s)
	}
	if !s.BestBidPrice.IsZero() || !s.BestBidQty.IsZero() {
		t.Error("fields absent from the new quote must not carry over")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	c := NewCache(numeric.NewParser(nil))
	c.Update(quote("10", "1", "12", "1"))

	s := c.Snapshot()
	c.Update(quote("20", "1", "22", "1"))

	if s.BestBidPrice.String() != "10" {
		t.Errorf("snapshot changed after update: %s", s.BestBidPrice)
	}
}
