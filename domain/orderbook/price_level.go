package orderbook

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceLevel is the aggregate quantity resting at one price.
// A stored level always has Qty > 0.
type PriceLevel struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// RawLevel is one [price, quantity] pair exactly as transmitted.
type RawLevel [2]string

func (p PriceLevel) String() string {
	return fmt.Sprintf("%s @ %s", p.Qty, p.Price)
}

// Top is the best bid and best ask of a book.
type Top struct {
	BestBid PriceLevel
	BestAsk PriceLevel
}

// Spread is BestAsk - BestBid.
func (t Top) Spread() decimal.Decimal {
	return t.BestAsk.Price.Sub(t.BestBid.Price)
}

// FullBook lists every level on both sides, best first:
// bids by descending price, asks by ascending price.
// An empty side is nil.
type FullBook struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

func (f FullBook) BidsEmpty() bool { return len(f.Bids) == 0 }
func (f FullBook) AsksEmpty() bool { return len(f.Asks) == 0 }
