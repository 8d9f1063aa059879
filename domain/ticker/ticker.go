// Package ticker caches the latest best bid/ask quote of a symbol.
package ticker

import (
	"github.com/shopspring/decimal"

	"marketstate/domain/numeric"
)

// Quote is a book ticker update as transmitted by the venue.
type Quote struct {
	UpdateID     uint64 `json:"u"`
	Symbol       string `json:"s"`
	BestBidPrice string `json:"b"`
	BestBidQty   string `json:"B"`
	BestAskPrice string `json:"a"`
	BestAskQty   string `json:"A"`
}

// Snapshot is a point-in-time copy of the cached quote.
type Snapshot struct {
	Symbol       string
	UpdateID     uint64
	BestBidPrice decimal.Decimal
	BestBidQty   decimal.Decimal
	BestAskPrice decimal.Decimal
	BestAskQty   decimal.Decimal
}

var two = decimal.NewFromInt(2)

// MidPrice is (bid + ask) / 2. Missing prices count as zero.
func (s Snapshot) MidPrice() float64 {
	return s.BestBidPrice.Add(s.BestAskPrice).Div(two).InexactFloat64()
}

// MidWeightedPrice weights each side's price by its quantity. It is 0 when
// both quantities are zero.
func (s Snapshot) MidWeightedPrice() float64 {
	total := s.BestBidQty.Add(s.BestAskQty)
	if total.IsZero() {
		return 0
	}
	num := s.BestBidPrice.Mul(s.BestBidQty).Add(s.BestAskPrice.Mul(s.BestAskQty))
	return num.Div(total).InexactFloat64()
}

// Cache holds exactly one quote; each update replaces it entirely.
// Not safe for concurrent use.
type Cache struct {
	parser  *numeric.Parser
	current Snapshot
}

func NewCache(parser *numeric.Parser) *Cache {
	return &Cache{parser: parser}
}

func (c *Cache) Update(q Quote) {
	c.current = Snapshot{
		Symbol:       q.Symbol,
		UpdateID:     q.UpdateID,
		BestBidPrice: c.parser.Parse(q.BestBidPrice),
		BestBidQty:   c.parser.Parse(q.BestBidQty),
		BestAskPrice: c.parser.Parse(q.BestAskPrice),
		BestAskQty:   c.parser.Parse(q.BestAskQty),
	}
}

func (c *Cache) Snapshot() Snapshot { return c.current }

func (c *Cache) MidPrice() float64 { return c.current.MidPrice() }

func (c *Cache) MidWeightedPrice() float64 { return c.current.MidWeightedPrice() }
