// Package view renders market state into the generic maps served by the
// REST and gRPC surfaces. Prices and quantities become JSON numbers.
package view

import (
	"marketstate/domain/orderbook"
	"marketstate/domain/ticker"
)

func Level(l orderbook.PriceLevel) map[string]any {
	return map[string]any{
		"price": l.Price.InexactFloat64(),
		"qty":   l.Qty.InexactFloat64(),
	}
}

func Top(t orderbook.Top) map[string]any {
	return map[string]any{
		"best_bid": Level(t.BestBid),
		"best_ask": Level(t.BestAsk),
	}
}

// Levels returns an empty list, not nil, for an empty side.
func Levels(ls []orderbook.PriceLevel) []any {
	out := make([]any, 0, len(ls))
	for _, l := range ls {
		out = append(out, Level(l))
	}
	return out
}

// FullBook lists both sides best first.
func FullBook(fb orderbook.FullBook) map[string]any {
	return map[string]any{
		"bids": Levels(fb.Bids),
		"asks": Levels(fb.Asks),
	}
}

func Ticker(s ticker.Snapshot) map[string]any {
	return map[string]any{
		"symbol":         s.Symbol,
		"update_id":      float64(s.UpdateID),
		"best_bid_price": s.BestBidPrice.InexactFloat64(),
		"best_bid_qty":   s.BestBidQty.InexactFloat64(),
		"best_ask_price": s.BestAskPrice.InexactFloat64(),
		"best_ask_qty":   s.BestAskQty.InexactFloat64(),
	}
}
