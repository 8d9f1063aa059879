package orderbook

import (
	"marketstate/domain/numeric"
)

// Replica is the current top-N book for one symbol.
type Replica struct {
	Bids *RBTree
	Asks *RBTree

	parser       *numeric.Parser
	lastUpdateID uint64
}

func NewReplica(parser *numeric.Parser) *Replica {
	return &Replica{
		Bids:   NewRBTree(),
		Asks:   NewRBTree(),
		parser: parser,
	}
}

// ApplyUpdate replaces both sides with the levels of one depth message.
// Levels whose quantity is zero (or does not parse) are dropped; when a
// price repeats inside the message the last entry wins.
func (r *Replica) ApplyUpdate(lastUpdateID uint64, bids, asks []RawLevel) {
	r.replaceSide(r.Bids, bids)
	r.replaceSide(r.Asks, asks)
	r.lastUpdateID = lastUpdateID
}

func (r *Replica) replaceSide(side *RBTree, levels []RawLevel) {
	side.Clear()
	for _, l := range levels {
		price := r.parser.Parse(l[0])
		qty := r.parser.Parse(l[1])
		if qty.Sign() <= 0 {
			side.Delete(price)
			continue
		}
		side.Upsert(price, qty)
	}
}

// Top returns the best bid and best ask. ok is false when either side is
// empty.
func (r *Replica) Top() (top Top, ok bool) {
	bid, ok := r.Bids.Max()
	if !ok {
		return Top{}, false
	}
	ask, ok := r.Asks.Min()
	if !ok {
		return Top{}, false
	}
	return Top{BestBid: bid, BestAsk: ask}, true
}

// Full copies every level, best first on each side.
func (r *Replica) Full() FullBook {
	var fb FullBook
	if n := r.Bids.Size(); n > 0 {
		fb.Bids = make([]PriceLevel, 0, n)
		r.Bids.ForEachDescending(func(l PriceLevel) bool {
			fb.Bids = append(fb.Bids, l)
			return true
		})
	}
	if n := r.Asks.Size(); n > 0 {
		fb.Asks = make([]PriceLevel, 0, n)
		r.Asks.ForEachAscending(func(l PriceLevel) bool {
			fb.Asks = append(fb.Asks, l)
			return true
		})
	}
	return fb
}

// Depth returns the number of levels held per side.
func (r *Replica) Depth() (bids, asks int) {
	return r.Bids.Size(), r.Asks.Size()
}

// LastUpdateID is the lastUpdateId of the most recently applied message.
func (r *Replica) LastUpdateID() uint64 {
	return r.lastUpdateID
}
