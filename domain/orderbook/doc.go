// Package orderbook keeps a replica of a venue's top-N order book.
//
// Each side is a red-black tree of price levels keyed by decimal price.
// Depth messages are self-contained snapshots, so every update rebuilds
// both sides from scratch: a price missing from the latest message is
// gone, not stale.
//
// A Replica is not safe for concurrent use; the service layer owns the
// lock around it.
package orderbook
