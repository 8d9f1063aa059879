package service

import (
	"sync"

	"marketstate/domain/numeric"
	"marketstate/domain/orderbook"
	"marketstate/domain/ticker"
	"marketstate/domain/trades"
	"marketstate/infra/codec"
)

/*
StateStore is the ONLY place market state lives.

Each container sits behind its own RWMutex, held for exactly one
operation. One depth message is one critical section, so readers never
see a half-applied book. There is no cross-container transaction: the
book and the ticker read in two calls may come from different points in
stream time.
*/

type BookService interface {
	ApplyDepthUpdate(u codec.DepthUpdate)
	GetTop() (orderbook.Top, bool)
	GetFullBook() orderbook.FullBook
}

type TickerService interface {
	ApplyTickerUpdate(q ticker.Quote)
	GetTickerSnapshot() ticker.Snapshot
	GetMidPrice() float64
	GetMidWeightedPrice() float64
}

type TradeService interface {
	RecordTrade(r trades.Record) bool
	GetTotalVolume() float64
	GetAverageVolumePerTrade() float64
}

type StateStore struct {
	parser *numeric.Parser

	bookMu sync.RWMutex
	book   *orderbook.Replica

	tickerMu sync.RWMutex
	ticker   *ticker.Cache

	tradesMu sync.RWMutex
	trades   *trades.Window
}

var (
	_ BookService   = (*StateStore)(nil)
	_ TickerService = (*StateStore)(nil)
	_ TradeService  = (*StateStore)(nil)
)

// NewStateStore wires empty containers.
// No globals.
func NewStateStore(parser *numeric.Parser, windowOpts ...trades.Option) *StateStore {
	if parser == nil {
		parser = numeric.NewParser(nil)
	}
	return &StateStore{
		parser: parser,
		book:   orderbook.NewReplica(parser),
		ticker: ticker.NewCache(parser),
		trades: trades.NewWindow(parser, windowOpts...),
	}
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// Apply routes a decoded event to its container. Heartbeats are ignored.
func (s *StateStore) Apply(ev codec.Event) {
	switch ev.Kind {
	case codec.KindDepth:
		if ev.Depth != nil {
			s.ApplyDepthUpdate(*ev.Depth)
		}
	case codec.KindTicker:
		if ev.Ticker != nil {
			s.ApplyTickerUpdate(*ev.Ticker)
		}
	case codec.KindTrade:
		if ev.Trade != nil {
			s.RecordTrade(*ev.Trade)
		}
	}
}

func (s *StateStore) ApplyDepthUpdate(u codec.DepthUpdate) {
	s.bookMu.Lock()
	defer s.bookMu.Unlock()
	s.book.ApplyUpdate(u.LastUpdateID, u.Bids, u.Asks)
}

func (s *StateStore) ApplyTickerUpdate(q ticker.Quote) {
	s.tickerMu.Lock()
	defer s.tickerMu.Unlock()
	s.ticker.Update(q)
}

// RecordTrade reports whether the trade was kept.
func (s *StateStore) RecordTrade(r trades.Record) bool {
	s.tradesMu.Lock()
	defer s.tradesMu.Unlock()
	return s.trades.Insert(r)
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

func (s *StateStore) GetTop() (orderbook.Top, bool) {
	s.bookMu.RLock()
	defer s.bookMu.RUnlock()
	return s.book.Top()
}

func (s *StateStore) GetFullBook() orderbook.FullBook {
	s.bookMu.RLock()
	defer s.bookMu.RUnlock()
	return s.book.Full()
}

func (s *StateStore) GetTickerSnapshot() ticker.Snapshot {
	s.tickerMu.RLock()
	defer s.tickerMu.RUnlock()
	return s.ticker.Snapshot()
}

func (s *StateStore) GetMidPrice() float64 {
	s.tickerMu.RLock()
	defer s.tickerMu.RUnlock()
	return s.ticker.MidPrice()
}

func (s *StateStore) GetMidWeightedPrice() float64 {
	s.tickerMu.RLock()
	defer s.tickerMu.RUnlock()
	return s.ticker.MidWeightedPrice()
}

func (s *StateStore) GetTotalVolume() float64 {
	s.tradesMu.RLock()
	defer s.tradesMu.RUnlock()
	return s.trades.TotalVolume()
}

func (s *StateStore) GetAverageVolumePerTrade() float64 {
	s.tradesMu.RLock()
	defer s.tradesMu.RUnlock()
	return s.trades.AverageVolumePerTrade()
}

// Stats is a cheap summary for health output.
type Stats struct {
	BidLevels      int    `json:"bid_levels"`
	AskLevels      int    `json:"ask_levels"`
	LastUpdateID   uint64 `json:"last_update_id"`
	TickerUpdateID uint64 `json:"ticker_update_id"`
	RetainedTrades int    `json:"retained_trades"`
	CoercedValues  uint64 `json:"coerced_values"`
}

func (s *StateStore) Stats() Stats {
	var st Stats

	s.bookMu.RLock()
	st.BidLevels, st.AskLevels = s.book.Depth()
	st.LastUpdateID = s.book.LastUpdateID()
	s.bookMu.RUnlock()

	s.tickerMu.RLock()
	st.TickerUpdateID = s.ticker.Snapshot().UpdateID
	s.tickerMu.RUnlock()

	s.tradesMu.RLock()
	st.RetainedTrades = s.trades.Len()
	s.tradesMu.RUnlock()

	st.CoercedValues = s.parser.Coerced()
	return st
}
