// Package rest serves the market state as JSON over HTTP.
package rest

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"marketstate/api/view"
	"marketstate/service"
)

type Store interface {
	service.BookService
	service.TickerService
	service.TradeService
	Stats() service.Stats
}

// FeedStatuser reports feed health, normally *service.Ingestor.
type FeedStatuser interface {
	Status() []service.FeedStatus
}

type Handler struct {
	store  Store
	feeds  FeedStatuser
	logger *zap.Logger
	mux    *http.ServeMux
}

// NewHandler routes every query endpoint. feeds may be nil.
func NewHandler(store Store, feeds FeedStatuser, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{store: store, feeds: feeds, logger: logger, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /orderbook/top", h.top)
	h.mux.HandleFunc("GET /orderbook/full", h.full)
	h.mux.HandleFunc("GET /bookticker/data", h.tickerData)
	h.mux.HandleFunc("GET /bookticker/midprice", h.midPrice)
	h.mux.HandleFunc("GET /bookticker/midweightedprice", h.midWeightedPrice)
	h.mux.HandleFunc("GET /tradehistory/total_volume", h.totalVolume)
	h.mux.HandleFunc("GET /tradehistory/average_volume", h.averageVolume)
	h.mux.HandleFunc("GET /health", h.health)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) top(w http.ResponseWriter, r *http.Request) {
	top, ok := h.store.GetTop()
	if !ok {
		h.write(w, http.StatusNotFound, map[string]string{"error": "order book is empty"})
		return
	}
	h.write(w, http.StatusOK, view.Top(top))
}

func (h *Handler) full(w http.ResponseWriter, r *http.Request) {
	h.write(w, http.StatusOK, view.FullBook(h.store.GetFullBook()))
}

func (h *Handler) tickerData(w http.ResponseWriter, r *http.Request) {
	h.write(w, http.StatusOK, view.Ticker(h.store.GetTickerSnapshot()))
}

func (h *Handler) midPrice(w http.ResponseWriter, r *http.Request) {
	h.write(w, http.StatusOK, map[string]float64{"mid_price": h.store.GetMidPrice()})
}

func (h *Handler) midWeightedPrice(w http.ResponseWriter, r *http.Request) {
	h.write(w, http.StatusOK, map[string]float64{"mid_weighted_price": h.store.GetMidWeightedPrice()})
}

func (h *Handler) totalVolume(w http.ResponseWriter, r *http.Request) {
	h.write(w, http.StatusOK, map[string]float64{"total_volume": h.store.GetTotalVolume()})
}

func (h *Handler) averageVolume(w http.ResponseWriter, r *http.Request) {
	h.write(w, http.StatusOK, map[string]float64{"average_volume_per_trade": h.store.GetAverageVolumePerTrade()})
}

type healthResponse struct {
	Status string               `json:"status"`
	Feeds  []service.FeedStatus `json:"feeds"`
	Stats  service.Stats        `json:"stats"`
}

// health answers 503 once any feed has terminated; the remaining state is
// still served by the other endpoints.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Feeds: []service.FeedStatus{}, Stats: h.store.Stats()}
	if h.feeds != nil {
		resp.Feeds = h.feeds.Status()
	}

	code := http.StatusOK
	for _, f := range resp.Feeds {
		if f.State == "terminated" {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	h.write(w, code, resp)
}

func (h *Handler) write(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Debug("write response", zap.Error(err))
	}
}
