// Command replay rebuilds market state offline from a frame journal and
// prints what the service would have reported.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"marketstate/api/view"
	"marketstate/domain/numeric"
	"marketstate/domain/trades"
	"marketstate/infra/codec"
	"marketstate/infra/journal"
	"marketstate/service"
)

func main() {
	dir := flag.String("dir", "data/journal", "journal directory")
	from := flag.Uint64("from", 0, "replay records after this sequence number")
	verbose := flag.Bool("v", false, "log decode failures")
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}

	j, err := journal.Open(*dir)
	if err != nil {
		log.Fatalf("open journal: %v", err)
	}
	defer j.Close()

	parser := numeric.NewParser(logger)
	sum, err := Replay(j, *from, parser, logger)
	if err != nil {
		log.Fatalf("replay: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sum); err != nil {
		log.Fatal(err)
	}
}

type Summary struct {
	Frames        int            `json:"frames"`
	Applied       int            `json:"applied"`
	Heartbeats    int            `json:"heartbeats"`
	DecodeErrors  int            `json:"decode_errors"`
	LastSeq       uint64         `json:"last_seq"`
	Top           map[string]any `json:"top,omitempty"`
	Ticker        map[string]any `json:"ticker"`
	MidPrice      float64        `json:"mid_price"`
	MidWeighted   float64        `json:"mid_weighted_price"`
	TotalVolume   float64        `json:"total_volume"`
	AverageVolume float64        `json:"average_volume"`
	Coerced       uint64         `json:"coerced_values"`
}

// Replay feeds journal records through the decoder into a fresh store.
// The trade window is evaluated at the time of the last replayed frame so
// old captures still report volumes.
func Replay(j *journal.Journal, from uint64, parser *numeric.Parser, logger *zap.Logger) (Summary, error) {
	var (
		sum     Summary
		clock   time.Time
		decoder codec.Decoder
	)
	store := service.NewStateStore(parser, trades.WithClock(func() time.Time { return clock }))

	err := j.Scan(from, func(rec journal.Record) error {
		sum.Frames++
		sum.LastSeq = rec.Seq
		clock = rec.At

		ev, err := decoder.Decode(rec.Frame)
		switch {
		case err != nil:
			sum.DecodeErrors++
			logger.Warn("skipping frame", zap.Uint64("seq", rec.Seq), zap.Error(err))
		case ev.Kind == codec.KindHeartbeat:
			sum.Heartbeats++
		default:
			store.Apply(ev)
			sum.Applied++
		}
		return nil
	})
	if err != nil {
		return sum, fmt.Errorf("scan journal: %w", err)
	}

	if top, ok := store.GetTop(); ok {
		sum.Top = view.Top(top)
	}
	sum.Ticker = view.Ticker(store.GetTickerSnapshot())
	sum.MidPrice = store.GetMidPrice()
	sum.MidWeighted = store.GetMidWeightedPrice()
	sum.TotalVolume = store.GetTotalVolume()
	sum.AverageVolume = store.GetAverageVolumePerTrade()
	sum.Coerced = parser.Coerced()
	return sum, nil
}
