package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"marketstate/infra/codec"
	"marketstate/infra/feed"
)

// DefaultSinkBuffer is the number of events queued per sink before new
// events are dropped.
const DefaultSinkBuffer = 1024

// Sink receives every applied event. Each sink is fed from its own bounded
// queue by its own goroutine, so a slow or failing sink never holds back
// state updates.
type Sink interface {
	Publish(ctx context.Context, ev codec.Event) error
}

// Journal captures raw frames before they are decoded.
type Journal interface {
	Append(feed string, frame []byte) (uint64, error)
}

// Feed is satisfied by *feed.Connection.
type Feed interface {
	Name() string
	State() feed.State
	Retries() int
	Session() string
	Run(ctx context.Context, fn func(feed.Frame)) error
}

// FeedError is reported once per feed that stops for good.
type FeedError struct {
	Feed string
	Err  error
}

func (e FeedError) Error() string { return e.Feed + ": " + e.Err.Error() }

func (e FeedError) Unwrap() error { return e.Err }

type FeedStatus struct {
	Name    string `json:"name"`
	State   string `json:"state"`
	Retries int    `json:"retries"`
	Session string `json:"session,omitempty"`
}

/*
Ingestor runs one goroutine per feed:

	frame -> journal -> decode -> StateStore.Apply -> sinks

A terminated feed is reported on Done; the other feeds keep running and
queries keep serving whatever state was last applied. Sinks are drained
by one worker each; when a worker falls behind its queue fills and further
events for that sink are dropped and counted.
*/
type Ingestor struct {
	store      *StateStore
	feeds      []Feed
	decoder    codec.Decoder
	journal    Journal
	sinks      []*sinkWorker
	sinkBuffer int
	logger     *zap.Logger

	done     chan FeedError
	wg       sync.WaitGroup
	sinkWG   sync.WaitGroup
	waitOnce sync.Once
}

type sinkWorker struct {
	sink    Sink
	events  chan codec.Event
	dropped atomic.Uint64
}

type IngestorOption func(*Ingestor)

func WithJournal(j Journal) IngestorOption {
	return func(in *Ingestor) { in.journal = j }
}

func WithSinks(sinks ...Sink) IngestorOption {
	return func(in *Ingestor) {
		for _, sk := range sinks {
			in.sinks = append(in.sinks, &sinkWorker{sink: sk})
		}
	}
}

// WithSinkBuffer sets the per-sink queue length.
func WithSinkBuffer(n int) IngestorOption {
	return func(in *Ingestor) {
		if n > 0 {
			in.sinkBuffer = n
		}
	}
}

func NewIngestor(store *StateStore, feeds []Feed, logger *zap.Logger, opts ...IngestorOption) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	in := &Ingestor{
		store:      store,
		feeds:      feeds,
		sinkBuffer: DefaultSinkBuffer,
		logger:     logger,
		done:       make(chan FeedError, len(feeds)),
	}
	for _, o := range opts {
		o(in)
	}
	for _, w := range in.sinks {
		w.events = make(chan codec.Event, in.sinkBuffer)
	}
	return in
}

// Start launches the sink workers and feed goroutines and returns
// immediately.
func (in *Ingestor) Start(ctx context.Context) {
	for _, w := range in.sinks {
		in.sinkWG.Add(1)
		go in.drain(ctx, w)
	}
	for _, f := range in.feeds {
		in.wg.Add(1)
		go in.run(ctx, f)
	}
}

// Wait blocks until every feed goroutine has returned and the sink queues
// are drained, then closes Done.
func (in *Ingestor) Wait() {
	in.waitOnce.Do(func() {
		in.wg.Wait()
		for _, w := range in.sinks {
			close(w.events)
		}
		in.sinkWG.Wait()
		close(in.done)
	})
}

// Done delivers terminal feed failures. Context cancellation is not
// reported. The channel is closed by Wait.
func (in *Ingestor) Done() <-chan FeedError {
	return in.done
}

// SinkDrops is the number of events discarded because a sink queue was full.
func (in *Ingestor) SinkDrops() uint64 {
	var n uint64
	for _, w := range in.sinks {
		n += w.dropped.Load()
	}
	return n
}

func (in *Ingestor) Status() []FeedStatus {
	out := make([]FeedStatus, 0, len(in.feeds))
	for _, f := range in.feeds {
		out = append(out, FeedStatus{
			Name:    f.Name(),
			State:   f.State().String(),
			Retries: f.Retries(),
			Session: f.Session(),
		})
	}
	return out
}

func (in *Ingestor) run(ctx context.Context, f Feed) {
	defer in.wg.Done()
	log := in.logger.With(zap.String("feed", f.Name()))

	err := f.Run(ctx, func(fr feed.Frame) {
		in.handle(log, f.Name(), fr)
	})
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		log.Info("feed stopped")
		return
	}

	log.Error("feed failed permanently", zap.Error(err))
	in.done <- FeedError{Feed: f.Name(), Err: err}
}

func (in *Ingestor) handle(log *zap.Logger, name string, fr feed.Frame) {
	if in.journal != nil {
		if _, err := in.journal.Append(name, fr.Data); err != nil {
			log.Warn("journal append failed", zap.Error(err))
		}
	}

	ev, err := in.decoder.Decode(fr.Data)
	if err != nil {
		log.Warn("dropping frame",
			zap.Error(err),
			zap.String("session", fr.Session),
			zap.Uint64("seq", fr.Seq),
			zap.ByteString("frame", fr.Data),
		)
		return
	}
	if ev.Kind == codec.KindHeartbeat {
		log.Debug("heartbeat", zap.ByteString("frame", fr.Data))
		return
	}

	in.store.Apply(ev)

	for _, w := range in.sinks {
		select {
		case w.events <- ev:
		default:
			if n := w.dropped.Add(1); n == 1 || n%1000 == 0 {
				log.Warn("sink queue full, dropping events",
					zap.Uint64("dropped", n), zap.String("stream", ev.Stream))
			}
		}
	}
}

func (in *Ingestor) drain(ctx context.Context, w *sinkWorker) {
	defer in.sinkWG.Done()
	for ev := range w.events {
		if err := w.sink.Publish(ctx, ev); err != nil {
			in.logger.Warn("sink publish failed", zap.Error(err), zap.String("stream", ev.Stream))
		}
	}
}
