package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"marketstate/infra/codec"
	"marketstate/infra/feed"
)

// fakeFeed replays canned frames and then returns err.
type fakeFeed struct {
	name   string
	frames []string
	err    error
}

func (f *fakeFeed) Name() string      { return f.name }
func (f *fakeFeed) State() feed.State { return feed.Terminated }
func (f *fakeFeed) Retries() int      { return 3 }
func (f *fakeFeed) Session() string   { return "s1" }
func (f *fakeFeed) Run(ctx context.Context, fn func(feed.Frame)) error {
	for i, s := range f.frames {
		fn(feed.Frame{Session: "s1", Seq: uint64(i + 1), Data: []byte(s)})
	}
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

type recordingSink struct {
	mu     sync.Mutex
	events []codec.Event
	err    error
}

func (s *recordingSink) Publish(_ context.Context, ev codec.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

type memJournal struct {
	mu     sync.Mutex
	frames map[string]int
}

func (j *memJournal) Append(feed string, _ []byte) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.frames[feed]++
	return uint64(j.frames[feed]), nil
}

func TestIngestorAppliesFrames(t *testing.T) {
	store := NewStateStore(nil)
	depthFeed := &fakeFeed{name: "depth", frames: []string{
		`{"result":null,"id":1}`,
		`{"stream":"btcusdt@depth5@100ms","data":{"lastUpdateId":1,"bids":[["100","1"]],"asks":[["101","2"]]}}`,
		`not json`,
	}}
	tickerFeed := &fakeFeed{name: "ticker", frames: []string{
		`{"stream":"btcusdt@bookTicker","data":{"u":1,"s":"BTCUSDT","b":"50000","B":"2","a":"51000","A":"3"}}`,
	}}

	sink := &recordingSink{err: errors.New("broker down")}
	journal := &memJournal{frames: map[string]int{}}
	in := NewIngestor(store, []Feed{depthFeed, tickerFeed}, zap.NewNop(),
		WithSinks(sink), WithJournal(journal))

	ctx, cancel := context.WithCancel(context.Background())
	in.Start(ctx)

	deadline := time.After(5 * time.Second)
	for {
		if _, ok := store.GetTop(); ok && store.GetMidPrice() == 50500 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("state never applied")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	in.Wait()

	if fe, ok := <-in.Done(); ok {
		t.Errorf("unexpected feed failure %v", fe)
	}

	// heartbeat and garbage are not forwarded, sink errors are swallowed
	if len(sink.events) != 2 {
		t.Errorf("sink saw %d events, want 2", len(sink.events))
	}
	if journal.frames["depth"] != 3 || journal.frames["ticker"] != 1 {
		t.Errorf("journal counts %v", journal.frames)
	}
}

func TestIngestorReportsTerminatedFeed(t *testing.T) {
	store := NewStateStore(nil)
	failing := &fakeFeed{name: "trade", err: feed.ErrRetriesExhausted}
	healthy := &fakeFeed{name: "ticker", frames: []string{
		`{"stream":"btcusdt@bookTicker","data":{"u":9,"s":"BTCUSDT","b":"1","B":"1","a":"3","A":"1"}}`,
	}}
	in := NewIngestor(store, []Feed{failing, healthy}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in.Start(ctx)

	select {
	case fe := <-in.Done():
		if fe.Feed != "trade" || !errors.Is(fe, feed.ErrRetriesExhausted) {
			t.Errorf("unexpected failure %v", fe)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no failure reported")
	}

	// the other feed keeps running
	deadline := time.After(5 * time.Second)
	for store.GetTickerSnapshot().UpdateID != 9 {
		select {
		case <-deadline:
			t.Fatal("ticker never applied")
		case <-time.After(5 * time.Millisecond):
		}
	}

	status := in.Status()
	if len(status) != 2 || status[0].Name != "trade" || status[0].State != "terminated" ||
		status[0].Retries != 3 || status[0].Session != "s1" {
		t.Errorf("unexpected status %+v", status)
	}

	cancel()
	in.Wait()

	// Wait closes Done so a ranging reader finishes
	for fe := range in.Done() {
		t.Errorf("unexpected second failure %v", fe)
	}
}

// slowSink takes delay per event and always fails.
type slowSink struct {
	delay time.Duration
	calls atomic.Int32
}

func (s *slowSink) Publish(ctx context.Context, _ codec.Event) error {
	s.calls.Add(1)
	time.Sleep(s.delay)
	return errors.New("broker down")
}

func TestSlowSinkDoesNotDelayState(t *testing.T) {
	frames := make([]string, 10)
	for i := range frames {
		frames[i] = fmt.Sprintf(
			`{"stream":"btcusdt@depth5@100ms","data":{"lastUpdateId":%d,"bids":[["%d","1"]],"asks":[["200","1"]]}}`,
			i+1, 101+i)
	}
	store := NewStateStore(nil)
	sink := &slowSink{delay: 200 * time.Millisecond}
	in := NewIngestor(store, []Feed{&fakeFeed{name: "depth", frames: frames}}, zap.NewNop(),
		WithSinks(sink), WithSinkBuffer(2))

	ctx, cancel := context.WithCancel(context.Background())
	in.Start(ctx)

	// ten publishes in a row would take two seconds
	deadline := time.After(time.Second)
	for {
		if top, ok := store.GetTop(); ok && top.BestBid.Price.IntPart() == 110 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("depth updates held back by the sink")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	in.Wait()

	// at most one in flight plus two queued reach the sink
	delivered := uint64(sink.calls.Load())
	if in.SinkDrops() < 7 || delivered+in.SinkDrops() != 10 {
		t.Errorf("delivered=%d dropped=%d", delivered, in.SinkDrops())
	}
}
