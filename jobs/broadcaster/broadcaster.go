// Package broadcaster relays journaled frames to Kafka.
package broadcaster

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"marketstate/infra/journal"
)

// Journal is the part of *journal.Journal the relay needs.
type Journal interface {
	Scan(after uint64, fn func(journal.Record) error) error
	Cursor() (uint64, error)
	SetCursor(seq uint64) error
	TruncateBefore(seq uint64) error
}

type Broadcaster struct {
	journal  Journal
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger

	interval time.Duration
	batch    int
	retain   uint64
}

type Option func(*Broadcaster)

func WithInterval(d time.Duration) Option {
	return func(b *Broadcaster) { b.interval = d }
}

// WithBatch caps the records sent per pass.
func WithBatch(n int) Option {
	return func(b *Broadcaster) { b.batch = n }
}

// WithRetain keeps the newest n relayed frames and deletes older ones.
// Zero keeps everything.
func WithRetain(n uint64) Option {
	return func(b *Broadcaster) { b.retain = n }
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(j Journal, brokers []string, topic string, logger *zap.Logger, opts ...Option) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithProducer(j, producer, topic, logger, opts...), nil
}

func NewWithProducer(j Journal, producer sarama.SyncProducer, topic string, logger *zap.Logger, opts ...Option) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Broadcaster{
		journal:  j,
		producer: producer,
		topic:    topic,
		logger:   logger.With(zap.String("job", "broadcaster")),
		interval: 250 * time.Millisecond,
		batch:    512,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// ------------------------------------------------
// START LOOP
// ------------------------------------------------

func (b *Broadcaster) Start(ctx context.Context) {
	b.logger.Info("started", zap.String("topic", b.topic))

	go func() {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case <-ticker.C:
				if _, err := b.RelayOnce(); err != nil {
					b.logger.Warn("relay pass incomplete", zap.Error(err))
				}
			}
		}
	}()
}

// ------------------------------------------------
// RELAY
// ------------------------------------------------

var errBatchFull = errors.New("batch full")

// RelayOnce sends records after the stored cursor, in order, and moves
// the cursor past the last acknowledged one. The first failed send ends
// the pass; that record is retried on the next pass.
func (b *Broadcaster) RelayOnce() (int, error) {
	cursor, err := b.journal.Cursor()
	if err != nil {
		return 0, err
	}

	acked := cursor
	sent := 0
	scanErr := b.journal.Scan(cursor, func(rec journal.Record) error {
		if b.batch > 0 && sent >= b.batch {
			return errBatchFull
		}
		msg := &sarama.ProducerMessage{
			Topic:     b.topic,
			Key:       sarama.StringEncoder(rec.Feed),
			Value:     sarama.ByteEncoder(rec.Frame),
			Timestamp: rec.At,
			Headers: []sarama.RecordHeader{
				{Key: []byte("seq"), Value: []byte(strconv.FormatUint(rec.Seq, 10))},
			},
		}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			return err
		}
		acked = rec.Seq
		sent++
		return nil
	})
	if errors.Is(scanErr, errBatchFull) {
		scanErr = nil
	}

	if acked != cursor {
		if err := b.journal.SetCursor(acked); err != nil {
			return sent, err
		}
		if b.retain > 0 && acked > b.retain {
			if err := b.journal.TruncateBefore(acked - b.retain + 1); err != nil {
				b.logger.Warn("journal truncate failed", zap.Error(err))
			}
		}
	}
	return sent, scanErr
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
