// Package journal captures raw feed frames in a pebble store so they can
// be relayed downstream or replayed offline. Live state is never rebuilt
// from it.
package journal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/cockroachdb/pebble"

	"marketstate/infra/sequence"
)

var ErrCorruptRecord = errors.New("journal: corrupted record")

const (
	framePrefix = "frame/"
	frameUpper  = "frame/~"
)

var cursorKey = []byte("meta/cursor")

// Record is one captured frame.
type Record struct {
	Seq   uint64
	Feed  string
	At    time.Time
	Frame []byte
}

type Journal struct {
	db  *pebble.DB
	seq *sequence.Sequencer
	now func() time.Time
}

// Open opens or creates the journal in dir and resumes numbering after
// the newest stored frame.
func Open(dir string) (*Journal, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", dir, err)
	}

	last, err := lastSeq(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db, seq: sequence.New(last), now: time.Now}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Append stores frame under the next sequence number. Frames are written
// without fsync; losing the tail on a crash is acceptable for capture.
func (j *Journal) Append(feed string, frame []byte) (uint64, error) {
	seq := j.seq.Next()
	val := encodeRecord(feed, j.now(), frame)
	if err := j.db.Set(keyFor(seq), val, pebble.NoSync); err != nil {
		return 0, fmt.Errorf("journal append %d: %w", seq, err)
	}
	return seq, nil
}

// LastSeq is the newest sequence number handed out.
func (j *Journal) LastSeq() uint64 {
	return j.seq.Last()
}

// Scan calls fn for every record with a sequence number greater than
// after, oldest first. A non-nil error from fn stops the scan and is
// returned.
func (j *Journal) Scan(after uint64, fn func(Record) error) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: keyFor(after + 1),
		UpperBound: []byte(frameUpper),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeRecord(seq, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// TruncateBefore deletes every record with a sequence number below seq.
func (j *Journal) TruncateBefore(seq uint64) error {
	if seq <= 1 {
		return nil
	}
	return j.db.DeleteRange([]byte(framePrefix), keyFor(seq), pebble.Sync)
}

// Cursor returns the relay position, 0 when none was stored yet.
func (j *Journal) Cursor() (uint64, error) {
	val, closer, err := j.db.Get(cursorKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer closer.Close()

	if len(val) != 8 {
		return 0, ErrCorruptRecord
	}
	return binary.BigEndian.Uint64(val), nil
}

func (j *Journal) SetCursor(seq uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return j.db.Set(cursorKey, buf[:], pebble.Sync)
}

// -------------------- Helpers --------------------

func lastSeq(db *pebble.DB) (uint64, error) {
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(framePrefix),
		UpperBound: []byte(frameUpper),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", framePrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(framePrefix))), "%d", &seq)
	if err != nil {
		return 0, fmt.Errorf("journal key %q: %w", b, err)
	}
	return seq, nil
}

// value layout: [crc:4][unixMilli:8][feedLen:1][feed][frame]
// crc covers everything after itself.
func encodeRecord(feed string, at time.Time, frame []byte) []byte {
	if len(feed) > 255 {
		feed = feed[:255]
	}
	buf := make([]byte, 4+8+1+len(feed)+len(frame))
	binary.BigEndian.PutUint64(buf[4:12], uint64(at.UnixMilli()))
	buf[12] = byte(len(feed))
	copy(buf[13:], feed)
	copy(buf[13+len(feed):], frame)
	binary.BigEndian.PutUint32(buf[0:4], crc32.ChecksumIEEE(buf[4:]))
	return buf
}

func decodeRecord(seq uint64, b []byte) (Record, error) {
	if len(b) < 13 {
		return Record{}, ErrCorruptRecord
	}
	if crc32.ChecksumIEEE(b[4:]) != binary.BigEndian.Uint32(b[0:4]) {
		return Record{}, ErrCorruptRecord
	}
	n := int(b[12])
	if len(b) < 13+n {
		return Record{}, ErrCorruptRecord
	}
	// the iterator reuses its buffers
	frame := make([]byte, len(b)-13-n)
	copy(frame, b[13+n:])
	return Record{
		Seq:   seq,
		Feed:  string(b[13 : 13+n]),
		At:    time.UnixMilli(int64(binary.BigEndian.Uint64(b[4:12]))),
		Frame: frame,
	}, nil
}
