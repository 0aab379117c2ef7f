package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"kvlog"
)

// SyncMode controls when appends are fsynced to disk.
type SyncMode string

const (
	// SyncAlways fsyncs after every append. Slowest, fully durable.
	SyncAlways SyncMode = "always"
	// SyncInterval fsyncs when FlushInterval has elapsed since the last
	// fsync, checked inline on each append. A crash can lose the writes
	// since the previous fsync.
	SyncInterval SyncMode = "interval"
	// SyncNever leaves flushing to the OS. Close still syncs.
	SyncNever SyncMode = "never"
)

const (
	DefaultMaxSegmentSize = 16 << 20 // 16 MiB
	DefaultFlushInterval  = 50 * time.Millisecond
)

// Options configures a Store. Parsing and validation of user-facing config
// belongs to the config package; the engine only normalizes zero values.
type Options struct {
	// MaxSegmentSize is the rotation threshold: the active segment rolls
	// over when the next append would push it past this size. A single
	// record larger than the threshold still lands in one segment.
	MaxSegmentSize int64
	SyncMode       SyncMode
	FlushInterval  time.Duration
	// DirectIO routes sequential replay scans through O_DIRECT reads so a
	// large startup replay does not evict the page cache.
	DirectIO bool
	Clock    kvlog.Clock
}

func DefaultOptions() Options {
	return Options{
		MaxSegmentSize: DefaultMaxSegmentSize,
		SyncMode:       SyncAlways,
		FlushInterval:  DefaultFlushInterval,
		Clock:          kvlog.NewRealClock(),
	}
}

func (o Options) withDefaults() Options {
	if o.MaxSegmentSize <= 0 {
		o.MaxSegmentSize = DefaultMaxSegmentSize
	}
	if o.SyncMode == "" {
		o.SyncMode = SyncAlways
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = DefaultFlushInterval
	}
	if o.Clock == nil {
		o.Clock = kvlog.NewRealClock()
	}
	return o
}

// Store is a key-value store over a directory of append-only segment
// files. All state other than the files themselves is derived: the index
// is rebuilt on every open by replaying segments in ID order.
//
// A Store exclusively owns its data directory. Opening two Store instances
// over the same directory is undefined behavior and will corrupt data. All
// operations serialize on one mutex; Compact holds it for its full
// duration.
type Store struct {
	mu        sync.Mutex
	dir       string
	opts      Options
	segments  map[uint64]*segment
	active    *segment
	index     *keydir
	deadBytes int64
	lastSync  time.Time
	closed    bool
}

var _ kvlog.Store = (*Store)(nil)

// Open opens the store rooted at dir, creating the directory if needed.
// Every segment found is replayed in ascending ID order to rebuild the
// index; a corrupt record truncates that segment's contribution at the
// corruption point without failing the open. The highest-ID segment
// becomes the active (writable) one, or segment 0 is created when the
// directory holds none. A corrupt tail on the to-be-active segment is
// cut from the file before it accepts appends, so new records land where
// the next replay will find them.
func Open(dir string, opts Options) (*Store, error) {
	opts = opts.withDefaults()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}

	ids, err := listSegmentIDs(dir)
	if err != nil {
		return nil, err
	}

	s := &Store{
		dir:      dir,
		opts:     opts,
		segments: make(map[uint64]*segment, len(ids)),
		index:    newKeydir(),
		lastSync: opts.Clock.Now(),
	}

	for i, id := range ids {
		writable := i == len(ids)-1
		seg, err := openSegment(dir, id, writable)
		if err != nil {
			s.closeAll()
			return nil, err
		}
		s.segments[id] = seg
		if writable {
			s.active = seg
		}
		good, err := s.replaySegment(seg)
		if err != nil {
			s.closeAll()
			return nil, err
		}
		if writable && good < seg.size {
			if err := seg.truncate(good); err != nil {
				s.closeAll()
				return nil, err
			}
		}
	}

	if s.active == nil {
		seg, err := createSegment(dir, 0)
		if err != nil {
			return nil, err
		}
		s.segments[0] = seg
		s.active = seg
	}
	return s, nil
}

// replaySegment folds one segment's records into the index in offset
// order. Later records shadow earlier ones; tombstones remove. A corrupt
// record discards it and everything after it in this segment only. The
// returned offset sits just past the last good record; on a corrupt tail
// that is where the corruption begins.
func (s *Store) replaySegment(seg *segment) (int64, error) {
	var good int64
	err := seg.scan(s.opts.DirectIO, func(rec record, offset, length int64) error {
		good = offset + length
		if rec.Tombstone {
			if prev, ok := s.index.remove(rec.Key); ok {
				s.deadBytes += prev.Length
			}
			s.deadBytes += length
			return nil
		}
		loc := Location{SegmentID: seg.id, Offset: offset, Length: length}
		if prev, replaced := s.index.put(rec.Key, loc); replaced {
			s.deadBytes += prev.Length
		}
		return nil
	})
	if err != nil {
		var corrupt *CorruptRecordError
		if errors.As(err, &corrupt) {
			return good, nil
		}
		return good, err
	}
	return good, nil
}

// Set durably records key -> value and repoints the index at the new
// location. It may rotate the active segment first.
func (s *Store) Set(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if len(key) == 0 || len(key) > maxKeyLen {
		return ErrInvalidKey
	}
	if int64(len(value)) > maxValueLen {
		return ErrValueTooLarge
	}

	loc, err := s.appendLocked(newRecord(key, value))
	if err != nil {
		return err
	}
	if prev, replaced := s.index.put(key, loc); replaced {
		s.deadBytes += prev.Length
	}
	return nil
}

// Get returns the most recent value for key. A miss or deleted key yields
// ErrKeyNotFound; a checksum failure on the stored record yields a
// *CorruptRecordError.
func (s *Store) Get(key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	loc, ok := s.index.get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	seg, ok := s.segments[loc.SegmentID]
	if !ok {
		return nil, &SegmentNotFoundError{ID: loc.SegmentID}
	}
	data, err := seg.readAt(loc.Offset, loc.Length)
	if err != nil {
		return nil, err
	}
	rec, _, err := readRecord(bytes.NewReader(data))
	if err != nil {
		return nil, &CorruptRecordError{SegmentID: loc.SegmentID, Offset: loc.Offset, Err: err}
	}
	if rec.Tombstone {
		return nil, ErrKeyNotFound
	}
	return rec.Value, nil
}

// Delete appends a tombstone for key whether or not it exists, then drops
// key from the index. Deleting an absent key succeeds.
func (s *Store) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if len(key) == 0 || len(key) > maxKeyLen {
		return ErrInvalidKey
	}

	loc, err := s.appendLocked(newTombstone(key))
	if err != nil {
		return err
	}
	if prev, ok := s.index.remove(key); ok {
		s.deadBytes += prev.Length
	}
	// The tombstone itself is reclaimable the moment it lands.
	s.deadBytes += loc.Length
	return nil
}

// ListKeys returns the live key set sorted bytewise, or nil on a closed
// store. No disk I/O.
func (s *Store) ListKeys() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	keys := make([][]byte, 0, s.index.len())
	s.index.rangeEntries(func(key []byte, _ Location) bool {
		keys = append(keys, append([]byte(nil), key...))
		return true
	})
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })
	return keys
}

// Stats reports a point-in-time view of the store, or a zero snapshot on
// a closed store.
func (s *Store) Stats() kvlog.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kvlog.Stats{}
	}

	stats := kvlog.Stats{
		Keys:     s.index.len(),
		Segments: len(s.segments),
	}
	first := true
	for id, seg := range s.segments {
		stats.DiskBytes += seg.size
		if first || id < stats.OldestSegmentID {
			stats.OldestSegmentID = id
			first = false
		}
	}
	stats.DeadBytes = s.deadBytes
	if s.active != nil {
		stats.ActiveSegmentID = s.active.id
	}
	return stats
}

// Close syncs the active segment and releases every file handle. The store
// is unusable afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.closeAll()
}

// Dir returns the data directory the store was opened on.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) closeAll() error {
	var firstErr error
	for _, seg := range s.segments {
		if err := seg.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// appendLocked encodes rec, rotates if the active segment would overflow,
// appends, and applies the sync policy. Callers must hold s.mu.
func (s *Store) appendLocked(rec record) (Location, error) {
	if s.active == nil {
		return Location{}, ErrActiveSegmentMissing
	}
	data := rec.encode()
	if err := s.rotateLocked(int64(len(data))); err != nil {
		return Location{}, err
	}
	offset, err := s.active.append(data)
	if err != nil {
		return Location{}, err
	}
	if err := s.maybeSyncLocked(); err != nil {
		return Location{}, err
	}
	return Location{SegmentID: s.active.id, Offset: offset, Length: int64(len(data))}, nil
}

// rotateLocked seals the active segment and opens a fresh one when the
// next n bytes would push it past the size threshold. A record never
// splits across segments; an oversized record goes alone into an empty
// segment.
func (s *Store) rotateLocked(n int64) error {
	if s.active.size == 0 || s.active.size+n <= s.opts.MaxSegmentSize {
		return nil
	}
	if err := s.active.seal(); err != nil {
		return err
	}
	seg, err := createSegment(s.dir, s.maxSegmentIDLocked()+1)
	if err != nil {
		return err
	}
	s.segments[seg.id] = seg
	s.active = seg
	return nil
}

func (s *Store) maybeSyncLocked() error {
	switch s.opts.SyncMode {
	case SyncNever:
		return nil
	case SyncInterval:
		now := s.opts.Clock.Now()
		if now.Sub(s.lastSync) < s.opts.FlushInterval {
			return nil
		}
		if err := s.active.sync(); err != nil {
			return err
		}
		s.lastSync = now
		return nil
	default:
		if err := s.active.sync(); err != nil {
			return err
		}
		s.lastSync = s.opts.Clock.Now()
		return nil
	}
}

func (s *Store) maxSegmentIDLocked() uint64 {
	var max uint64
	for id := range s.segments {
		if id > max {
			max = id
		}
	}
	return max
}
