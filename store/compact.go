package store

import (
	"bytes"
	"sort"
)

// Compact rewrites every live record into freshly created segments, then
// repoints the index and deletes the old segment files. New segments take
// IDs above the pre-compaction maximum, so if a crash leaves both
// generations on disk the replay ordering still yields the same values.
// Old files are removed only after the new generation is fully synced;
// until then they remain the authoritative copy.
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.compactLocked()
}

func (s *Store) compactLocked() error {
	type liveEntry struct {
		key []byte
		loc Location
	}

	// Snapshot the live set. Keys migrate in sorted order; the order
	// carries no meaning but keeps the pass deterministic.
	live := make([]liveEntry, 0, s.index.len())
	s.index.rangeEntries(func(key []byte, loc Location) bool {
		live = append(live, liveEntry{key: key, loc: loc})
		return true
	})
	sort.Slice(live, func(i, j int) bool { return bytes.Compare(live[i].key, live[j].key) < 0 })

	oldSegments := s.segments

	var newSegments []*segment
	abort := func(err error) error {
		for _, seg := range newSegments {
			_ = seg.remove()
		}
		return err
	}

	nextID := s.maxSegmentIDLocked() + 1
	dest, err := createSegment(s.dir, nextID)
	if err != nil {
		return err
	}
	newSegments = append(newSegments, dest)

	moves := make([]liveEntry, 0, len(live))
	for _, entry := range live {
		src, ok := oldSegments[entry.loc.SegmentID]
		if !ok {
			return abort(&SegmentNotFoundError{ID: entry.loc.SegmentID})
		}
		data, err := src.readAt(entry.loc.Offset, entry.loc.Length)
		if err != nil {
			return abort(err)
		}
		// Verify before re-homing; a record that fails its checksum must
		// surface, not propagate into the new generation.
		if _, _, err := readRecord(bytes.NewReader(data)); err != nil {
			return abort(&CorruptRecordError{SegmentID: src.id, Offset: entry.loc.Offset, Err: err})
		}

		if dest.size > 0 && dest.size+int64(len(data)) > s.opts.MaxSegmentSize {
			if err := dest.seal(); err != nil {
				return abort(err)
			}
			nextID++
			dest, err = createSegment(s.dir, nextID)
			if err != nil {
				return abort(err)
			}
			newSegments = append(newSegments, dest)
		}

		offset, err := dest.append(data)
		if err != nil {
			return abort(err)
		}
		moves = append(moves, liveEntry{
			key: entry.key,
			loc: Location{SegmentID: dest.id, Offset: offset, Length: int64(len(data))},
		})
	}

	// Durability gate: nothing is adopted and nothing old is deleted until
	// the whole new generation is on disk.
	if err := dest.sync(); err != nil {
		return abort(err)
	}

	for _, m := range moves {
		s.index.put(m.key, m.loc)
	}
	s.segments = make(map[uint64]*segment, len(newSegments))
	for _, seg := range newSegments {
		s.segments[seg.id] = seg
	}
	s.active = dest
	s.deadBytes = 0

	var firstErr error
	for _, seg := range oldSegments {
		if err := seg.remove(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
