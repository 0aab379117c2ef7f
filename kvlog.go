// Package kvlog defines the public surface of a single-node key-value
// store built on an append-only segmented log. The engine implementation
// lives in the store package; this package holds the interfaces and shared
// types consumed by the outer layers (CLI, HTTP server).
package kvlog

import "fmt"

// Store is the operation set exposed by the storage engine.
//
// A Store exclusively owns its data directory. Opening two Store instances
// over the same directory is undefined behavior and will corrupt data.
type Store interface {
	// Set durably records key -> value. The key must be non-empty.
	Set(key, value []byte) error
	// Get returns the most recently set value for key, or ErrKeyNotFound.
	Get(key []byte) ([]byte, error)
	// Delete removes key. Deleting an absent key succeeds.
	Delete(key []byte) error
	// ListKeys returns the live key set, sorted bytewise. A closed store
	// yields nil.
	ListKeys() [][]byte
	// Stats reports a point-in-time view of the store. A closed store
	// yields a zero snapshot.
	Stats() Stats
	// Compact rewrites live data into fresh segments and deletes the old
	// ones. It blocks all other operations for its duration.
	Compact() error
	// Close syncs and releases all file handles.
	Close() error
}

// Stats is a read-only snapshot of store state.
type Stats struct {
	// Keys is the number of live keys.
	Keys int `json:"keys"`
	// Segments is the number of segment files on disk.
	Segments int `json:"segments"`
	// DiskBytes is the aggregate size of all segment files.
	DiskBytes int64 `json:"disk_bytes"`
	// DeadBytes is the portion of DiskBytes held by superseded or deleted
	// records, reclaimable by compaction.
	DeadBytes int64 `json:"dead_bytes"`
	// ActiveSegmentID is the ID of the segment accepting appends.
	ActiveSegmentID uint64 `json:"active_segment_id"`
	// OldestSegmentID is the lowest segment ID on disk.
	OldestSegmentID uint64 `json:"oldest_segment_id"`
}

// DeadRatio returns the fraction of on-disk bytes that compaction would
// reclaim, in [0, 1].
func (s Stats) DeadRatio() float64 {
	if s.DiskBytes == 0 {
		return 0
	}
	return float64(s.DeadBytes) / float64(s.DiskBytes)
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"keys=%d segments=%d disk=%.2fMB dead=%.2fMB active_segment=%d oldest_segment=%d",
		s.Keys, s.Segments,
		float64(s.DiskBytes)/(1024*1024), float64(s.DeadBytes)/(1024*1024),
		s.ActiveSegmentID, s.OldestSegmentID,
	)
}
