package store

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound is returned by Get when a key has never been set or
	// was deleted. It is not a failure.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidKey is returned when a key is empty or exceeds maxKeyLen.
	ErrInvalidKey = errors.New("invalid key")

	// ErrValueTooLarge is returned when a value's length falls into the
	// tombstone sentinel domain (anything above maxValueLen).
	ErrValueTooLarge = errors.New("value too large")

	// ErrActiveSegmentMissing indicates the store lost track of its
	// writable segment. This is a broken invariant, not a user error.
	ErrActiveSegmentMissing = errors.New("active segment missing")

	// ErrStoreClosed is returned by any operation on a closed store.
	ErrStoreClosed = errors.New("store is closed")
)

// CorruptRecordError reports a checksum mismatch or an internally
// inconsistent length field detected while decoding a record.
type CorruptRecordError struct {
	SegmentID uint64
	Offset    int64
	Err       error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt record in segment %d at offset %d: %v", e.SegmentID, e.Offset, e.Err)
}

func (e *CorruptRecordError) Unwrap() error {
	return e.Err
}

// SegmentNotFoundError indicates the index points at a segment that is no
// longer part of the store. This is a broken invariant, not a user error.
type SegmentNotFoundError struct {
	ID uint64
}

func (e *SegmentNotFoundError) Error() string {
	return fmt.Sprintf("segment %d not found", e.ID)
}
