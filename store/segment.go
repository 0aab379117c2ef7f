package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const segmentFileSuffix = ".seg"

// segment owns one append-only file. The active segment keeps a write
// handle; sealed segments are read-only. The read handle serves random
// ReadAt calls and is safe to keep open alongside the writer.
type segment struct {
	id     uint64
	path   string
	writer *os.File // nil once sealed
	reader *os.File
	size   int64
}

func segmentFileName(id uint64) string {
	return fmt.Sprintf("%08d%s", id, segmentFileSuffix)
}

func parseSegmentFileName(name string) (uint64, error) {
	if !strings.HasSuffix(name, segmentFileSuffix) {
		return 0, fmt.Errorf("file %s is not a segment file", name)
	}
	return strconv.ParseUint(strings.TrimSuffix(name, segmentFileSuffix), 10, 64)
}

// listSegmentIDs scans dir for segment files and returns their IDs in
// ascending order. Gaps are expected after compaction; files whose names do
// not parse are ignored.
func listSegmentIDs(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan data directory %s: %w", dir, err)
	}
	var ids []uint64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, err := parseSegmentFileName(entry.Name())
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// createSegment creates a brand-new writable segment file.
func createSegment(dir string, id uint64) (*segment, error) {
	path := filepath.Join(dir, segmentFileName(id))
	writer, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create segment file %s: %w", path, err)
	}
	reader, err := os.OpenFile(path, os.O_RDONLY, 0644)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to open segment file %s for reads: %w", path, err)
	}
	return &segment{id: id, path: path, writer: writer, reader: reader}, nil
}

// openSegment opens an existing segment file. With writable set, the
// segment accepts appends at its current end of file.
func openSegment(dir string, id uint64, writable bool) (*segment, error) {
	path := filepath.Join(dir, segmentFileName(id))
	reader, err := os.OpenFile(path, os.O_RDONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment file %s: %w", path, err)
	}
	stat, err := reader.Stat()
	if err != nil {
		reader.Close()
		return nil, fmt.Errorf("failed to stat segment file %s: %w", path, err)
	}
	seg := &segment{id: id, path: path, reader: reader, size: stat.Size()}
	if writable {
		writer, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			reader.Close()
			return nil, fmt.Errorf("failed to open segment file %s for appends: %w", path, err)
		}
		seg.writer = writer
	}
	return seg, nil
}

// append writes data at the current end of file and returns the offset at
// which it begins. A short write leaves a garbage tail on disk; size still
// advances by the bytes written so later appends stay at honest offsets.
func (s *segment) append(data []byte) (int64, error) {
	if s.writer == nil {
		return 0, fmt.Errorf("segment %d is sealed", s.id)
	}
	offset := s.size
	n, err := s.writer.Write(data)
	s.size += int64(n)
	if err != nil {
		return 0, fmt.Errorf("failed to append to segment %d: %w", s.id, err)
	}
	return offset, nil
}

func (s *segment) readAt(offset, length int64) ([]byte, error) {
	data := make([]byte, length)
	if _, err := s.reader.ReadAt(data, offset); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, &CorruptRecordError{SegmentID: s.id, Offset: offset, Err: errTruncatedRecord}
		}
		return nil, fmt.Errorf("failed to read segment %d at offset %d: %w", s.id, offset, err)
	}
	return data, nil
}

// truncate discards everything at and after size. Only the active
// segment is ever truncated, to cut a corrupt tail before new appends.
func (s *segment) truncate(size int64) error {
	if s.writer == nil {
		return fmt.Errorf("segment %d is sealed", s.id)
	}
	if err := s.writer.Truncate(size); err != nil {
		return fmt.Errorf("failed to truncate segment %d to %d bytes: %w", s.id, size, err)
	}
	s.size = size
	return nil
}

func (s *segment) sync() error {
	if s.writer == nil {
		return nil
	}
	if err := s.writer.Sync(); err != nil {
		return fmt.Errorf("failed to sync segment %d: %w", s.id, err)
	}
	return nil
}

// seal syncs and closes the write handle, making the segment read-only.
func (s *segment) seal() error {
	if s.writer == nil {
		return nil
	}
	err := s.sync()
	closeErr := s.writer.Close()
	s.writer = nil
	if err != nil {
		return err
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close segment %d writer: %w", s.id, closeErr)
	}
	return nil
}

func (s *segment) close() error {
	err := s.seal()
	if closeErr := s.reader.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("failed to close segment %d reader: %w", s.id, closeErr)
	}
	return err
}

// remove closes all handles and deletes the file. Deletion is gated by the
// compactor having already duplicated any live data elsewhere.
func (s *segment) remove() error {
	if err := s.close(); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil {
		return fmt.Errorf("failed to remove segment file %s: %w", s.path, err)
	}
	return nil
}
