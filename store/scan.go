package store

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ncw/directio"
)

const scanBufferSize = 64 * 1024

// scan reads every record in the segment in offset order and hands each to
// fn along with its offset and encoded length. The first corrupt record
// stops the scan with a *CorruptRecordError; everything at and after it is
// unrecoverable, but records already delivered stand.
//
// With directIO set, the file is read through the page-cache-bypassing
// path so a large replay does not evict hot data.
func (s *segment) scan(directIO bool, fn func(rec record, offset, length int64) error) error {
	var src io.Reader
	if directIO {
		file, err := directio.OpenFile(s.path, os.O_RDONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open segment file %s for direct IO: %w", s.path, err)
		}
		defer file.Close()
		src = &alignedReader{file: file, block: directio.AlignedBlock(directio.BlockSize)}
	} else {
		file, err := os.Open(s.path)
		if err != nil {
			return fmt.Errorf("failed to open segment file %s: %w", s.path, err)
		}
		defer file.Close()
		src = bufio.NewReaderSize(file, scanBufferSize)
	}

	var offset int64
	for {
		rec, n, err := readRecord(src)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &CorruptRecordError{SegmentID: s.id, Offset: offset, Err: err}
		}
		if err := fn(rec, offset, n); err != nil {
			return err
		}
		offset += n
	}
}

// alignedReader adapts an O_DIRECT file to io.Reader by staging reads
// through a block-aligned buffer, as direct IO requires.
type alignedReader struct {
	file  *os.File
	block []byte
	r, n  int
}

func (a *alignedReader) Read(p []byte) (int, error) {
	if a.r == a.n {
		n, err := a.file.Read(a.block)
		if n == 0 {
			if err == nil {
				err = io.EOF
			}
			return 0, err
		}
		a.r, a.n = 0, n
	}
	copied := copy(p, a.block[a.r:a.n])
	a.r += copied
	return copied, nil
}
