package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
)

// On-disk record layout, little-endian:
//
//	checksum  uint32  CRC32-IEEE over key then value (key only for tombstones)
//	key_len   uint64
//	value_len uint64  tombstoneValueLen marks a tombstone; no value bytes follow
//	key       key_len bytes
//	value     value_len bytes
const (
	recordHeaderLen = 4 + 8 + 8

	// tombstoneValueLen is the value_len sentinel for delete markers. Real
	// values must never reach this length.
	tombstoneValueLen = math.MaxUint64

	// maxKeyLen and maxValueLen bound what Set accepts and what decode
	// will allocate for. Lengths beyond these in a header mean the bytes
	// under the cursor are not a record.
	maxKeyLen   = 1 << 20 // 1 MiB
	maxValueLen = 1 << 30 // 1 GiB
)

var (
	errChecksumMismatch = errors.New("checksum mismatch")
	errTruncatedRecord  = errors.New("record truncated")
)

// record is the atomic unit of the log: a key with a value, or a tombstone
// marking the key deleted.
type record struct {
	Key       []byte
	Value     []byte
	Tombstone bool
}

func newRecord(key, value []byte) record {
	return record{Key: key, Value: value}
}

func newTombstone(key []byte) record {
	return record{Key: key, Tombstone: true}
}

func (r record) checksum() uint32 {
	h := crc32.NewIEEE()
	h.Write(r.Key)
	if !r.Tombstone {
		h.Write(r.Value)
	}
	return h.Sum32()
}

func (r record) encodedLen() int64 {
	n := int64(recordHeaderLen + len(r.Key))
	if !r.Tombstone {
		n += int64(len(r.Value))
	}
	return n
}

func (r record) encode() []byte {
	buf := make([]byte, r.encodedLen())
	binary.LittleEndian.PutUint32(buf[0:4], r.checksum())
	binary.LittleEndian.PutUint64(buf[4:12], uint64(len(r.Key)))
	valueLen := uint64(tombstoneValueLen)
	if !r.Tombstone {
		valueLen = uint64(len(r.Value))
	}
	binary.LittleEndian.PutUint64(buf[12:20], valueLen)
	copy(buf[recordHeaderLen:], r.Key)
	if !r.Tombstone {
		copy(buf[recordHeaderLen+len(r.Key):], r.Value)
	}
	return buf
}

// readRecord decodes one record from r and returns it with the number of
// bytes consumed. A clean end of input yields io.EOF with zero bytes
// consumed; anything else that stops the decode (short read, length out of
// range, checksum mismatch) is a corruption for the caller to classify.
func readRecord(r io.Reader) (record, int64, error) {
	var header [recordHeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return record{}, 0, io.EOF
		}
		return record{}, 0, fmt.Errorf("%w: %v", errTruncatedRecord, err)
	}

	sum := binary.LittleEndian.Uint32(header[0:4])
	keyLen := binary.LittleEndian.Uint64(header[4:12])
	valueLen := binary.LittleEndian.Uint64(header[12:20])

	if keyLen == 0 || keyLen > maxKeyLen {
		return record{}, 0, fmt.Errorf("key length %d out of range", keyLen)
	}
	if valueLen != tombstoneValueLen && valueLen > maxValueLen {
		return record{}, 0, fmt.Errorf("value length %d out of range", valueLen)
	}

	rec := record{Key: make([]byte, keyLen)}
	if _, err := io.ReadFull(r, rec.Key); err != nil {
		return record{}, 0, fmt.Errorf("%w: %v", errTruncatedRecord, err)
	}
	if valueLen == tombstoneValueLen {
		rec.Tombstone = true
	} else {
		rec.Value = make([]byte, valueLen)
		if _, err := io.ReadFull(r, rec.Value); err != nil {
			return record{}, 0, fmt.Errorf("%w: %v", errTruncatedRecord, err)
		}
	}

	if rec.checksum() != sum {
		return record{}, 0, fmt.Errorf("%w: stored %08x, computed %08x", errChecksumMismatch, sum, rec.checksum())
	}
	return rec, rec.encodedLen(), nil
}
