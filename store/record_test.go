package store

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	key := []byte("hello")
	value := []byte("I'm the value")

	data := newRecord(key, value).encode()
	rec, n, err := readRecord(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)
	require.Equal(t, key, rec.Key)
	require.Equal(t, value, rec.Value)
	require.False(t, rec.Tombstone)
}

func TestTombstoneRoundTrip(t *testing.T) {
	key := []byte("doomed")

	data := newTombstone(key).encode()
	require.Equal(t, recordHeaderLen+len(key), len(data))

	rec, n, err := readRecord(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)
	require.Equal(t, key, rec.Key)
	require.True(t, rec.Tombstone)
	require.Nil(t, rec.Value)
}

func TestRecordChecksumMismatch(t *testing.T) {
	data := newRecord([]byte("k"), []byte("value")).encode()
	data[len(data)-1] ^= 0xFF

	_, _, err := readRecord(bytes.NewReader(data))
	require.ErrorIs(t, err, errChecksumMismatch)
}

func TestRecordTruncated(t *testing.T) {
	data := newRecord([]byte("k"), []byte("value")).encode()

	for _, cut := range []int{len(data) - 1, recordHeaderLen, recordHeaderLen - 3} {
		_, _, err := readRecord(bytes.NewReader(data[:cut]))
		require.Error(t, err)
		require.NotErrorIs(t, err, io.EOF)
	}
}

func TestRecordCleanEOF(t *testing.T) {
	_, n, err := readRecord(bytes.NewReader(nil))
	require.ErrorIs(t, err, io.EOF)
	require.Zero(t, n)
}

func TestRecordLengthOutOfRange(t *testing.T) {
	// Zero-length key: keys are validated non-empty before encoding, so a
	// zero here means garbage under the cursor.
	header := make([]byte, recordHeaderLen)
	binary.LittleEndian.PutUint64(header[4:12], 0)
	binary.LittleEndian.PutUint64(header[12:20], 1)
	_, _, err := readRecord(bytes.NewReader(header))
	require.Error(t, err)

	// Value length far above the cap, but not the tombstone sentinel.
	binary.LittleEndian.PutUint64(header[4:12], 1)
	binary.LittleEndian.PutUint64(header[12:20], maxValueLen+1)
	_, _, err = readRecord(bytes.NewReader(append(header, 'k')))
	require.Error(t, err)
}

func TestRecordEmptyValue(t *testing.T) {
	data := newRecord([]byte("k"), nil).encode()
	rec, _, err := readRecord(bytes.NewReader(data))
	require.NoError(t, err)
	require.False(t, rec.Tombstone)
	require.Empty(t, rec.Value)
}
