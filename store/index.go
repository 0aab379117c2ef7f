package store

import (
	"bytes"

	"github.com/zhangxinngang/murmur"
)

// Location identifies where a key's most recent record lives.
type Location struct {
	SegmentID uint64
	Offset    int64
	Length    int64
}

type indexEntry struct {
	key []byte
	loc Location
}

// keydir is the in-memory key index: murmur3 hash buckets holding the full
// key alongside its location, so colliding keys stay distinct. It is
// derived state, rebuilt on open by replaying every segment in ID order.
type keydir struct {
	buckets map[uint32][]indexEntry
	keys    int
}

func newKeydir() *keydir {
	return &keydir{buckets: make(map[uint32][]indexEntry)}
}

func hashKey(key []byte) uint32 {
	return murmur.Murmur3(key)
}

func (k *keydir) get(key []byte) (Location, bool) {
	for _, entry := range k.buckets[hashKey(key)] {
		if bytes.Equal(entry.key, key) {
			return entry.loc, true
		}
	}
	return Location{}, false
}

// put points key at loc, returning the location it displaced if the key was
// already live. The key bytes are copied; callers may reuse their buffers.
func (k *keydir) put(key []byte, loc Location) (Location, bool) {
	h := hashKey(key)
	bucket := k.buckets[h]
	for i, entry := range bucket {
		if bytes.Equal(entry.key, key) {
			prev := entry.loc
			bucket[i].loc = loc
			return prev, true
		}
	}
	k.buckets[h] = append(bucket, indexEntry{key: append([]byte(nil), key...), loc: loc})
	k.keys++
	return Location{}, false
}

// remove drops key from the index, returning the location it held.
func (k *keydir) remove(key []byte) (Location, bool) {
	h := hashKey(key)
	bucket := k.buckets[h]
	for i, entry := range bucket {
		if bytes.Equal(entry.key, key) {
			bucket[i] = bucket[len(bucket)-1]
			bucket = bucket[:len(bucket)-1]
			if len(bucket) == 0 {
				delete(k.buckets, h)
			} else {
				k.buckets[h] = bucket
			}
			k.keys--
			return entry.loc, true
		}
	}
	return Location{}, false
}

func (k *keydir) len() int {
	return k.keys
}

// rangeEntries visits every live entry. Iteration order is unspecified;
// callers needing determinism must sort. The key slice must not be mutated.
func (k *keydir) rangeEntries(fn func(key []byte, loc Location) bool) {
	for _, bucket := range k.buckets {
		for _, entry := range bucket {
			if !fn(entry.key, entry.loc) {
				return
			}
		}
	}
}
