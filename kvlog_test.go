package kvlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatsDeadRatio(t *testing.T) {
	assert.Zero(t, Stats{}.DeadRatio())
	assert.Equal(t, 0.25, Stats{DiskBytes: 100, DeadBytes: 25}.DeadRatio())
}

func TestStatsString(t *testing.T) {
	s := Stats{
		Keys:            100,
		Segments:        3,
		DiskBytes:       2 * 1024 * 1024,
		ActiveSegmentID: 7,
		OldestSegmentID: 2,
	}
	out := s.String()
	assert.Contains(t, out, "keys=100")
	assert.Contains(t, out, "segments=3")
	assert.Contains(t, out, "disk=2.00MB")
	assert.Contains(t, out, "active_segment=7")
}
