package dbpool

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoteIdleSampleOnlyDecreases(t *testing.T) {
	var c counters
	atomic.StoreInt32(&c.minIdle, 5)

	atomic.StoreInt32(&c.idle, 3)
	c.noteIdleSample()
	assert.Equal(t, int32(3), atomic.LoadInt32(&c.minIdle))

	atomic.StoreInt32(&c.idle, 7)
	c.noteIdleSample()
	assert.Equal(t, int32(3), atomic.LoadInt32(&c.minIdle), "a higher idle reading must not raise the mark")
}

func TestResetMinIdleOverwritesRegardlessOfDirection(t *testing.T) {
	var c counters
	atomic.StoreInt32(&c.minIdle, 0)
	atomic.StoreInt32(&c.idle, 9)

	c.resetMinIdle()
	assert.Equal(t, int32(9), atomic.LoadInt32(&c.minIdle))
}

func TestTotalSumsAllFourStates(t *testing.T) {
	c := counters{starting: 1, idle: 2, inuse: 3, scrub: 4}
	assert.Equal(t, int32(10), c.total())
}
