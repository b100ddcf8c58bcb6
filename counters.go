package dbpool

import "sync/atomic"

// counters holds the atomic tallies backing Pool.Stats. Every field is
// updated with atomic read-modify-write operations; no lock is ever held
// while a goroutine is blocked waiting on one of these values. Grounded on
// the teacher's counter/state CAS-loop types (atomic.go), generalized from
// a single count to the five named tallies spec.md requires.
type counters struct {
	starting                int32
	idle                    int32
	inuse                   int32
	scrub                   int32
	waiting                 int32
	minIdle                 int32
	destroyedWithoutDispose int32
}

func (c *counters) total() int32 {
	return atomic.LoadInt32(&c.idle) +
		atomic.LoadInt32(&c.starting) +
		atomic.LoadInt32(&c.inuse) +
		atomic.LoadInt32(&c.scrub)
}

// noteIdleSample records a fresh idle reading against the low-water mark.
// Called after every successful handout (idle decrement), per spec.md
// §4.5's "updated during handouts". The update only ever decreases the
// mark; unsynchronized races may leave it a little high, which is fine —
// the mark is an approximation by design.
func (c *counters) noteIdleSample() {
	idle := atomic.LoadInt32(&c.idle)
	for {
		cur := atomic.LoadInt32(&c.minIdle)
		if idle >= cur {
			return
		}
		if atomic.CompareAndSwapInt32(&c.minIdle, cur, idle) {
			return
		}
	}
}

// resetMinIdle reseeds the low-water mark from the current idle count,
// used by the maintainer at the end of each prune cycle (and once after
// the initial bootstrap injection).
func (c *counters) resetMinIdle() {
	atomic.StoreInt32(&c.minIdle, atomic.LoadInt32(&c.idle))
}
