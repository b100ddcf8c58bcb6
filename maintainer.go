package dbpool

import (
	"context"
	"sync/atomic"
	"time"
)

// startupDelay is the brief pause before the maintainer performs its
// initial injection, allowing the Pool value returned by NewPool to be
// fully published to the caller first (spec.md §4.5).
const startupDelay = 10 * time.Millisecond

// maintainer is the background task described in spec.md §4.5: it opens
// the initial batch of connections, then repeatedly prunes idle
// connections older than MaxIdleDuration down to MinSpareConnections.
//
// Grounded on the teacher's pool.go collect() goroutine (a single
// always-on background task per Pool) and service.go's decay/memoize
// ticker pair (the teacher already runs more than one periodic
// maintenance loop per Service).
type maintainer struct {
	pool *Pool
	stop chan struct{}
	done chan struct{}
}

func newMaintainer(p *Pool) *maintainer {
	return &maintainer{pool: p, stop: make(chan struct{}), done: make(chan struct{})}
}

func (m *maintainer) run() {
	defer close(m.done)

	select {
	case <-time.After(startupDelay):
	case <-m.stop:
		return
	}

	p := m.pool
	p.bootstrap(context.Background())
	p.counters.resetMinIdle()

	ticker := time.NewTicker(p.opts.MaxIdleDuration)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.pruneOnce()
		}
	}
}

// pruneOnce implements spec.md §4.5 step 2: kill = minIdle - minSpare
// idle connections, then reseed the low-water mark from the current idle
// count for the next window.
func (m *maintainer) pruneOnce() {
	p := m.pool
	low := atomic.LoadInt32(&p.counters.minIdle)
	kill := int(low) - p.opts.MinSpareConnections

	for i := 0; i < kill; i++ {
		c, ok := p.idle.poll()
		if !ok {
			break
		}
		atomic.AddInt32(&p.counters.idle, -1)
		c.raw.RawDisconnect()
		p.metrics.incr("conns.pruned")
		p.log.WithField("conn", c.id).Debug("pruned idle connection")
	}

	p.counters.resetMinIdle()
}

func (m *maintainer) stopAndWait() {
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
	<-m.done
}
