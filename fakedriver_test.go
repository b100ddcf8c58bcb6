package dbpool

import (
	"context"
	"errors"
	"sync/atomic"
)

// fakeDriver is an in-memory Driver used by every test in this package in
// place of a live database, grounded on the teacher's echoServer fake
// backend (pool_test.go) one level up the interface: where the teacher
// fakes the network, dbpool fakes the driver.
type fakeDriver struct {
	opened    int32
	failOpen  bool
	openDelay chan struct{} // if non-nil, Connect blocks until closed

	// failFirstPing makes the first Ping on each newly opened connection
	// report false, then succeed afterward, modeling a bad connection
	// discovered on handout (spec.md S6).
	failFirstPing bool

	// failScrub makes every ScrubForReuse call fail.
	failScrub bool

	// noReuse makes every connection report SupportsReuse() == false.
	noReuse bool
}

func (d *fakeDriver) Connect(ctx context.Context, name string, args map[string]string) (Connection, error) {
	if d.openDelay != nil {
		<-d.openDelay
	}
	if d.failOpen {
		return nil, errors.New("fakeDriver: open failed")
	}
	atomic.AddInt32(&d.opened, 1)
	return &fakeConn{d: d}, nil
}

type fakeConn struct {
	d          *fakeDriver
	pinged     int32
	closed     int32
	scrubCount int32
}

func (c *fakeConn) Ping(ctx context.Context) bool {
	if c.d.failFirstPing && atomic.CompareAndSwapInt32(&c.pinged, 0, 1) {
		return false
	}
	atomic.StoreInt32(&c.pinged, 1)
	return true
}

func (c *fakeConn) SupportsReuse() bool {
	return !c.d.noReuse
}

func (c *fakeConn) ScrubForReuse(ctx context.Context) error {
	atomic.AddInt32(&c.scrubCount, 1)
	if c.d.failScrub {
		return errors.New("fakeDriver: scrub failed")
	}
	return nil
}

func (c *fakeConn) RawDisconnect() {
	atomic.StoreInt32(&c.closed, 1)
}
