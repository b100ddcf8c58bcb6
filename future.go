package dbpool

import "context"

// Future is fulfilled by a worker goroutine running the same acquisition
// logic as the synchronous GetConnection (spec.md §4.4/§5).
//
// Grounded on the teacher's pattern of spawning a goroutine that performs
// a blocking operation and reports its result elsewhere (service.go's
// background scoring goroutines); the teacher has no async Get, since
// spec.md's async API is additive over it, so this type itself has no
// direct teacher analogue beyond that goroutine-plus-channel idiom.
type Future struct {
	done chan struct{}
	conn *PooledConnection
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(conn *PooledConnection, err error) {
	f.conn, f.err = conn, err
	close(f.done)
}

// Get blocks until the Future resolves or ctx is done.
//
// Abandoning a Future (letting ctx expire and never calling Get again) is
// safe: if the underlying acquisition eventually succeeds after the
// caller gave up, abandon() routes the connection back through the
// pool's reuse path so it is never leaked as a phantom inuse count
// (spec.md §5's cancellation note). Once a Get call has returned
// ctx.Err(), treat the Future as abandoned — a later Get call on the same
// Future may race the abandon goroutine for the same connection.
func (f *Future) Get(ctx context.Context) (*PooledConnection, error) {
	select {
	case <-f.done:
		return f.conn, f.err
	case <-ctx.Done():
		go f.abandon()
		return nil, ctx.Err()
	}
}

func (f *Future) abandon() {
	<-f.done
	if f.err == nil && f.conn != nil && f.conn.pool != nil {
		f.conn.pool.reuse(context.Background(), f.conn)
	}
}
