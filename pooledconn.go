package dbpool

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/google/uuid"
)

// PooledConnection wraps a driver Connection with a non-owning back
// reference to the Pool that vended it. It lives in exactly one of idle,
// inuse, or scrub at any instant (spec.md §3, invariant 1). Calling code
// should treat it as it would any other handle: use it, then call Dispose.
//
// Grounded on the teacher's Conn/wrapper delegation style (conn.go,
// wrapper.go): PooledConnection forwards nothing but Raw() to the caller,
// who is expected to type-assert Raw() to whatever concrete Connection
// their Driver returns, and reimplements dispose as a pool callback
// instead of a destructive close.
type PooledConnection struct {
	id       string
	raw      Connection
	pool     *Pool
	disposed int32 // atomic bool; guards double-dispose and the finalizer race
}

func newPooledConnection(raw Connection) *PooledConnection {
	pc := &PooledConnection{id: uuid.NewString(), raw: raw}
	runtime.SetFinalizer(pc, finalizePooledConnection)
	return pc
}

// finalizePooledConnection implements spec.md §4.2's "observed without
// dispose" requirement. It must not block: a finalizer runs on its own
// goroutine but the runtime expects it to return promptly, so it performs
// a direct disconnect rather than routing through the scrub-and-reuse
// path (a GC'd connection's session state cannot be trusted anyway).
func finalizePooledConnection(pc *PooledConnection) {
	if !atomic.CompareAndSwapInt32(&pc.disposed, 0, 1) {
		return
	}
	if pc.pool != nil {
		pc.pool.reclaimLeaked(pc)
	}
}

// ID returns a stable identifier for this connection, useful for
// correlating pool diagnostics with application-level logs.
func (pc *PooledConnection) ID() string { return pc.id }

// Raw exposes the underlying driver Connection for callers that need to
// run queries, start transactions, or otherwise use driver-specific
// behavior. The pool never calls back into Raw except via Ping,
// ScrubForReuse, and RawDisconnect.
func (pc *PooledConnection) Raw() Connection { return pc.raw }

// Dispose returns the connection to its pool, which decides between
// reuse and retirement (spec.md §4.6). Calls after the first are no-ops
// until the pool hands the same connection out again, which rearms it;
// a Dispose from an earlier holder after that point returns the new
// handout. Callers that omit Dispose still get correct counter
// bookkeeping via the finalizer, at the cost of a diagnostic warning on
// pool teardown.
func (pc *PooledConnection) Dispose(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&pc.disposed, 0, 1) {
		return
	}
	runtime.SetFinalizer(pc, nil)
	if pc.pool != nil {
		pc.pool.reuse(ctx, pc)
	}
}

func (pc *PooledConnection) setPool(p *Pool) { pc.pool = p }

// rearm marks pc as not-yet-disposed and re-registers its finalizer ahead
// of a new handout. The same *PooledConnection is reused across many
// handout cycles once it has been scrubbed — scrubAndRequeue offers pc
// itself back onto the idle queue rather than allocating a new one — so
// disposed must track "has this handout been disposed" rather than "has
// this object ever been disposed once", or every dispose past the first
// would hit the CAS-fails branch and silently leak the connection from
// the pool's accounting. Called once per handout, before the connection
// is given to a caller.
func (pc *PooledConnection) rearm() {
	atomic.StoreInt32(&pc.disposed, 0)
	runtime.SetFinalizer(pc, finalizePooledConnection)
}
