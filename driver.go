package dbpool

import "context"

// Connection is a live, authenticated session with a database, as handed
// back by a Driver. Implementations must make Ping safe to call at any
// time and must never panic out of any of these methods; a failing
// Connection reports failure through its return values, the pool handles
// the rest.
type Connection interface {
	// Ping is a cheap liveness check performed on handout. It must not
	// block for long and must never raise a panic; a dead connection
	// simply returns false.
	Ping(ctx context.Context) bool

	// SupportsReuse reports whether this connection (and, implicitly,
	// every connection this Driver opens) may be scrubbed and handed to
	// a later, unrelated caller instead of being closed on dispose.
	SupportsReuse() bool

	// ScrubForReuse resets session state (temp tables, prepared
	// statements, session variables, ...) so the connection is safe to
	// give to a different caller. It must be idempotent; a failure is
	// treated as "this connection cannot be reused" rather than as a
	// fatal pool error.
	ScrubForReuse(ctx context.Context) error

	// RawDisconnect releases the driver resources backing this
	// connection immediately. It is never called concurrently with any
	// other method on the same Connection.
	RawDisconnect()
}

// Driver opens new Connections against a named database using an opaque
// argument bag. Connect failures are fatal only to the attempt that
// triggered them; the pool retries on the next injection cycle or the
// next handout.
type Driver interface {
	Connect(ctx context.Context, name string, args map[string]string) (Connection, error)
}
