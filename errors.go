package dbpool

import "errors"

// dbpool global errors.
var (
	// ErrInvalidConfig is returned by NewPool when the supplied Options
	// fail validation (missing Driver, InitialSize larger than
	// MaxConnections, ...).
	ErrInvalidConfig = errors.New("dbpool: invalid configuration")

	// ErrPoolTerminated is returned by GetConnection once Dispose has
	// been called. In-flight Futures obtained before Dispose may still
	// resolve successfully; the connection they carry is retired on its
	// own dispose.
	ErrPoolTerminated = errors.New("dbpool: pool is terminated")
)
