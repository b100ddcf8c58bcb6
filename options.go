package dbpool

import (
	"time"

	"github.com/cactus/go-statsd-client/statsd"
	"github.com/sirupsen/logrus"
)

// Default tunables, mirroring spec.md's construction defaults.
const (
	DefaultInitialSize         = 1
	DefaultMaxConnections      = 10
	DefaultMinSpareConnections = 1
	DefaultMaxIdleDuration     = 60 * time.Second
	defaultSampleRate          = 1.0
)

// Options configures a Pool. All fields are immutable once passed to
// NewPool; a Pool never mutates its own configuration.
type Options struct {
	// Driver opens new Connections. Required.
	Driver Driver

	// DriverName and ConnectionArgs are forwarded verbatim to
	// Driver.Connect; dbpool never inspects them.
	DriverName     string
	ConnectionArgs map[string]string

	// InitialSize is the number of connections opened at boot (default 1,
	// must be >= 1).
	InitialSize int

	// MaxConnections is the hard ceiling on total connections. A negative
	// value means "unset" and is replaced with DefaultMaxConnections (10).
	// Zero is a legal, explicit value distinct from unset: it means no
	// connection may ever be opened, so every GetConnection blocks
	// forever (documented boundary behavior, not a misconfiguration).
	MaxConnections int

	// MinSpareConnections is the idle floor the maintainer tries to keep
	// available. A negative value means "unset" and is replaced with
	// DefaultMinSpareConnections (1); zero is legal and explicit: idle
	// may reach 0 between handout and injection.
	MinSpareConnections int

	// MaxIdleDuration is both the maintainer's prune tick interval and
	// the idle age threshold used when computing how much excess
	// capacity to retire (default 60s).
	MaxIdleDuration time.Duration

	// Logger receives diagnostic output. Defaults to a logrus.Entry that
	// discards everything.
	Logger *logrus.Entry

	// Statter, if set, receives statsd metrics for connection lifecycle
	// events. Defaults to a no-op statter.
	Statter statsd.Statter

	// SampleRate is the statsd sampling rate in [0, 1] (default 1.0).
	SampleRate float32
}

func (o *Options) setDefaults() {
	if o.InitialSize <= 0 {
		o.InitialSize = DefaultInitialSize
	}
	if o.MaxConnections < 0 {
		o.MaxConnections = DefaultMaxConnections
	}
	if o.MinSpareConnections < 0 {
		o.MinSpareConnections = DefaultMinSpareConnections
	}
	if o.MaxIdleDuration <= 0 {
		o.MaxIdleDuration = DefaultMaxIdleDuration
	}
	if o.SampleRate <= 0 {
		o.SampleRate = defaultSampleRate
	}
	if o.Logger == nil {
		l := logrus.New()
		l.SetOutput(discardWriter{})
		o.Logger = logrus.NewEntry(l)
	}
}

func (o *Options) validate() error {
	if o.Driver == nil {
		return ErrInvalidConfig
	}
	if o.InitialSize < 1 {
		return ErrInvalidConfig
	}
	// A zero ceiling is the documented "block forever" boundary case: it
	// never admits any connection, including the initial batch, so it is
	// exempt from the initial-size-vs-ceiling rejection below.
	if o.MaxConnections > 0 && o.InitialSize > o.MaxConnections {
		return ErrInvalidConfig
	}
	if o.MinSpareConnections < 0 {
		return ErrInvalidConfig
	}
	return nil
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
