package dbpool

import "github.com/sirupsen/logrus"

// newLogger returns the diagnostic sink for a Pool: the caller's Logger if
// one was configured, tagged with the driver name, otherwise the discard
// logger installed by Options.setDefaults. spec.md §1 calls for "a single
// diagnostic sink" — dbpool never writes to stderr directly, everything
// funnels through this *logrus.Entry.
func newLogger(opts Options) *logrus.Entry {
	return opts.Logger.WithField("driver", opts.DriverName)
}
