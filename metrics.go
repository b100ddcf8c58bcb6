package dbpool

import "github.com/cactus/go-statsd-client/statsd"

// metricsSink wraps an optional statsd.Statter. It is never required to
// use a Pool — a nil Statter becomes a no-op client — but when configured
// it reports the same shape of counters the teacher's Service did for its
// hosts (conns.open.count, conns.get.count, ...), adapted from per-host scores
// to per-pool connection-lifecycle events.
//
// Grounded directly on service.go's StatsdAddr/statsd.Statter/sampleRate
// fields.
type metricsSink struct {
	statter    statsd.Statter
	sampleRate float32
}

func newMetricsSink(opts Options) *metricsSink {
	st := opts.Statter
	if st == nil {
		st, _ = statsd.NewNoop()
	}
	return &metricsSink{statter: st, sampleRate: opts.SampleRate}
}

func (m *metricsSink) incr(stat string) {
	if m == nil || m.statter == nil {
		return
	}
	_ = m.statter.Inc(stat, 1, m.sampleRate)
}

func (m *metricsSink) gauge(stat string, value int64) {
	if m == nil || m.statter == nil {
		return
	}
	_ = m.statter.Gauge(stat, value, m.sampleRate)
}
