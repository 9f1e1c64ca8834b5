package metrics

import "sync/atomic"

var _reporters atomic.Pointer[[]Reporter]

// Reporter receives every metric record. Implementations forward records to a
// backend (Prometheus, a test recorder) and must not block the caller.
type Reporter interface {
	Report(r Record)
}

// SetMetricsReporters replaces the global reporter list.
func SetMetricsReporters(reports []Reporter) {
	cp := make([]Reporter, len(reports))
	copy(cp, reports)
	_reporters.Store(&cp)
}

// AddMetricsReporter appends a reporter to the global list.
func AddMetricsReporter(r Reporter) {
	for {
		old := _reporters.Load()
		var next []Reporter
		if old != nil {
			next = append(next, *old...)
		}
		next = append(next, r)
		if _reporters.CompareAndSwap(old, &next) {
			return
		}
	}
}

func report(r Record) {
	reporters := _reporters.Load()
	if reporters == nil {
		return
	}
	for _, reporter := range *reporters {
		reporter.Report(r)
	}
}
