package metrics

import (
	"sync"
	"time"
)

// Metrics is implemented by every metric type.
type Metrics interface {
	// Name returns the metric name.
	Name() string
	// Group returns the metric group, exported as the Prometheus subsystem.
	Group() string
	// Policy returns how values of this metric aggregate.
	Policy() Policy
}

var (
	_counters     = map[string]Counter{}
	_lockCounters = sync.RWMutex{}

	_gauges     = map[string]Gauge{}
	_lockGauges = sync.RWMutex{}

	_stopwatches   = map[string]StopWatch{}
	_lockStopwatch = sync.RWMutex{}
)

// IncrCounterWithGroup increases a counter.
func IncrCounterWithGroup(key string, group string, value Value) {
	getCounter(key, group).Incr(value)
}

// IncrCounterWithDimGroup increases a counter for the given dimensions.
func IncrCounterWithDimGroup(key string, group string, value Value, dimensions Dimension) {
	getCounter(key, group).IncrWithDim(value, dimensions)
}

// UpdateGaugeWithGroup sets a gauge.
func UpdateGaugeWithGroup(key string, group string, value Value) {
	getGauge(key, group).Update(value)
}

// UpdateGaugeWithDimGroup sets a gauge for the given dimensions.
func UpdateGaugeWithDimGroup(key string, group string, value Value, dimensions Dimension) {
	getGauge(key, group).UpdateWithDim(value, dimensions)
}

// RecordStopwatchWithGroup records the time elapsed since startTime.
func RecordStopwatchWithGroup(key string, group string, startTime time.Time) time.Duration {
	return getStopWatch(key, group).RecordWithDim(nil, startTime)
}

// RecordStopwatchWithDimGroup records the time elapsed since startTime for the given dimensions.
func RecordStopwatchWithDimGroup(key string, group string, startTime time.Time, dimensions Dimension) time.Duration {
	return getStopWatch(key, group).RecordWithDim(dimensions, startTime)
}

func getCounter(name string, group string) Counter {
	_lockCounters.RLock()
	c, ok := _counters[name]
	_lockCounters.RUnlock()
	if ok {
		return c
	}

	_lockCounters.Lock()
	defer _lockCounters.Unlock()
	if c, ok = _counters[name]; ok {
		return c
	}
	c = &counter{name: name, group: group}
	_counters[name] = c
	return c
}

func getGauge(name string, group string) Gauge {
	_lockGauges.RLock()
	g, ok := _gauges[name]
	_lockGauges.RUnlock()
	if ok {
		return g
	}

	_lockGauges.Lock()
	defer _lockGauges.Unlock()
	if g, ok = _gauges[name]; ok {
		return g
	}
	g = &gauge{name: name, group: group}
	_gauges[name] = g
	return g
}

func getStopWatch(name string, group string) StopWatch {
	_lockStopwatch.RLock()
	s, ok := _stopwatches[name]
	_lockStopwatch.RUnlock()
	if ok {
		return s
	}

	_lockStopwatch.Lock()
	defer _lockStopwatch.Unlock()
	if s, ok = _stopwatches[name]; ok {
		return s
	}
	s = &stopwatch{name: name, group: group}
	_stopwatches[name] = s
	return s
}
