// Package metrics provides a small builder for per-operation metrics. A
// Recorder collects dimensions, metric values and free-form properties and
// flushes them as a single structured zerolog event, so run summaries land in
// the same log stream as everything else.
package metrics

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Metric units.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
	UnitBytes        = "Bytes"
	UnitNone         = "None"
)

type metricDef struct {
	Name  string
	Unit  string
	Value float64
}

// Recorder accumulates dimensions, metrics, and properties for a single flush.
// It is NOT safe for concurrent use from multiple goroutines; create one per operation.
type Recorder struct {
	namespace  string
	logger     *zerolog.Logger
	dimensions map[string]string
	metrics    map[string]metricDef
	properties map[string]interface{}
}

// New creates a Recorder for namespace that flushes to the global logger.
func New(namespace string) *Recorder {
	return &Recorder{
		namespace:  namespace,
		dimensions: make(map[string]string),
		metrics:    make(map[string]metricDef),
		properties: make(map[string]interface{}),
	}
}

// WithLogger directs Flush to logger instead of the global logger.
func (r *Recorder) WithLogger(logger zerolog.Logger) *Recorder {
	r.logger = &logger
	return r
}

// Dimension adds a dimension key-value pair.
func (r *Recorder) Dimension(key, value string) *Recorder {
	r.dimensions[key] = value
	return r
}

// Metric records a named metric value, replacing any previous value.
func (r *Recorder) Metric(name string, value float64, unit string) *Recorder {
	r.metrics[name] = metricDef{Name: name, Unit: unit, Value: value}
	return r
}

// Add increments a named count metric by delta.
func (r *Recorder) Add(name string, delta float64) *Recorder {
	m := r.metrics[name]
	m.Name = name
	if m.Unit == "" {
		m.Unit = UnitCount
	}
	m.Value += delta
	r.metrics[name] = m
	return r
}

// Count is a convenience for recording a count metric (value = 1).
func (r *Recorder) Count(name string) *Recorder {
	return r.Metric(name, 1, UnitCount)
}

// Since records the milliseconds elapsed since start.
func (r *Recorder) Since(name string, start time.Time) *Recorder {
	return r.Metric(name, float64(time.Since(start).Milliseconds()), UnitMilliseconds)
}

// Property adds a non-metric field to the flushed event.
func (r *Recorder) Property(key string, value interface{}) *Recorder {
	r.properties[key] = value
	return r
}

// Value returns the current value of a metric.
func (r *Recorder) Value(name string) (float64, bool) {
	m, ok := r.metrics[name]
	return m.Value, ok
}

// Flush writes one info-level event holding every dimension, metric and
// property. Nothing is written when no metric was recorded.
// After flushing, the Recorder should not be reused.
func (r *Recorder) Flush() {
	if len(r.metrics) == 0 {
		return
	}

	logger := log.Logger
	if r.logger != nil {
		logger = *r.logger
	}

	event := logger.Info().Str("namespace", r.namespace)

	for _, k := range sortedKeys(r.dimensions) {
		event = event.Str(k, r.dimensions[k])
	}

	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		event = event.Float64(name, r.metrics[name].Value)
	}

	for k, v := range r.properties {
		event = event.Interface(k, v)
	}

	event.Msg("Metrics")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
