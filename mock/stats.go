// Package mock holds test doubles for the bikeshare interfaces.
package mock

import (
	"strings"
	"sync"
	"time"
)

// RecordingStatter is used for testing. It records the total of every count
// and the last value of every gauge, keyed by name. It is safe for concurrent
// use.
type RecordingStatter struct {
	mu     sync.Mutex
	counts map[string]int64
	gauges map[string]float64
	tagged map[string]int64
}

// Count implements Count.
func (r *RecordingStatter) Count(name string, value int64, rate float64, tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int64)
		r.tagged = make(map[string]int64)
	}
	r.counts[name] += value
	r.tagged[key(name, tags)] += value
}

// Gauge implements Gauge.
func (r *RecordingStatter) Gauge(name string, value float64, rate float64, tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gauges == nil {
		r.gauges = make(map[string]float64)
	}
	r.gauges[name] = value
}

// Histogram implements Histogram.
func (r *RecordingStatter) Histogram(name string, value float64, rate float64, tags ...string) {}

// Set implements Set.
func (r *RecordingStatter) Set(name string, value string, rate float64, tags ...string) {}

// Timing implements Timing.
func (r *RecordingStatter) Timing(name string, value time.Duration, rate float64, tags ...string) {}

// Counted returns the total counted under name, over all tags.
func (r *RecordingStatter) Counted(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[name]
}

// CountedWith returns the total counted under name with exactly these tags.
func (r *RecordingStatter) CountedWith(name string, tags ...string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tagged[key(name, tags)]
}

// Gauged returns the last gauge value recorded under name.
func (r *RecordingStatter) Gauged(name string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gauges[name]
}

func key(name string, tags []string) string {
	return name + "|" + strings.Join(tags, ",")
}
