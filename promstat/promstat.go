// Package promstat implements bikeshare.Statter with Prometheus metrics, for
// writing a node-exporter textfile at the end of a batch run.
package promstat

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pilosa/bikeshare"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

var _ bikeshare.Statter = &Collector{}

// Collector turns statter calls into Prometheus metrics on its own registry.
// Names are prefixed with the namespace and dots become underscores. Tags of
// the form "key:value" become labels; the label names of a metric are fixed
// by its first use, missing labels are empty and unknown ones are dropped.
type Collector struct {
	namespace string
	reg       *prometheus.Registry

	lock       sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	labels     map[string][]string
	errs       []error
}

// NewCollector returns a Collector whose metric names start with namespace.
func NewCollector(namespace string) *Collector {
	return &Collector{
		namespace:  namespace,
		reg:        prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		labels:     make(map[string][]string),
	}
}

// Registry returns the registry the metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.reg
}

func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_", " ", "_").Replace(name)
}

func parseTags(tags []string) map[string]string {
	ret := make(map[string]string, len(tags))
	for _, t := range tags {
		kv := strings.SplitN(t, ":", 2)
		if len(kv) != 2 {
			ret[metricName(t)] = ""
			continue
		}
		ret[metricName(kv[0])] = kv[1]
	}
	return ret
}

// labelValues fixes the label names of name on first use and returns the
// values of tags in that order. Callers must hold c.lock.
func (c *Collector) labelValues(name string, tags []string) ([]string, []string) {
	parsed := parseTags(tags)
	names, ok := c.labels[name]
	if !ok {
		for k := range parsed {
			names = append(names, k)
		}
		sort.Strings(names)
		c.labels[name] = names
	}
	vals := make([]string, len(names))
	for i, n := range names {
		vals[i] = parsed[n]
	}
	return names, vals
}

func (c *Collector) register(col prometheus.Collector) {
	if err := c.reg.Register(col); err != nil {
		c.errs = append(c.errs, err)
	}
}

// Count adds value to the counter <name>_total.
func (c *Collector) Count(name string, value int64, rate float64, tags ...string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	key := metricName(name) + "_total"
	names, vals := c.labelValues(key, tags)
	vec, ok := c.counters[key]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      key,
			Help:      "Count of " + name + ".",
		}, names)
		c.counters[key] = vec
		c.register(vec)
	}
	vec.WithLabelValues(vals...).Add(float64(value))
}

func (c *Collector) gauge(key, help string, value float64, tags []string) {
	names, vals := c.labelValues(key, tags)
	vec, ok := c.gauges[key]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: c.namespace,
			Name:      key,
			Help:      help,
		}, names)
		c.gauges[key] = vec
		c.register(vec)
	}
	vec.WithLabelValues(vals...).Set(value)
}

// Gauge sets the gauge <name>.
func (c *Collector) Gauge(name string, value float64, rate float64, tags ...string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.gauge(metricName(name), "Last value of "+name+".", value, tags)
}

// Set records value as the "value" label of the gauge <name>_info.
func (c *Collector) Set(name string, value string, rate float64, tags ...string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.gauge(metricName(name)+"_info", "Values seen for "+name+".", 1, append(tags, "value:"+value))
}

func (c *Collector) observe(key, help string, value float64, tags []string) {
	names, vals := c.labelValues(key, tags)
	vec, ok := c.histograms[key]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: c.namespace,
			Name:      key,
			Help:      help,
		}, names)
		c.histograms[key] = vec
		c.register(vec)
	}
	vec.WithLabelValues(vals...).Observe(value)
}

// Histogram observes value in the histogram <name>.
func (c *Collector) Histogram(name string, value float64, rate float64, tags ...string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.observe(metricName(name), "Distribution of "+name+".", value, tags)
}

// Timing observes value in the histogram <name>_seconds.
func (c *Collector) Timing(name string, value time.Duration, rate float64, tags ...string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.observe(metricName(name)+"_seconds", "Duration of "+name+".", value.Seconds(), tags)
}

// WriteTextfile writes every metric to path in the Prometheus text format,
// atomically, for the node exporter's textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	c.lock.Lock()
	errs := c.errs
	c.lock.Unlock()
	if len(errs) > 0 {
		return errors.Wrapf(errs[0], "%d metrics could not be registered, first", len(errs))
	}
	return errors.Wrap(prometheus.WriteToTextfile(path, c.reg), "writing metrics textfile")
}
