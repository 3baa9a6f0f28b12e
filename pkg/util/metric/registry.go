// Copyright 2015 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package metric

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcte/pkg/util/syncutil"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Metadata holds metadata about a metric.
type Metadata struct {
	Name string
	Help string
}

// exportedName converts a dotted metric name into a Prometheus name.
func (m Metadata) exportedName() string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(m.Name)
}

// Counter is a monotonically increasing metric.
type Counter struct {
	Metadata
	c prometheus.Counter
}

// Inc increments the counter by the given amount.
func (c *Counter) Inc(v int64) {
	if v < 0 {
		panic(errors.AssertionFailedf("counter %s cannot decrease by %d", c.Name, v))
	}
	c.c.Add(float64(v))
}

// Count returns the current value of the counter.
func (c *Counter) Count() int64 {
	var m dto.Metric
	if err := c.c.Write(&m); err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "reading counter %s", c.Name))
	}
	return int64(m.GetCounter().GetValue())
}

// Gauge is a metric that can go up and down.
type Gauge struct {
	Metadata
	g prometheus.Gauge
}

// Update sets the gauge's value.
func (g *Gauge) Update(v int64) {
	g.g.Set(float64(v))
}

// Inc increments the gauge's value.
func (g *Gauge) Inc(v int64) {
	g.g.Add(float64(v))
}

// Value returns the gauge's current value.
func (g *Gauge) Value() int64 {
	var m dto.Metric
	if err := g.g.Write(&m); err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "reading gauge %s", g.Name))
	}
	return int64(m.GetGauge().GetValue())
}

// A Registry is a list of metrics. It provides a simple way of iterating over
// them and of exporting them to Prometheus.
type Registry struct {
	mu struct {
		syncutil.Mutex
		names map[string]struct{}
	}
	prom *prometheus.Registry
}

// NewRegistry creates a new Registry.
func NewRegistry() *Registry {
	r := &Registry{prom: prometheus.NewRegistry()}
	r.mu.names = make(map[string]struct{})
	return r
}

func (r *Registry) register(md Metadata, c prometheus.Collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.mu.names[md.Name]; ok {
		panic(errors.AssertionFailedf("metric %s already registered", md.Name))
	}
	if err := r.prom.Register(c); err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "registering metric %s", md.Name))
	}
	r.mu.names[md.Name] = struct{}{}
}

// Counter registers and returns a new Counter.
func (r *Registry) Counter(md Metadata) *Counter {
	c := &Counter{
		Metadata: md,
		c:        prometheus.NewCounter(prometheus.CounterOpts{Name: md.exportedName(), Help: md.Help}),
	}
	r.register(md, c.c)
	return c
}

// Gauge registers and returns a new Gauge.
func (r *Registry) Gauge(md Metadata) *Gauge {
	g := &Gauge{
		Metadata: md,
		g:        prometheus.NewGauge(prometheus.GaugeOpts{Name: md.exportedName(), Help: md.Help}),
	}
	r.register(md, g.g)
	return g
}

// Gatherer exposes the registry to Prometheus scrapers.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.prom
}
