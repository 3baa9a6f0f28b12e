// Copyright 2015 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package metric

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	c := r.Counter(Metadata{Name: "sql.opt.test.count", Help: "test counter"})
	g := r.Gauge(Metadata{Name: "sql.opt.test.gauge", Help: "test gauge"})

	c.Inc(2)
	c.Inc(3)
	require.Equal(t, int64(5), c.Count())
	require.Panics(t, func() { c.Inc(-1) })

	g.Update(10)
	g.Inc(-4)
	require.Equal(t, int64(6), g.Value())

	require.Panics(t, func() {
		r.Counter(Metadata{Name: "sql.opt.test.count"})
	})

	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	names := make(map[string]float64)
	for _, f := range families {
		m := f.GetMetric()[0]
		if m.GetCounter() != nil {
			names[f.GetName()] = m.GetCounter().GetValue()
		} else {
			names[f.GetName()] = m.GetGauge().GetValue()
		}
	}
	require.Equal(t, map[string]float64{
		"sql_opt_test_count": 5,
		"sql_opt_test_gauge": 6,
	}, names)
}
