// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import "github.com/cockroachdb/optcte/pkg/util/metric"

var (
	metaProducers = metric.Metadata{
		Name: "sql.opt.cte.producers",
		Help: "Number of CTE producers registered by the last optimized query",
	}
	metaConsumerEdges = metric.Metadata{
		Name: "sql.opt.cte.consumer_edges",
		Help: "Number of CTE consumers registered",
	}
	metaStatsDerivations = metric.Metadata{
		Name: "sql.opt.cte.stats_derivations",
		Help: "Number of times producer statistics were derived for a CTE consumer",
	}
	metaUnused = metric.Metadata{
		Name: "sql.opt.cte.unused",
		Help: "Number of CTEs found unreachable from the main query",
	}
)

// Metrics are the metrics maintained by optimizer sessions. A single Metrics
// may be shared by any number of sessions.
type Metrics struct {
	Producers        *metric.Gauge
	ConsumerEdges    *metric.Counter
	StatsDerivations *metric.Counter
	Unused           *metric.Counter
}

// MakeMetrics registers the optimizer metrics with r.
func MakeMetrics(r *metric.Registry) *Metrics {
	return &Metrics{
		Producers:        r.Gauge(metaProducers),
		ConsumerEdges:    r.Counter(metaConsumerEdges),
		StatsDerivations: r.Counter(metaStatsDerivations),
		Unused:           r.Counter(metaUnused),
	}
}
