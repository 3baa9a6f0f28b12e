// Copyright 2016 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

/*
Package metric provides optimizer metrics (a.k.a. transient stats) backed by
Prometheus collectors.

Adding a new metric

First, create a Registry. Next, call methods such as Counter() and Gauge() on
the Registry to register the metric. For example:

	m := &Metrics{
		...
		Derivations: reg.Counter(metric.Metadata{
			Name: "sql.opt.cte.stats_derivations",
			Help: "Number of statistics derivations on CTE producers",
		}),
		...
	}

The metric can then be updated as follows:

	m.Derivations.Inc(1)

Every registered metric is exported under its name with dots replaced by
underscores, and the Registry can be handed to any Prometheus scraper through
its Gatherer method.
*/
package metric
