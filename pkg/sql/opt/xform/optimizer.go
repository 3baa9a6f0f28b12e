// Copyright 2018 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/optcte/pkg/sql/opt"
	"github.com/cockroachdb/optcte/pkg/sql/opt/cteinfo"
	"github.com/cockroachdb/optcte/pkg/sql/opt/memo"
	"github.com/cockroachdb/optcte/pkg/sql/opt/norm"
	"github.com/cockroachdb/optcte/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/optcte/pkg/util/log"
	"github.com/cockroachdb/optcte/pkg/util/metric"
	"golang.org/x/sync/errgroup"
)

// Optimizer runs the CTE bookkeeping of a single query. It owns a
// cteinfo.Registry and drives it through the three phases the registry
// expects:
//
//  1. Preprocess walks the query on the calling goroutine, registering every
//     producer and every consumer edge.
//  2. Search derives the statistics of every consumer from its producer, on
//     a pool of worker goroutines.
//  3. Finish sweeps unreachable CTEs and builds the Result.
//
// Optimize runs all three. An Optimizer is not safe for concurrent use, but
// may be reused for another query by calling Init again.
type Optimizer struct {
	settings Settings
	metrics  *Metrics

	pp  norm.Preprocessor
	sb  memo.StatisticsBuilder
	reg *cteinfo.Registry

	logEvery log.EveryN
	state    optState
}

// Result is the outcome of an optimizer session.
type Result struct {
	// Root is the preprocessed main query. Its producers are the ones held by
	// the registry, and every consumer in it, including those nested in
	// producers, carries the statistics derived from its producer.
	Root memo.RelExpr

	// Required lists every registered CTE as an optional producer.
	Required *physical.CTEReq

	// Producers are the producers of the CTEs that are still used, ordered by
	// id.
	Producers []*memo.CTEProducerExpr

	// ConsumerCounts is the number of consumers of each used CTE.
	ConsumerCounts map[opt.WithID]int

	// InlineCandidates are the used CTEs with a single consumer, if inlining
	// is enabled. They are only reported; nothing is inlined.
	InlineCandidates []opt.WithID

	// ParallelUnions describes the distributions of every parallel UNION ALL
	// in the query and in the producers.
	ParallelUnions []*ParallelUnionAll

	// Lineage maps the computed columns of the query and the producers to the
	// columns they were computed from.
	Lineage *memo.ColumnLineage
}

// Init prepares the optimizer for a new query. If metrics is nil, the session
// keeps its metrics in a private registry.
func (o *Optimizer) Init(ctx context.Context, settings Settings, metrics *Metrics) {
	if metrics == nil {
		metrics = MakeMetrics(metric.NewRegistry())
	}
	*o = Optimizer{
		settings: settings,
		metrics:  metrics,
		logEvery: log.Every(settings.LogEvery),
	}
	o.reg = cteinfo.New(ctx, &o.pp, &o.sb)
	o.reg.SetInliningEnabled(settings.EnableInlining)
	o.state.init()
}

// Registry returns the CTE registry of the current session.
func (o *Optimizer) Registry() *cteinfo.Registry {
	return o.reg
}

// Optimize runs all phases for the given query.
func (o *Optimizer) Optimize(ctx context.Context, root memo.RelExpr) (*Result, error) {
	if err := o.Preprocess(ctx, root); err != nil {
		return nil, err
	}
	if err := o.Search(ctx); err != nil {
		return nil, err
	}
	return o.Finish(ctx)
}

// Preprocess normalizes the query and registers its producers and consumer
// edges. Consumers in the main query have the root as their parent, while
// consumers in a producer have that producer's CTE as their parent. In the
// normalized query, every producer is the one owned by the registry.
func (o *Optimizer) Preprocess(ctx context.Context, root memo.RelExpr) (err error) {
	if err := o.state.advance(phaseInitialized, phasePreprocessed); err != nil {
		return err
	}
	if err := o.settings.Validate(); err != nil {
		o.state.phase = phaseFailed
		return errors.Wrap(err, "invalid optimizer settings")
	}
	defer o.catch(&err)
	ctx = logtags.AddTag(ctx, "phase", "preprocess")

	o.state.root = o.register(o.pp.Preprocess(root, root.OutputCols()), cteinfo.RootParent)

	o.metrics.Producers.Update(int64(o.reg.Len()))
	o.vEventf(ctx, 1, "registered %d CTEs with %d consumers", o.reg.Len(), len(o.state.tasks))
	return nil
}

// register walks e, which appears in parent, and returns the expression that
// replaces it. Producers are replaced by the registry's copy, and their
// children by whatever register returns for them.
func (o *Optimizer) register(e memo.RelExpr, parent cteinfo.Parent) memo.RelExpr {
	switch t := e.(type) {
	case *memo.CTEProducerExpr:
		return o.registerProducer(t)

	case *memo.CTEConsumerExpr:
		o.reg.RegisterConsumerEdge(t.ID, parent)
		o.metrics.ConsumerEdges.Inc(1)
		o.state.tasks = append(o.state.tasks, searchTask{consumer: t, parent: parent})
		return t

	case *memo.UnionAllExpr:
		if t.Parallel {
			o.state.parallelUnions = append(o.state.parallelUnions, t)
		}
	}
	for i, n := 0, e.ChildCount(); i < n; i++ {
		child := e.Child(i)
		if newChild := o.register(child, parent); newChild != child {
			e.(memo.MutableExpr).SetChild(i, newChild)
		}
	}
	return e
}

// registerProducer registers p and walks the registry's copy of its input,
// so that the consumers found there are the ones the registry owns. It
// returns the registry's copy.
func (o *Optimizer) registerProducer(p *memo.CTEProducerExpr) *memo.CTEProducerExpr {
	o.reg.AddProducer(p)
	producer := o.reg.LookupProducer(p.ID)
	producer.Input = o.register(producer.Input, cteinfo.ParentCTE(p.ID))
	return producer
}

// Search derives the statistics of every consumer found by Preprocess. Up to
// Settings.SearchWorkers consumers are handled at the same time. Search stops
// scheduling consumers when ctx is canceled or a consumer fails.
func (o *Optimizer) Search(ctx context.Context) error {
	if err := o.state.advance(phasePreprocessed, phaseSearched); err != nil {
		return err
	}
	ctx = logtags.AddTag(ctx, "phase", "search")

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.settings.SearchWorkers)
	var done atomic.Int64
	for i := range o.state.tasks {
		if gCtx.Err() != nil {
			break
		}
		i := i
		task := &o.state.tasks[i]
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = opt.CatchOptimizerError(r)
				}
			}()
			o.search(logtags.AddTag(gCtx, "consumer", i), task)
			if n := done.Add(1); o.logEvery.ShouldLog() {
				log.Infof(gCtx, "derived statistics for %d of %d consumers", n, len(o.state.tasks))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		o.state.phase = phaseFailed
		return err
	}
	if err := ctx.Err(); err != nil {
		o.state.phase = phaseFailed
		return errors.Wrap(err, "CTE search canceled")
	}
	return nil
}

// search records the columns of the task's consumer and derives its
// statistics from the producer's. The statistics are cached on the consumer.
func (o *Optimizer) search(ctx context.Context, task *searchTask) {
	c := task.consumer
	ctx = logtags.AddTag(ctx, "cte", c.ID)

	o.reg.AddConsumerColumns(c.ID, c.Cols)
	stats := o.reg.DeriveProducerStatistics(c, c.RequiredCols())
	c.Relational().Stats = *stats
	o.metrics.StatsDerivations.Inc(1)

	o.vEventf(ctx, 2, "consumer in %s: %s", task.parent, stats.String())
}

// Finish marks the CTEs that are unreachable from the main query as unused
// and builds the Result.
func (o *Optimizer) Finish(ctx context.Context) (_ *Result, err error) {
	if err := o.state.advance(phaseSearched, phaseFinished); err != nil {
		return nil, err
	}
	defer o.catch(&err)
	ctx = logtags.AddTag(ctx, "phase", "finish")

	o.reg.MarkUnusedCTEs()

	res := &Result{
		Root:           o.state.root,
		Required:       o.reg.ProducersAsOptionalRequirement(),
		ConsumerCounts: make(map[opt.WithID]int),
		Lineage:        &memo.ColumnLineage{},
	}
	var unused int64
	for _, p := range o.reg.AllProducers() {
		if !o.reg.IsUsed(p.ID) {
			unused++
			continue
		}
		res.Producers = append(res.Producers, p)
		count := o.reg.TotalConsumerCount(p.ID)
		res.ConsumerCounts[p.ID] = count
		if count == 1 && o.reg.InliningEnabled() {
			res.InlineCandidates = append(res.InlineCandidates, p.ID)
		}
	}
	o.metrics.Unused.Inc(unused)

	for _, u := range o.state.parallelUnions {
		res.ParallelUnions = append(res.ParallelUnions, NewParallelUnionAll(u))
	}

	o.reg.MapComputedToUsedCols(res.Lineage)
	res.Lineage.MapComputedToUsedCols(o.state.root)

	o.vEventf(ctx, 1, "%d CTEs used, %d unused, %d inline candidates",
		len(res.Producers), unused, len(res.InlineCandidates))
	return res, nil
}

// catch converts a panic raised by the registry into an error and fails the
// session. It must be deferred directly.
func (o *Optimizer) catch(err *error) {
	if r := recover(); r != nil {
		*err = opt.CatchOptimizerError(r)
		o.state.phase = phaseFailed
	}
}

// vEventf logs at the given level if either the session's verbosity or the
// global verbosity allows it.
func (o *Optimizer) vEventf(ctx context.Context, level log.Level, format string, args ...interface{}) {
	if level <= o.settings.Verbosity {
		log.Infof(ctx, format, args...)
		return
	}
	log.VEventf(ctx, level, format, args...)
}
