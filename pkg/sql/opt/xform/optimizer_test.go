// Copyright 2018 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform_test

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcte/pkg/sql/opt"
	"github.com/cockroachdb/optcte/pkg/sql/opt/memo"
	"github.com/cockroachdb/optcte/pkg/sql/opt/testutils/ctetester"
	"github.com/cockroachdb/optcte/pkg/sql/opt/xform"
	"github.com/cockroachdb/optcte/pkg/util"
	"github.com/cockroachdb/optcte/pkg/util/log"
	"github.com/cockroachdb/optcte/pkg/util/metric"
	"github.com/stretchr/testify/require"
)

// TestOptimizer runs the testdata files of this package. The only command is:
//
//   - optimize [workers=N] [inlining=(true|false)] [format=(hide-all|...)]
//
//     Optimizes the expression described by the test input (see
//     ctetester.ParseExpr) and prints the result.
func TestOptimizer(t *testing.T) {
	defer log.Scope(t).Close(t)

	datadriven.Walk(t, "testdata", func(t *testing.T, path string) {
		datadriven.RunTest(t, path, func(t *testing.T, d *datadriven.TestData) string {
			if d.Cmd != "optimize" {
				d.Fatalf(t, "unsupported command: %s", d.Cmd)
			}
			settings := xform.DefaultSettings()
			flags := memo.ExprFmtHideMiscProps
			for _, arg := range d.CmdArgs {
				var err error
				switch arg.Key {
				case "workers":
					settings.SearchWorkers, err = strconv.Atoi(arg.Vals[0])
				case "inlining":
					settings.EnableInlining, err = strconv.ParseBool(arg.Vals[0])
				case "format":
					if arg.Vals[0] != "hide-all" {
						d.Fatalf(t, "unsupported format: %s", arg.Vals[0])
					}
					flags = memo.ExprFmtHideAll
				default:
					d.Fatalf(t, "unknown argument: %s", arg.Key)
				}
				if err != nil {
					d.Fatalf(t, "%v", err)
				}
			}

			root, err := ctetester.ParseExpr(d.Input)
			if err != nil {
				d.Fatalf(t, "%v", err)
			}
			var o xform.Optimizer
			o.Init(context.Background(), settings, nil /* metrics */)
			res, err := o.Optimize(context.Background(), root)
			if err != nil {
				return fmt.Sprintf("error: %s\n", err)
			}
			return formatResult(res, flags)
		})
	})
}

func formatResult(res *xform.Result, flags memo.ExprFmtFlags) string {
	var buf strings.Builder
	ids := func(ids []opt.WithID) {
		if len(ids) == 0 {
			buf.WriteString(" none")
		}
		for _, id := range ids {
			fmt.Fprintf(&buf, " &%d", id)
		}
		buf.WriteByte('\n')
	}

	fmt.Fprintf(&buf, "required: %s\n", res.Required)

	var producers []opt.WithID
	for _, p := range res.Producers {
		producers = append(producers, p.ID)
	}
	buf.WriteString("producers:")
	ids(producers)

	buf.WriteString("consumer counts:")
	if len(producers) == 0 {
		buf.WriteString(" none")
	}
	for _, id := range producers {
		fmt.Fprintf(&buf, " &%d=%d", id, res.ConsumerCounts[id])
	}
	buf.WriteByte('\n')

	buf.WriteString("inline candidates:")
	ids(res.InlineCandidates)

	for _, u := range res.ParallelUnions {
		fmt.Fprintf(&buf, "parallel union-all %s: %s\n", u.Union.OutputCols(), u.DeriveDistribution())
		for i := 0; i < u.ChildCount(); i++ {
			fmt.Fprintf(&buf, "  input %d: %s\n", i, u.BuildChildDistribution(nil /* required */, i))
		}
	}

	if lineage := res.Lineage.String(); lineage != "" {
		buf.WriteString("lineage:\n")
		buf.WriteString(lineage)
	}

	buf.WriteString(memo.FormatExpr(res.Root, flags))
	return buf.String()
}

func mustParse(t *testing.T, input string) memo.RelExpr {
	t.Helper()
	e, err := ctetester.ParseExpr(input)
	require.NoError(t, err)
	return e
}

func TestOptimizerPhases(t *testing.T) {
	defer log.Scope(t).Close(t)
	ctx := context.Background()

	root := mustParse(t, `
with id=1 cols=(1)
  scan a cols=(1)
  consumer id=1 cols=(2)
`)

	var o xform.Optimizer
	require.Error(t, o.Search(ctx))

	o.Init(ctx, xform.DefaultSettings(), nil /* metrics */)
	_, err := o.Finish(ctx)
	require.Error(t, err)
	require.True(t, errors.HasAssertionFailure(err))
	require.Contains(t, err.Error(), "optimizer is initialized, expected searched")

	require.NoError(t, o.Preprocess(ctx, root))
	require.Error(t, o.Preprocess(ctx, root))
	require.NoError(t, o.Search(ctx))
	res, err := o.Finish(ctx)
	require.NoError(t, err)
	require.Equal(t, map[opt.WithID]int{1: 1}, res.ConsumerCounts)
	require.Equal(t, 1, o.Registry().Len())

	// The optimizer can be reused after Init.
	o.Init(ctx, xform.DefaultSettings(), nil /* metrics */)
	require.Equal(t, 0, o.Registry().Len())
	res, err = o.Optimize(ctx, root)
	require.NoError(t, err)
	require.Len(t, res.Producers, 1)
}

func TestOptimizerFailure(t *testing.T) {
	defer log.Scope(t).Close(t)
	ctx := context.Background()

	var o xform.Optimizer
	o.Init(ctx, xform.DefaultSettings(), nil /* metrics */)
	err := o.Preprocess(ctx, mustParse(t, `
with id=1 cols=(1)
  scan a cols=(1)
  with id=1 cols=(2)
    scan b cols=(2)
    scan c cols=(3)
`))
	require.Error(t, err)
	require.True(t, errors.HasAssertionFailure(err))
	require.Contains(t, err.Error(), "CTE &1 is already registered")

	// A failed session cannot continue.
	err = o.Search(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "optimizer is failed")
}

func TestOptimizerInvalidSettings(t *testing.T) {
	defer log.Scope(t).Close(t)
	ctx := context.Background()

	root := mustParse(t, `
with id=1 cols=(1)
  scan a cols=(1)
  consumer id=1 cols=(2)
`)

	// Optimize runs in its own goroutine so that a hung search fails the test
	// instead of stalling it.
	errCh := make(chan error, 1)
	go func() {
		var o xform.Optimizer
		o.Init(ctx, xform.Settings{}, nil /* metrics */)
		_, err := o.Optimize(ctx, root)
		errCh <- err
	}()
	select {
	case err := <-errCh:
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid optimizer settings")
		require.Contains(t, err.Error(), "search_workers must be at least 1")
	case <-time.After(10 * time.Second):
		t.Fatal("Optimize did not return")
	}

	var o xform.Optimizer
	settings := xform.DefaultSettings()
	settings.LogEvery = -time.Second
	o.Init(ctx, settings, nil /* metrics */)
	require.Error(t, o.Preprocess(ctx, root))
	err := o.Search(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "optimizer is failed")
}

// TestOptimizerResultRoot checks that the producers in the optimized query are
// the ones held by the registry, so that the consumers nested in them carry
// their statistics.
func TestOptimizerResultRoot(t *testing.T) {
	defer log.Scope(t).Close(t)
	ctx := context.Background()

	input := mustParse(t, `
with id=1 cols=(1)
  scan a cols=(1) rows=10
  with id=2 cols=(2)
    select selectivity=0.5 filter=(2)
      consumer id=1 cols=(2)
    consumer id=2 cols=(3)
`)
	before := memo.FormatExpr(input, memo.ExprFmtShowAll)

	var o xform.Optimizer
	o.Init(ctx, xform.DefaultSettings(), nil /* metrics */)
	res, err := o.Optimize(ctx, input)
	require.NoError(t, err)

	outer := res.Root.(*memo.WithExpr)
	require.Same(t, o.Registry().LookupProducer(1), outer.Binding)
	inner := outer.Main.(*memo.WithExpr)
	require.Same(t, o.Registry().LookupProducer(2), inner.Binding)

	nested := inner.Binding.Input.(*memo.SelectExpr).Input.(*memo.CTEConsumerExpr)
	s := nested.Relational().Statistics()
	require.True(t, s.Available)
	require.Equal(t, 10.0, s.RowCount)
	require.Equal(t, 1, s.ColStats.Count())

	s = inner.Main.Relational().Statistics()
	require.True(t, s.Available)
	require.Equal(t, 1, s.ColStats.Count())

	// The input of Optimize is left untouched.
	require.NotSame(t, input, res.Root)
	require.Equal(t, before, memo.FormatExpr(input, memo.ExprFmtShowAll))
}

func TestOptimizerCanceled(t *testing.T) {
	defer log.Scope(t).Close(t)

	var o xform.Optimizer
	o.Init(context.Background(), xform.DefaultSettings(), nil /* metrics */)
	require.NoError(t, o.Preprocess(context.Background(), mustParse(t, `
with id=1 cols=(1)
  scan a cols=(1)
  consumer id=1 cols=(2)
`)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := o.Search(ctx)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
}

// TestOptimizerConcurrentConsumers derives the statistics of many consumers
// of the same CTEs on several workers.
func TestOptimizerConcurrentConsumers(t *testing.T) {
	defer log.Scope(t).Close(t)
	ctx := context.Background()

	numConsumers := 64
	if util.RaceEnabled {
		// The race detector slows the search down considerably.
		numConsumers = 16
	}

	// Build a left-deep tree of UNION ALLs over consumers that alternate
	// between &1 and &2.
	consumer := func(i int) *memo.CTEConsumerExpr {
		id := opt.WithID(i%2 + 1)
		col := opt.ColumnID(100 + 2*i)
		return &memo.CTEConsumerExpr{ID: id, Cols: opt.ColList{col, col + 1}}
	}
	var main memo.RelExpr = consumer(0)
	outCols := consumer(0).Cols
	for i := 1; i < numConsumers; i++ {
		right := consumer(i)
		union := &memo.UnionAllExpr{
			Left:      main,
			Right:     right,
			OutCols:   opt.ColList{opt.ColumnID(1000 + 2*i), opt.ColumnID(1001 + 2*i)},
			LeftCols:  outCols,
			RightCols: right.Cols,
		}
		main, outCols = union, union.OutCols
	}
	root := &memo.WithExpr{
		Binding: &memo.CTEProducerExpr{
			ID:      1,
			Input:   &memo.ScanExpr{Table: "a", Cols: opt.ColList{1, 2}, RowCount: 100},
			OutCols: opt.ColList{1, 2},
		},
		Main: &memo.WithExpr{
			Binding: &memo.CTEProducerExpr{
				ID:      2,
				Input:   &memo.ScanExpr{Table: "b", Cols: opt.ColList{3, 4}, RowCount: 200},
				OutCols: opt.ColList{3, 4},
			},
			Main: main,
		},
	}

	settings := xform.DefaultSettings()
	settings.SearchWorkers = 8
	reg := metric.NewRegistry()
	metrics := xform.MakeMetrics(reg)

	var o xform.Optimizer
	o.Init(ctx, settings, metrics)
	res, err := o.Optimize(ctx, root)
	require.NoError(t, err)
	require.Equal(t, map[opt.WithID]int{1: numConsumers / 2, 2: numConsumers / 2}, res.ConsumerCounts)
	require.Empty(t, res.InlineCandidates)

	// Every consumer carries the statistics of its producer.
	var check func(e memo.RelExpr)
	check = func(e memo.RelExpr) {
		if c, ok := e.(*memo.CTEConsumerExpr); ok {
			s := c.Relational().Statistics()
			require.True(t, s.Available)
			require.Equal(t, float64(100*c.ID), s.RowCount)
			require.Equal(t, 2, s.ColStats.Count())
			return
		}
		for i := 0; i < e.ChildCount(); i++ {
			check(e.Child(i))
		}
	}
	check(res.Root)

	// Each producer sees every consumer column at the position of its
	// producer column.
	for i := 0; i < numConsumers; i++ {
		c := consumer(i)
		for j, col := range c.Cols {
			pos, ok := o.Registry().ConsumerColumnPosition(c.ID, col)
			require.True(t, ok)
			require.Equal(t, j, pos)
		}
	}

	require.Equal(t, int64(2), metrics.Producers.Value())
	require.Equal(t, int64(numConsumers), metrics.ConsumerEdges.Count())
	require.Equal(t, int64(numConsumers), metrics.StatsDerivations.Count())
	require.Equal(t, int64(0), metrics.Unused.Count())
}

func TestOptimizerMetrics(t *testing.T) {
	defer log.Scope(t).Close(t)
	ctx := context.Background()

	reg := metric.NewRegistry()
	metrics := xform.MakeMetrics(reg)
	root := mustParse(t, `
with id=1 cols=(1)
  scan a cols=(1)
  with id=2 cols=(2)
    consumer id=1 cols=(2)
    scan b cols=(3)
`)

	// Sessions share the metrics.
	for i := 0; i < 2; i++ {
		var o xform.Optimizer
		o.Init(ctx, xform.DefaultSettings(), metrics)
		_, err := o.Optimize(ctx, root)
		require.NoError(t, err)
	}

	families, err := reg.Gatherer().Gather()
	require.NoError(t, err)
	values := make(map[string]float64)
	for _, f := range families {
		m := f.GetMetric()[0]
		if m.GetCounter() != nil {
			values[f.GetName()] = m.GetCounter().GetValue()
		} else {
			values[f.GetName()] = m.GetGauge().GetValue()
		}
	}
	require.Equal(t, map[string]float64{
		"sql_opt_cte_producers":         2,
		"sql_opt_cte_consumer_edges":    2,
		"sql_opt_cte_stats_derivations": 2,
		"sql_opt_cte_unused":            4,
	}, values)
}
