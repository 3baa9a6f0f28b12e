// Copyright 2018 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package norm

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcte/pkg/sql/opt"
	"github.com/cockroachdb/optcte/pkg/sql/opt/memo"
)

// Preprocessor normalizes an expression tree before it is explored. It
// prunes columns that are not needed by the expression's consumer and
// removes operators that have become no-ops.
//
// Preprocess never modifies its input. It returns a new tree in which every
// expression is freshly allocated, so the result is exclusively owned by the
// caller and carries no derived statistics.
type Preprocessor struct{}

// Preprocess returns a normalized copy of input that produces at least the
// columns in outCols, which must be a subset of the input's output columns.
func (p *Preprocessor) Preprocess(input memo.RelExpr, outCols opt.ColSet) memo.RelExpr {
	if !outCols.SubsetOf(input.OutputCols()) {
		panic(errors.AssertionFailedf(
			"output columns %s are not produced by %s (%s)", outCols, input.Op(), input.OutputCols(),
		))
	}
	return p.prune(input, outCols)
}

// prune returns a copy of e that produces at least neededCols.
func (p *Preprocessor) prune(e memo.RelExpr, neededCols opt.ColSet) memo.RelExpr {
	switch t := e.(type) {
	case *memo.ScanExpr:
		return pruneScanCols(t, neededCols)

	case *memo.SelectExpr:
		input := p.prune(t.Input, neededCols.Union(t.FilterCols))
		if isTrueFilter(t) {
			return input
		}
		return &memo.SelectExpr{
			Input:       input,
			Selectivity: t.Selectivity,
			FilterCols:  t.FilterCols.Copy(),
		}

	case *memo.ProjectExpr:
		return p.pruneProjectCols(t, neededCols)

	case *memo.InnerJoinExpr:
		leftNeeded, rightNeeded := neededCols.Copy(), neededCols.Copy()
		for _, eq := range t.On {
			leftNeeded.Add(int(eq.Left))
			rightNeeded.Add(int(eq.Right))
		}
		leftNeeded.IntersectionWith(t.Left.OutputCols())
		rightNeeded.IntersectionWith(t.Right.OutputCols())
		return &memo.InnerJoinExpr{
			Left:  p.prune(t.Left, leftNeeded),
			Right: p.prune(t.Right, rightNeeded),
			On:    append([]memo.JoinEquality(nil), t.On...),
		}

	case *memo.UnionAllExpr:
		return p.pruneUnionAllCols(t, neededCols)

	case *memo.WithExpr:
		return &memo.WithExpr{
			Binding: p.preprocessProducer(t.Binding),
			Main:    p.prune(t.Main, neededCols),
		}

	case *memo.CTEProducerExpr:
		return p.preprocessProducer(t)

	case *memo.CTEConsumerExpr:
		// The columns of a consumer line up with the columns of its producer,
		// so they cannot be pruned. Record which ones are needed instead, on
		// top of any that were already recorded.
		needed := neededCols.Intersection(t.OutputCols())
		needed.UnionWith(t.NeededCols)
		return &memo.CTEConsumerExpr{
			ID:         t.ID,
			Cols:       append(opt.ColList(nil), t.Cols...),
			NeededCols: needed,
		}
	}
	panic(errors.AssertionFailedf("unhandled operator %s", e.Op()))
}

// preprocessProducer normalizes the input of a producer under the producer's
// own output columns and wraps it in a new producer with the same id.
func (p *Preprocessor) preprocessProducer(producer *memo.CTEProducerExpr) *memo.CTEProducerExpr {
	return &memo.CTEProducerExpr{
		ID:      producer.ID,
		Input:   p.Preprocess(producer.Input, opt.ColListToSet(producer.OutCols)),
		OutCols: append(opt.ColList(nil), producer.OutCols...),
	}
}

// isTrueFilter returns true if the filter of the given Select keeps every
// row, in which case the Select can be eliminated.
func isTrueFilter(sel *memo.SelectExpr) bool {
	return sel.Selectivity >= 1
}
