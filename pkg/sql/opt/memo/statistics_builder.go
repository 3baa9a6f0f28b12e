// Copyright 2018 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcte/pkg/sql/opt"
	"github.com/cockroachdb/optcte/pkg/sql/opt/props"
)

const (
	// This is the value used for inequality filters such as x < 1 in
	// "Access Path Selection in a Relational Database Management System"
	// by Pat Selinger et al.
	unknownFilterSelectivity = 1.0 / 3.0

	// This is an arbitrary row count used in the absence of any real statistics.
	unknownRowCount = 1000

	// UnknownDistinctCountRatio is the ratio of distinct column values to number
	// of rows, which is used in the absence of any real statistics for non-key
	// columns.
	UnknownDistinctCountRatio = 0.1

	// UnknownNullCountRatio is the ratio of null column values to number of rows
	// for nullable columns, which is used in the absence of any real statistics.
	UnknownNullCountRatio = 0.01
)

// StatisticsBuilder is responsible for building the statistics that are used
// to estimate the cost of expressions.
//
// Statistics are built lazily. The row count of an expression is computed
// the first time statistics are requested for it, and a column statistic is
// computed the first time it is requested. Both are cached in the
// expression's props.Relational, so repeated requests are cheap and requests
// for new columns extend the cached statistics in place.
//
// Because the cache is written on every request, an expression tree must not
// be handed to DeriveStatistics from more than one goroutine at a time. The
// CTE registry serializes derivation per producer for this reason.
//
// A CTE consumer nested in an expression is treated as a leaf with estimated
// statistics. Its producer's statistics are derived separately, through the
// registry, under the producer's own lock. The consumer's cached properties
// are never read or written by the builder, since they belong to whoever
// owns the consumer.
type StatisticsBuilder struct{}

// DeriveStatistics ensures that the statistics of e include the row count and
// a column statistic for every column in required, and returns them. An
// empty required set computes only the row count. Every required column must
// be an output column of e.
func (sb *StatisticsBuilder) DeriveStatistics(e RelExpr, required opt.ColSet) *props.Statistics {
	if !required.SubsetOf(e.OutputCols()) {
		panic(errors.AssertionFailedf(
			"required columns %s are not a subset of output columns %s of %s",
			required, e.OutputCols(), e.Op(),
		))
	}
	s := sb.stats(e)
	required.ForEach(func(col int) {
		sb.colStat(opt.MakeColSet(opt.ColumnID(col)), e)
	})
	return s
}

// stats returns the statistics of e with the row count filled in.
func (sb *StatisticsBuilder) stats(e RelExpr) *props.Statistics {
	if c, ok := e.(*CTEConsumerExpr); ok {
		return sb.consumerStats(c)
	}
	s := e.Relational().Statistics()
	if s.Available {
		return s
	}

	switch t := e.(type) {
	case *ScanExpr:
		s.RowCount = t.RowCount
		if s.RowCount == 0 {
			s.RowCount = unknownRowCount
		}

	case *SelectExpr:
		s.RowCount = sb.stats(t.Input).RowCount * selectivity(t)

	case *ProjectExpr:
		s.RowCount = sb.stats(t.Input).RowCount

	case *InnerJoinExpr:
		leftStats := sb.stats(t.Left)
		rightStats := sb.stats(t.Right)
		s.RowCount = leftStats.RowCount * rightStats.RowCount
		for _, eq := range t.On {
			// Use the classic estimate 1 / max(distinct(left), distinct(right))
			// for each equality.
			left := sb.colStat(opt.MakeColSet(eq.Left), t.Left)
			right := sb.colStat(opt.MakeColSet(eq.Right), t.Right)
			if d := math.Max(left.DistinctCount, right.DistinctCount); d > 0 {
				s.RowCount /= d
			}
		}

	case *UnionAllExpr:
		// This is an upper bound on the row count; with UNION ALL it is
		// also exact.
		s.RowCount = sb.stats(t.Left).RowCount + sb.stats(t.Right).RowCount

	case *WithExpr:
		s.RowCount = sb.stats(t.Main).RowCount

	case *CTEProducerExpr:
		s.RowCount = sb.stats(t.Input).RowCount

	default:
		panic(errors.AssertionFailedf("unhandled operator %s", e.Op()))
	}
	s.Available = true
	return s
}

// consumerStats returns estimated statistics for a consumer nested inside an
// expression. The result is not cached.
func (sb *StatisticsBuilder) consumerStats(c *CTEConsumerExpr) *props.Statistics {
	return &props.Statistics{Available: true, RowCount: unknownRowCount}
}

func selectivity(sel *SelectExpr) float64 {
	switch {
	case sel.Selectivity <= 0:
		return unknownFilterSelectivity
	case sel.Selectivity > 1:
		return 1
	}
	return sel.Selectivity
}

// colStat returns the column statistic for colSet, which must be non-empty
// and a subset of the output columns of e.
func (sb *StatisticsBuilder) colStat(colSet opt.ColSet, e RelExpr) *props.ColumnStatistic {
	if colSet.Empty() {
		panic(errors.AssertionFailedf("column statistics cannot be determined for empty column set"))
	}

	if c, ok := e.(*CTEConsumerExpr); ok {
		return sb.colStatConsumer(colSet, c)
	}

	s := sb.stats(e)

	// Check if the requested column statistic is already cached.
	if stat, ok := s.ColStats.Lookup(colSet); ok {
		return stat
	}

	// The statistic was not found in the cache, so calculate it based on the
	// type of expression.
	switch t := e.(type) {
	case *ScanExpr:
		return sb.colStatScan(colSet, t)

	case *SelectExpr:
		return sb.colStatSelect(colSet, t)

	case *ProjectExpr:
		return sb.colStatProject(colSet, t)

	case *InnerJoinExpr:
		return sb.colStatJoin(colSet, t)

	case *UnionAllExpr:
		return sb.colStatUnionAll(colSet, t)

	case *WithExpr:
		return sb.copyColStat(colSet, s, sb.colStat(colSet, t.Main))

	case *CTEProducerExpr:
		return sb.copyColStat(colSet, s, sb.colStat(colSet, t.Input))
	}
	panic(errors.AssertionFailedf("unhandled operator %s", e.Op()))
}

// copyColStat adds a copy of inputColStat to s under colSet.
func (sb *StatisticsBuilder) copyColStat(
	colSet opt.ColSet, s *props.Statistics, inputColStat *props.ColumnStatistic,
) *props.ColumnStatistic {
	colStat, _ := s.ColStats.Add(colSet)
	colStat.DistinctCount = inputColStat.DistinctCount
	colStat.NullCount = inputColStat.NullCount
	sb.finalizeFromRowCountAndDistinctCounts(colStat, s)
	return colStat
}

// +------+
// | Scan |
// +------+

func (sb *StatisticsBuilder) colStatScan(colSet opt.ColSet, scan *ScanExpr) *props.ColumnStatistic {
	s := scan.Relational().Statistics()
	colStat, _ := s.ColStats.Add(colSet)

	// Multi-column statistics are estimated from the single-column ones,
	// assuming independence. finalizeFromRowCountAndDistinctCounts caps the
	// result at the row count.
	colStat.DistinctCount = 1
	nullFraction := 1.0
	colSet.ForEach(func(i int) {
		col := opt.ColumnID(i)
		distinct, ok := scan.DistinctCounts[col]
		if !ok {
			distinct = s.RowCount * UnknownDistinctCountRatio
		}
		nulls, ok := scan.NullCounts[col]
		if !ok {
			nulls = s.RowCount * UnknownNullCountRatio
		}
		colStat.DistinctCount *= distinct
		if s.RowCount > 0 {
			nullFraction *= nulls / s.RowCount
		} else {
			nullFraction = 0
		}
	})
	colStat.NullCount = nullFraction * s.RowCount
	sb.finalizeFromRowCountAndDistinctCounts(colStat, s)
	return colStat
}

// +--------+
// | Select |
// +--------+

func (sb *StatisticsBuilder) colStatSelect(
	colSet opt.ColSet, sel *SelectExpr,
) *props.ColumnStatistic {
	s := sel.Relational().Statistics()
	inputColStat := sb.colStat(colSet, sel.Input)

	colStat, _ := s.ColStats.Add(colSet)
	colStat.DistinctCount = inputColStat.DistinctCount
	colStat.NullCount = inputColStat.NullCount * selectivity(sel)
	sb.finalizeFromRowCountAndDistinctCounts(colStat, s)
	return colStat
}

// +---------+
// | Project |
// +---------+

func (sb *StatisticsBuilder) colStatProject(
	colSet opt.ColSet, prj *ProjectExpr,
) *props.ColumnStatistic {
	s := prj.Relational().Statistics()

	// Columns may be passed through from the input, or they may be
	// synthesized by the projection operation. We assume that the statistics
	// of the synthesized columns are the same as the statistics of their input
	// columns. For example, the distinct count of (x + 2) is the same as the
	// distinct count of x.
	reqInputCols := colSet.Intersection(prj.Passthrough)
	constant := false
	for i := range prj.Projections {
		item := &prj.Projections[i]
		if colSet.Contains(int(item.Col)) {
			if item.InputCols.Empty() {
				constant = true
			}
			reqInputCols.UnionWith(item.InputCols)
		}
	}

	colStat, _ := s.ColStats.Add(colSet)
	if !reqInputCols.Empty() {
		inputColStat := sb.colStat(reqInputCols, prj.Input)
		colStat.DistinctCount = inputColStat.DistinctCount
		colStat.NullCount = inputColStat.NullCount
	} else {
		colStat.DistinctCount = 1
		colStat.NullCount = 0
	}
	if constant {
		colStat.NullCount = 0
	}
	sb.finalizeFromRowCountAndDistinctCounts(colStat, s)
	return colStat
}

// +------+
// | Join |
// +------+

func (sb *StatisticsBuilder) colStatJoin(
	colSet opt.ColSet, join *InnerJoinExpr,
) *props.ColumnStatistic {
	s := join.Relational().Statistics()
	leftCols := colSet.Intersection(join.Left.OutputCols())
	rightCols := colSet.Intersection(join.Right.OutputCols())

	distinct, nullFraction := 1.0, 1.0
	for i, cols := range []opt.ColSet{leftCols, rightCols} {
		if cols.Empty() {
			continue
		}
		child := join.Child(i)
		childColStat := sb.colStat(cols, child)
		distinct *= childColStat.DistinctCount
		if childRows := sb.stats(child).RowCount; childRows > 0 {
			nullFraction *= childColStat.NullCount / childRows
		} else {
			nullFraction = 0
		}
	}

	colStat, _ := s.ColStats.Add(colSet)
	colStat.DistinctCount = distinct
	colStat.NullCount = nullFraction * s.RowCount
	sb.finalizeFromRowCountAndDistinctCounts(colStat, s)
	return colStat
}

// +-----------+
// | Union All |
// +-----------+

func (sb *StatisticsBuilder) colStatUnionAll(
	colSet opt.ColSet, union *UnionAllExpr,
) *props.ColumnStatistic {
	s := union.Relational().Statistics()
	leftCols := opt.TranslateColSet(colSet, union.OutCols, union.LeftCols)
	rightCols := opt.TranslateColSet(colSet, union.OutCols, union.RightCols)
	leftColStat := sb.colStat(leftCols, union.Left)
	rightColStat := sb.colStat(rightCols, union.Right)

	// This is an upper bound on the distinct count. It's likely that there is
	// some overlap between the two sets, but not full overlap.
	colStat, _ := s.ColStats.Add(colSet)
	colStat.DistinctCount = leftColStat.DistinctCount + rightColStat.DistinctCount
	colStat.NullCount = leftColStat.NullCount + rightColStat.NullCount
	sb.finalizeFromRowCountAndDistinctCounts(colStat, s)
	return colStat
}

// +--------------+
// | CTE Consumer |
// +--------------+

func (sb *StatisticsBuilder) colStatConsumer(
	colSet opt.ColSet, c *CTEConsumerExpr,
) *props.ColumnStatistic {
	s := sb.consumerStats(c)
	colStat := &props.ColumnStatistic{
		Cols:          colSet,
		DistinctCount: s.RowCount * UnknownDistinctCountRatio,
		NullCount:     s.RowCount * UnknownNullCountRatio,
	}
	sb.finalizeFromRowCountAndDistinctCounts(colStat, s)
	return colStat
}

// finalizeFromRowCountAndDistinctCounts ensures that the distinct and null
// counts are consistent with the row count.
func (sb *StatisticsBuilder) finalizeFromRowCountAndDistinctCounts(
	colStat *props.ColumnStatistic, s *props.Statistics,
) {
	// The distinct and null counts should be no larger than the row count.
	colStat.DistinctCount = math.Min(colStat.DistinctCount, s.RowCount)
	colStat.NullCount = math.Min(colStat.NullCount, s.RowCount)

	// A non-empty relation has at least one distinct value.
	if colStat.DistinctCount < 1 && s.RowCount >= 1 {
		colStat.DistinctCount = 1
	}
}
