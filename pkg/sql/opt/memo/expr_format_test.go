// Copyright 2018 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"strings"
	"testing"

	"github.com/cockroachdb/optcte/pkg/sql/opt"
	"github.com/stretchr/testify/require"
)

func TestFormatExpr(t *testing.T) {
	producer := &CTEProducerExpr{
		ID: 1,
		Input: &SelectExpr{
			Input:       makeScan("t", 100, 1, 2),
			Selectivity: 0.5,
			FilterCols:  opt.MakeColSet(2),
		},
		OutCols: opt.ColList{1, 2},
	}
	main := &UnionAllExpr{
		Left:      &CTEConsumerExpr{ID: 1, Cols: opt.ColList{3, 4}},
		Right:     &CTEConsumerExpr{ID: 1, Cols: opt.ColList{5, 6}},
		OutCols:   opt.ColList{7, 8},
		LeftCols:  opt.ColList{3, 4},
		RightCols: opt.ColList{5, 6},
		Parallel:  true,
	}
	with := &WithExpr{Binding: producer, Main: main}

	var sb StatisticsBuilder
	sb.DeriveStatistics(producer, opt.MakeColSet(1))

	expected := `
with &1
 ├── columns: (7,8)
 ├── cte-producer &1
 │    ├── columns: (1,2)
 │    ├── stats: [rows=50, distinct(1)=10, null(1)=0.5]
 │    └── select
 │         ├── columns: (1,2)
 │         ├── filter: (2) selectivity=0.5
 │         ├── stats: [rows=50, distinct(1)=10, null(1)=0.5]
 │         └── scan t
 │              ├── columns: (1,2)
 │              └── stats: [rows=100, distinct(1)=10, null(1)=1]
 └── union-all (parallel)
      ├── columns: (7,8)
      ├── left columns: (3,4)
      ├── right columns: (5,6)
      ├── cte-consumer &1
      │    └── columns: (3,4)
      └── cte-consumer &1
           └── columns: (5,6)
`
	require.Equal(t, strings.TrimLeft(expected, "\n"), FormatExpr(with, ExprFmtShowAll))

	expected = `
with &1
 ├── cte-producer &1
 │    └── select
 │         └── scan t
 └── union-all (parallel)
      ├── cte-consumer &1
      └── cte-consumer &1
`
	require.Equal(t, strings.TrimLeft(expected, "\n"), FormatExpr(with, ExprFmtHideAll))
}

func TestColumnLineage(t *testing.T) {
	prj := &ProjectExpr{
		Input: &ProjectExpr{
			Input:       makeScan("t", 10, 1, 2),
			Passthrough: opt.MakeColSet(1, 2),
			Projections: []ProjectionsItem{{Col: 3, InputCols: opt.MakeColSet(1, 2)}},
		},
		Passthrough: opt.MakeColSet(3),
		Projections: []ProjectionsItem{{Col: 4, InputCols: opt.MakeColSet(3)}, {Col: 5}},
	}

	var l ColumnLineage
	l.MapComputedToUsedCols(prj)

	cols, ok := l.UsedCols(3)
	require.True(t, ok)
	require.Equal(t, "(1,2)", cols.String())

	_, ok = l.UsedCols(1)
	require.False(t, ok)

	require.Equal(t, "3 <- (1,2)\n4 <- (3)\n5 <- ()\n", l.String())
}
