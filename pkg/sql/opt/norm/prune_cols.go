// Copyright 2018 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package norm

import (
	"maps"

	"github.com/cockroachdb/optcte/pkg/sql/opt"
	"github.com/cockroachdb/optcte/pkg/sql/opt/memo"
)

// pruneScanCols constructs a new Scan operator based on the given existing
// Scan operator, but projecting only the needed columns.
func pruneScanCols(scan *memo.ScanExpr, neededCols opt.ColSet) *memo.ScanExpr {
	newCols := make(opt.ColList, 0, len(scan.Cols))
	for _, col := range scan.Cols {
		if neededCols.Contains(int(col)) {
			newCols = append(newCols, col)
		}
	}
	return &memo.ScanExpr{
		Table:          scan.Table,
		Cols:           newCols,
		RowCount:       scan.RowCount,
		DistinctCounts: maps.Clone(scan.DistinctCounts),
		NullCounts:     maps.Clone(scan.NullCounts),
	}
}

// pruneProjectCols discards the projections and passthrough columns that are
// not needed, and prunes the input down to the columns the remaining ones
// read. A projection that ends up passing through exactly its input's
// columns is eliminated.
func (p *Preprocessor) pruneProjectCols(
	prj *memo.ProjectExpr, neededCols opt.ColSet,
) memo.RelExpr {
	passthrough := prj.Passthrough.Intersection(neededCols)
	inputNeeded := passthrough.Copy()
	var projections []memo.ProjectionsItem
	for i := range prj.Projections {
		item := &prj.Projections[i]
		if !neededCols.Contains(int(item.Col)) {
			continue
		}
		projections = append(projections, memo.ProjectionsItem{
			Col:       item.Col,
			InputCols: item.InputCols.Copy(),
		})
		inputNeeded.UnionWith(item.InputCols)
	}

	input := p.prune(prj.Input, inputNeeded)
	if len(projections) == 0 && passthrough.Equals(input.OutputCols()) {
		return input
	}
	return &memo.ProjectExpr{
		Input:       input,
		Projections: projections,
		Passthrough: passthrough,
	}
}

// pruneUnionAllCols keeps only the needed output columns of a UNION ALL,
// together with the input columns that feed them.
func (p *Preprocessor) pruneUnionAllCols(
	union *memo.UnionAllExpr, neededCols opt.ColSet,
) *memo.UnionAllExpr {
	var outCols, leftCols, rightCols opt.ColList
	for i, col := range union.OutCols {
		if neededCols.Contains(int(col)) {
			outCols = append(outCols, col)
			leftCols = append(leftCols, union.LeftCols[i])
			rightCols = append(rightCols, union.RightCols[i])
		}
	}
	return &memo.UnionAllExpr{
		Left:      p.prune(union.Left, opt.ColListToSet(leftCols)),
		Right:     p.prune(union.Right, opt.ColListToSet(rightCols)),
		OutCols:   outCols,
		LeftCols:  leftCols,
		RightCols: rightCols,
		Parallel:  union.Parallel,
	}
}
