// Copyright 2018 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/optcte/pkg/sql/opt"
	"github.com/cockroachdb/optcte/pkg/util/treeprinter"
)

// ExprFmtFlags controls which properties of the expression are shown in
// formatted output.
type ExprFmtFlags int

const (
	// ExprFmtShowAll shows all properties of the expression.
	ExprFmtShowAll ExprFmtFlags = 0

	// ExprFmtHideMiscProps does not show operator details such as filters,
	// projections and join conditions.
	ExprFmtHideMiscProps ExprFmtFlags = 1 << (iota - 1)

	// ExprFmtHideStats does not show statistics in the output.
	ExprFmtHideStats

	// ExprFmtHideColumns does not show the output columns of expressions.
	ExprFmtHideColumns

	// ExprFmtHideAll shows only the basic structure of the expression.
	ExprFmtHideAll ExprFmtFlags = (1 << iota) - 1
)

// HasFlags tests whether the given flags are all set.
func (f ExprFmtFlags) HasFlags(subset ExprFmtFlags) bool {
	return f&subset == subset
}

// FormatExpr returns a string representation of the expression tree. Only
// statistics that have already been derived are shown.
func FormatExpr(e RelExpr, flags ExprFmtFlags) string {
	tp := treeprinter.New()
	formatExpr(tp, e, flags)
	return tp.String()
}

func formatExpr(tp treeprinter.Node, e RelExpr, flags ExprFmtFlags) {
	var buf strings.Builder
	buf.WriteString(e.Op().String())
	switch t := e.(type) {
	case *ScanExpr:
		fmt.Fprintf(&buf, " %s", t.Table)
	case *WithExpr:
		fmt.Fprintf(&buf, " &%d", t.Binding.ID)
	case *CTEProducerExpr:
		fmt.Fprintf(&buf, " &%d", t.ID)
	case *CTEConsumerExpr:
		fmt.Fprintf(&buf, " &%d", t.ID)
	case *UnionAllExpr:
		if t.Parallel {
			buf.WriteString(" (parallel)")
		}
	}
	child := tp.Child(buf.String())

	if !flags.HasFlags(ExprFmtHideColumns) {
		child.Childf("columns: %s", formatCols(e))
	}
	if !flags.HasFlags(ExprFmtHideMiscProps) {
		formatMiscProps(child, e)
	}
	if !flags.HasFlags(ExprFmtHideStats) {
		if s := e.Relational().Statistics(); s.Available {
			child.Childf("stats: %s", s)
		}
	}
	for i, n := 0, e.ChildCount(); i < n; i++ {
		formatExpr(child, e.Child(i), flags)
	}
}

func formatMiscProps(child treeprinter.Node, e RelExpr) {
	switch t := e.(type) {
	case *SelectExpr:
		child.Childf("filter: %s selectivity=%.9g", t.FilterCols, selectivity(t))
	case *ProjectExpr:
		for i := range t.Projections {
			item := &t.Projections[i]
			child.Childf("projection: %d <- %s", item.Col, item.InputCols)
		}
	case *InnerJoinExpr:
		for _, eq := range t.On {
			child.Childf("on: %d = %d", eq.Left, eq.Right)
		}
	case *UnionAllExpr:
		child.Childf("left columns: %s", formatList(t.LeftCols))
		child.Childf("right columns: %s", formatList(t.RightCols))
	}
}

// formatCols shows the output columns in the order in which they are
// produced, for expressions that define one.
func formatCols(e RelExpr) string {
	switch t := e.(type) {
	case *ScanExpr:
		return formatList(t.Cols)
	case *UnionAllExpr:
		return formatList(t.OutCols)
	case *CTEProducerExpr:
		return formatList(t.OutCols)
	case *CTEConsumerExpr:
		return formatList(t.Cols)
	}
	return e.OutputCols().String()
}

func formatList(cols opt.ColList) string {
	var buf strings.Builder
	buf.WriteByte('(')
	for i, col := range cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%d", col)
	}
	buf.WriteByte(')')
	return buf.String()
}
