// Copyright 2018 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcte/pkg/sql/opt"
	"github.com/cockroachdb/optcte/pkg/sql/opt/props"
)

// RelExpr is implemented by all operators tagged as Relational. Relational
// expressions have a set of logical properties that describe the content and
// characteristics of their behavior and results.
//
// Expressions form a tree. Each expression, including the tree below a CTE
// producer, has a single owner; rewrites build new expressions instead of
// sharing subtrees.
type RelExpr interface {
	// Op returns the operator type of the expression.
	Op() opt.Operator

	// ChildCount returns the number of children of the expression.
	ChildCount() int

	// Child returns the nth child of the expression.
	Child(nth int) RelExpr

	// OutputCols returns the set of columns returned by the expression.
	OutputCols() opt.ColSet

	// Relational is the set of logical properties that describe the content
	// and characteristics of this expression's behavior and results.
	Relational() *props.Relational
}

// MutableExpr is a RelExpr whose children can be replaced. It is only used
// on trees that the caller exclusively owns.
type MutableExpr interface {
	RelExpr

	// SetChild updates the nth child of the expression to instead be the
	// given child.
	SetChild(nth int, child RelExpr)
}

// relational is embedded by every relational expression to hold its logical
// properties.
type relational struct {
	props props.Relational
}

// Relational is part of the RelExpr interface.
func (r *relational) Relational() *props.Relational {
	return &r.props
}

func badChild(op opt.Operator, nth int) RelExpr {
	panic(errors.AssertionFailedf("%s has no child %d", op, nth))
}

// ScanExpr returns the rows of a base table. The table's statistics are held
// directly on the expression.
type ScanExpr struct {
	relational

	// Table is the name of the scanned table.
	Table string

	// Cols are the columns returned by the scan.
	Cols opt.ColList

	// RowCount is the number of rows in the table, or zero if unknown.
	RowCount float64

	// DistinctCounts and NullCounts hold per-column table statistics. Columns
	// missing from the maps are estimated.
	DistinctCounts map[opt.ColumnID]float64
	NullCounts     map[opt.ColumnID]float64
}

var _ MutableExpr = &ScanExpr{}

func (e *ScanExpr) Op() opt.Operator { return opt.ScanOp }
func (e *ScanExpr) ChildCount() int { return 0 }
func (e *ScanExpr) Child(nth int) RelExpr { return badChild(e.Op(), nth) }
func (e *ScanExpr) OutputCols() opt.ColSet { return opt.ColListToSet(e.Cols) }
func (e *ScanExpr) SetChild(nth int, child RelExpr) { badChild(e.Op(), nth) }

// SelectExpr filters the rows of its input.
type SelectExpr struct {
	relational

	Input RelExpr

	// Selectivity is the estimated fraction of input rows that pass the
	// filter. A selectivity of zero means unknown; a selectivity of one means
	// the filter is always true.
	Selectivity float64

	// FilterCols are the input columns referenced by the filter.
	FilterCols opt.ColSet
}

var _ MutableExpr = &SelectExpr{}

func (e *SelectExpr) Op() opt.Operator { return opt.SelectOp }
func (e *SelectExpr) ChildCount() int { return 1 }
func (e *SelectExpr) Child(nth int) RelExpr {
	if nth == 0 {
		return e.Input
	}
	return badChild(e.Op(), nth)
}
func (e *SelectExpr) OutputCols() opt.ColSet { return e.Input.OutputCols() }
func (e *SelectExpr) SetChild(nth int, child RelExpr) {
	if nth != 0 {
		badChild(e.Op(), nth)
	}
	e.Input = child
}

// ProjectionsItem is a single computed column of a ProjectExpr.
type ProjectionsItem struct {
	// Col is the id of the computed column.
	Col opt.ColumnID

	// InputCols are the input columns the computation reads. An empty set
	// denotes a constant.
	InputCols opt.ColSet
}

// ProjectExpr passes through a subset of its input columns and synthesizes
// new computed columns.
type ProjectExpr struct {
	relational

	Input       RelExpr
	Projections []ProjectionsItem
	Passthrough opt.ColSet
}

var _ MutableExpr = &ProjectExpr{}

func (e *ProjectExpr) Op() opt.Operator { return opt.ProjectOp }
func (e *ProjectExpr) ChildCount() int { return 1 }
func (e *ProjectExpr) Child(nth int) RelExpr {
	if nth == 0 {
		return e.Input
	}
	return badChild(e.Op(), nth)
}
func (e *ProjectExpr) SetChild(nth int, child RelExpr) {
	if nth != 0 {
		badChild(e.Op(), nth)
	}
	e.Input = child
}

// OutputCols is part of the RelExpr interface.
func (e *ProjectExpr) OutputCols() opt.ColSet {
	cols := e.Passthrough.Copy()
	for i := range e.Projections {
		cols.Add(int(e.Projections[i].Col))
	}
	return cols
}

// JoinEquality is an equality condition between a left and a right column.
type JoinEquality struct {
	Left, Right opt.ColumnID
}

// InnerJoinExpr joins its inputs on a conjunction of column equalities. With
// no equalities it is a cross join.
type InnerJoinExpr struct {
	relational

	Left, Right RelExpr
	On          []JoinEquality
}

var _ MutableExpr = &InnerJoinExpr{}

func (e *InnerJoinExpr) Op() opt.Operator { return opt.InnerJoinOp }
func (e *InnerJoinExpr) ChildCount() int { return 2 }
func (e *InnerJoinExpr) Child(nth int) RelExpr {
	switch nth {
	case 0:
		return e.Left
	case 1:
		return e.Right
	}
	return badChild(e.Op(), nth)
}
func (e *InnerJoinExpr) OutputCols() opt.ColSet {
	return e.Left.OutputCols().Union(e.Right.OutputCols())
}
func (e *InnerJoinExpr) SetChild(nth int, child RelExpr) {
	switch nth {
	case 0:
		e.Left = child
	case 1:
		e.Right = child
	default:
		badChild(e.Op(), nth)
	}
}

// UnionAllExpr concatenates the rows of its inputs. OutCols[i] is fed by
// LeftCols[i] and RightCols[i].
type UnionAllExpr struct {
	relational

	Left, Right RelExpr

	OutCols   opt.ColList
	LeftCols  opt.ColList
	RightCols opt.ColList

	// Parallel is true if the inputs are executed concurrently, which
	// requires them to be hash distributed in the same way.
	Parallel bool
}

var _ MutableExpr = &UnionAllExpr{}

func (e *UnionAllExpr) Op() opt.Operator { return opt.UnionAllOp }
func (e *UnionAllExpr) ChildCount() int { return 2 }
func (e *UnionAllExpr) Child(nth int) RelExpr {
	switch nth {
	case 0:
		return e.Left
	case 1:
		return e.Right
	}
	return badChild(e.Op(), nth)
}
func (e *UnionAllExpr) OutputCols() opt.ColSet { return opt.ColListToSet(e.OutCols) }
func (e *UnionAllExpr) SetChild(nth int, child RelExpr) {
	switch nth {
	case 0:
		e.Left = child
	case 1:
		e.Right = child
	default:
		badChild(e.Op(), nth)
	}
}

// WithExpr binds a CTE for use by consumers in Main, or in the producers of
// other CTEs bound further down.
type WithExpr struct {
	relational

	Binding *CTEProducerExpr
	Main    RelExpr
}

var _ MutableExpr = &WithExpr{}

func (e *WithExpr) Op() opt.Operator { return opt.WithOp }
func (e *WithExpr) ChildCount() int { return 2 }
func (e *WithExpr) Child(nth int) RelExpr {
	switch nth {
	case 0:
		return e.Binding
	case 1:
		return e.Main
	}
	return badChild(e.Op(), nth)
}
func (e *WithExpr) OutputCols() opt.ColSet { return e.Main.OutputCols() }
func (e *WithExpr) SetChild(nth int, child RelExpr) {
	switch nth {
	case 0:
		binding, ok := child.(*CTEProducerExpr)
		if !ok {
			panic(errors.AssertionFailedf("%s cannot bind %s", e.Op(), child.Op()))
		}
		e.Binding = binding
	case 1:
		e.Main = child
	default:
		badChild(e.Op(), nth)
	}
}

// CTEProducerExpr is the single place where the result of a CTE is
// computed. OutCols are columns of Input, in the order in which consumers
// see them.
type CTEProducerExpr struct {
	relational

	ID      opt.WithID
	Input   RelExpr
	OutCols opt.ColList
}

var _ MutableExpr = &CTEProducerExpr{}

func (e *CTEProducerExpr) Op() opt.Operator { return opt.CTEProducerOp }
func (e *CTEProducerExpr) ChildCount() int { return 1 }
func (e *CTEProducerExpr) Child(nth int) RelExpr {
	if nth == 0 {
		return e.Input
	}
	return badChild(e.Op(), nth)
}
func (e *CTEProducerExpr) OutputCols() opt.ColSet { return opt.ColListToSet(e.OutCols) }
func (e *CTEProducerExpr) SetChild(nth int, child RelExpr) {
	if nth != 0 {
		badChild(e.Op(), nth)
	}
	e.Input = child
}

// CTEConsumerExpr reads the result of a CTE. Every consumer has its own
// column ids; Cols[i] corresponds to the producer's OutCols[i].
type CTEConsumerExpr struct {
	relational

	ID   opt.WithID
	Cols opt.ColList

	// NeededCols are the columns of Cols that the consumer's parent reads.
	// An empty set means all of them.
	NeededCols opt.ColSet
}

var _ MutableExpr = &CTEConsumerExpr{}

func (e *CTEConsumerExpr) Op() opt.Operator { return opt.CTEConsumerOp }
func (e *CTEConsumerExpr) ChildCount() int { return 0 }
func (e *CTEConsumerExpr) Child(nth int) RelExpr { return badChild(e.Op(), nth) }
func (e *CTEConsumerExpr) OutputCols() opt.ColSet { return opt.ColListToSet(e.Cols) }
func (e *CTEConsumerExpr) SetChild(nth int, child RelExpr) { badChild(e.Op(), nth) }

// RequiredCols returns the columns for which statistics are needed when the
// consumer is costed.
func (e *CTEConsumerExpr) RequiredCols() opt.ColSet {
	if e.NeededCols.Empty() {
		return e.OutputCols()
	}
	return e.NeededCols.Copy()
}
