// Copyright 2017 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"fmt"

	"github.com/cockroachdb/redact"
)

// Operator describes the type of operation that a memo expression performs.
// Some operators are relational (join, select, project) and others are
// bookkeeping operators that tie CTE producers to their consumers.
type Operator uint16

const (
	// UnknownOp is not a valid operator.
	UnknownOp Operator = iota

	// ScanOp reads rows from a base table.
	ScanOp

	// SelectOp filters rows from its input.
	SelectOp

	// ProjectOp passes through a subset of its input columns and computes new
	// columns from them.
	ProjectOp

	// InnerJoinOp joins two inputs.
	InnerJoinOp

	// UnionAllOp concatenates the rows of its inputs.
	UnionAllOp

	// WithOp binds a CTE producer for the duration of its main query.
	WithOp

	// CTEProducerOp is the single computation point materializing a CTE.
	CTEProducerOp

	// CTEConsumerOp reads the output of a CTE producer.
	CTEConsumerOp

	// This should be last.
	NumOperators
)

// operatorInfo stores static information about an operator.
type operatorInfo struct {
	// name of the operator, used when printing expressions.
	name string
	// relational is true for operators that produce rows.
	relational bool
}

// operatorTab stores static information about all operators.
var operatorTab = [NumOperators]operatorInfo{
	UnknownOp:     {name: "unknown"},
	ScanOp:        {name: "scan", relational: true},
	SelectOp:      {name: "select", relational: true},
	ProjectOp:     {name: "project", relational: true},
	InnerJoinOp:   {name: "inner-join", relational: true},
	UnionAllOp:    {name: "union-all", relational: true},
	WithOp:        {name: "with", relational: true},
	CTEProducerOp: {name: "cte-producer", relational: true},
	CTEConsumerOp: {name: "cte-consumer", relational: true},
}

func (op Operator) String() string {
	if op >= NumOperators {
		return fmt.Sprintf("operator(%d)", op)
	}
	return operatorTab[op].name
}

// SafeFormat implements the redact.SafeFormatter interface.
func (op Operator) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(redact.SafeString(op.String()))
}

// IsRelational returns true if the operator produces rows.
func (op Operator) IsRelational() bool {
	return op < NumOperators && operatorTab[op].relational
}
