// Copyright 2018 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcte/pkg/sql/opt"
	"github.com/cockroachdb/optcte/pkg/sql/opt/memo"
	"github.com/cockroachdb/optcte/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/redact"
)

// EnforcementType describes how a required physical property is obtained for
// an expression.
type EnforcementType uint8

const (
	// EnforceUnnecessary means that the expression already provides the
	// property.
	EnforceUnnecessary EnforcementType = iota

	// EnforceRequired means that an enforcer must be added on top of the
	// expression.
	EnforceRequired

	// EnforceProhibited means that the property cannot be provided by the
	// expression or by an enforcer on top of it.
	EnforceProhibited
)

var enforcementTypeNames = [...]string{
	EnforceUnnecessary: "unnecessary",
	EnforceRequired:    "required",
	EnforceProhibited:  "prohibited",
}

// SafeFormat implements the redact.SafeFormatter interface.
func (t EnforcementType) SafeFormat(w redact.SafePrinter, _ rune) {
	w.SafeString(redact.SafeString(enforcementTypeNames[t]))
}

func (t EnforcementType) String() string {
	return redact.StringWithoutMarkers(t)
}

// ParallelUnionAll describes the physical properties of a UNION ALL whose
// inputs run in parallel. Every input is required to be strictly hashed on
// its columns, in the order of the output columns, with nulls colocated, so
// that matching rows of all inputs end up on the same node.
type ParallelUnionAll struct {
	Union *memo.UnionAllExpr

	// children holds the distribution required of each input.
	children []physical.Distribution
}

// NewParallelUnionAll builds the distributions for the given UNION ALL. It
// panics if the union is not parallel.
func NewParallelUnionAll(union *memo.UnionAllExpr) *ParallelUnionAll {
	if !union.Parallel {
		panic(errors.AssertionFailedf("union-all is not parallel"))
	}
	return &ParallelUnionAll{
		Union: union,
		children: physical.HashedDistributions(
			union.OutCols, []opt.ColList{union.LeftCols, union.RightCols},
		),
	}
}

// ChildCount returns the number of inputs of the union.
func (p *ParallelUnionAll) ChildCount() int {
	return len(p.children)
}

// BuildChildDistribution returns the distribution required of the nth input.
// It does not depend on the distribution required of the union itself.
func (p *ParallelUnionAll) BuildChildDistribution(
	required *physical.Distribution, nth int,
) *physical.Distribution {
	if nth >= len(p.children) {
		panic(errors.AssertionFailedf("union-all has no input %d", nth))
	}
	return &p.children[nth]
}

// DeriveDistribution returns the distribution the union provides, which is the
// distribution of its first input.
func (p *ParallelUnionAll) DeriveDistribution() *physical.Distribution {
	return &p.children[0]
}

// DistributionEnforcement returns how the required distribution is obtained.
// The inputs are always redistributed, so an enforcer is always required.
func (p *ParallelUnionAll) DistributionEnforcement(
	required *physical.Distribution,
) EnforcementType {
	return EnforceRequired
}

// PassThroughStats returns false: the statistics of a parallel union are
// not those of its inputs.
func (p *ParallelUnionAll) PassThroughStats() bool {
	return false
}
