// Copyright 2020 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"testing"

	"github.com/cockroachdb/optcte/pkg/sql/opt"
	"github.com/cockroachdb/optcte/pkg/sql/opt/memo"
	"github.com/cockroachdb/optcte/pkg/sql/opt/props/physical"
	"github.com/stretchr/testify/require"
)

func TestParallelUnionAll(t *testing.T) {
	union := &memo.UnionAllExpr{
		Left:      &memo.CTEConsumerExpr{ID: 1, Cols: opt.ColList{3, 4}},
		Right:     &memo.CTEConsumerExpr{ID: 1, Cols: opt.ColList{5, 6}},
		OutCols:   opt.ColList{7, 8},
		LeftCols:  opt.ColList{4, 3},
		RightCols: opt.ColList{5, 6},
		Parallel:  true,
	}
	p := NewParallelUnionAll(union)
	require.Equal(t, 2, p.ChildCount())

	// Input columns are hashed in the order of the output columns.
	require.Equal(t, "strict-hashed(4,3) nulls-colocated", p.BuildChildDistribution(nil, 0).String())
	require.Equal(t, "strict-hashed(5,6) nulls-colocated", p.BuildChildDistribution(nil, 1).String())
	require.Panics(t, func() { p.BuildChildDistribution(nil, 2) })

	// The required distribution of the union does not matter.
	required := &physical.Distribution{Type: physical.SingletonDistribution}
	require.Equal(t, "strict-hashed(4,3) nulls-colocated", p.BuildChildDistribution(required, 0).String())

	derived := p.DeriveDistribution()
	require.Equal(t, "strict-hashed(4,3) nulls-colocated", derived.String())
	require.True(t, derived.Matches(&physical.Distribution{Type: physical.StrictHashedDistribution}))
	require.True(t, derived.Matches(&physical.Distribution{Type: physical.AnyDistribution}))
	require.False(t, derived.Matches(required))

	require.Equal(t, EnforceRequired, p.DistributionEnforcement(required))
	require.Equal(t, "required", p.DistributionEnforcement(nil).String())
	require.False(t, p.PassThroughStats())

	union.Parallel = false
	require.Panics(t, func() { NewParallelUnionAll(union) })
}
