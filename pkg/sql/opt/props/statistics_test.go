// Copyright 2018 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package props_test

import (
	"testing"

	"github.com/cockroachdb/optcte/pkg/sql/opt"
	"github.com/cockroachdb/optcte/pkg/sql/opt/props"
	"github.com/stretchr/testify/require"
)

func TestColStatsMap(t *testing.T) {
	var m props.ColStatsMap
	cs, added := m.Add(opt.MakeColSet(1))
	require.True(t, added)
	cs.DistinctCount = 10

	cs, added = m.Add(opt.MakeColSet(1, 2))
	require.True(t, added)
	cs.DistinctCount = 50

	cs, added = m.Add(opt.MakeColSet(1))
	require.False(t, added)
	require.Equal(t, 10.0, cs.DistinctCount)

	require.Equal(t, 2, m.Count())
	require.True(t, m.Get(1).Cols.Equals(opt.MakeColSet(1, 2)))

	_, ok := m.Lookup(opt.MakeColSet(2))
	require.False(t, ok)
}

func TestStatisticsString(t *testing.T) {
	s := props.Statistics{Available: true, RowCount: 100}
	cs, _ := s.ColStats.Add(opt.MakeColSet(1))
	cs.DistinctCount = 10
	cs.NullCount = 1.5
	require.Equal(t, "[rows=100, distinct(1)=10, null(1)=1.5]", s.String())

	s.Init()
	require.False(t, s.Available)
	require.Equal(t, "[rows=0]", s.String())
}

func TestStatisticsCopyTranslated(t *testing.T) {
	s := props.Statistics{Available: true, RowCount: 1000}
	for col, distinct := range map[opt.ColumnID]float64{1: 10, 2: 20, 3: 30} {
		cs, _ := s.ColStats.Add(opt.MakeColSet(col))
		cs.DistinctCount = distinct
	}

	// Consumer columns 11 and 13 correspond to producer columns 1 and 3;
	// column 14 has no producer statistic and is skipped.
	res := s.CopyTranslated(opt.ColMap{13: 3, 11: 1, 14: 4})
	require.Equal(t, "[rows=1000, distinct(11)=10, null(11)=0, distinct(13)=30, null(13)=0]", res.String())

	// The copy is independent of the source.
	cs, _ := res.ColStats.Add(opt.MakeColSet(11))
	cs.DistinctCount = 99
	src, _ := s.ColStats.Lookup(opt.MakeColSet(1))
	require.Equal(t, 10.0, src.DistinctCount)
}
