// Copyright 2018 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package props

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/optcte/pkg/sql/opt"
)

// Statistics is a collection of measurable statistics about the rows
// returned by a relational expression. It is cached on the expression's
// Relational properties and filled in lazily, one column at a time, as
// statistics for new columns are requested.
//
// Statistics are not safe for concurrent use. Callers that share an
// expression across goroutines must serialize derivation themselves.
type Statistics struct {
	// Available indicates whether the row count has been derived.
	Available bool

	// RowCount is the estimated number of rows returned by the expression.
	RowCount float64

	// ColStats contains statistics for the columns that have been requested
	// so far.
	ColStats ColStatsMap
}

// Init clears the statistics so that they can be rebuilt.
func (s *Statistics) Init() {
	*s = Statistics{}
}

// CopyTranslated returns a copy of the statistics restricted to the given
// columns, with every column renamed through colMap. colMap maps the caller's
// column ids to the column ids under which the statistics were derived.
// Columns that have no column statistic are skipped.
func (s *Statistics) CopyTranslated(colMap opt.ColMap) *Statistics {
	res := &Statistics{Available: s.Available, RowCount: s.RowCount}
	to := make(opt.ColList, 0, len(colMap))
	for col := range colMap {
		to = append(to, col)
	}
	// Add column statistics in column order so that output is deterministic.
	toSet := opt.ColListToSet(to)
	toSet.ForEach(func(i int) {
		col := opt.ColumnID(i)
		src, ok := s.ColStats.Lookup(opt.MakeColSet(colMap[col]))
		if !ok {
			return
		}
		dst, _ := res.ColStats.Add(opt.MakeColSet(col))
		dst.DistinctCount = src.DistinctCount
		dst.NullCount = src.NullCount
	})
	return res
}

func (s *Statistics) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "[rows=%s", formatFloat(s.RowCount))
	for i := 0; i < s.ColStats.Count(); i++ {
		cs := s.ColStats.Get(i)
		fmt.Fprintf(&buf, ", distinct%s=%s, null%s=%s",
			cs.Cols.String(), formatFloat(cs.DistinctCount),
			cs.Cols.String(), formatFloat(cs.NullCount))
	}
	buf.WriteByte(']')
	return buf.String()
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.9g", f)
}

// ColumnStatistic is a collection of statistics that applies to a particular
// set of columns.
type ColumnStatistic struct {
	// Cols is the set of columns whose data are summarized by this
	// ColumnStatistic struct.
	Cols opt.ColSet

	// DistinctCount is the estimated number of distinct values of this
	// set of columns for this expression.
	DistinctCount float64

	// NullCount is the estimated number of null values of this set of
	// columns for this expression.
	NullCount float64
}

// ColStatsMap stores a set of column statistics, each of which is keyed by the
// set of columns over which that statistic is defined. Statistics are kept in
// insertion order.
type ColStatsMap struct {
	stats []ColumnStatistic
	index map[string]int
}

// Count returns the number of column statistics in the map.
func (m *ColStatsMap) Count() int {
	return len(m.stats)
}

// Get returns the nth statistic in the map, by its insertion order.
func (m *ColStatsMap) Get(nth int) *ColumnStatistic {
	return &m.stats[nth]
}

// Lookup returns the column statistic indexed by the given column set, if it
// exists.
func (m *ColStatsMap) Lookup(cols opt.ColSet) (*ColumnStatistic, bool) {
	if idx, ok := m.index[cols.String()]; ok {
		return &m.stats[idx], true
	}
	return nil, false
}

// Add ensures that a ColumnStatistic over the given columns is in the map. If
// it does not yet exist in the map, then Add adds a new blank ColumnStatistic
// and returns it, along with added=true. Otherwise, Add returns the existing
// ColumnStatistic with added=false.
//
// NOTE: The returned *ColumnStatistic is only valid until the next call to
// Add.
func (m *ColStatsMap) Add(cols opt.ColSet) (_ *ColumnStatistic, added bool) {
	if cs, ok := m.Lookup(cols); ok {
		return cs, false
	}
	if m.index == nil {
		m.index = make(map[string]int)
	}
	m.index[cols.String()] = len(m.stats)
	m.stats = append(m.stats, ColumnStatistic{Cols: cols.Copy()})
	return &m.stats[len(m.stats)-1], true
}
