// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/optcte/pkg/sql/opt"
	"github.com/cockroachdb/optcte/pkg/util/syncutil"
)

// ColumnLineage records, for every computed column, the input columns it was
// computed from. It is filled in by walking expressions, typically every CTE
// producer of a query once the optimizer has settled on them.
type ColumnLineage struct {
	mu struct {
		syncutil.Mutex
		used map[opt.ColumnID]opt.ColSet
	}
}

// MapComputedToUsedCols records the lineage of every column computed by a
// projection in the tree rooted at e.
func (l *ColumnLineage) MapComputedToUsedCols(e RelExpr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mu.used == nil {
		l.mu.used = make(map[opt.ColumnID]opt.ColSet)
	}
	l.mapLocked(e)
}

func (l *ColumnLineage) mapLocked(e RelExpr) {
	if prj, ok := e.(*ProjectExpr); ok {
		for i := range prj.Projections {
			item := &prj.Projections[i]
			cols := l.mu.used[item.Col]
			cols.UnionWith(item.InputCols)
			l.mu.used[item.Col] = cols
		}
	}
	for i, n := 0, e.ChildCount(); i < n; i++ {
		l.mapLocked(e.Child(i))
	}
}

// UsedCols returns the input columns the given computed column was computed
// from.
func (l *ColumnLineage) UsedCols(col opt.ColumnID) (opt.ColSet, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cols, ok := l.mu.used[col]
	return cols.Copy(), ok
}

func (l *ColumnLineage) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	cols := make([]opt.ColumnID, 0, len(l.mu.used))
	for col := range l.mu.used {
		cols = append(cols, col)
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i] < cols[j] })
	var buf strings.Builder
	for _, col := range cols {
		fmt.Fprintf(&buf, "%d <- %s\n", col, l.mu.used[col])
	}
	return buf.String()
}
