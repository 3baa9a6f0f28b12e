// Copyright 2018 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"github.com/cockroachdb/optcte/pkg/util"
)

// ColumnID uniquely identifies the usage of a column within the scope of a
// query. ColumnID 0 is reserved to mean "unknown column". Every CTE consumer
// gets its own fresh column ids, distinct from the producer's, so columns are
// identified by usage rather than by name.
type ColumnID int32

// SafeValue implements the redact.SafeValue interface.
func (ColumnID) SafeValue() {}

// ColSet efficiently stores an unordered set of column ids.
type ColSet = util.FastIntSet

// ColList is a list of column ids.
type ColList = []ColumnID

// ColMap provides a 1:1 mapping from one column id to another. It is used to
// translate the columns of a CTE consumer into the columns of its producer.
type ColMap = map[ColumnID]ColumnID

// WithID uniquely identifies a CTE (a WITH binding) within a query. Both the
// producer and all consumers of a CTE carry the same WithID.
type WithID uint64

// SafeValue implements the redact.SafeValue interface.
func (WithID) SafeValue() {}

// MakeColSet returns a set initialized with the given columns.
func MakeColSet(cols ...ColumnID) ColSet {
	var r ColSet
	for _, col := range cols {
		r.Add(int(col))
	}
	return r
}

// ColListToSet converts a column id list to a column id set.
func ColListToSet(colList ColList) ColSet {
	return MakeColSet(colList...)
}

// ColSetToList converts a column id set to a column id list.
func ColSetToList(colSet ColSet) ColList {
	colList := make(ColList, 0, colSet.Len())
	colSet.ForEach(func(i int) {
		colList = append(colList, ColumnID(i))
	})
	return colList
}

// TranslateColSet returns the set of columns in toList that correspond to the
// columns of colSetIn that appear in fromList, matching by ordinal position.
// Columns of colSetIn that are missing from fromList are ignored.
func TranslateColSet(colSetIn ColSet, fromList ColList, toList ColList) ColSet {
	var colSetOut ColSet
	for i := range fromList {
		if colSetIn.Contains(int(fromList[i])) {
			colSetOut.Add(int(toList[i]))
		}
	}
	return colSetOut
}
