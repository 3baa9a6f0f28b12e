// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cteinfo

import (
	"sort"

	"github.com/cockroachdb/optcte/pkg/sql/opt"
	"github.com/cockroachdb/redact"
)

func (r *Registry) String() string {
	return redact.StringWithoutMarkers(r)
}

// SafeFormat implements the redact.SafeFormatter interface. It prints one
// line per CTE followed by one line per consumer edge, for example:
//
//	cte &1 (used) producer-cols=(1,2) consumer-cols={10:0,11:1}
//	cte &2 (unused) producer-cols=(3) consumer-cols={}
//	edge root -> &1 count=2
func (r *Registry) SafeFormat(w redact.SafePrinter, _ rune) {
	for _, e := range r.sortedEntries() {
		used := redact.SafeString("used")
		if !e.used {
			used = "unused"
		}
		w.Printf("cte &%d (%s) producer-cols=(", e.id(), used)
		for i, col := range e.producer.OutCols {
			if i > 0 {
				w.SafeRune(',')
			}
			w.Print(col)
		}
		w.SafeString(") consumer-cols={")
		for i, cp := range e.sortedConsumerCols() {
			if i > 0 {
				w.SafeRune(',')
			}
			w.Printf("%d:%d", cp.col, redact.SafeInt(cp.pos))
		}
		w.SafeString("}\n")
	}

	r.mu.RLock()
	parents := make([]Parent, 0, len(r.mu.consumers))
	for p := range r.mu.consumers {
		parents = append(parents, p)
	}
	r.mu.RUnlock()
	sort.Slice(parents, func(i, j int) bool { return parents[i].less(parents[j]) })

	for _, parent := range parents {
		m := r.consumerMap(parent, false /* create */)
		for _, consumer := range m.consumers() {
			w.Printf("edge %s -> &%d count=%d\n",
				parent, consumer, redact.SafeInt(m.lookup(consumer).get()))
		}
	}
}

type colPos struct {
	col opt.ColumnID
	pos int
}

// sortedConsumerCols returns the recorded consumer columns, ordered by column
// id.
func (e *entry) sortedConsumerCols() []colPos {
	e.mu.Lock()
	defer e.mu.Unlock()
	res := make([]colPos, 0, len(e.mu.consumerCols))
	for col, pos := range e.mu.consumerCols {
		res = append(res, colPos{col: col, pos: pos})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].col < res[j].col })
	return res
}
