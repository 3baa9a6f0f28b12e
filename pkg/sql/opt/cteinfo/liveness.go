// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cteinfo

import (
	"github.com/cockroachdb/optcte/pkg/sql/opt"
	"github.com/cockroachdb/optcte/pkg/util"
	"github.com/cockroachdb/optcte/pkg/util/log"
)

// MarkUnusedCTEs marks every CTE that cannot be reached from the main query
// through the consumer-edge table as unused. A CTE is reachable if it is
// consumed in the main query, or in the producer of a reachable CTE.
//
// The sweep only sees the edges registered so far, so it must run after all
// consumers have been registered. CTEs marked unused stay unused, and their
// consumers no longer count towards TotalConsumerCount.
func (r *Registry) MarkUnusedCTEs() {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Every CTE starts out as a candidate for removal. A CTE is removed from
	// the candidates the first time it is reached, so cycles and self
	// references are visited only once.
	var candidates util.FastIntSet
	for id := range r.mu.entries {
		candidates.Add(int(id))
	}

	var stack []opt.WithID
	visit := func(parent Parent) {
		m := r.mu.consumers[parent]
		if m == nil {
			return
		}
		for _, id := range m.consumers() {
			if candidates.Contains(int(id)) {
				candidates.Remove(int(id))
				stack = append(stack, id)
			}
		}
	}

	visit(RootParent)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visit(ParentCTE(id))
	}

	candidates.ForEach(func(i int) {
		e := r.mu.entries[opt.WithID(i)]
		if e.used {
			e.used = false
			log.VEventf(r.ctx, 1, "CTE &%d is unreachable from the main query", e.id())
		}
	})
}
