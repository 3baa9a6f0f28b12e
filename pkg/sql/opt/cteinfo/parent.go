// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cteinfo

import (
	"github.com/cockroachdb/optcte/pkg/sql/opt"
	"github.com/cockroachdb/redact"
)

// Parent identifies the scope a CTE consumer appears in: either the main
// query, or the producer of another CTE. The zero value is not a valid
// Parent.
type Parent struct {
	id   opt.WithID
	kind parentKind
}

type parentKind uint8

const (
	_ parentKind = iota
	rootParent
	cteParent
)

// RootParent is the parent of consumers that appear in the main query.
var RootParent = Parent{kind: rootParent}

// ParentCTE returns the parent of consumers that appear in the producer of
// the given CTE.
func ParentCTE(id opt.WithID) Parent {
	return Parent{id: id, kind: cteParent}
}

// IsRoot returns true if p is the main query.
func (p Parent) IsRoot() bool {
	return p.kind == rootParent
}

// CTE returns the id of the parent CTE, or false if p is not a CTE.
func (p Parent) CTE() (opt.WithID, bool) {
	return p.id, p.kind == cteParent
}

// less orders the root before all CTEs, and CTEs by id.
func (p Parent) less(other Parent) bool {
	if p.kind != other.kind {
		return p.kind < other.kind
	}
	return p.id < other.id
}

func (p Parent) String() string {
	return redact.StringWithoutMarkers(p)
}

// SafeFormat implements the redact.SafeFormatter interface.
func (p Parent) SafeFormat(w redact.SafePrinter, _ rune) {
	switch p.kind {
	case rootParent:
		w.SafeString("root")
	case cteParent:
		w.Printf("&%d", p.id)
	default:
		w.SafeString("invalid")
	}
}
