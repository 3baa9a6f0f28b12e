// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package physical

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcte/pkg/sql/opt"
	"github.com/cockroachdb/redact"
)

// CTEType distinguishes the two sides of a CTE obligation.
type CTEType uint8

const (
	// CTEProducer is an obligation to materialize a CTE.
	CTEProducer CTEType = iota
	// CTEConsumer is an obligation to read a materialized CTE.
	CTEConsumer
)

func (t CTEType) String() string {
	return redact.StringWithoutMarkers(t)
}

// SafeFormat implements the redact.SafeFormatter interface.
func (t CTEType) SafeFormat(w redact.SafePrinter, _ rune) {
	switch t {
	case CTEProducer:
		w.SafeString("producer")
	case CTEConsumer:
		w.SafeString("consumer")
	default:
		w.Printf("cte-type(%d)", redact.SafeUint(t))
	}
}

// CTEReqEntry is a single obligation of a CTEReq.
type CTEReqEntry struct {
	ID   opt.WithID
	Type CTEType
	// Required is false for optional obligations, which the property
	// enforcement framework may satisfy or ignore.
	Required bool
}

// CTEReq is a required physical property listing, per CTE id, whether a plan
// must (or may) produce or consume that CTE. Entries are kept sorted by id.
type CTEReq struct {
	entries []CTEReqEntry
}

// NewCTEReq returns an empty requirement.
func NewCTEReq() *CTEReq {
	return &CTEReq{}
}

func (r *CTEReq) search(id opt.WithID) int {
	return sort.Search(len(r.entries), func(i int) bool {
		return r.entries[i].ID >= id
	})
}

// Insert adds an obligation for the given id. Each id may appear at most once.
func (r *CTEReq) Insert(id opt.WithID, typ CTEType, required bool) {
	i := r.search(id)
	if i < len(r.entries) && r.entries[i].ID == id {
		panic(errors.AssertionFailedf("duplicate CTE requirement for id %d", id))
	}
	r.entries = append(r.entries, CTEReqEntry{})
	copy(r.entries[i+1:], r.entries[i:])
	r.entries[i] = CTEReqEntry{ID: id, Type: typ, Required: required}
}

// Lookup returns the obligation for the given id, if any.
func (r *CTEReq) Lookup(id opt.WithID) (CTEReqEntry, bool) {
	i := r.search(id)
	if i < len(r.entries) && r.entries[i].ID == id {
		return r.entries[i], true
	}
	return CTEReqEntry{}, false
}

// Len returns the number of obligations.
func (r *CTEReq) Len() int {
	return len(r.entries)
}

// IDs returns the ids of all obligations in increasing order.
func (r *CTEReq) IDs() []opt.WithID {
	res := make([]opt.WithID, len(r.entries))
	for i := range r.entries {
		res[i] = r.entries[i].ID
	}
	return res
}

func (r *CTEReq) String() string {
	return redact.StringWithoutMarkers(r)
}

// SafeFormat implements the redact.SafeFormatter interface. An optional
// obligation is rendered with a trailing "?", for example:
//
//	[&1:producer? &2:consumer]
func (r *CTEReq) SafeFormat(w redact.SafePrinter, _ rune) {
	w.SafeRune('[')
	for i := range r.entries {
		e := &r.entries[i]
		if i > 0 {
			w.SafeRune(' ')
		}
		w.Printf("&%d:%s", e.ID, e.Type)
		if !e.Required {
			w.SafeRune('?')
		}
	}
	w.SafeRune(']')
}
