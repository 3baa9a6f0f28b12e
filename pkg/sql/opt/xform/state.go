// Copyright 2018 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcte/pkg/sql/opt/cteinfo"
	"github.com/cockroachdb/optcte/pkg/sql/opt/memo"
	"github.com/cockroachdb/redact"
)

// phase is the stage an optimizer session has reached. Phases run in order,
// and each one runs exactly once.
type phase uint8

const (
	// phaseUninitialized is the zero value; Init has not been called.
	phaseUninitialized phase = iota

	// phaseInitialized is reached by Init.
	phaseInitialized

	// phasePreprocessed is reached by Preprocess: all producers and consumer
	// edges are registered.
	phasePreprocessed

	// phaseSearched is reached by Search: the statistics of every consumer
	// are derived.
	phaseSearched

	// phaseFinished is reached by Finish.
	phaseFinished

	// phaseFailed is reached when any phase returns an error. A failed
	// session must be initialized again before it can be reused.
	phaseFailed
)

var phaseNames = [...]string{
	phaseUninitialized: "uninitialized",
	phaseInitialized:   "initialized",
	phasePreprocessed:  "preprocessed",
	phaseSearched:      "searched",
	phaseFinished:      "finished",
	phaseFailed:        "failed",
}

// SafeFormat implements the redact.SafeFormatter interface.
func (p phase) SafeFormat(w redact.SafePrinter, _ rune) {
	w.SafeString(redact.SafeString(phaseNames[p]))
}

func (p phase) String() string {
	return redact.StringWithoutMarkers(p)
}

// searchTask is the work done for one consumer during the search phase.
type searchTask struct {
	consumer *memo.CTEConsumerExpr

	// parent is the scope the consumer appears in.
	parent cteinfo.Parent
}

// optState contains the state of an optimizer session between phases.
type optState struct {
	phase phase

	// root is the preprocessed main query.
	root memo.RelExpr

	// tasks has one entry per consumer found by Preprocess, in the order they
	// were found.
	tasks []searchTask

	// parallelUnions are the parallel UNION ALL expressions found by
	// Preprocess.
	parallelUnions []*memo.UnionAllExpr
}

func (o *optState) init() {
	*o = optState{phase: phaseInitialized}
}

// advance moves the session from phase from to phase to, or returns an error
// if the session is not in phase from.
func (o *optState) advance(from, to phase) error {
	if o.phase != from {
		return errors.AssertionFailedf("optimizer is %s, expected %s", o.phase, from)
	}
	o.phase = to
	return nil
}
