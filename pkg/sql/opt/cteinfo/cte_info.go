// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cteinfo

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcte/pkg/sql/opt"
	"github.com/cockroachdb/optcte/pkg/sql/opt/memo"
	"github.com/cockroachdb/optcte/pkg/sql/opt/props"
	"github.com/cockroachdb/optcte/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/optcte/pkg/util/buildutil"
	"github.com/cockroachdb/optcte/pkg/util/log"
	"github.com/cockroachdb/optcte/pkg/util/syncutil"
	"github.com/cockroachdb/redact"
)

// Preprocessor normalizes the input of a producer before it is registered.
// See norm.Preprocessor.
type Preprocessor interface {
	// Preprocess returns a normalized copy of input that produces at least
	// outCols.
	Preprocess(input memo.RelExpr, outCols opt.ColSet) memo.RelExpr
}

// StatsDeriver derives statistics for an expression. See
// memo.StatisticsBuilder.
type StatsDeriver interface {
	// DeriveStatistics ensures that the statistics cached on e include a
	// column statistic for every column in required, and returns them.
	DeriveStatistics(e memo.RelExpr, required opt.ColSet) *props.Statistics
}

// LineageRecorder receives the producers of a query for column lineage. See
// memo.ColumnLineage.
type LineageRecorder interface {
	MapComputedToUsedCols(e memo.RelExpr)
}

// Registry tracks the producers and consumers of the CTEs of one query. See
// the package documentation for the phases in which each method may be
// called.
type Registry struct {
	ctx context.Context
	pp  Preprocessor
	sd  StatsDeriver

	mu struct {
		// The registry lock only protects the shape of the two maps. It is
		// never held while statistics are derived, or while an entry lock is
		// acquired.
		syncutil.RWMutex

		entries map[opt.WithID]*entry

		// consumers holds the consumer-edge table: for every parent, how
		// many times each CTE is consumed in it.
		consumers map[Parent]*consumerMap
	}

	// maxID is the largest id registered or handed out so far.
	maxID atomic.Uint64

	// inliningDisabled is the inverse of InliningEnabled, so that the zero
	// value enables inlining.
	inliningDisabled atomic.Bool
}

// entry holds the state of a single CTE.
type entry struct {
	// producer is owned by the entry and never changes; ReplaceProducer
	// creates a new entry instead.
	producer *memo.CTEProducerExpr

	// used is true until MarkUnusedCTEs finds that the CTE is unreachable. It
	// never goes back to true.
	used bool

	mu struct {
		syncutil.Mutex

		// consumerCols maps a consumer column to its position in the
		// producer's output columns. A column is recorded the first time it is
		// seen and never changes afterwards.
		consumerCols map[opt.ColumnID]int
	}
}

func newEntry(producer *memo.CTEProducerExpr, used bool) *entry {
	e := &entry{producer: producer, used: used}
	e.mu.consumerCols = make(map[opt.ColumnID]int)
	return e
}

func (e *entry) id() opt.WithID {
	return e.producer.ID
}

// producerCol returns the producer column at the given position.
func (e *entry) producerCol(pos int) opt.ColumnID {
	if pos >= len(e.producer.OutCols) {
		panic(errors.AssertionFailedf(
			"CTE &%d: position %d is out of range for %d producer columns",
			e.id(), pos, len(e.producer.OutCols),
		))
	}
	return e.producer.OutCols[pos]
}

// New returns an empty Registry that normalizes producers with pp and derives
// their statistics with sd. ctx is used for logging.
func New(ctx context.Context, pp Preprocessor, sd StatsDeriver) *Registry {
	r := &Registry{ctx: ctx, pp: pp, sd: sd}
	r.mu.entries = make(map[opt.WithID]*entry)
	r.mu.consumers = make(map[Parent]*consumerMap)
	return r
}

// preprocess normalizes the input of p under p's own output columns, wraps it
// in a new producer and derives its default statistics. The statistics are
// derived for no particular column, which gives expressions that need the row
// count of the whole CTE, such as a join over several consumers, a baseline.
func (r *Registry) preprocess(p *memo.CTEProducerExpr) *memo.CTEProducerExpr {
	producer := &memo.CTEProducerExpr{
		ID:      p.ID,
		Input:   r.pp.Preprocess(p.Input, opt.ColListToSet(p.OutCols)),
		OutCols: append(opt.ColList(nil), p.OutCols...),
	}
	r.sd.DeriveStatistics(producer, opt.ColSet{})
	return producer
}

// AddProducer registers the producer of a new CTE. It panics if a CTE with
// the same id is already registered.
func (r *Registry) AddProducer(p *memo.CTEProducerExpr) {
	producer := r.preprocess(p)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.mu.entries[p.ID]; ok {
		panic(errors.AssertionFailedf("CTE &%d is already registered", p.ID))
	}
	r.mu.entries[p.ID] = newEntry(producer, true /* used */)
	r.noteID(p.ID)
}

// ReplaceProducer replaces the producer of an existing CTE, typically after
// a rewrite pass. The CTE keeps its id and whether it is used, but the
// consumer columns recorded so far are discarded.
func (r *Registry) ReplaceProducer(p *memo.CTEProducerExpr) {
	producer := r.preprocess(p)

	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.mu.entries[p.ID]
	if !ok {
		panic(errors.AssertionFailedf("cannot replace unknown CTE &%d", p.ID))
	}
	r.mu.entries[p.ID] = newEntry(producer, old.used)
	log.VEventf(r.ctx, 2, "replaced producer of CTE &%d (used=%t)", p.ID, old.used)
}

// lookupEntry returns the entry for the given id, or panics.
func (r *Registry) lookupEntry(id opt.WithID) *entry {
	r.mu.RLock()
	e, ok := r.mu.entries[id]
	r.mu.RUnlock()
	if !ok {
		panic(errors.AssertionFailedf("unknown CTE &%d", id))
	}
	return e
}

// LookupProducer returns the producer of the given CTE. The producer remains
// owned by the registry and must not be modified.
func (r *Registry) LookupProducer(id opt.WithID) *memo.CTEProducerExpr {
	return r.lookupEntry(id).producer
}

// IsUsed returns false if MarkUnusedCTEs found the CTE to be unreachable
// from the main query.
func (r *Registry) IsUsed(id opt.WithID) bool {
	return r.lookupEntry(id).used
}

// Len returns the number of registered CTEs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mu.entries)
}

// NextID returns a fresh CTE id, larger than every id registered or handed
// out before. It is safe for concurrent use.
func (r *Registry) NextID() opt.WithID {
	return opt.WithID(r.maxID.Add(1))
}

// noteID makes sure that NextID never returns id.
func (r *Registry) noteID(id opt.WithID) {
	for {
		cur := r.maxID.Load()
		if uint64(id) <= cur || r.maxID.CompareAndSwap(cur, uint64(id)) {
			return
		}
	}
}

// SetInliningEnabled controls whether CTEs with a single consumer may be
// inlined by the caller. The registry itself never inlines.
func (r *Registry) SetInliningEnabled(enabled bool) {
	r.inliningDisabled.Store(!enabled)
}

// InliningEnabled returns the value set with SetInliningEnabled, which
// defaults to true.
func (r *Registry) InliningEnabled() bool {
	return !r.inliningDisabled.Load()
}

// DeriveProducerStatistics derives the statistics of the producer of the
// given consumer's CTE for the producer columns that correspond to required,
// a set of the consumer's columns. Every required column must have been
// recorded with AddConsumerColumns. The result is a snapshot of the
// producer's statistics expressed in the consumer's columns.
//
// Derivation runs under the CTE's lock, since it updates the statistics
// cached on the producer, which are shared by all consumers.
func (r *Registry) DeriveProducerStatistics(
	consumer *memo.CTEConsumerExpr, required opt.ColSet,
) *props.Statistics {
	e := r.lookupEntry(consumer.ID)

	e.mu.Lock()
	defer e.mu.Unlock()

	colMap := make(opt.ColMap, required.Len())
	var mapped opt.ColSet
	required.ForEach(func(i int) {
		col := opt.ColumnID(i)
		if pos, ok := e.mu.consumerCols[col]; ok {
			producerCol := e.producerCol(pos)
			colMap[col] = producerCol
			mapped.Add(int(producerCol))
		}
	})
	if mapped.Len() != required.Len() {
		panic(errors.AssertionFailedf(
			"CTE &%d: only %d of the %d required consumer columns %s map to producer columns",
			consumer.ID, mapped.Len(), required.Len(), redact.Safe(required.String()),
		))
	}

	stats := r.sd.DeriveStatistics(e.producer, mapped)
	return stats.CopyTranslated(colMap)
}

// AddConsumerColumns records the position of each of the given consumer
// columns, which line up with the producer's output columns. Columns that
// are already recorded keep their original position.
func (r *Registry) AddConsumerColumns(id opt.WithID, cols opt.ColList) {
	e := r.lookupEntry(id)
	if buildutil.Invariants && len(cols) > len(e.producer.OutCols) {
		panic(errors.AssertionFailedf(
			"CTE &%d: %d consumer columns for %d producer columns", id, len(cols), len(e.producer.OutCols),
		))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for pos, col := range cols {
		if _, ok := e.mu.consumerCols[col]; !ok {
			e.mu.consumerCols[col] = pos
		}
	}
}

// ConsumerColumnPosition returns the position of the given consumer column,
// or false if it was never recorded.
func (r *Registry) ConsumerColumnPosition(id opt.WithID, col opt.ColumnID) (int, bool) {
	e := r.lookupEntry(id)

	e.mu.Lock()
	defer e.mu.Unlock()
	pos, ok := e.mu.consumerCols[col]
	return pos, ok
}

// ConsumerToProducerColumnMap maps every column of cols that was recorded for
// the given CTE to the column at the same position in producerCols. Columns
// that were never recorded are left out.
func (r *Registry) ConsumerToProducerColumnMap(
	id opt.WithID, cols opt.ColSet, producerCols opt.ColList,
) opt.ColMap {
	e := r.lookupEntry(id)

	e.mu.Lock()
	defer e.mu.Unlock()
	res := make(opt.ColMap)
	cols.ForEach(func(i int) {
		col := opt.ColumnID(i)
		pos, ok := e.mu.consumerCols[col]
		if !ok {
			return
		}
		if pos >= len(producerCols) {
			panic(errors.AssertionFailedf(
				"CTE &%d: position %d of column %d is out of range for %d producer columns",
				id, pos, col, len(producerCols),
			))
		}
		res[col] = producerCols[pos]
	})
	return res
}

// consumerMap returns the consumers of the given parent. If create is true,
// an empty map is created when there is none; otherwise nil is returned.
func (r *Registry) consumerMap(parent Parent, create bool) *consumerMap {
	r.mu.RLock()
	m := r.mu.consumers[parent]
	r.mu.RUnlock()
	if m != nil || !create {
		return m
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m = r.mu.consumers[parent]; m == nil {
		m = newConsumerMap()
		r.mu.consumers[parent] = m
	}
	return m
}

// RegisterConsumerEdge records that the given CTE is consumed once more
// inside parent.
func (r *Registry) RegisterConsumerEdge(consumer opt.WithID, parent Parent) {
	r.consumerMap(parent, true /* create */).register(consumer)
}

// ConsumerCountInParent returns the number of times the given CTE is
// consumed inside parent.
func (r *Registry) ConsumerCountInParent(consumer opt.WithID, parent Parent) int {
	m := r.consumerMap(parent, false /* create */)
	if m == nil {
		return 0
	}
	c := m.lookup(consumer)
	if c == nil {
		return 0
	}
	return c.get()
}

// TotalConsumerCount returns the number of times the given CTE is consumed in
// the main query and in the producers of all CTEs that are still used.
func (r *Registry) TotalConsumerCount(id opt.WithID) int {
	count := r.ConsumerCountInParent(id, RootParent)
	for _, e := range r.sortedEntries() {
		if e.used {
			count += r.ConsumerCountInParent(id, ParentCTE(e.id()))
		}
	}
	return count
}

// sortedEntries returns a snapshot of all entries, ordered by id.
func (r *Registry) sortedEntries() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]*entry, 0, len(r.mu.entries))
	for _, e := range r.mu.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id() < entries[j].id() })
	return entries
}

// ProducersAsOptionalRequirement returns a requirement that lists every
// registered CTE as an optional producer.
func (r *Registry) ProducersAsOptionalRequirement() *physical.CTEReq {
	req := physical.NewCTEReq()
	for _, e := range r.sortedEntries() {
		req.Insert(e.id(), physical.CTEProducer, false /* required */)
	}
	return req
}

// AllProducers returns the producers of all registered CTEs, ordered by id.
// The slice belongs to the caller; the producers remain owned by the registry.
func (r *Registry) AllProducers() []*memo.CTEProducerExpr {
	entries := r.sortedEntries()
	res := make([]*memo.CTEProducerExpr, len(entries))
	for i, e := range entries {
		res[i] = e.producer
	}
	return res
}

// MapComputedToUsedCols hands every producer to the lineage recorder.
func (r *Registry) MapComputedToUsedCols(lr LineageRecorder) {
	for _, p := range r.AllProducers() {
		lr.MapComputedToUsedCols(p)
	}
}
