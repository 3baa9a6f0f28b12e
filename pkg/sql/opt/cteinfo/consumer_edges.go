// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cteinfo

import (
	"sort"

	"github.com/cockroachdb/optcte/pkg/sql/opt"
	"github.com/cockroachdb/optcte/pkg/util/syncutil"
)

// consumerMap counts the consumers of each CTE within a single parent.
type consumerMap struct {
	mu struct {
		syncutil.RWMutex
		counters map[opt.WithID]*consumerCounter
	}
}

// consumerCounter is the number of times a CTE is consumed in a parent. Each
// counter has its own lock so that increments of unrelated edges never
// contend.
type consumerCounter struct {
	mu struct {
		syncutil.Mutex
		count int
	}
}

func newConsumerMap() *consumerMap {
	m := &consumerMap{}
	m.mu.counters = make(map[opt.WithID]*consumerCounter)
	return m
}

// lookup returns the counter for the given consumer, or nil.
func (m *consumerMap) lookup(consumer opt.WithID) *consumerCounter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mu.counters[consumer]
}

// register records one more reference to the given consumer.
func (m *consumerMap) register(consumer opt.WithID) {
	if c := m.lookup(consumer); c != nil {
		c.inc()
		return
	}

	m.mu.Lock()
	c, ok := m.mu.counters[consumer]
	if !ok {
		c = &consumerCounter{}
		c.mu.count = 1
		m.mu.counters[consumer] = c
	}
	m.mu.Unlock()

	if ok {
		// Another goroutine created the counter in the meantime.
		c.inc()
	}
}

// consumers returns the ids of all consumers in the map, in increasing
// order.
func (m *consumerMap) consumers() []opt.WithID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]opt.WithID, 0, len(m.mu.counters))
	for id := range m.mu.counters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (c *consumerCounter) inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.count++
}

func (c *consumerCounter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mu.count
}
