// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

/*
Package cteinfo keeps track of the common table expressions (CTEs) of a query
while it is being optimized.

Every CTE has a single producer, the expression that computes its rows, and
any number of consumers that read them. A consumer may appear in the main
query or inside the producer of another CTE. The Registry owns the producers,
remembers how the columns of each consumer line up with the columns of its
producer, and counts how many times each CTE is consumed inside each parent.
From those counts it can work out which CTEs are still reachable from the
main query once rewrites have removed some of their consumers.

Optimization happens in three phases, and the Registry expects to be used
accordingly:

 1. Preprocessing, on a single goroutine: producers are registered with
    AddProducer or ReplaceProducer, and consumer edges with
    RegisterConsumerEdge.

 2. Search, on many goroutines: AddConsumerColumns, ConsumerColumnPosition
    and DeriveProducerStatistics may be called concurrently, including for
    the same CTE. Each CTE has its own lock, so work on one CTE never waits
    for work on another.

 3. Post-search, on a single goroutine: MarkUnusedCTEs, TotalConsumerCount,
    ProducersAsOptionalRequirement, AllProducers and
    ConsumerToProducerColumnMap.

Operations that are given the id of a CTE that was never registered panic
with an assertion failure. See opt.CatchOptimizerError.
*/
package cteinfo
