// Copyright 2018 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package props

// Relational properties describe the content and characteristics of the
// rows returned by a relational expression. Only the statistics are cached;
// output columns are computed on demand by each expression.
type Relational struct {
	// Stats is the set of statistics that apply to this relational expression.
	// See statistics.go and memo/statistics_builder.go for more details.
	Stats Statistics
}

// Statistics returns the statistics cached on the properties.
func (r *Relational) Statistics() *Statistics {
	return &r.Stats
}
