// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package physical

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcte/pkg/sql/opt"
	"github.com/cockroachdb/redact"
)

// DistributionType describes how rows are spread across execution units.
type DistributionType uint8

const (
	// AnyDistribution places no constraint on where rows are located.
	AnyDistribution DistributionType = iota
	// SingletonDistribution places all rows on one execution unit.
	SingletonDistribution
	// HashedDistribution places rows according to a hash of Cols.
	HashedDistribution
	// StrictHashedDistribution is a HashedDistribution that cannot be
	// satisfied by a weaker hashed layout. It is required when rows of
	// several inputs have to line up positionally, as in a parallel UNION
	// ALL.
	StrictHashedDistribution
)

var distributionTypeNames = [...]string{
	AnyDistribution:          "any",
	SingletonDistribution:    "singleton",
	HashedDistribution:       "hashed",
	StrictHashedDistribution: "strict-hashed",
}

// SafeFormat implements the redact.SafeFormatter interface.
func (t DistributionType) SafeFormat(w redact.SafePrinter, _ rune) {
	if int(t) < len(distributionTypeNames) {
		w.SafeString(redact.SafeString(distributionTypeNames[t]))
		return
	}
	w.Printf("distribution(%d)", redact.SafeUint(t))
}

func (t DistributionType) String() string {
	return redact.StringWithoutMarkers(t)
}

// Distribution is a physical property describing the location of rows.
type Distribution struct {
	Type DistributionType

	// Cols are the hash columns of a hashed distribution, in order.
	Cols opt.ColList

	// NullsColocated is true if rows with NULL hash columns are placed on
	// the same execution unit.
	NullsColocated bool
}

// Any returns true if the distribution places no constraint on rows.
func (d *Distribution) Any() bool {
	return d.Type == AnyDistribution
}

// Matches returns true if a plan that provides d satisfies the required
// distribution. A strict hashed requirement is only met by a strict hashed
// distribution, regardless of its columns; the columns are aligned by the
// operator that created the requirement.
func (d *Distribution) Matches(required *Distribution) bool {
	switch required.Type {
	case AnyDistribution:
		return true
	case StrictHashedDistribution:
		return d.Type == StrictHashedDistribution
	case HashedDistribution:
		if d.Type != HashedDistribution && d.Type != StrictHashedDistribution {
			return false
		}
		if len(d.Cols) != len(required.Cols) {
			return false
		}
		for i := range d.Cols {
			if d.Cols[i] != required.Cols[i] {
				return false
			}
		}
		return !required.NullsColocated || d.NullsColocated
	default:
		return d.Type == required.Type
	}
}

func (d *Distribution) String() string {
	return redact.StringWithoutMarkers(d)
}

// SafeFormat implements the redact.SafeFormatter interface.
func (d *Distribution) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(d.Type)
	if d.Type != HashedDistribution && d.Type != StrictHashedDistribution {
		return
	}
	w.SafeRune('(')
	for i, col := range d.Cols {
		if i > 0 {
			w.SafeRune(',')
		}
		w.Print(col)
	}
	w.SafeRune(')')
	if d.NullsColocated {
		w.SafeString(" nulls-colocated")
	}
}

// HashedDistributions builds one strict hashed distribution per input of a
// set operation. outCols are the output columns of the operation and
// inputCols[i] lists the columns of input i that feed outCols, positionally.
// Every distribution hashes the input's columns in output column order with
// NULLs colocated, so that corresponding rows of all inputs are placed on the
// same execution unit.
func HashedDistributions(outCols opt.ColList, inputCols []opt.ColList) []Distribution {
	res := make([]Distribution, len(inputCols))
	for i, cols := range inputCols {
		if len(cols) != len(outCols) {
			panic(errors.AssertionFailedf(
				"input %d has %d columns, expected %d", i, len(cols), len(outCols)))
		}
		res[i] = Distribution{
			Type:           StrictHashedDistribution,
			Cols:           append(opt.ColList(nil), cols...),
			NullsColocated: true,
		}
	}
	return res
}
