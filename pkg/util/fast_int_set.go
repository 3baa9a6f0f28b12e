// Copyright 2017 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package util

import (
	"bytes"
	"fmt"
	"math/bits"

	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"
)

// smallCutoff is the number of values that are stored inline.
const smallCutoff = 64

// FastIntSet keeps track of a set of non-negative integers. Values below
// smallCutoff are stored inline; larger values are stored in a bitset, so it
// is best suited to dense sets of small values such as column or CTE ids.
//
// FastIntSet is a value type: the zero value is an empty set, and assigning
// one FastIntSet to another yields an independent set. The bitset is never
// modified once it is part of a set; every modification replaces it.
type FastIntSet struct {
	small uint64
	// large holds the values >= smallCutoff. It is nil if there are none.
	large *bitset.BitSet
}

// MakeFastIntSet returns a set initialized with the given values.
func MakeFastIntSet(vals ...int) FastIntSet {
	var res FastIntSet
	for _, v := range vals {
		res.Add(v)
	}
	return res
}

func toBit(i int) uint {
	if i < 0 {
		panic(errors.AssertionFailedf("FastIntSet does not support negative value %d", i))
	}
	return uint(i)
}

// setLarge installs b as the large part of the set, dropping it if empty.
func (s *FastIntSet) setLarge(b *bitset.BitSet) {
	if b == nil || b.None() {
		s.large = nil
		return
	}
	s.large = b
}

// Add adds a value to the set. No-op if the value is already in the set.
func (s *FastIntSet) Add(i int) {
	bit := toBit(i)
	if bit < smallCutoff {
		s.small |= 1 << bit
		return
	}
	if s.large != nil && s.large.Test(bit) {
		return
	}
	var b *bitset.BitSet
	if s.large != nil {
		b = s.large.Clone()
	} else {
		b = bitset.New(bit + 1)
	}
	b.Set(bit)
	s.large = b
}

// AddRange adds values 'from' up to 'to' (inclusively) to the set.
// E.g. AddRange(1,5) adds the values 1, 2, 3, 4, 5 to the set.
// 'to' must be >= 'from'.
func (s *FastIntSet) AddRange(from, to int) {
	if to < from {
		panic(errors.AssertionFailedf("invalid range [%d, %d]", from, to))
	}
	for i := from; i <= to; i++ {
		s.Add(i)
	}
}

// Remove removes a value from the set. No-op if the value is not in the set.
func (s *FastIntSet) Remove(i int) {
	if i < 0 {
		return
	}
	if i < smallCutoff {
		s.small &^= 1 << uint(i)
		return
	}
	if s.large == nil || !s.large.Test(uint(i)) {
		return
	}
	b := s.large.Clone()
	b.Clear(uint(i))
	s.setLarge(b)
}

// Contains returns true if the set contains the value.
func (s FastIntSet) Contains(i int) bool {
	if i < 0 {
		return false
	}
	if i < smallCutoff {
		return s.small&(1<<uint(i)) != 0
	}
	return s.large != nil && s.large.Test(uint(i))
}

// Empty returns true if the set is empty.
func (s FastIntSet) Empty() bool {
	return s.small == 0 && (s.large == nil || s.large.None())
}

// Len returns the number of elements in the set.
func (s FastIntSet) Len() int {
	n := bits.OnesCount64(s.small)
	if s.large != nil {
		n += int(s.large.Count())
	}
	return n
}

// Next returns the first value in the set which is >= startVal. If there is no
// value, the second return value is false.
func (s FastIntSet) Next(startVal int) (int, bool) {
	if startVal < 0 {
		startVal = 0
	}
	if startVal < smallCutoff {
		if m := s.small >> uint(startVal); m != 0 {
			return startVal + bits.TrailingZeros64(m), true
		}
		startVal = smallCutoff
	}
	if s.large == nil {
		return 0, false
	}
	i, ok := s.large.NextSet(uint(startVal))
	return int(i), ok
}

// ForEach calls a function for each value in the set (in increasing order).
func (s FastIntSet) ForEach(f func(i int)) {
	for i, ok := s.Next(0); ok; i, ok = s.Next(i + 1) {
		f(i)
	}
}

// Ordered returns a slice with all the integers in the set, in increasing
// order.
func (s FastIntSet) Ordered() []int {
	if s.Empty() {
		return nil
	}
	result := make([]int, 0, s.Len())
	s.ForEach(func(i int) {
		result = append(result, i)
	})
	return result
}

// Copy returns a copy of s which can be modified independently. Since
// FastIntSet is a value type, this is the same as an assignment.
func (s FastIntSet) Copy() FastIntSet {
	return s
}

// UnionWith adds all the elements from rhs to this set.
func (s *FastIntSet) UnionWith(rhs FastIntSet) {
	s.small |= rhs.small
	switch {
	case rhs.large == nil:
	case s.large == nil:
		s.large = rhs.large
	default:
		s.setLarge(s.large.Union(rhs.large))
	}
}

// Union returns the union of s and rhs as a new set.
func (s FastIntSet) Union(rhs FastIntSet) FastIntSet {
	s.UnionWith(rhs)
	return s
}

// IntersectionWith removes any elements not in rhs from this set.
func (s *FastIntSet) IntersectionWith(rhs FastIntSet) {
	s.small &= rhs.small
	if s.large == nil {
		return
	}
	if rhs.large == nil {
		s.large = nil
		return
	}
	s.setLarge(s.large.Intersection(rhs.large))
}

// Intersection returns the intersection of s and rhs as a new set.
func (s FastIntSet) Intersection(rhs FastIntSet) FastIntSet {
	s.IntersectionWith(rhs)
	return s
}

// Intersects returns true if s has any elements in common with rhs.
func (s FastIntSet) Intersects(rhs FastIntSet) bool {
	if s.small&rhs.small != 0 {
		return true
	}
	if s.large == nil || rhs.large == nil {
		return false
	}
	return s.large.IntersectionCardinality(rhs.large) > 0
}

// DifferenceWith removes any elements in rhs from this set.
func (s *FastIntSet) DifferenceWith(rhs FastIntSet) {
	s.small &^= rhs.small
	if s.large == nil || rhs.large == nil {
		return
	}
	s.setLarge(s.large.Difference(rhs.large))
}

// Difference returns the elements of s that are not in rhs as a new set.
func (s FastIntSet) Difference(rhs FastIntSet) FastIntSet {
	s.DifferenceWith(rhs)
	return s
}

// Equals returns true if the two sets are identical.
func (s FastIntSet) Equals(rhs FastIntSet) bool {
	return s.Len() == rhs.Len() && s.SubsetOf(rhs)
}

// SubsetOf returns true if rhs contains all the elements in s.
func (s FastIntSet) SubsetOf(rhs FastIntSet) bool {
	if s.small&^rhs.small != 0 {
		return false
	}
	if s.large == nil {
		return true
	}
	if rhs.large == nil {
		return s.large.None()
	}
	return rhs.large.IsSuperSet(s.large)
}

// String returns a list representation of elements. Sequential runs of positive
// numbers are shown as ranges. For example, for the set {1, 2, 3, 5, 6, 10},
// the output is "(1-3,5,6,10)".
func (s FastIntSet) String() string {
	var buf bytes.Buffer
	buf.WriteByte('(')
	appendRange := func(start, end int) {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		if start == end {
			fmt.Fprintf(&buf, "%d", start)
		} else if start+1 == end {
			fmt.Fprintf(&buf, "%d,%d", start, end)
		} else {
			fmt.Fprintf(&buf, "%d-%d", start, end)
		}
	}
	rangeStart, rangeEnd := -1, -1
	s.ForEach(func(i int) {
		if rangeStart != -1 && rangeEnd == i-1 {
			rangeEnd = i
			return
		}
		if rangeStart != -1 {
			appendRange(rangeStart, rangeEnd)
		}
		rangeStart, rangeEnd = i, i
	})
	if rangeStart != -1 {
		appendRange(rangeStart, rangeEnd)
	}
	buf.WriteByte(')')
	return buf.String()
}
