// Copyright 2017 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package util

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFastIntSet(t *testing.T) {
	for _, mVal := range []int{1, 8, 30, 64, 128, 500} {
		m := mVal
		t.Run(fmt.Sprintf("%d", m), func(t *testing.T) {
			t.Parallel()
			rng := rand.New(rand.NewSource(int64(m)))
			in := make([]bool, m)
			forEachRes := make([]bool, m)

			var s FastIntSet
			for i := 0; i < 1000; i++ {
				v := rng.Intn(m)
				if rng.Intn(2) == 0 {
					in[v] = true
					s.Add(v)
				} else {
					in[v] = false
					s.Remove(v)
				}
				empty := true
				count := 0
				for j := 0; j < m; j++ {
					empty = empty && !in[j]
					if in[j] {
						count++
					}
					if in[j] != s.Contains(j) {
						t.Fatalf("incorrect result for Contains(%d), expected %t", j, in[j])
					}
				}
				if empty != s.Empty() {
					t.Fatalf("incorrect result for Empty(), expected %t", empty)
				}
				if count != s.Len() {
					t.Fatalf("incorrect result for Len(), expected %d, got %d", count, s.Len())
				}
				for j := range forEachRes {
					forEachRes[j] = false
				}
				s.ForEach(func(j int) {
					forEachRes[j] = true
				})
				for j := 0; j < m; j++ {
					if in[j] != forEachRes[j] {
						t.Fatalf("incorrect ForEachResult for %d (%t, expected %t)", j, forEachRes[j], in[j])
					}
				}
				// Cross-check Ordered and Next().
				var vals []int
				for i, ok := s.Next(0); ok; i, ok = s.Next(i + 1) {
					vals = append(vals, i)
				}
				if o := s.Ordered(); !reflect.DeepEqual(vals, o) {
					t.Fatalf("set built with Next doesn't match Ordered: %v vs %v", vals, o)
				}
				s2 := s.Copy()
				if !s.Equals(s2) || !s2.Equals(s) {
					t.Fatalf("expected equality: %v, %v", s, s2)
				}
				if col, ok := s2.Next(0); ok {
					s2.Remove(col)
					if s.Equals(s2) || s2.Equals(s) {
						t.Fatalf("unexpected equality: %v, %v", s, s2)
					}
					if !s.Contains(col) {
						t.Fatalf("modifying a copy changed the original: %v", s)
					}
				}
			}
		})
	}
}

func TestFastIntSetTwoSetOps(t *testing.T) {
	a := MakeFastIntSet(1, 2, 3, 70)
	b := MakeFastIntSet(3, 4, 70, 200)

	require.Equal(t, "(1-4,70,200)", a.Union(b).String())
	require.Equal(t, "(3,70)", a.Intersection(b).String())
	require.Equal(t, "(1,2)", a.Difference(b).String())
	require.True(t, a.Intersects(b))
	require.False(t, a.Intersects(MakeFastIntSet(500)))
	require.False(t, a.SubsetOf(b))
	require.True(t, MakeFastIntSet(3, 70).SubsetOf(a))
	require.True(t, FastIntSet{}.SubsetOf(a))
	require.False(t, a.SubsetOf(FastIntSet{}))

	// The original sets are left untouched by the non-mutating variants.
	require.Equal(t, "(1-3,70)", a.String())
	require.Equal(t, "(3,4,70,200)", b.String())

	var empty FastIntSet
	empty.IntersectionWith(a)
	require.True(t, empty.Empty())
	empty.DifferenceWith(a)
	require.True(t, empty.Empty())
	empty.UnionWith(a)
	require.True(t, empty.Equals(a))
	empty.Add(1000)
	require.False(t, a.Contains(1000))
}

func TestFastIntSetString(t *testing.T) {
	testCases := []struct {
		vals []int
		exp  string
	}{
		{vals: nil, exp: "()"},
		{vals: []int{5}, exp: "(5)"},
		{vals: []int{1, 2}, exp: "(1,2)"},
		{vals: []int{1, 2, 3, 5, 6, 10}, exp: "(1-3,5,6,10)"},
		{vals: []int{0, 1, 2, 3, 64, 65, 66}, exp: "(0-3,64-66)"},
	}
	for _, tc := range testCases {
		s := MakeFastIntSet(tc.vals...)
		if str := s.String(); str != tc.exp {
			t.Errorf("expected %s, got %s", tc.exp, str)
		}
	}
}

func TestFastIntSetNegative(t *testing.T) {
	var s FastIntSet
	require.Panics(t, func() { s.Add(-1) })
	require.False(t, s.Contains(-1))
	s.Remove(-1)
	require.True(t, s.Empty())
}

func TestFastIntSetAssignment(t *testing.T) {
	for _, vals := range [][]int{{1, 2}, {100, 200}, {1, 100}} {
		a := MakeFastIntSet(vals...)
		b := a
		b.Add(3)
		b.Add(300)
		b.Remove(vals[0])
		require.Equal(t, MakeFastIntSet(vals...), a)
		require.False(t, a.Contains(3))
		require.False(t, a.Contains(300))
		require.True(t, a.Contains(vals[0]))

		c := a
		c.UnionWith(MakeFastIntSet(4, 400))
		c.IntersectionWith(MakeFastIntSet(vals[1], 4, 400))
		c.DifferenceWith(MakeFastIntSet(vals[1]))
		require.Equal(t, "(4,400)", c.String())
		require.Equal(t, MakeFastIntSet(vals...).String(), a.String())

		// Sharing the large part of another set does not tie the two together.
		var d FastIntSet
		d.UnionWith(b)
		d.Add(500)
		require.False(t, b.Contains(500))
	}

	// Removing the last large value leaves a set that equals the empty set.
	s := MakeFastIntSet(100)
	s.Remove(100)
	require.True(t, s.Empty())
	require.Equal(t, FastIntSet{}, s)
}
