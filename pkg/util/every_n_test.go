// Copyright 2017 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package util

import (
	"testing"
	"time"
)

func TestEveryN(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	en := Every(time.Minute)
	testCases := []struct {
		t        time.Duration // time since start
		expected bool
	}{
		{0, true}, // the first attempt to log should always succeed
		{0, false},
		{59 * time.Second, false},
		{60 * time.Second, true},
		{61 * time.Second, false},
		{119 * time.Second, false},
		{120 * time.Second, true},
		{10 * time.Minute, true},
	}
	for _, tc := range testCases {
		if a, e := en.ShouldProcess(start.Add(tc.t)), tc.expected; a != e {
			t.Errorf("ShouldProcess(%v) got %v, want %v", tc.t, a, e)
		}
	}

	var zero EveryN
	for i := 0; i < 3; i++ {
		if !zero.ShouldProcess(start) {
			t.Errorf("zero EveryN should always process")
		}
	}
}
