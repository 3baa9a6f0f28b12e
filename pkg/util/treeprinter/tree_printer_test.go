// Copyright 2017 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package treeprinter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTreePrinter(t *testing.T) {
	n := New()

	r := n.Child("root")
	r.AddLine("root-extra")
	n1 := r.Childf("%d", 1)
	n1.Child("1.1")
	n12 := n1.Child("1.2")
	r.Child("2")
	n3 := r.Child("3")
	n12.Child("1.2.1")
	n12.Child("1.2.2\n1.2.2-more")
	n3.Child("3.1")

	expected := `
root
root-extra
 ├── 1
 │    ├── 1.1
 │    └── 1.2
 │         ├── 1.2.1
 │         └── 1.2.2
 │             1.2.2-more
 ├── 2
 └── 3
      └── 3.1
`
	require.Equal(t, strings.TrimLeft(expected, "\n"), n.String())
	require.Equal(t, 11, len(n.FormattedRows()))
}
