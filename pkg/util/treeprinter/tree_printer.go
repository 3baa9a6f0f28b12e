// Copyright 2017 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package treeprinter

import (
	"fmt"
	"strings"
)

const (
	edgeLink = " │   "
	edgeMid  = " ├── "
	edgeLast = " └── "
	edgeNone = "     "
)

// Node is a handle associated with a specific position in a tree. Sample
// usage:
//
//	tp := treeprinter.New()
//	root := tp.Child("root")
//	root.Child("child-1")
//	root.Child("child-2").Child("grandchild\ngrandchild-more-info")
//	root.Child("child-3")
//
//	fmt.Print(tp.String())
//
// Output:
//
//	root
//	 ├── child-1
//	 ├── child-2
//	 │    └── grandchild
//	 │        grandchild-more-info
//	 └── child-3
//
// Children are printed in the order in which they were added.
type Node struct {
	n *node
}

type node struct {
	lines    []string
	children []*node
}

// New creates a tree printer and returns a sentinel node reference which
// should be used to add the root.
func New() Node {
	return Node{n: &node{}}
}

// Child adds a node as a child of the given node. Multi-line strings are
// printed with the continuation lines aligned under the first one; the edge
// to the node's own children starts below them.
func (n Node) Child(text string) Node {
	child := &node{lines: strings.Split(text, "\n")}
	n.n.children = append(n.n.children, child)
	return Node{n: child}
}

// Childf adds a node as a child of the given node.
func (n Node) Childf(format string, args ...interface{}) Node {
	return n.Child(fmt.Sprintf(format, args...))
}

// AddLine adds a new line to the node's text, without an edge.
func (n Node) AddLine(line string) {
	n.n.lines = append(n.n.lines, line)
}

// FormattedRows returns the formatted rows. Can only be called on the result
// of New.
func (n Node) FormattedRows() []string {
	var rows []string
	for _, root := range n.n.children {
		rows = root.format(rows, "" /* firstPrefix */, "" /* restPrefix */)
	}
	return rows
}

func (n *node) format(rows []string, firstPrefix, restPrefix string) []string {
	for i, line := range n.lines {
		if i == 0 {
			rows = append(rows, firstPrefix+line)
			continue
		}
		rows = append(rows, restPrefix+line)
	}
	for i, child := range n.children {
		if i == len(n.children)-1 {
			rows = child.format(rows, restPrefix+edgeLast, restPrefix+edgeNone)
		} else {
			rows = child.format(rows, restPrefix+edgeMid, restPrefix+edgeLink)
		}
	}
	return rows
}

func (n Node) String() string {
	var buf strings.Builder
	for _, r := range n.FormattedRows() {
		buf.WriteString(r)
		buf.WriteByte('\n')
	}
	return buf.String()
}
