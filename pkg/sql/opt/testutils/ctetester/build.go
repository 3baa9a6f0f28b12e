// Copyright 2019 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package ctetester

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcte/pkg/sql/opt"
	"github.com/cockroachdb/optcte/pkg/sql/opt/memo"
)

// ParseExpr builds an expression tree from its textual description. Every
// line describes one expression; its children follow on the next lines,
// indented further. For example:
//
//	with id=1 cols=(1,2)
//	  scan t cols=(1,2,3) rows=100 distinct=(1:10)
//	  union-all out=(7,8) left=(3,4) right=(5,6) parallel
//	    consumer id=1 cols=(3,4)
//	    consumer id=1 cols=(5,6) needed=(5)
//
// The operators and their arguments are:
//
//	scan <table> cols=(..) [rows=N] [distinct=(col:N,..)] [nulls=(col:N,..)]
//	select [selectivity=F] [filter=(..)]                  1 child
//	project [passthrough=(..)] [proj=(col:in|in,..)]      1 child
//	inner-join [on=(left:right,..)]                       2 children
//	union-all out=(..) left=(..) right=(..) [parallel]    2 children
//	with id=N cols=(..)                                   producer input, main
//	producer id=N cols=(..)                               1 child
//	consumer id=N cols=(..) [needed=(..)]
func ParseExpr(input string) (memo.RelExpr, error) {
	var lines []line
	for i, text := range strings.Split(input, "\n") {
		trimmed := strings.TrimLeft(text, " ")
		if strings.TrimSpace(trimmed) == "" {
			continue
		}
		lines = append(lines, line{num: i + 1, indent: len(text) - len(trimmed), text: trimmed})
	}
	if len(lines) == 0 {
		return nil, errors.New("empty expression")
	}
	p := parser{lines: lines}
	e, err := p.parse(lines[0].indent)
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.lines) {
		return nil, errors.Newf("line %d: unexpected expression after the root", p.lines[p.pos].num)
	}
	return e, nil
}

type line struct {
	num    int
	indent int
	text   string
}

type parser struct {
	lines []line
	pos   int
}

// parse parses the expression at the current line, which must have the given
// indentation, along with its children.
func (p *parser) parse(indent int) (memo.RelExpr, error) {
	l := p.lines[p.pos]
	if l.indent != indent {
		return nil, errors.Newf("line %d: expected indentation %d, found %d", l.num, indent, l.indent)
	}
	p.pos++

	fields := strings.Fields(l.text)
	op := fields[0]
	args := parseArgs(fields[1:])

	var children []memo.RelExpr
	for p.pos < len(p.lines) && p.lines[p.pos].indent > indent {
		child, err := p.parse(p.lines[p.pos].indent)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	expectChildren := func(n int) error {
		if len(children) != n {
			return errors.Newf("line %d: %s expects %d children, found %d", l.num, op, n, len(children))
		}
		return nil
	}

	var e memo.RelExpr
	var err error
	switch op {
	case "scan":
		if err = expectChildren(0); err != nil {
			break
		}
		scan := &memo.ScanExpr{
			DistinctCounts: make(map[opt.ColumnID]float64),
			NullCounts:     make(map[opt.ColumnID]float64),
		}
		if len(fields) > 1 && !strings.Contains(fields[1], "=") {
			scan.Table = fields[1]
		}
		if scan.Cols, err = args.cols("cols"); err != nil {
			break
		}
		if scan.RowCount, err = args.float("rows", 0); err != nil {
			break
		}
		if err = args.colValues("distinct", scan.DistinctCounts); err != nil {
			break
		}
		err = args.colValues("nulls", scan.NullCounts)
		e = scan

	case "select":
		if err = expectChildren(1); err != nil {
			break
		}
		sel := &memo.SelectExpr{Input: children[0]}
		if sel.Selectivity, err = args.float("selectivity", 0); err != nil {
			break
		}
		var filterCols opt.ColList
		filterCols, err = args.cols("filter")
		sel.FilterCols = opt.ColListToSet(filterCols)
		e = sel

	case "project":
		if err = expectChildren(1); err != nil {
			break
		}
		prj := &memo.ProjectExpr{Input: children[0]}
		var passthrough opt.ColList
		if passthrough, err = args.cols("passthrough"); err != nil {
			break
		}
		prj.Passthrough = opt.ColListToSet(passthrough)
		prj.Projections, err = args.projections("proj")
		e = prj

	case "inner-join":
		if err = expectChildren(2); err != nil {
			break
		}
		join := &memo.InnerJoinExpr{Left: children[0], Right: children[1]}
		join.On, err = args.equalities("on")
		e = join

	case "union-all":
		if err = expectChildren(2); err != nil {
			break
		}
		union := &memo.UnionAllExpr{Left: children[0], Right: children[1]}
		if union.OutCols, err = args.cols("out"); err != nil {
			break
		}
		if union.LeftCols, err = args.cols("left"); err != nil {
			break
		}
		if union.RightCols, err = args.cols("right"); err != nil {
			break
		}
		_, union.Parallel = args["parallel"]
		e = union

	case "with":
		if err = expectChildren(2); err != nil {
			break
		}
		var producer *memo.CTEProducerExpr
		if producer, err = makeProducer(args, children[0]); err != nil {
			break
		}
		e = &memo.WithExpr{Binding: producer, Main: children[1]}

	case "producer":
		if err = expectChildren(1); err != nil {
			break
		}
		e, err = makeProducer(args, children[0])

	case "consumer":
		if err = expectChildren(0); err != nil {
			break
		}
		consumer := &memo.CTEConsumerExpr{}
		if consumer.ID, err = args.withID("id"); err != nil {
			break
		}
		if consumer.Cols, err = args.cols("cols"); err != nil {
			break
		}
		var needed opt.ColList
		needed, err = args.cols("needed")
		consumer.NeededCols = opt.ColListToSet(needed)
		e = consumer

	default:
		err = errors.Newf("unknown operator %q", op)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "line %d", l.num)
	}
	return e, nil
}

func makeProducer(args exprArgs, input memo.RelExpr) (*memo.CTEProducerExpr, error) {
	id, err := args.withID("id")
	if err != nil {
		return nil, err
	}
	cols, err := args.cols("cols")
	if err != nil {
		return nil, err
	}
	return &memo.CTEProducerExpr{ID: id, Input: input, OutCols: cols}, nil
}

// exprArgs maps argument names to their values. A parenthesized value is
// split at commas.
type exprArgs map[string][]string

func parseArgs(fields []string) exprArgs {
	args := make(exprArgs)
	for _, f := range fields {
		key, val, ok := strings.Cut(f, "=")
		if !ok {
			args[key] = nil
			continue
		}
		if strings.HasPrefix(val, "(") && strings.HasSuffix(val, ")") {
			val = val[1 : len(val)-1]
			if val == "" {
				args[key] = []string{}
				continue
			}
			args[key] = strings.Split(val, ",")
			continue
		}
		args[key] = []string{val}
	}
	return args
}

func (a exprArgs) cols(key string) (opt.ColList, error) {
	var res opt.ColList
	for _, v := range a[key] {
		col, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid column in %s", key)
		}
		res = append(res, opt.ColumnID(col))
	}
	return res, nil
}

func (a exprArgs) float(key string, def float64) (float64, error) {
	vals, ok := a[key]
	if !ok {
		return def, nil
	}
	if len(vals) != 1 {
		return 0, errors.Newf("%s requires one value", key)
	}
	f, err := strconv.ParseFloat(vals[0], 64)
	return f, errors.Wrapf(err, "invalid %s", key)
}

func (a exprArgs) withID(key string) (opt.WithID, error) {
	vals := a[key]
	if len(vals) != 1 {
		return 0, errors.Newf("%s requires one value", key)
	}
	id, err := strconv.ParseUint(vals[0], 10, 64)
	return opt.WithID(id), errors.Wrapf(err, "invalid %s", key)
}

// colValues parses "col:value" pairs into m.
func (a exprArgs) colValues(key string, m map[opt.ColumnID]float64) error {
	for _, v := range a[key] {
		colStr, valStr, ok := strings.Cut(v, ":")
		if !ok {
			return errors.Newf("invalid %s entry %q", key, v)
		}
		col, err := strconv.Atoi(colStr)
		if err != nil {
			return errors.Wrapf(err, "invalid %s entry %q", key, v)
		}
		val, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid %s entry %q", key, v)
		}
		m[opt.ColumnID(col)] = val
	}
	return nil
}

// projections parses "col:in|in" entries; "col:" is a constant.
func (a exprArgs) projections(key string) ([]memo.ProjectionsItem, error) {
	var res []memo.ProjectionsItem
	for _, v := range a[key] {
		colStr, inStr, ok := strings.Cut(v, ":")
		if !ok {
			return nil, errors.Newf("invalid %s entry %q", key, v)
		}
		col, err := strconv.Atoi(colStr)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s entry %q", key, v)
		}
		item := memo.ProjectionsItem{Col: opt.ColumnID(col)}
		if inStr != "" {
			for _, s := range strings.Split(inStr, "|") {
				in, err := strconv.Atoi(s)
				if err != nil {
					return nil, errors.Wrapf(err, "invalid %s entry %q", key, v)
				}
				item.InputCols.Add(in)
			}
		}
		res = append(res, item)
	}
	return res, nil
}

// equalities parses "left:right" pairs.
func (a exprArgs) equalities(key string) ([]memo.JoinEquality, error) {
	var res []memo.JoinEquality
	for _, v := range a[key] {
		leftStr, rightStr, ok := strings.Cut(v, ":")
		if !ok {
			return nil, errors.Newf("invalid %s entry %q", key, v)
		}
		left, err := strconv.Atoi(leftStr)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s entry %q", key, v)
		}
		right, err := strconv.Atoi(rightStr)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s entry %q", key, v)
		}
		res = append(res, memo.JoinEquality{Left: opt.ColumnID(left), Right: opt.ColumnID(right)})
	}
	return res, nil
}
