// Copyright 2018 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package ctetester runs datadriven tests against a cteinfo.Registry.
package ctetester

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcte/pkg/sql/opt"
	"github.com/cockroachdb/optcte/pkg/sql/opt/cteinfo"
	"github.com/cockroachdb/optcte/pkg/sql/opt/memo"
	"github.com/cockroachdb/optcte/pkg/sql/opt/norm"
)

// CTETester is a helper for testing the CTE registry. It keeps a single
// registry across the commands of a test file.
type CTETester struct {
	Flags CTETesterFlags

	ctx context.Context
	reg *cteinfo.Registry
	sb  memo.StatisticsBuilder
	pp  norm.Preprocessor
}

// CTETesterFlags are control knobs for tests. Note that specific testcases
// can override these defaults.
type CTETesterFlags struct {
	// ExprFormat controls the output detail of producer and replace.
	ExprFormat memo.ExprFmtFlags

	ID           opt.WithID
	Consumer     opt.WithID
	Parent       cteinfo.Parent
	Col          opt.ColumnID
	Cols         opt.ColList
	ProducerCols opt.ColList
	Required     opt.ColList
	Rows         float64
	Times        int
	Enabled      bool
}

// New constructs a new CTETester with an empty registry.
func New(ctx context.Context) *CTETester {
	ct := &CTETester{ctx: ctx}
	ct.reg = cteinfo.New(ctx, &ct.pp, &ct.sb)
	return ct
}

// Registry returns the registry the tester operates on.
func (ct *CTETester) Registry() *cteinfo.Registry {
	return ct.reg
}

// RunCommand implements commands that are used by most tests:
//
//   - producer id=N cols=(..) [rows=N]
//
//     Registers a producer. Its input is the expression described by the
//     test input (see ParseExpr), or a scan of the producer columns.
//
//   - replace id=N cols=(..) [rows=N]
//
//     Like producer, but replaces the producer of an existing CTE.
//
//   - edge consumer=N parent=(root|N) [times=N]
//
//     Registers a consumer edge, and prints the resulting count.
//
//   - consumer-cols id=N cols=(..)
//
//     Records consumer columns and prints their positions.
//
//   - col-pos id=N col=N
//   - count consumer=N parent=(root|N)
//   - total id=N
//   - mark-unused
//   - requirement
//   - map id=N cols=(..) producer-cols=(..)
//   - derive-stats id=N required=(..)
//   - producers
//   - next-id
//   - inlining [enabled=(true|false)]
//   - lineage
//   - show
//
// Commands that violate the registry's contract print the resulting error.
//
// Supported arguments:
//
//   - format: controls the formatting of expressions for producer and
//     replace. Possible values: show-all, hide-all, hide-stats, hide-columns,
//     hide-miscprops.
func (ct *CTETester) RunCommand(tb testing.TB, d *datadriven.TestData) (res string) {
	// Allow testcases to override the flags.
	ct.Flags = CTETesterFlags{Parent: cteinfo.RootParent, Times: 1}
	for _, a := range d.CmdArgs {
		if err := ct.Flags.Set(a); err != nil {
			d.Fatalf(tb, "%s", err)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			res = fmt.Sprintf("error: %s\n", opt.CatchOptimizerError(r))
		}
	}()

	switch d.Cmd {
	case "producer", "replace":
		p, err := ct.makeProducer(d.Input)
		if err != nil {
			d.Fatalf(tb, "%v", err)
		}
		if d.Cmd == "producer" {
			ct.reg.AddProducer(p)
		} else {
			ct.reg.ReplaceProducer(p)
		}
		return memo.FormatExpr(ct.reg.LookupProducer(ct.Flags.ID), ct.Flags.ExprFormat)

	case "edge":
		for i := 0; i < ct.Flags.Times; i++ {
			ct.reg.RegisterConsumerEdge(ct.Flags.Consumer, ct.Flags.Parent)
		}
		return fmt.Sprintf("count=%d\n", ct.reg.ConsumerCountInParent(ct.Flags.Consumer, ct.Flags.Parent))

	case "consumer-cols":
		ct.reg.AddConsumerColumns(ct.Flags.ID, ct.Flags.Cols)
		var buf strings.Builder
		for _, col := range ct.Flags.Cols {
			pos, _ := ct.reg.ConsumerColumnPosition(ct.Flags.ID, col)
			fmt.Fprintf(&buf, "%d:%d\n", col, pos)
		}
		return buf.String()

	case "col-pos":
		if pos, ok := ct.reg.ConsumerColumnPosition(ct.Flags.ID, ct.Flags.Col); ok {
			return fmt.Sprintf("%d\n", pos)
		}
		return "not found\n"

	case "count":
		return fmt.Sprintf("%d\n", ct.reg.ConsumerCountInParent(ct.Flags.Consumer, ct.Flags.Parent))

	case "total":
		return fmt.Sprintf("%d\n", ct.reg.TotalConsumerCount(ct.Flags.ID))

	case "mark-unused":
		ct.reg.MarkUnusedCTEs()
		var buf strings.Builder
		for _, p := range ct.reg.AllProducers() {
			if ct.reg.IsUsed(p.ID) {
				fmt.Fprintf(&buf, "&%d: used\n", p.ID)
			} else {
				fmt.Fprintf(&buf, "&%d: unused\n", p.ID)
			}
		}
		return buf.String()

	case "requirement":
		return ct.reg.ProducersAsOptionalRequirement().String() + "\n"

	case "map":
		m := ct.reg.ConsumerToProducerColumnMap(
			ct.Flags.ID, opt.ColListToSet(ct.Flags.Cols), ct.Flags.ProducerCols,
		)
		if len(m) == 0 {
			return "(empty)\n"
		}
		cols := make(opt.ColList, 0, len(m))
		for col := range m {
			cols = append(cols, col)
		}
		sort.Slice(cols, func(i, j int) bool { return cols[i] < cols[j] })
		var buf strings.Builder
		for _, col := range cols {
			fmt.Fprintf(&buf, "%d -> %d\n", col, m[col])
		}
		return buf.String()

	case "derive-stats":
		consumer := &memo.CTEConsumerExpr{ID: ct.Flags.ID}
		s := ct.reg.DeriveProducerStatistics(consumer, opt.ColListToSet(ct.Flags.Required))
		return s.String() + "\n"

	case "producers":
		var buf strings.Builder
		for _, p := range ct.reg.AllProducers() {
			fmt.Fprintf(&buf, "&%d %s\n", p.ID, p.OutputCols())
		}
		return buf.String()

	case "next-id":
		return fmt.Sprintf("&%d\n", ct.reg.NextID())

	case "inlining":
		for _, a := range d.CmdArgs {
			if a.Key == "enabled" {
				ct.reg.SetInliningEnabled(ct.Flags.Enabled)
			}
		}
		return fmt.Sprintf("%t\n", ct.reg.InliningEnabled())

	case "lineage":
		var l memo.ColumnLineage
		ct.reg.MapComputedToUsedCols(&l)
		return l.String()

	case "show":
		return ct.reg.String()

	default:
		d.Fatalf(tb, "unsupported command: %s", d.Cmd)
		return ""
	}
}

// makeProducer builds the producer described by the flags and the test
// input.
func (ct *CTETester) makeProducer(input string) (*memo.CTEProducerExpr, error) {
	p := &memo.CTEProducerExpr{ID: ct.Flags.ID, OutCols: ct.Flags.Cols}
	if strings.TrimSpace(input) == "" {
		p.Input = &memo.ScanExpr{
			Table:    fmt.Sprintf("t%d", ct.Flags.ID),
			Cols:     ct.Flags.Cols,
			RowCount: ct.Flags.Rows,
		}
		return p, nil
	}
	e, err := ParseExpr(input)
	if err != nil {
		return nil, err
	}
	p.Input = e
	return p, nil
}

// Set parses an argument that refers to a flag.
// See CTETester.RunCommand for supported flags.
func (f *CTETesterFlags) Set(arg datadriven.CmdArg) error {
	single := func() (string, error) {
		if len(arg.Vals) != 1 {
			return "", errors.Newf("%s requires one value", arg.Key)
		}
		return arg.Vals[0], nil
	}
	withID := func() (opt.WithID, error) {
		v, err := single()
		if err != nil {
			return 0, err
		}
		id, err := strconv.ParseUint(v, 10, 64)
		return opt.WithID(id), errors.Wrapf(err, "invalid %s", arg.Key)
	}
	cols := func() (opt.ColList, error) {
		var res opt.ColList
		for _, v := range arg.Vals {
			if v == "" {
				// An empty list, as in cols=().
				continue
			}
			col, err := strconv.Atoi(v)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid column in %s", arg.Key)
			}
			res = append(res, opt.ColumnID(col))
		}
		return res, nil
	}

	var err error
	switch arg.Key {
	case "format":
		f.ExprFormat = 0
		if len(arg.Vals) == 0 {
			return errors.New("format flag requires value(s)")
		}
		for _, v := range arg.Vals {
			m := map[string]memo.ExprFmtFlags{
				"show-all":       memo.ExprFmtShowAll,
				"hide-all":       memo.ExprFmtHideAll,
				"hide-stats":     memo.ExprFmtHideStats,
				"hide-columns":   memo.ExprFmtHideColumns,
				"hide-miscprops": memo.ExprFmtHideMiscProps,
			}
			val, ok := m[v]
			if !ok {
				return errors.Newf("unknown format value %s", v)
			}
			f.ExprFormat |= val
		}

	case "id":
		f.ID, err = withID()

	case "consumer":
		f.Consumer, err = withID()

	case "parent":
		var v string
		if v, err = single(); err != nil {
			break
		}
		if v == "root" {
			f.Parent = cteinfo.RootParent
			break
		}
		var id opt.WithID
		id, err = withID()
		f.Parent = cteinfo.ParentCTE(id)

	case "col":
		var c opt.ColList
		if c, err = cols(); err == nil && len(c) != 1 {
			err = errors.New("col requires one value")
		}
		if err == nil {
			f.Col = c[0]
		}

	case "cols":
		f.Cols, err = cols()

	case "producer-cols":
		f.ProducerCols, err = cols()

	case "required":
		f.Required, err = cols()

	case "rows":
		var v string
		if v, err = single(); err == nil {
			f.Rows, err = strconv.ParseFloat(v, 64)
		}

	case "times":
		var v string
		if v, err = single(); err == nil {
			f.Times, err = strconv.Atoi(v)
		}

	case "enabled":
		var v string
		if v, err = single(); err == nil {
			f.Enabled, err = strconv.ParseBool(v)
		}

	default:
		return errors.Newf("unknown argument: %s", arg.Key)
	}
	return err
}
