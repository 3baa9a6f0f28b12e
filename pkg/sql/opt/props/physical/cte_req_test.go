// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package physical_test

import (
	"testing"

	"github.com/cockroachdb/optcte/pkg/sql/opt"
	"github.com/cockroachdb/optcte/pkg/sql/opt/props/physical"
	"github.com/stretchr/testify/require"
)

func TestCTEReq(t *testing.T) {
	req := physical.NewCTEReq()
	require.Equal(t, 0, req.Len())
	require.Equal(t, "[]", req.String())

	req.Insert(3, physical.CTEProducer, false /* required */)
	req.Insert(1, physical.CTEProducer, false /* required */)
	req.Insert(2, physical.CTEConsumer, true /* required */)

	require.Equal(t, 3, req.Len())
	require.Equal(t, []opt.WithID{1, 2, 3}, req.IDs())
	require.Equal(t, "[&1:producer? &2:consumer &3:producer?]", req.String())

	e, ok := req.Lookup(2)
	require.True(t, ok)
	require.Equal(t, physical.CTEReqEntry{ID: 2, Type: physical.CTEConsumer, Required: true}, e)

	_, ok = req.Lookup(4)
	require.False(t, ok)

	require.Panics(t, func() { req.Insert(1, physical.CTEConsumer, true /* required */) })
}
