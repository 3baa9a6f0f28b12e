// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cteinfo_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/optcte/pkg/sql/opt/testutils/ctetester"
	"github.com/cockroachdb/optcte/pkg/util/log"
)

// TestRegistryDataDriven runs the testdata files in this package. Each file
// works on a single registry; see CTETester.RunCommand for the commands.
func TestRegistryDataDriven(t *testing.T) {
	defer log.Scope(t).Close(t)

	datadriven.Walk(t, "testdata", func(t *testing.T, path string) {
		tester := ctetester.New(context.Background())
		datadriven.RunTest(t, path, func(t *testing.T, d *datadriven.TestData) string {
			return tester.RunCommand(t, d)
		})
	})
}
