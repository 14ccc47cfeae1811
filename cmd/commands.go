// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package cmd implements the sumfold command line.
package cmd

import (
	"github.com/spf13/cobra"
)

// RootCommand is the base CLI command that all subcommands are added to.
var RootCommand = &cobra.Command{
	Use:   "sumfold",
	Short: "Rewrite summation loops to closed forms",
	Long: `Rewrite for-loop and sum() based summations over ranges in Python
source files to closed-form expressions.`,
	SilenceUsage: true,
}
