// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sumfold/sumfold/ast"
	"github.com/sumfold/sumfold/cmd/formats"
	"github.com/sumfold/sumfold/cmd/internal/env"
	pr "github.com/sumfold/sumfold/internal/presentation"
	"github.com/sumfold/sumfold/loader"
	"github.com/sumfold/sumfold/util"
)

type parseParams struct {
	format *util.EnumFlag
}

var configuredParseParams = parseParams{
	format: formats.Flag(formats.Pretty, formats.JSON),
}

var parseCommand = &cobra.Command{
	Use:   "parse <path>",
	Short: "Parse Python source file",
	Long:  `Parse Python source file and print AST.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no source file specified")
		}
		return env.CmdFlags.CheckEnvironmentVariables(cmd)
	},
	Run: func(_ *cobra.Command, args []string) {
		os.Exit(parse(args, &configuredParseParams, os.Stdout, os.Stderr))
	},
}

func parse(args []string, params *parseParams, stdout io.Writer, stderr io.Writer) int {
	if len(args) == 0 {
		return 0
	}

	bs, err := os.ReadFile(args[0])
	if err != nil {
		_ = pr.JSON(stderr, pr.Output{Errors: pr.NewOutputErrors(err)})
		return 1
	}

	result, err := loader.Py(args[0], bs)
	if err != nil {
		_ = pr.JSON(stderr, pr.Output{Errors: pr.NewOutputErrors(err)})
		return 1
	}

	switch params.format.String() {
	case formats.JSON:
		bs, err := json.MarshalIndent(result.Parsed, "", "  ")
		if err != nil {
			_ = pr.JSON(stderr, pr.Output{Errors: pr.NewOutputErrors(err)})
			return 1
		}

		_, _ = fmt.Fprint(stdout, string(bs)+"\n")
	default:
		ast.Pretty(stdout, result.Parsed)
	}

	return 0
}

func init() {
	addOutputFormat(parseCommand.Flags(), configuredParseParams.format)

	RootCommand.AddCommand(parseCommand)
}
