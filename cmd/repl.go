// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sumfold/sumfold/cmd/formats"
	"github.com/sumfold/sumfold/cmd/internal/env"
	"github.com/sumfold/sumfold/eval"
	internallogging "github.com/sumfold/sumfold/internal/logging"
	"github.com/sumfold/sumfold/optimizer"
	"github.com/sumfold/sumfold/repl"
	"github.com/sumfold/sumfold/util"
)

const defaultHistoryFileName = ".sumfold_history"

type replCommandParams struct {
	outputFormat *util.EnumFlag
	historyPath  string
	maxExponent  int
	maxSteps     int64
	logLevel     *util.EnumFlag
	logFormat    *util.EnumFlag
}

func newReplCommandParams() replCommandParams {
	return replCommandParams{
		outputFormat: formats.Flag(formats.Pretty, formats.JSON),
		historyPath:  historyPath(),
		maxExponent:  optimizer.DefaultMaxExponent,
		maxSteps:     eval.DefaultMaxSteps,
		logLevel:     util.NewEnumFlag("error", []string{"debug", "info", "warn", "error"}),
		logFormat:    newLogFormatFlag(),
	}
}

func init() {
	params := newReplCommandParams()

	replCommand := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive shell",
		Long: `Start an interactive shell.

The shell runs statements as they are entered and echoes every loop or sum()
it rewrote, prefixed with '#', before running the rewritten form. A line ending
in ':' opens a block, which is closed by an empty line. Type 'help' for the
list of shell commands.`,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return env.CmdFlags.CheckEnvironmentVariables(cmd)
		},
		Run: func(cmd *cobra.Command, _ []string) {
			r, err := newREPL(&params, os.Stdout, os.Stderr)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			r.Loop(ctx)
		},
	}

	addOutputFormat(replCommand.Flags(), params.outputFormat)
	replCommand.Flags().StringVarP(&params.historyPath, "history", "H", historyPath(), "set path of history file")
	replCommand.Flags().Int64Var(&params.maxSteps, "max-steps", eval.DefaultMaxSteps, "set the number of statements and loop iterations each input may execute")
	setMaxExponent(replCommand.Flags(), &params.maxExponent)
	addLogLevelFlag(replCommand.Flags(), params.logLevel)
	addLogFormatFlag(replCommand.Flags(), params.logFormat)

	RootCommand.AddCommand(replCommand)
}

func newREPL(params *replCommandParams, stdout, stderr io.Writer) (*repl.REPL, error) {
	logger, err := internallogging.New(stderr, params.logLevel.String(), params.logFormat.String(), "")
	if err != nil {
		return nil, err
	}

	opt := optimizer.New().
		WithLogger(logger).
		WithMaxExponent(params.maxExponent)

	return repl.New(opt, params.historyPath, stdout, params.outputFormat.String(), repl.Banner()).
		WithInterpreter(eval.New().WithMaxSteps(params.maxSteps)), nil
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultHistoryFileName
	}
	return filepath.Join(home, defaultHistoryFileName)
}
