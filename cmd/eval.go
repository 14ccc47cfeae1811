// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sumfold/sumfold/ast"
	"github.com/sumfold/sumfold/cmd/formats"
	"github.com/sumfold/sumfold/cmd/internal/env"
	"github.com/sumfold/sumfold/eval"
	pr "github.com/sumfold/sumfold/internal/presentation"
	"github.com/sumfold/sumfold/loader"
	"github.com/sumfold/sumfold/metrics"
	"github.com/sumfold/sumfold/optimizer"
	"github.com/sumfold/sumfold/util"
)

const defaultPrettyLimit = 80

type evalCommandParams struct {
	bindings     []string
	optimize     bool
	maxExponent  int
	maxSteps     int64
	outputFormat *util.EnumFlag
	metrics      bool
	prettyLimit  int
}

func newEvalCommandParams() evalCommandParams {
	return evalCommandParams{
		maxExponent:  optimizer.DefaultMaxExponent,
		maxSteps:     eval.DefaultMaxSteps,
		outputFormat: formats.Flag(formats.Bindings, formats.JSON, formats.Pretty),
		prettyLimit:  defaultPrettyLimit,
	}
}

// evalOutput is the JSON document written by eval.
type evalOutput struct {
	Errors   pr.OutputErrors `json:"errors,omitempty"`
	Bindings map[string]any  `json:"bindings,omitempty"`
	Steps    int64           `json:"steps,omitempty"`
	Metrics  metrics.Metrics `json:"metrics,omitempty"`
}

func init() {
	params := newEvalCommandParams()

	evalCommand := &cobra.Command{
		Use:   "eval [path]",
		Short: "Run a Python source file",
		Long: `Run a Python source file and print the values it binds.

The 'eval' command interprets the subset of Python the optimizer understands
and prints every global name the program binds together with its value. If no
file path is provided, the program is read from stdin. Free names are bound
with the '--bind' flag:

	$ sumfold eval --bind n=100 sum.py

If the '--optimize' option is supplied, the program is optimized first and the
optimized program is run instead. Running a file both ways shows that the
rewrite preserves its results.

Output produced by print() is written to stdout before the bindings, or to
stderr when the output format is JSON.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return errors.New("at most one source file may be given")
			}
			return env.CmdFlags.CheckEnvironmentVariables(cmd)
		},
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(evalFile(cmd.Context(), args, &params, os.Stdin, os.Stdout, os.Stderr))
		},
	}

	evalCommand.Flags().StringArrayVarP(&params.bindings, "bind", "b", []string{}, "bind a free name to an integer (e.g., --bind n=10)")
	evalCommand.Flags().BoolVarP(&params.optimize, "optimize", "O", false, "optimize the program before running it")
	evalCommand.Flags().Int64Var(&params.maxSteps, "max-steps", eval.DefaultMaxSteps, "set the number of statements and loop iterations the program may execute")
	evalCommand.Flags().BoolVar(&params.metrics, "metrics", false, "report evaluation metrics")
	evalCommand.Flags().IntVar(&params.prettyLimit, "pretty-limit", defaultPrettyLimit, "set limit after which pretty output gets truncated")
	setMaxExponent(evalCommand.Flags(), &params.maxExponent)
	addOutputFormat(evalCommand.Flags(), params.outputFormat)

	RootCommand.AddCommand(evalCommand)
}

func evalFile(ctx context.Context, args []string, params *evalCommandParams, stdin io.Reader, stdout, stderr io.Writer) int {
	if ctx == nil {
		ctx = context.Background()
	}

	m := metrics.New()

	result, err := evalRun(ctx, args, params, m, stdin, stdout, stderr)
	if err != nil {
		if params.outputFormat.String() == formats.JSON {
			_ = pr.JSON(stdout, evalOutput{Errors: pr.NewOutputErrors(err)})
		} else {
			_ = pr.Pretty(stderr, pr.Output{Errors: pr.NewOutputErrors(err)})
		}
		return 1
	}

	names := result.Names()

	switch params.outputFormat.String() {
	case formats.JSON:
		out := evalOutput{Bindings: make(map[string]any, len(names)), Steps: result.Steps}
		for _, name := range names {
			v, _ := result.Get(name)
			if i, ok := v.(eval.Int); ok {
				out.Bindings[name] = json.Number(i.String())
			} else {
				out.Bindings[name] = v.String()
			}
		}
		if params.metrics {
			out.Metrics = m
		}
		err = pr.JSON(stdout, out)
	default:
		values := make(map[string]string, len(names))
		for _, name := range names {
			v, _ := result.Get(name)
			values[name] = v.String()
		}
		err = pr.Bindings(stdout, names, values, params.prettyLimit)
		if err == nil && params.metrics {
			err = pr.Pretty(stdout, pr.Output{Metrics: m}.WithLimit(params.prettyLimit))
		}
	}

	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	return 0
}

func evalRun(ctx context.Context, args []string, params *evalCommandParams, m metrics.Metrics, stdin io.Reader, stdout, stderr io.Writer) (*eval.Result, error) {
	name := "stdin"
	var bs []byte
	var err error

	if len(args) > 0 {
		name = args[0]
		bs, err = os.ReadFile(name)
	} else {
		bs, err = io.ReadAll(stdin)
	}
	if err != nil {
		return nil, err
	}

	file, err := loader.Py(name, bs)
	if err != nil {
		return nil, err
	}

	bindings, err := parseBindings(params.bindings)
	if err != nil {
		return nil, err
	}

	module := file.Parsed
	if params.optimize {
		module, _, err = optimizer.New().
			WithMetrics(m).
			WithMaxExponent(params.maxExponent).
			ModuleContext(ctx, module)
		if err != nil {
			return nil, err
		}
	}

	output := stdout
	if params.outputFormat.String() == formats.JSON {
		output = stderr
	}

	return eval.New().
		WithMaxSteps(params.maxSteps).
		WithOutput(output).
		WithMetrics(m).
		Module(ctx, module, bindings)
}

// parseBindings parses name=value pairs of integers.
func parseBindings(pairs []string) (eval.Bindings, error) {
	bindings := make(eval.Bindings, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid binding %q, expected name=value", pair)
		}

		name = strings.TrimSpace(name)
		body, err := ast.ParseStatements("--bind", name+" = 0")
		if err != nil {
			return nil, errors.Wrapf(err, "invalid binding name %q", name)
		}
		if len(body) != 1 || !isVarAssign(body[0]) {
			return nil, fmt.Errorf("invalid binding name %q", name)
		}

		i, ok := new(big.Int).SetString(strings.TrimSpace(value), 0)
		if !ok {
			return nil, fmt.Errorf("invalid binding %q, value must be an integer", pair)
		}
		bindings[ast.Var(name)] = eval.IntValue(i)
	}
	return bindings, nil
}

func isVarAssign(s ast.Statement) bool {
	a, ok := s.(*ast.Assign)
	if !ok {
		return false
	}
	_, ok = a.Target.Value.(ast.Var)
	return ok
}
