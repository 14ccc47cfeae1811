package env

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func mockCmd(writer io.Writer, use string, intDefault int, strDefault string, boolDefault bool) *cobra.Command {
	var args struct {
		IntFlag  int
		StrFlag  string
		BoolFlag bool
	}
	cmd := cobra.Command{
		Use: use,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return CmdFlags.CheckEnvironmentVariables(cmd)
		},
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(writer, "%v; %v; %v", args.IntFlag, args.StrFlag, args.BoolFlag)
		},
	}
	cmd.Flags().IntVarP(&args.IntFlag, "max-exponent", "k", intDefault, "set int")
	cmd.Flags().StringVarP(&args.StrFlag, "log-level", "s", strDefault, "set string")
	cmd.Flags().BoolVarP(&args.BoolFlag, "fail", "f", boolDefault, "set bool")
	return &cmd
}

func TestCheckEnvironmentVariables(t *testing.T) {
	tests := []struct {
		note string
		root bool
		env  map[string]string
		args []string
		exp  string
		errs []string
	}{
		{
			note: "no env vars",
			root: true,
			exp:  "0; ; false",
		},
		{
			note: "one env var",
			root: true,
			env:  map[string]string{"SUMFOLD_MAX_EXPONENT": "3"},
			exp:  "3; ; false",
		},
		{
			note: "all env vars",
			root: true,
			env: map[string]string{
				"SUMFOLD_MAX_EXPONENT": "40",
				"SUMFOLD_LOG_LEVEL":    "debug",
				"SUMFOLD_FAIL":         "true",
			},
			exp: "40; debug; true",
		},
		{
			note: "child command",
			env: map[string]string{
				"SUMFOLD_OPTIMIZE_MAX_EXPONENT": "7",
				"SUMFOLD_OPTIMIZE_LOG_LEVEL":    "warn",
				"SUMFOLD_OPTIMIZE_FAIL":         "false",
				"SUMFOLD_MAX_EXPONENT":          "9",
			},
			exp: "7; warn; false",
		},
		{
			note: "flags take precedence",
			root: true,
			env:  map[string]string{"SUMFOLD_MAX_EXPONENT": "3", "SUMFOLD_FAIL": "true"},
			args: []string{"--max-exponent", "42"},
			exp:  "42; ; true",
		},
		{
			note: "single error",
			env:  map[string]string{"SUMFOLD_OPTIMIZE_FAIL": "7"},
			errs: []string{`invalid argument "7"`},
		},
		{
			note: "multiple errors",
			env: map[string]string{
				"SUMFOLD_OPTIMIZE_MAX_EXPONENT": "true",
				"SUMFOLD_OPTIMIZE_FAIL":         "7",
			},
			errs: []string{
				`invalid argument "true"`,
				`invalid argument "7"`,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			var buf bytes.Buffer
			var cmd *cobra.Command
			if tc.root {
				cmd = mockCmd(&buf, "sumfold [opts]", 0, "", false)
			} else {
				cmd = mockCmd(&buf, "optimize [opts]", 100, "info", true)
			}

			if err := cmd.ParseFlags(tc.args); err != nil {
				t.Fatal(err)
			}

			err := cmd.PreRunE(cmd, nil)
			if len(tc.errs) > 0 {
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.HasPrefix(err.Error(), errorMessagePrefix) {
					t.Fatalf("expected error prefix %q, got %q", errorMessagePrefix, err.Error())
				}
				for _, exp := range tc.errs {
					if !strings.Contains(err.Error(), exp) {
						t.Fatalf("expected error to contain %q, got %q", exp, err.Error())
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %s", err.Error())
			}

			cmd.Run(cmd, nil)
			if buf.String() != tc.exp {
				t.Fatalf("expected flag values %q, got %q", tc.exp, buf.String())
			}
		})
	}
}
