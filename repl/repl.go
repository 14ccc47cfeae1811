// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package repl implements a Read-Eval-Print-Loop (REPL) for trying the
// optimizer interactively.
//
// Statements entered are appended to a session program. The session is
// optimized after every input, rewritten statements are echoed, and the
// optimized statements are executed. Bare expressions print their value.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/peterh/liner"

	"github.com/sumfold/sumfold/ast"
	"github.com/sumfold/sumfold/eval"
	"github.com/sumfold/sumfold/internal/presentation"
	"github.com/sumfold/sumfold/internal/sourcecache"
	"github.com/sumfold/sumfold/optimizer"
	"github.com/sumfold/sumfold/version"
)

// REPL represents an instance of the interactive shell.
type REPL struct {
	output    io.Writer
	optimizer *optimizer.Optimizer
	interp    *eval.Interpreter
	cache     *sourcecache.Cache[optimized]

	session ast.Body
	globals *eval.Result
	buffer  []string

	outputFormat string
	historyPath  string
	initPrompt   string
	bufferPrompt string
	banner       string

	bufferDisabled bool
}

type optimized struct {
	module *ast.Module
	report *optimizer.Report
}

// New returns a new instance of the REPL.
func New(opt *optimizer.Optimizer, historyPath string, output io.Writer, outputFormat string, banner string) *REPL {
	cache, err := sourcecache.New[optimized](0)
	if err != nil {
		panic(err)
	}
	return &REPL{
		output:       output,
		optimizer:    opt.WithLoopBindings(false),
		interp:       eval.New().WithOutput(output),
		cache:        cache,
		outputFormat: outputFormat,
		historyPath:  historyPath,
		initPrompt:   ">>> ",
		bufferPrompt: "... ",
		banner:       banner,
	}
}

// WithInterpreter sets the interpreter used to execute the session. Its
// output is replaced by the REPL's output.
func (r *REPL) WithInterpreter(i *eval.Interpreter) *REPL {
	r.interp = i.WithOutput(r.output)
	return r
}

// DisableMultiLineBuffering causes the REPL to not buffer lines when a parse
// error occurs. Instead, the error will be returned to the caller.
func (r *REPL) DisableMultiLineBuffering(yes bool) *REPL {
	r.bufferDisabled = yes
	return r
}

// Loop will run until the user enters "exit", Ctrl+C, Ctrl+D, or an unexpected error occurs.
func (r *REPL) Loop(ctx context.Context) {

	// Initialize the liner library.
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetMultiLineMode(true)
	r.loadHistory(line)

	if len(r.banner) > 0 {
		fmt.Fprintln(r.output, r.banner)
	}

	line.SetCompleter(r.complete)

	for {

		input, err := line.Prompt(r.getPrompt())

		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Fprintln(r.output, "Exiting")
			break
		}

		if err != nil {
			fmt.Fprintln(r.output, "error (fatal):", err)
			break
		}

		if err := r.OneShot(ctx, input); err != nil {
			if _, ok := err.(stop); ok {
				break
			}
			fmt.Fprintln(r.output, "error:", err)
		}

		line.AppendHistory(input)
	}

	r.saveHistory(line)
}

// OneShot evaluates the line and prints the result. If an error occurs it is
// returned for the caller to display.
func (r *REPL) OneShot(ctx context.Context, line string) error {

	if len(r.buffer) == 0 {
		if cmd := newCommand(line); cmd != nil {
			switch cmd.op {
			case "show":
				return r.cmdShow()
			case "optimized":
				return r.cmdOptimized()
			case "report":
				return r.cmdReport()
			case "reset":
				return r.cmdReset(cmd.args)
			case "json":
				return r.cmdFormat("json")
			case "pretty":
				return r.cmdFormat("pretty")
			case "help":
				return r.cmdHelp()
			case "exit":
				return r.cmdExit()
			}
		}
		r.buffer = append(r.buffer, line)
		if opensBlock(line) {
			return nil
		}
		return r.evalBufferOne(ctx)
	}

	r.buffer = append(r.buffer, line)
	if len(strings.TrimSpace(line)) == 0 {
		return r.evalBufferMulti(ctx)
	}

	return nil
}

func opensBlock(line string) bool {
	return strings.HasSuffix(strings.TrimSpace(line), ":")
}

func (r *REPL) complete(line string) (c []string) {
	start := len(line)
	for start > 0 && isIdentByte(line[start-1]) {
		start--
	}
	prefix := line[start:]
	if prefix == "" {
		return nil
	}

	candidates := eval.Builtins()
	if r.globals != nil {
		candidates = append(candidates, r.globals.Names()...)
	}
	if start == 0 {
		for _, cmd := range builtin {
			candidates = append(candidates, cmd.name)
		}
	}

	slices.Sort(candidates)
	for _, name := range slices.Compact(candidates) {
		if strings.HasPrefix(name, prefix) {
			c = append(c, line[:start]+name)
		}
	}

	return c
}

func isIdentByte(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func (r *REPL) cmdExit() error {
	return stop{}
}

func (r *REPL) cmdFormat(s string) error {
	r.outputFormat = s
	return nil
}

func (r *REPL) cmdHelp() error {
	fmt.Fprintln(r.output, "")
	printHelpExamples(r.output, r.initPrompt)
	printHelpCommands(r.output)
	return nil
}

func (r *REPL) cmdShow() error {
	fmt.Fprint(r.output, (&ast.Module{Body: r.session}).String())
	return nil
}

func (r *REPL) cmdOptimized() error {
	opt, err := r.optimize(r.session)
	if err != nil {
		return err
	}
	fmt.Fprint(r.output, opt.module.String())
	return nil
}

func (r *REPL) cmdReport() error {
	opt, err := r.optimize(r.session)
	if err != nil {
		return err
	}
	out := presentation.Output{
		Files: []presentation.FileReport{{File: "<repl>", Loops: opt.report.Loops}},
	}
	if r.outputFormat == "json" {
		return presentation.JSON(r.output, out)
	}
	return presentation.Pretty(r.output, out)
}

func (r *REPL) cmdReset(args []string) error {
	if len(args) != 0 {
		return newBadArgsErr("reset: expects no arguments")
	}
	r.session = nil
	r.globals = nil
	return nil
}

func (r *REPL) evalBufferOne(ctx context.Context) error {

	line := strings.Join(r.buffer, "\n")

	if len(strings.TrimSpace(line)) == 0 {
		r.buffer = nil
		return nil
	}

	stmts, err := ast.ParseStatements("", line+"\n")
	if err != nil {
		if r.bufferDisabled {
			r.buffer = nil
			return err
		}
		return nil
	}

	r.buffer = nil

	return r.evalStatements(ctx, stmts)
}

func (r *REPL) evalBufferMulti(ctx context.Context) error {

	line := strings.Join(r.buffer, "\n")
	r.buffer = nil

	if len(strings.TrimSpace(line)) == 0 {
		return nil
	}

	stmts, err := ast.ParseStatements("", line+"\n")
	if err != nil {
		return err
	}

	return r.evalStatements(ctx, stmts)
}

// evalStatements appends stmts to the session, echoes the statements the
// optimizer rewrote and executes the optimized statements. The session is
// left unchanged if optimization or execution fails.
func (r *REPL) evalStatements(ctx context.Context, stmts ast.Body) error {

	session := append(slices.Clip(r.session), stmts...)

	opt, err := r.optimize(session)
	if err != nil {
		return err
	}

	// Top-level rewrites replace one statement by one statement so the
	// optimized session lines up with the input.
	if len(opt.module.Body) != len(session) {
		return fmt.Errorf("optimized session has %d statements, expected %d", len(opt.module.Body), len(session))
	}
	tail := opt.module.Body[len(r.session):]

	for i, stmt := range tail {
		if !stmt.Equal(stmts[i]) {
			fmt.Fprintln(r.output, "# "+strings.ReplaceAll(strings.TrimRight(stmt.String(), "\n"), "\n", "\n# "))
		}
	}

	var last *ast.ExprStmt
	if n := len(tail); n > 0 {
		if s, ok := tail[n-1].(*ast.ExprStmt); ok && !isPrintCall(s.Expr) {
			last = s
			tail = tail[:n-1]
		}
	}

	globals := r.globals
	if globals == nil {
		globals, err = r.interp.Continue(ctx, nil, &ast.Module{})
		if err != nil {
			return err
		}
	}

	if _, err := r.interp.Continue(ctx, globals, &ast.Module{Body: tail}); err != nil {
		return err
	}

	if last != nil {
		v, err := r.interp.ExprIn(ctx, globals, last.Expr)
		if err != nil {
			return err
		}
		if _, ok := v.(eval.None); !ok {
			r.printValue(v)
		}
	}

	r.session = session
	r.globals = globals
	return nil
}

func (r *REPL) optimize(session ast.Body) (optimized, error) {
	m := &ast.Module{Body: session}
	key := sourcecache.Key([]byte(m.String()))
	if opt, ok := r.cache.Get(key); ok {
		return opt, nil
	}
	result, report, err := r.optimizer.Module(m)
	if err != nil {
		return optimized{}, err
	}
	opt := optimized{module: result, report: report}
	r.cache.Add(key, opt)
	return opt, nil
}

func isPrintCall(t *ast.Term) bool {
	call, ok := t.Value.(*ast.Call)
	if !ok {
		return false
	}
	name, ok := call.Func.Value.(ast.Var)
	return ok && name == "print"
}

func (r *REPL) printValue(v eval.Value) {
	switch r.outputFormat {
	case "json":
		if err := presentation.JSON(r.output, map[string]string{"value": v.String()}); err != nil {
			fmt.Fprintln(r.output, err)
		}
	default:
		fmt.Fprintln(r.output, v.String())
	}
}

func (r *REPL) getPrompt() string {
	if len(r.buffer) > 0 {
		return r.bufferPrompt
	}
	return r.initPrompt
}

func (r *REPL) loadHistory(prompt *liner.State) {
	if f, err := os.Open(r.historyPath); err == nil {
		_, _ = prompt.ReadHistory(f)
		f.Close()
	}
}

func (r *REPL) saveHistory(prompt *liner.State) {
	if f, err := os.Create(r.historyPath); err == nil {
		_, _ = prompt.WriteHistory(f)
		f.Close()
	}
}

type commandDesc struct {
	name string
	args []string
	help string
}

func (c commandDesc) syntax() string {
	if len(c.args) > 0 {
		return fmt.Sprintf("%v %v", c.name, strings.Join(c.args, " "))
	}
	return c.name
}

type exampleDesc struct {
	example string
	comment string
}

var examples = [...]exampleDesc{
	{"S = 0", "register an accumulator"},
	{"for i in range(100): S += i", "the loop is replaced by S = 4950"},
	{"sum(i * i for i in range(n))", "closed form in terms of n"},
}

var extra = [...]commandDesc{
	{"<stmt>", []string{}, "optimize and execute the statement"},
	{"<expr>", []string{}, "optimize and print the value of the expression"},
}

var builtin = [...]commandDesc{
	{"show", []string{}, "show the session program"},
	{"optimized", []string{}, "show the optimized session program"},
	{"report", []string{}, "show the loops and sums considered"},
	{"reset", []string{}, "clear the session"},
	{"json", []string{}, "set output format to JSON"},
	{"pretty", []string{}, "set output format to pretty"},
	{"help", []string{}, "print this message"},
	{"exit", []string{}, "exit back to shell (or ctrl+c, ctrl+d)"},
	{"ctrl+l", []string{}, "clear the screen"},
}

type command struct {
	op   string
	args []string
}

func newCommand(line string) *command {
	p := strings.Fields(strings.TrimSpace(line))
	if len(p) == 0 {
		return nil
	}
	for _, c := range builtin {
		if c.name == p[0] {
			return &command{
				op:   c.name,
				args: p[1:],
			}
		}
	}
	return nil
}

func printHelpExamples(output io.Writer, promptSymbol string) {

	fmt.Fprintln(output, "Examples")
	fmt.Fprintln(output, "========")
	fmt.Fprintln(output, "")

	maxLength := 0
	for _, ex := range examples {
		if len(ex.example) > maxLength {
			maxLength = len(ex.example)
		}
	}

	f := fmt.Sprintf("%v%%-%dv # %%v\n", promptSymbol, maxLength+1)

	for _, ex := range examples {
		fmt.Fprintf(output, f, ex.example, ex.comment)
	}

	fmt.Fprintln(output, "")
}

func printHelpCommands(output io.Writer) {

	fmt.Fprintln(output, "Commands")
	fmt.Fprintln(output, "========")
	fmt.Fprintln(output, "")

	all := extra[:]
	all = append(all, builtin[:]...)

	maxLength := 0

	for _, c := range all {
		length := len(c.syntax())
		if length > maxLength {
			maxLength = length
		}
	}

	f := fmt.Sprintf("%%%dv : %%v\n", maxLength)

	for _, c := range all {
		fmt.Fprintf(output, f, c.syntax(), c.help)
	}

	fmt.Fprintln(output, "")
}

// Banner returns the default banner printed when the REPL starts.
func Banner() string {
	return fmt.Sprintf("sumfold %v (%v). Type 'help' for the list of commands.", version.Version, version.GoVersion)
}
