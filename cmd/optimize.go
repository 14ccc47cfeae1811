// Copyright 2017 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/sumfold/sumfold/cmd/formats"
	"github.com/sumfold/sumfold/cmd/internal/env"
	"github.com/sumfold/sumfold/config"
	"github.com/sumfold/sumfold/filewatcher"
	"github.com/sumfold/sumfold/format"
	internalconfig "github.com/sumfold/sumfold/internal/config"
	"github.com/sumfold/sumfold/internal/diff"
	"github.com/sumfold/sumfold/internal/distributedtracing"
	internallogging "github.com/sumfold/sumfold/internal/logging"
	"github.com/sumfold/sumfold/internal/presentation"
	"github.com/sumfold/sumfold/internal/prometheus"
	"github.com/sumfold/sumfold/internal/sourcecache"
	"github.com/sumfold/sumfold/loader"
	"github.com/sumfold/sumfold/logging"
	"github.com/sumfold/sumfold/metrics"
	"github.com/sumfold/sumfold/optimizer"
	"github.com/sumfold/sumfold/util"
)

// defaultDiffContext is the number of context lines shown around each change.
const defaultDiffContext = 4

type optimizeCommandParams struct {
	overwrite           bool
	list                bool
	diff                bool
	fail                bool
	context             int
	report              *util.EnumFlag
	metrics             bool
	metricsTextfile     string
	watch               bool
	verify              bool
	verbose             bool
	maxExponent         int
	ignore              []string
	configFile          string
	configOverrides     []string
	configOverrideFiles []string
	logLevel            *util.EnumFlag
	logFormat           *util.EnumFlag

	// changed reports whether a flag was set on the command line. When nil
	// every field above is taken as given.
	changed func(name string) bool
}

func newOptimizeCommandParams() optimizeCommandParams {
	return optimizeCommandParams{
		context:     defaultDiffContext,
		report:      formats.Flag(formats.None, formats.Pretty, formats.JSON, formats.YAML),
		maxExponent: optimizer.DefaultMaxExponent,
		logLevel:    newLogLevelFlag(),
		logFormat:   newLogFormatFlag(),
	}
}

func (p *optimizeCommandParams) flagChanged(name string) bool {
	return p.changed == nil || p.changed(name)
}

type optimizeError struct {
	msg  string
	code int
}

func (e optimizeError) Error() string {
	return fmt.Sprintf("%s (%d)", e.msg, e.code)
}

func newError(msg string, a ...any) optimizeError {
	return optimizeError{
		msg:  fmt.Sprintf(msg, a...),
		code: 2,
	}
}

func init() {
	optimizeParams := newOptimizeCommandParams()

	optimizeCommand := &cobra.Command{
		Use:   "optimize [path [...]]",
		Short: "Rewrite summation loops to closed forms",
		Long: `Rewrite summation loops in Python source files to closed forms.

The 'optimize' command takes Python source files and outputs a version in which
every for-loop that adds a polynomial of its loop variable into a known
accumulator, and every sum() over a generator of such a polynomial, is replaced
by an equivalent arithmetic expression. If no file path is provided, this tool
will use stdin. Directories are walked recursively for files ending in .py.

The output is re-rendered from the parsed program, so comments and the original
layout are not preserved.

If the '-w' option is supplied, the 'optimize' command will overwrite every
source file that changed instead of printing to stdout.

If the '-d' option is supplied, the 'optimize' command will output a unified
diff between the original and optimized source. The '-U' option sets the
number of context lines.

If the '-l' option is supplied, the 'optimize' command will output the names of
files that would change. The '-l' option will suppress any other output to
stdout from the 'optimize' command.

If the '--fail' option is supplied, the 'optimize' command will return a non
zero exit code if a file would be rewritten.

If the '--report' option is supplied, a table (or JSON or YAML document) of
every loop and sum() considered is printed instead of the source, listing the
replacement of resolved constructs and the reason blocked ones were kept.

If the '--verify' option is supplied, the original and optimized programs are
both run for a set of sample bindings of their free names and the integer
values they bind are compared.

If the '--watch' option is supplied, the 'optimize' command keeps running and
processes files again whenever they change.`,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			optimizeParams.changed = cmd.Flags().Changed
			return env.CmdFlags.CheckEnvironmentVariables(cmd)
		},
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			code := optimize(ctx, args, &optimizeParams, os.Stdin, os.Stdout, os.Stderr)
			cancel()
			os.Exit(code)
		},
	}

	optimizeCommand.Flags().BoolVarP(&optimizeParams.overwrite, "write", "w", false, "overwrite the original source file")
	optimizeCommand.Flags().BoolVarP(&optimizeParams.list, "list", "l", false, "list all files who would change when optimized")
	optimizeCommand.Flags().BoolVarP(&optimizeParams.diff, "diff", "d", false, "only display a diff of the changes")
	optimizeCommand.Flags().IntVarP(&optimizeParams.context, "unified", "U", defaultDiffContext, "set number of context lines shown by --diff")
	optimizeCommand.Flags().BoolVar(&optimizeParams.fail, "fail", false, "non zero exit code on rewrite")
	optimizeCommand.Flags().Var(optimizeParams.report, "report", "print a report of all loops considered")
	optimizeCommand.Flags().BoolVar(&optimizeParams.metrics, "metrics", false, "report optimization metrics")
	optimizeCommand.Flags().StringVar(&optimizeParams.metricsTextfile, "metrics-textfile", "", "write metrics in the Prometheus text format to this file")
	optimizeCommand.Flags().BoolVar(&optimizeParams.watch, "watch", false, "watch files for changes and optimize them again")
	optimizeCommand.Flags().BoolVar(&optimizeParams.verify, "verify", false, "check optimized programs against the original by running both")
	optimizeCommand.Flags().BoolVarP(&optimizeParams.verbose, "verbose", "v", false, "log every rewrite (same as --log-level=debug)")
	setMaxExponent(optimizeCommand.Flags(), &optimizeParams.maxExponent)
	setIgnore(optimizeCommand.Flags(), &optimizeParams.ignore)
	addConfigFileFlag(optimizeCommand.Flags(), &optimizeParams.configFile)
	addConfigOverrides(optimizeCommand.Flags(), &optimizeParams.configOverrides)
	addConfigOverrideFiles(optimizeCommand.Flags(), &optimizeParams.configOverrideFiles)
	addLogLevelFlag(optimizeCommand.Flags(), optimizeParams.logLevel)
	addLogFormatFlag(optimizeCommand.Flags(), optimizeParams.logFormat)

	RootCommand.AddCommand(optimizeCommand)
}

func optimize(ctx context.Context, args []string, params *optimizeCommandParams, stdin io.Reader, stdout, stderr io.Writer) int {
	r, err := newOptimizeRun(ctx, params, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer r.close()

	ctx = logging.WithRunID(ctx, r.runID)

	var code int
	if len(args) == 0 {
		code = r.stdin(ctx, stdin, stdout)
	} else {
		code = r.paths(ctx, args, stdout)
		if code == 0 && params.watch {
			code = r.watch(ctx, args, stdout)
		}
	}

	if params.metricsTextfile != "" {
		if err := r.prom.WriteTextfile(params.metricsTextfile); err != nil {
			fmt.Fprintln(stderr, err)
			if code == 0 {
				code = 1
			}
		}
	}

	return code
}

// optimizeRun holds everything set up once per invocation.
type optimizeRun struct {
	params    *optimizeCommandParams
	runID     string
	logger    logging.Logger
	metrics   metrics.Metrics
	prom      *prometheus.Provider
	optimizer *optimizer.Optimizer
	cache     *sourcecache.Cache[*fileResult]
	filter    loader.Filter
	tracer    trace.Tracer
	tp        *sdktrace.TracerProvider
	stderr    io.Writer
}

// fileResult is the outcome of optimizing one file.
type fileResult struct {
	name      string
	original  []byte
	optimized []byte
	report    *optimizer.Report
}

func (f *fileResult) changed() bool {
	return !bytes.Equal(f.original, f.optimized)
}

func newOptimizeRun(ctx context.Context, params *optimizeCommandParams, stderr io.Writer) (*optimizeRun, error) {
	raw, err := internalconfig.Load(params.configFile, params.configOverrides, params.configOverrideFiles)
	if err != nil {
		return nil, err
	}

	cfg, err := config.ParseConfig(raw)
	if err != nil {
		return nil, err
	}

	if err := applyConfig(params, cfg); err != nil {
		return nil, err
	}

	level := params.logLevel.String()
	if params.verbose {
		level = "debug"
	}

	stdLogger, err := internallogging.New(stderr, level, params.logFormat.String(), "")
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := stdLogger.WithFields(map[string]any{"run_id": runID})

	m := metrics.New()
	prom := prometheus.New(m, func(attrs map[string]any, f string, a ...any) {
		logger.WithFields(attrs).Error(f, a...)
	})

	cache, err := sourcecache.New[*fileResult](0)
	if err != nil {
		return nil, err
	}

	r := &optimizeRun{
		params:  params,
		runID:   runID,
		logger:  logger,
		metrics: m,
		prom:    prom,
		cache:   cache.WithMetrics(m),
		filter:  ignored(params.ignore),
		tracer:  noop.NewTracerProvider().Tracer(""),
		stderr:  stderr,
	}

	opt := optimizer.New().
		WithLogger(logger).
		WithMetrics(m).
		WithMaxExponent(params.maxExponent)

	exporter, tp, err := distributedtracing.Init(ctx, cfg.DistributedTracing)
	if err != nil {
		return nil, err
	}
	if tp != nil {
		if err := exporter.Start(ctx); err != nil {
			return nil, err
		}
		distributedtracing.SetupLogging(logger)
		r.tp = tp
		r.tracer = tp.Tracer("sumfold/cmd")
		opt = opt.WithTracerProvider(tp)
	}

	r.optimizer = opt
	return r, nil
}

// applyConfig copies configured values into params for every flag that was
// not set on the command line.
func applyConfig(params *optimizeCommandParams, cfg *config.Config) error {
	if !params.flagChanged("max-exponent") && cfg.MaxExponent != nil {
		params.maxExponent = *cfg.MaxExponent
	}
	if !params.flagChanged("ignore") && len(cfg.Ignore) > 0 {
		params.ignore = cfg.Ignore
	}
	if cfg.Logging != nil {
		if !params.flagChanged("log-level") && !params.logLevel.IsSet() {
			if err := params.logLevel.Set(cfg.Logging.Level); err != nil {
				return fmt.Errorf("logging.level: %w", err)
			}
		}
		if !params.flagChanged("log-format") && !params.logFormat.IsSet() {
			if err := params.logFormat.Set(cfg.Logging.Format); err != nil {
				return fmt.Errorf("logging.format: %w", err)
			}
		}
	}
	return nil
}

// ignored returns a filter excluding every file or directory whose name
// matches one of patterns. Paths given explicitly are never excluded.
func ignored(patterns []string) loader.Filter {
	filters := make([]loader.Filter, 0, len(patterns))
	for _, p := range patterns {
		filters = append(filters, loader.GlobExcludeName(p, 1))
	}
	return func(abspath string, info os.FileInfo, depth int) bool {
		for _, f := range filters {
			if f(abspath, info, depth) {
				return true
			}
		}
		return false
	}
}

func (r *optimizeRun) close() {
	if r.tp == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.tp.Shutdown(ctx); err != nil {
		r.logger.Error("Failed to shutdown tracer provider: %v", err)
	}
}

func (r *optimizeRun) stdin(ctx context.Context, in io.Reader, stdout io.Writer) int {
	bs, err := io.ReadAll(in)
	if err != nil {
		fmt.Fprintln(r.stderr, err)
		return 1
	}

	f, err := loader.Py("stdin", bs)
	if err != nil {
		r.printErrors(err)
		return 1
	}

	params := *r.params
	params.overwrite = false
	return r.process(ctx, &params, []*loader.PyFile{f}, stdout, false)
}

func (r *optimizeRun) paths(ctx context.Context, args []string, stdout io.Writer) int {
	result, err := loader.NewFileLoader().
		WithMetrics(r.metrics).
		WithFilter(r.filter).
		All(args)
	if err != nil {
		r.printErrors(err)
		return 1
	}
	return r.process(ctx, r.params, pyFiles(result), stdout, false)
}

func (r *optimizeRun) watch(ctx context.Context, args []string, stdout io.Writer) int {
	onReload := func(ctx context.Context, result *loader.Result, d time.Duration, err error) {
		if err != nil {
			r.printErrors(err)
			return
		}
		r.logger.WithFields(map[string]any{
			"files":    len(result.Modules),
			"duration": d.String(),
		}).Debug("Reloaded files.")
		r.process(ctx, r.params, pyFiles(result), stdout, true)
	}

	w := filewatcher.NewFileWatcher(args, r.filter, onReload, r.logger)
	if err := w.Start(ctx); err != nil {
		fmt.Fprintln(r.stderr, err)
		return 1
	}

	r.logger.Info("Watching %d path(s) for changes.", len(args))
	<-ctx.Done()
	return 0
}

func pyFiles(result *loader.Result) []*loader.PyFile {
	fs := make([]*loader.PyFile, 0, len(result.Modules))
	for _, name := range result.Names() {
		fs = append(fs, result.Modules[name])
	}
	return fs
}

// process optimizes fs in order and writes the output params selects. With
// fresh set, files whose content was already processed are skipped.
func (r *optimizeRun) process(ctx context.Context, params *optimizeCommandParams, fs []*loader.PyFile, stdout io.Writer, fresh bool) int {
	var reports []presentation.FileReport

	for _, f := range fs {
		res, hit, err := r.file(ctx, f)
		if err != nil {
			r.printErrors(err)
			return 1
		}
		if hit && fresh {
			continue
		}

		reports = append(reports, presentation.FileReport{File: res.name, Loops: res.report.Loops})

		if err := r.output(params, res, stdout); err != nil {
			var oe optimizeError
			if errors.As(err, &oe) {
				fmt.Fprintln(r.stderr, oe.msg)
				return oe.code
			}
			fmt.Fprintln(r.stderr, err)
			return 1
		}
	}

	if err := r.printReport(params, reports, stdout); err != nil {
		fmt.Fprintln(r.stderr, err)
		return 1
	}

	return 0
}

// file optimizes f, consulting the cache first.
func (r *optimizeRun) file(ctx context.Context, f *loader.PyFile) (*fileResult, bool, error) {
	key := sourcecache.Key([]byte(f.Name), f.Raw, []byte(strconv.Itoa(r.params.maxExponent)))
	if res, ok := r.cache.Get(key); ok {
		return res, true, nil
	}

	ctx, span := r.tracer.Start(ctx, "optimize_file", trace.WithAttributes(attribute.String("file", f.Name)))
	defer span.End()

	t0 := time.Now()

	optimized, report, err := r.optimizer.ModuleContext(ctx, f.Parsed)
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}

	if r.params.verify {
		r.metrics.Timer(metrics.OptimizeVerify).Start()
		err := verifyModule(ctx, f.Parsed, optimized)
		r.metrics.Timer(metrics.OptimizeVerify).Stop()
		switch {
		case errors.Is(err, errNotVerified):
			r.logger.WithFields(map[string]any{"file": f.Name}).Warn("File was not verified: %v", err)
		case err != nil:
			return nil, false, fmt.Errorf("%v: verification failed: %w", f.Name, err)
		}
	}

	r.metrics.Timer(metrics.OptimizeRender).Start()
	original, err := format.Ast(f.Parsed)
	if err != nil {
		return nil, false, err
	}

	rendered, err := format.Ast(optimized)
	r.metrics.Timer(metrics.OptimizeRender).Stop()
	if err != nil {
		return nil, false, err
	}

	d := time.Since(t0)
	r.prom.Observe(report, d)

	span.SetAttributes(
		attribute.Int("rewritten", report.Rewritten()),
		attribute.Int("blocked", report.Blocked()),
	)

	r.logger.WithFields(map[string]any{
		"file":      f.Name,
		"rewritten": report.Rewritten(),
		"blocked":   report.Blocked(),
		"duration":  d.String(),
	}).Debug("Optimized file.")

	res := &fileResult{
		name:      f.Name,
		original:  original,
		optimized: rendered,
		report:    report,
	}
	r.cache.Add(key, res)
	return res, false, nil
}

func (r *optimizeRun) output(params *optimizeCommandParams, res *fileResult, out io.Writer) error {
	changed := res.changed()

	if params.fail && !params.list && !params.diff {
		if changed {
			return newError("unexpected rewrite in %v", res.name)
		}
	}

	if params.list {
		if changed {
			fmt.Fprintln(out, res.name)

			if params.fail {
				return newError("unexpected rewrite in %v", res.name)
			}
		}
		return nil
	}

	if params.diff {
		if changed {
			if _, err := out.Write(diff.UnifiedContext(res.name, res.name, res.original, res.optimized, params.context)); err != nil {
				return err
			}

			if params.fail {
				return newError("unexpected rewrite in %v", res.name)
			}
		}
		return nil
	}

	if params.overwrite {
		if !changed {
			return nil
		}
		info, err := os.Stat(res.name)
		if err != nil {
			return newError("failed to open file for writing: %v", err)
		}
		if err := os.WriteFile(res.name, res.optimized, info.Mode().Perm()); err != nil {
			return newError("failed writing optimized contents: %v", err)
		}
		return nil
	}

	if params.report.String() != formats.None {
		return nil
	}

	if _, err := out.Write(res.optimized); err != nil {
		return newError("failed writing optimized contents: %v", err)
	}

	return nil
}

func (r *optimizeRun) printReport(params *optimizeCommandParams, reports []presentation.FileReport, out io.Writer) error {
	switch params.report.String() {
	case formats.JSON:
		output := presentation.Output{Files: reports}
		if params.metrics {
			output.Metrics = r.prom
		}
		return presentation.JSON(out, output)
	case formats.YAML:
		output := presentation.Output{Files: reports}
		if params.metrics {
			output.Metrics = r.metrics
		}
		return presentation.YAML(out, output)
	case formats.Pretty:
		output := presentation.Output{Files: reports}
		if params.metrics {
			output.Metrics = r.metrics
		}
		return presentation.Pretty(out, output)
	}

	if params.metrics {
		return presentation.Pretty(r.stderr, presentation.Output{Metrics: r.metrics})
	}
	return nil
}

func (r *optimizeRun) printErrors(err error) {
	_ = presentation.Pretty(r.stderr, presentation.Output{Errors: presentation.NewOutputErrors(err)})
}
