// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package presentation prints optimization reports and evaluation results
// in json, yaml and tabular formats.
package presentation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/sumfold/sumfold/ast"
	"github.com/sumfold/sumfold/eval"
	"github.com/sumfold/sumfold/loader"
	"github.com/sumfold/sumfold/metrics"
	"github.com/sumfold/sumfold/optimizer"
)

// FileReport lists the constructs considered in one file.
type FileReport struct {
	File  string                 `json:"file"`
	Loops []optimizer.LoopResult `json:"loops"`
}

// Output contains the result of an optimization run to be presented.
type Output struct {
	Errors  OutputErrors    `json:"errors,omitempty"`
	Files   []FileReport    `json:"files,omitempty"`
	Metrics metrics.Metrics `json:"metrics,omitempty"`
	limit   int
}

// WithLimit sets the output limit to set on stringified values.
func (e Output) WithLimit(n int) Output {
	e.limit = n
	return e
}

// NewOutputErrors creates a new slice of OutputError's based
// on the type of error passed in. Known structured types will
// be translated as appropriate, while unknown errors are
// placed into a structured format with their string value.
func NewOutputErrors(err error) []OutputError {
	if err == nil {
		return nil
	}

	var astErrs ast.Errors
	var loaderErrs loader.Errors
	var astErr *ast.Error
	var evalErr *eval.Error

	switch {
	// Wrappers for other errors, format errors recursively on them.
	case errors.As(err, &loaderErrs):
		var errs []OutputError
		for _, e := range loaderErrs {
			errs = append(errs, NewOutputErrors(e)...)
		}
		return errs
	case errors.As(err, &astErrs):
		var errs []OutputError
		for _, e := range astErrs {
			if e != nil {
				errs = append(errs, NewOutputErrors(e)...)
			}
		}
		return errs

	case errors.As(err, &astErr):
		oe := OutputError{
			Code:    astErr.Code,
			Message: astErr.Message,
			err:     astErr,
		}
		if astErr.Location != nil {
			oe.Location = astErr.Location
		}
		return []OutputError{oe}
	case errors.As(err, &evalErr):
		oe := OutputError{
			Code:    evalErr.Code,
			Message: evalErr.Message,
			err:     evalErr,
		}
		if evalErr.Location != nil {
			oe.Location = evalErr.Location
		}
		return []OutputError{oe}
	}

	// Any errors which don't have a structure we know about
	// are converted to their string representation only.
	return []OutputError{{
		Message: err.Error(),
		err:     err,
	}}
}

// OutputErrors is a list of errors encountered
// which are to presented.
type OutputErrors []OutputError

func (e OutputErrors) Error() string {
	if len(e) == 0 {
		return "no error(s)"
	}

	var prefix string
	if len(e) == 1 {
		prefix = "1 error occurred: "
	} else {
		prefix = fmt.Sprintf("%d errors occurred:\n", len(e))
	}

	s := make([]string, 0, len(e))
	for _, err := range e {
		s = append(s, err.Error())
	}

	return prefix + strings.Join(s, "\n")
}

// OutputError provides a common structure for all errors so that the JSON
// output given by the presentation package is consistent and parsable.
type OutputError struct {
	Message  string `json:"message"`
	Code     string `json:"code,omitempty"`
	Location any    `json:"location,omitempty"`
	err      error
}

func (j OutputError) Error() string {
	return j.err.Error()
}

// JSON writes x to w with indentation.
func JSON(w io.Writer, x any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(x)
}

// YAML writes x to w as YAML. Fields are named and ordered as in the JSON
// encoding of x.
func YAML(w io.Writer, x any) error {
	bs, err := json.Marshal(x)
	if err != nil {
		return err
	}

	var node yaml.Node
	if err := yaml.Unmarshal(bs, &node); err != nil {
		return err
	}
	resetStyle(&node)

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(&node); err != nil {
		return err
	}
	return encoder.Close()
}

// resetStyle drops the flow and quoting styles the JSON input carried.
func resetStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		resetStyle(c)
	}
}

// Pretty prints all of r to w in a human-readable format.
func Pretty(w io.Writer, r Output) error {
	if len(r.Errors) > 0 {
		if err := prettyError(w, r.Errors); err != nil {
			return err
		}
	}
	for _, f := range r.Files {
		if err := prettyFile(w, f, r.limit); err != nil {
			return err
		}
	}
	if r.Metrics != nil {
		if err := prettyMetrics(w, r.Metrics, r.limit); err != nil {
			return err
		}
	}
	return nil
}

// Discard prints nothing.
func Discard(io.Writer, any) error {
	return nil
}

// Bindings prints the integer values of names in a two column table.
func Bindings(w io.Writer, names []string, values map[string]string, limit int) error {
	table := generateTableWithKeys(w, "name", "value")
	for _, name := range names {
		v, ok := values[name]
		if !ok {
			continue
		}
		table.Append([]string{name, checkStrLimit(v, limit)})
	}
	if table.NumLines() > 0 {
		table.Render()
	}
	return nil
}

func prettyError(w io.Writer, errs OutputErrors) error {
	_, err := fmt.Fprintln(w, errs)
	return err
}

func prettyFile(w io.Writer, f FileReport, limit int) error {
	if len(f.Loops) == 0 {
		return nil
	}

	if _, err := fmt.Fprintln(w, f.File+":"); err != nil {
		return err
	}

	table := generateTableWithKeys(w, "location", "kind", "status", "detail")
	table.SetAutoWrapText(false)
	for _, l := range f.Loops {
		detail := l.Replacement
		if l.Status == optimizer.Blocked {
			detail = l.Reason
		}
		table.Append([]string{
			l.Location.String(),
			l.Kind.String(),
			l.Status.String(),
			checkStrLimit(detail, limit),
		})
	}
	table.Render()
	return nil
}

func prettyMetrics(w io.Writer, m metrics.Metrics, limit int) error {
	tableMetrics := generateTableMetrics(w)
	populateTableMetrics(m, tableMetrics, limit)
	if tableMetrics.NumLines() > 0 {
		tableMetrics.Render()
	}
	return nil
}

func checkStrLimit(input string, limit int) string {
	if limit > 0 && len(input) > limit {
		input = input[:limit] + "..."
		return input
	}
	return input
}

func generateTableMetrics(writer io.Writer) *tablewriter.Table {
	return generateTableWithKeys(writer, "Metric", "Value")
}

func generateTableWithKeys(writer io.Writer, keys ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(writer)
	aligns := make([]int, 0, len(keys))
	hdrs := make([]string, 0, len(keys))
	for _, k := range keys {
		hdrs = append(hdrs, strings.Title(k)) //nolint:staticcheck // SA1019, no unicode here
		aligns = append(aligns, tablewriter.ALIGN_LEFT)
	}
	table.SetHeader(hdrs)
	table.SetAlignment(tablewriter.ALIGN_CENTER)
	table.SetColumnAlignment(aligns)
	return table
}

func populateTableMetrics(m metrics.Metrics, table *tablewriter.Table, prettyLimit int) {
	lines := [][]string{}
	for varName, varValueInterface := range m.All() {
		val, ok := varValueInterface.(map[string]any)
		if !ok {
			varValue := checkStrLimit(fmt.Sprintf("%v", varValueInterface), prettyLimit)
			lines = append(lines, []string{varName, varValue})
			continue
		}
		for k, v := range val {
			newVarName := fmt.Sprintf("%v_%v", varName, k)
			value := checkStrLimit(fmt.Sprintf("%v", v), prettyLimit)
			lines = append(lines, []string{newVarName, value})
		}
	}
	sortMetricRows(lines)
	table.AppendBulk(lines)
}

func sortMetricRows(data [][]string) {
	sort.Slice(data, func(i, j int) bool {
		return data[i][0] < data[j][0]
	})
}
