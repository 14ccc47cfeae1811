// Copyright 2017 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"github.com/spf13/pflag"

	"github.com/sumfold/sumfold/optimizer"
	"github.com/sumfold/sumfold/util"
)

func setIgnore(fs *pflag.FlagSet, ignoreNames *[]string) {
	fs.StringSliceVarP(ignoreNames, "ignore", "", []string{}, "set file and directory names to ignore during loading (e.g., '.*' excludes hidden files)")
}

func setMaxExponent(fs *pflag.FlagSet, k *int) {
	fs.IntVarP(k, "max-exponent", "k", optimizer.DefaultMaxExponent, "set the largest constant exponent that is expanded")
}

func addOutputFormat(fs *pflag.FlagSet, outputFormat *util.EnumFlag) {
	fs.VarP(outputFormat, "format", "f", "set output format")
}

func addConfigFileFlag(fs *pflag.FlagSet, file *string) {
	fs.StringVarP(file, "config-file", "c", "", "set path of configuration file")
}

func addConfigOverrides(fs *pflag.FlagSet, overrides *[]string) {
	fs.StringArrayVar(overrides, "set", []string{}, "override config values on the command line (use commas to specify multiple values)")
}

func addConfigOverrideFiles(fs *pflag.FlagSet, overrides *[]string) {
	fs.StringArrayVar(overrides, "set-file", []string{}, "override config values with files on the command line (use commas to specify multiple values)")
}

func addLogLevelFlag(fs *pflag.FlagSet, logLevel *util.EnumFlag) {
	fs.Var(logLevel, "log-level", "set log level")
}

func addLogFormatFlag(fs *pflag.FlagSet, logFormat *util.EnumFlag) {
	fs.Var(logFormat, "log-format", "set log format")
}

func newLogLevelFlag() *util.EnumFlag {
	return util.NewEnumFlag("info", []string{"debug", "info", "warn", "error"})
}

func newLogFormatFlag() *util.EnumFlag {
	return util.NewEnumFlag("text", []string{"text", "json", "json-pretty"})
}
