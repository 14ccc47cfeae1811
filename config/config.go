// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package config implements sumfold configuration file parsing and validation.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/gobwas/glob"
	"sigs.k8s.io/yaml"

	"github.com/sumfold/sumfold/optimizer"
)

// Config represents the configuration file that sumfold can be started with.
type Config struct {
	MaxExponent        *int            `json:"max_exponent,omitempty"`
	Ignore             []string        `json:"ignore,omitempty"`
	Logging            *Logging        `json:"logging,omitempty"`
	DistributedTracing json.RawMessage `json:"distributed_tracing,omitempty"`
}

// Logging configures the command line logger. Values set by flags take
// precedence.
type Logging struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"`
}

// ParseConfig returns a valid Config object with defaults injected. The raw
// bytes may be YAML or JSON. An empty input yields the default configuration.
func ParseConfig(raw []byte) (*Config, error) {
	var result Config
	if err := yaml.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &result, result.validateAndInjectDefaults()
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c, _ := ParseConfig(nil)
	return c
}

func (c *Config) validateAndInjectDefaults() error {

	if c.MaxExponent == nil {
		k := optimizer.DefaultMaxExponent
		c.MaxExponent = &k
	}

	if *c.MaxExponent < 1 {
		return fmt.Errorf("invalid max_exponent %d, must be at least 1", *c.MaxExponent)
	}

	for _, pattern := range c.Ignore {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
	}

	if c.Logging == nil {
		c.Logging = &Logging{}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level '%s'", c.Logging.Level)
	}

	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}

	switch c.Logging.Format {
	case "text", "json", "json-pretty":
	default:
		return fmt.Errorf("unknown logging.format '%s'", c.Logging.Format)
	}

	return nil
}

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)
