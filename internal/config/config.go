// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package config loads the configuration file given on the command line and
// applies --set and --set-file overrides to it.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"sigs.k8s.io/yaml"
)

// Load reads the configuration file (if any), substitutes ${VAR} references
// with environment values and merges the overrides into the result. The
// merged configuration is returned as YAML.
func Load(configFile string, overrides []string, overrideFiles []string) ([]byte, error) {
	baseConf := map[string]any{}

	if configFile != "" {
		bs, err := os.ReadFile(configFile)
		if err != nil {
			return nil, err
		}

		processedConf := subEnvVars(string(bs))

		if err := yaml.Unmarshal([]byte(processedConf), &baseConf); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %s", configFile, err)
		}
		if baseConf == nil {
			baseConf = map[string]any{}
		}
	}

	overrideConf := map[string]any{}

	for _, override := range overrides {
		key, value, err := splitOverride(subEnvVars(override))
		if err != nil {
			return nil, fmt.Errorf("failed parsing --set data: %s", err)
		}
		var v any
		if err := yaml.Unmarshal([]byte(value), &v); err != nil {
			v = value
		}
		setPath(overrideConf, key, v)
	}

	for _, override := range overrideFiles {
		key, path, err := splitOverride(override)
		if err != nil {
			return nil, fmt.Errorf("failed parsing --set-file data: %s", err)
		}
		bs, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed parsing --set-file data: %s", err)
		}
		setPath(overrideConf, key, strings.TrimSpace(string(bs)))
	}

	conf := mergeValues(baseConf, overrideConf)

	return yaml.Marshal(conf)
}

func splitOverride(s string) (string, string, error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return "", "", fmt.Errorf("key %q has no value", s)
	}
	return key, value, nil
}

// setPath stores v under the dot separated key, creating intermediate
// objects as needed.
func setPath(dest map[string]any, key string, v any) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := dest[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			dest[p] = next
		}
		dest = next
	}
	dest[parts[len(parts)-1]] = v
}

// regex looking for ${...} notation strings
var envRegex = regexp.MustCompile(`(?U:\${.*})`)

// subEnvVars will look for any environment variables in the passed in string
// with the syntax of ${VAR_NAME} and replace that string with ENV[VAR_NAME]
func subEnvVars(s string) string {
	return envRegex.ReplaceAllStringFunc(s, func(s string) string {
		// Trim off the '${' and '}'
		if len(s) <= 3 {
			return ""
		}
		varName := s[2 : len(s)-1]

		// Undefined variables are treated as empty strings.
		return os.Getenv(varName)
	})
}

// mergeValues will merge source and destination map, preferring values from the source map
func mergeValues(dest map[string]any, src map[string]any) map[string]any {
	for k, v := range src {
		if _, exists := dest[k]; !exists {
			dest[k] = v
			continue
		}
		nextMap, ok := v.(map[string]any)
		if !ok {
			dest[k] = v
			continue
		}
		destMap, isMap := dest[k].(map[string]any)
		if !isMap {
			dest[k] = v
			continue
		}
		dest[k] = mergeValues(destMap, nextMap)
	}
	return dest
}
