// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"sigs.k8s.io/yaml"

	"github.com/sumfold/sumfold/util/test"
)

func setTestEnvVar(t *testing.T, name, value string) string {
	envKey := fmt.Sprintf("%s_%s", t.Name(), name)
	t.Setenv(envKey, value)
	return envKey
}

func TestSubEnvVars(t *testing.T) {
	key := setTestEnvVar(t, "LEVEL", "debug")
	missing := setTestEnvVar(t, "MISSING", "x")
	os.Unsetenv(missing)

	tests := []struct {
		note  string
		input string
		exp   string
	}{
		{"one", fmt.Sprintf("level: ${%s}", key), "level: debug"},
		{"multi", fmt.Sprintf("a: ${%s}\nb: '${%s}'", key, key), "a: debug\nb: 'debug'"},
		{"none", "level: info", "level: info"},
		{"empty", "", ""},
		{"missing", fmt.Sprintf("level: '${%s}'", missing), "level: ''"},
		{"empty name", "level: '${}'", "level: ''"},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			if actual := subEnvVars(tc.input); actual != tc.exp {
				t.Errorf("Expected: '%s'\nActual: '%s'", tc.exp, actual)
			}
		})
	}
}

func TestMergeValues(t *testing.T) {
	tests := []struct {
		note string
		dest map[string]any
		src  map[string]any
		exp  map[string]any
	}{
		{
			note: "no override",
			dest: map[string]any{},
			src:  map[string]any{"a": map[string]any{"b": "foo"}},
			exp:  map[string]any{"a": map[string]any{"b": "foo"}},
		},
		{
			note: "override single",
			dest: map[string]any{"a": "bar"},
			src:  map[string]any{"a": "override"},
			exp:  map[string]any{"a": "override"},
		},
		{
			note: "override nested",
			dest: map[string]any{"a": map[string]any{"k1": "v1", "k2": "v2"}},
			src:  map[string]any{"a": map[string]any{"k1": "v1-override"}},
			exp:  map[string]any{"a": map[string]any{"k1": "v1-override", "k2": "v2"}},
		},
		{
			note: "list replaced",
			dest: map[string]any{"a": []any{"x", "y"}},
			src:  map[string]any{"a": []any{"z"}},
			exp:  map[string]any{"a": []any{"z"}},
		},
		{
			note: "map replaces scalar",
			dest: map[string]any{"a": "x"},
			src:  map[string]any{"a": map[string]any{"b": "c"}},
			exp:  map[string]any{"a": map[string]any{"b": "c"}},
		},
		{
			note: "no src",
			dest: map[string]any{"a": "foo"},
			src:  map[string]any{},
			exp:  map[string]any{"a": "foo"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			if diff := cmp.Diff(tc.exp, mergeValues(tc.dest, tc.src)); diff != "" {
				t.Errorf("merged map does not match expected (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	files := map[string]string{
		"/conf/sumfold.yaml": `
max_exponent: 16
logging:
  level: info
  format: text
`,
		"/conf/level.txt": "debug\n",
	}

	test.WithTempFS(files, func(rootDir string) {
		configFile := filepath.Join(rootDir, "conf", "sumfold.yaml")
		levelFile := filepath.Join(rootDir, "conf", "level.txt")

		bs, err := Load(configFile,
			[]string{"max_exponent=8", "distributed_tracing.type=grpc"},
			[]string{"logging.level=" + levelFile},
		)
		if err != nil {
			t.Fatal(err)
		}

		var conf map[string]any
		if err := yaml.Unmarshal(bs, &conf); err != nil {
			t.Fatal(err)
		}

		exp := map[string]any{
			"max_exponent": float64(8),
			"logging": map[string]any{
				"level":  "debug",
				"format": "text",
			},
			"distributed_tracing": map[string]any{
				"type": "grpc",
			},
		}

		if diff := cmp.Diff(exp, conf); diff != "" {
			t.Fatalf("config does not match expected (-want, +got):\n%s", diff)
		}
	})
}

func TestLoadNoConfigFile(t *testing.T) {
	bs, err := Load("", []string{"ignore=[vendor, build]"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if exp := "ignore:\n- vendor\n- build\n"; string(bs) != exp {
		t.Fatalf("Expected %q but got %q", exp, string(bs))
	}

	bs, err = Load("", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(bs) != "{}\n" {
		t.Fatalf("Expected empty object but got %q", string(bs))
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load("", []string{"novalue"}, nil); err == nil {
		t.Fatal("Expected error for override without value")
	}
	if _, err := Load("", nil, []string{"a=/does/not/exist"}); err == nil {
		t.Fatal("Expected error for missing override file")
	}
	if _, err := Load("/does/not/exist.yaml", nil, nil); err == nil {
		t.Fatal("Expected error for missing config file")
	}
}
