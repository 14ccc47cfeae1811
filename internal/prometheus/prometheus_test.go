// Copyright 2022 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package prometheus

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sumfold/sumfold/logging"
	"github.com/sumfold/sumfold/metrics"
	"github.com/sumfold/sumfold/optimizer"
)

func testLogger(logger logging.Logger) loggerFunc {
	return func(attrs map[string]any, f string, a ...any) {
		logger.WithFields(attrs).Error(f, a...)
	}
}

func testReport(t *testing.T) *optimizer.Report {
	t.Helper()
	src := "S = 0\nfor i in range(10):\n    S += i\nfor i in range(3):\n    T += i\n"
	_, report, err := optimizer.New().Source("a.py", src)
	if err != nil {
		t.Fatal(err)
	}
	return report
}

func TestJSONSerialization(t *testing.T) {
	inner := metrics.New()
	inner.Counter(metrics.LoopsRewritten).Incr()

	prom := New(inner, testLogger(logging.NewNoOpLogger()))
	prom.Observe(testReport(t), time.Millisecond)

	m := prom.All()
	bs, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}

	act := make(map[string]any, len(m))
	if err := json.Unmarshal(bs, &act); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"counter_loops_rewritten", "sumfold_constructs_total", "sumfold_file_duration_seconds", "go_goroutines"} {
		if _, ok := act[key]; !ok {
			t.Errorf("Expected key %v in %v", key, string(bs))
		}
	}

	family, ok := act["sumfold_constructs_total"].(map[string]any)
	if !ok {
		t.Fatalf("Expected metric family object but got %v", act["sumfold_constructs_total"])
	}
	if family["name"] != "sumfold_constructs_total" || family["type"] != "COUNTER" {
		t.Fatalf("Unexpected metric family: %v", family)
	}
}

func TestObserve(t *testing.T) {
	prom := New(metrics.New(), nil)
	prom.Observe(testReport(t), time.Millisecond)
	prom.Observe(nil, time.Millisecond)

	if v := testutil.ToFloat64(prom.constructs.WithLabelValues("for", "resolved")); v != 1 {
		t.Fatalf("Expected one resolved loop but got %v", v)
	}
	if v := testutil.ToFloat64(prom.constructs.WithLabelValues("for", "blocked")); v != 1 {
		t.Fatalf("Expected one blocked loop but got %v", v)
	}
	if n := testutil.CollectAndCount(prom.duration); n != 1 {
		t.Fatalf("Expected one histogram but got %v", n)
	}
}

func TestInnerMetricsExported(t *testing.T) {
	inner := metrics.New()
	inner.Counter(metrics.LoopsRewritten).Add(2)
	inner.Counter(metrics.LoopsBlocked).Incr()

	prom := New(inner, nil)

	exp := `
# HELP sumfold_counter_loops_rewritten Exported from counter counter_loops_rewritten.
# TYPE sumfold_counter_loops_rewritten counter
sumfold_counter_loops_rewritten 2
`
	err := testutil.GatherAndCompare(prom.Gatherer(), strings.NewReader(exp), "sumfold_counter_loops_rewritten")
	if err != nil {
		t.Fatal(err)
	}

	prom.Clear()
	if n, err := testutil.GatherAndCount(prom.Gatherer(), "sumfold_counter_loops_rewritten"); err != nil || n != 0 {
		t.Fatalf("Expected no inner counters after clear but got %v (%v)", n, err)
	}
}

func TestWriteTextfile(t *testing.T) {
	inner := metrics.New()
	inner.Counter(metrics.SumsRewritten).Add(3)

	prom := New(inner, nil)
	prom.Observe(testReport(t), time.Millisecond)

	path := filepath.Join(t.TempDir(), "sumfold.prom")
	if err := prom.WriteTextfile(path); err != nil {
		t.Fatal(err)
	}

	bs, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	for _, exp := range []string{
		"sumfold_counter_sums_rewritten 3\n",
		`sumfold_constructs_total{kind="for",status="resolved"} 1`,
		"sumfold_file_duration_seconds_count 1\n",
	} {
		if !strings.Contains(string(bs), exp) {
			t.Fatalf("Expected textfile to contain %q:\n\n%s", exp, bs)
		}
	}
}

func TestProviderIsMetrics(t *testing.T) {
	var m metrics.Metrics = New(metrics.New(), nil)
	m.Counter(metrics.LoopsBlocked).Incr()
	if _, ok := m.All()["counter_loops_blocked"]; !ok {
		t.Fatalf("Expected inner counter in %v", m.All())
	}
}
