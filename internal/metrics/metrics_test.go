// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/corext/corext/pkg/resource"
)

func gather(t *testing.T, o *Observer) map[string][]*dto.Metric {
	t.Helper()
	families, err := o.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	out := make(map[string][]*dto.Metric, len(families))
	for _, f := range families {
		out[f.GetName()] = f.GetMetric()
	}
	return out
}

func labelsOf(m *dto.Metric) string {
	var parts []string
	for _, l := range m.GetLabel() {
		parts = append(parts, l.GetName()+"="+l.GetValue())
	}
	return strings.Join(parts, ",")
}

func TestObserver_FetchCompleted(t *testing.T) {
	t.Parallel()

	o := New()
	o.FetchCompleted("http://a/x.js", resource.SourceNetwork, 100, 20*time.Millisecond, nil)
	o.FetchCompleted("http://a/y.js", resource.SourceCache, 50, time.Millisecond, nil)
	o.FetchCompleted("http://a/z.js", resource.SourceNetwork, 0, time.Second, fmt.Errorf("x: %w", resource.ErrTimeout))
	o.FetchCompleted("http://a/w.js", resource.SourceNetwork, 0, time.Second, errors.New("refused"))

	got := gather(t, o)

	counts := map[string]float64{}
	for _, m := range got["corext_fetches_total"] {
		counts[labelsOf(m)] = m.GetCounter().GetValue()
	}
	want := map[string]float64{
		"outcome=ok,source=network":      1,
		"outcome=ok,source=cache":        1,
		"outcome=timeout,source=network": 1,
		"outcome=error,source=network":   1,
	}
	for k, v := range want {
		if counts[k] != v {
			t.Errorf("fetches_total{%s} = %v, want %v", k, counts[k], v)
		}
	}

	if hits := got["corext_cache_hits_total"]; len(hits) != 1 || hits[0].GetCounter().GetValue() != 1 {
		t.Errorf("expected one cache hit, got %v", hits)
	}
	var bytes float64
	for _, m := range got["corext_fetch_bytes_total"] {
		bytes += m.GetCounter().GetValue()
	}
	if bytes != 150 {
		t.Errorf("fetch_bytes_total = %v, want 150", bytes)
	}
	var samples uint64
	for _, m := range got["corext_fetch_duration_seconds"] {
		samples += m.GetHistogram().GetSampleCount()
	}
	if samples != 4 {
		t.Errorf("duration samples = %d, want 4", samples)
	}
}

func TestObserver_StatusChanged(t *testing.T) {
	t.Parallel()

	o := New()
	o.StatusChanged("u", resource.StatusPending, resource.StatusLoading)
	o.StatusChanged("u", resource.StatusLoading, resource.StatusReady)
	o.StatusChanged("v", resource.StatusPending, resource.StatusLoading)

	got := gather(t, o)["corext_status_transitions_total"]
	if len(got) != 2 {
		t.Fatalf("expected 2 transition series, got %d", len(got))
	}
	for _, m := range got {
		want := 1.0
		if labelsOf(m) == fmt.Sprintf("from=%s,to=%s", resource.StatusPending, resource.StatusLoading) {
			want = 2
		}
		if m.GetCounter().GetValue() != want {
			t.Errorf("%s = %v, want %v", labelsOf(m), m.GetCounter().GetValue(), want)
		}
	}
}

func TestObserver_WriteTextfile(t *testing.T) {
	t.Parallel()

	o := New()
	o.FetchCompleted("http://a/x.js", resource.SourceNetwork, 10, time.Millisecond, nil)

	path := filepath.Join(t.TempDir(), "corext.prom")
	if err := o.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `corext_fetches_total{outcome="ok",source="network"} 1`) {
		t.Errorf("textfile missing fetch counter:\n%s", data)
	}
}

func TestObserversAreIndependent(t *testing.T) {
	t.Parallel()

	a, b := New(), New()
	a.CacheHits.Inc()
	if len(gather(t, b)["corext_cache_hits_total"]) != 1 || gather(t, b)["corext_cache_hits_total"][0].GetCounter().GetValue() != 0 {
		t.Error("observers should not share state")
	}
}
