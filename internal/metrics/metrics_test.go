package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fmrest/fmrest-cli/internal/fmrest"
)

func TestObserveCall(t *testing.T) {
	r := NewRecorder()
	r.ObserveCall(fmrest.MethodGet, 200, "ok", 20*time.Millisecond)
	r.ObserveCall(fmrest.MethodGet, 200, "ok", 30*time.Millisecond)
	r.ObserveCall(fmrest.MethodPost, 500, "api_error", time.Second)
	r.ObserveCall(fmrest.MethodPost, 0, "request_failed", time.Second)

	if got := testutil.ToFloat64(r.requests.WithLabelValues("GET", "ok")); got != 2 {
		t.Errorf("GET ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.requests.WithLabelValues("POST", "api_error")); got != 1 {
		t.Errorf("POST api_error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.statuses.WithLabelValues("500")); got != 1 {
		t.Errorf("status 500 = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(r.statuses); got != 2 {
		t.Errorf("status series = %d, want 2 (no series for missing responses)", got)
	}
	if got := testutil.CollectAndCount(r.duration); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.ObserveCall(fmrest.MethodDelete, 401, "unauthorized", time.Millisecond)

	path := filepath.Join(t.TempDir(), "fmrest.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		`fmrest_requests_total{method="DELETE",outcome="unauthorized"} 1`,
		`fmrest_responses_total{code="401"} 1`,
		"fmrest_request_duration_seconds_count",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q:\n%s", want, out)
		}
	}
}
