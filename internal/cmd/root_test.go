package cmd

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fmrest/fmrest-cli/internal/fmrest"
)

func TestVersionCmd(t *testing.T) {
	isolateConfig(t)

	res := runCmd(t, "version")
	if res.Err != nil {
		t.Fatalf("version failed: %v", res.Err)
	}
	if !strings.HasPrefix(res.Stdout, "fmrest version ") {
		t.Errorf("stdout = %q", res.Stdout)
	}

	res = runCmd(t, "version", "-o", "json", "--jq", ".version")
	if res.Err != nil {
		t.Fatalf("version json failed: %v", res.Err)
	}
	if strings.TrimSpace(res.Stdout) != `"`+version+`"` {
		t.Errorf("stdout = %q", res.Stdout)
	}
}

func TestGlobalFlagValidation(t *testing.T) {
	isolateConfig(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"json conflicts with text output", []string{"version", "--json", "--output", "text"}, "--json conflicts"},
		{"jq needs json output", []string{"version", "--jq", ".", "-o", "text"}, "--jq requires"},
		{"bad output", []string{"version", "-o", "xml"}, "xml"},
		{"negative timeout", []string{"version", "--timeout", "-1s"}, "--timeout"},
		{"bad token store", []string{"version", "--token-store", "disk"}, "invalid token store"},
		{"bad print event", []string{"version", "--print", "nope"}, "invalid --print event"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCmd(t, tt.args...)
			if res.Err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(res.Err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", res.Err, tt.want)
			}
		})
	}
}

func TestJQImpliesJSON(t *testing.T) {
	isolateConfig(t)

	res := runCmd(t, "version", "--jq", ".go")
	if res.Err != nil {
		t.Fatalf("version failed: %v", res.Err)
	}
	if !strings.HasPrefix(strings.TrimSpace(res.Stdout), `"go`) {
		t.Errorf("stdout = %q", res.Stdout)
	}
}

func TestUnknownCommandSuggestion(t *testing.T) {
	isolateConfig(t)

	res := runCmd(t, "recrods")
	if res.Err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(res.Stderr, `Did you mean "records"?`) {
		t.Errorf("stderr = %q", res.Stderr)
	}
	if got := ExitCode(res.Err); got != exitUsage {
		t.Errorf("exit code = %d, want %d", got, exitUsage)
	}
}

func TestUnknownFlagSuggestion(t *testing.T) {
	isolateConfig(t)

	res := runCmd(t, "records", "list", "--layuot", "Contacts")
	if res.Err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(res.Stderr, `Did you mean "--layout"?`) {
		t.Errorf("stderr = %q", res.Stderr)
	}
	if !strings.Contains(res.Stderr, "fmrest records list --help") {
		t.Errorf("stderr should point at command help: %q", res.Stderr)
	}
}

func TestPrintFlagWritesPipelineEvents(t *testing.T) {
	handler := newRouteHandler().
		On("GET", dataPath("/layouts"), fmResponse(`{"layouts":[{"name":"Contacts"}]}`))
	env := setupTestEnv(t, handler)

	res := runCmd(t, "layouts", "--print", "request-url=URL", "--print", "completion", "--print", "request-header")
	if res.Err != nil {
		t.Fatalf("layouts failed: %v\n%s", res.Err, res.Stderr)
	}
	if !strings.Contains(res.Stderr, "URL "+env.server.URL+dataPath("/layouts")) {
		t.Errorf("stderr missing labeled URL line:\n%s", res.Stderr)
	}
	if !strings.Contains(res.Stderr, "[completion] finished") {
		t.Errorf("stderr missing completion line:\n%s", res.Stderr)
	}
	if strings.Contains(res.Stderr, "test-token") {
		t.Errorf("printed headers must not reveal the token:\n%s", res.Stderr)
	}
	if strings.Contains(res.Stderr, "[request-body]") {
		t.Errorf("inactive events must not print:\n%s", res.Stderr)
	}
}

func TestSilentDiscardsStderr(t *testing.T) {
	handler := newRouteHandler().
		On("GET", dataPath("/layouts"), fmResponse(`{"layouts":[]}`))
	setupTestEnv(t, handler)

	res := runCmd(t, "layouts", "--silent", "--print", "all")
	if res.Err != nil {
		t.Fatalf("layouts failed: %v", res.Err)
	}
	if res.Stderr != "" {
		t.Errorf("expected no stderr with --silent, got %q", res.Stderr)
	}
}

func TestMetricsFileWritten(t *testing.T) {
	handler := newRouteHandler().
		On("GET", dataPath("/layouts"), fmResponse(`{"layouts":[{"name":"Contacts"}]}`))
	setupTestEnv(t, handler)

	path := filepath.Join(t.TempDir(), "fmrest.prom")
	res := runCmd(t, "layouts", "--mf", path)
	if res.Err != nil {
		t.Fatalf("layouts failed: %v\n%s", res.Err, res.Stderr)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	for _, want := range []string{`fmrest_requests_total{method="GET",outcome="ok"} 1`, "fmrest_request_duration_seconds"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics missing %q:\n%s", want, data)
		}
	}
}

func TestTimeoutIsNetworkError(t *testing.T) {
	handler := newRouteHandler().
		On("GET", dataPath("/layouts"), func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
			fmResponse(`{"layouts":[]}`)(w, r)
		})
	setupTestEnv(t, handler)

	res := runCmd(t, "layouts", "--timeout", "50ms")
	if res.Err == nil {
		t.Fatal("expected timeout error")
	}
	if got := ExitCode(res.Err); got != exitNetwork {
		t.Errorf("exit code = %d, want %d", got, exitNetwork)
	}
}

func TestParsePrintFlags(t *testing.T) {
	set, err := parsePrintFlags([]string{"request-url", "output=OUT:", "cancel="})
	if err != nil {
		t.Fatal(err)
	}
	if got := set.Toggle(fmrest.EventRequestURL); !got.Active || got.Label != "[request-url]" {
		t.Errorf("request-url toggle = %+v", got)
	}
	if got := set.Toggle(fmrest.EventOutput); !got.Active || got.Label != "OUT:" {
		t.Errorf("output toggle = %+v", got)
	}
	if got := set.Toggle(fmrest.EventCancel); !got.Active || got.Label != "" {
		t.Errorf("cancel toggle = %+v", got)
	}
	if set.Toggle(fmrest.EventRequestBody).Active {
		t.Error("request-body should stay inactive")
	}

	all, err := parsePrintFlags([]string{"ALL"})
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range fmrest.EventNames() {
		ev, _ := fmrest.ParseEvent(name)
		if !all.Toggle(ev).Active {
			t.Errorf("all should enable %s", name)
		}
	}
	if !anyPrintActive(all) {
		t.Error("anyPrintActive(all) = false")
	}

	empty, err := parsePrintFlags(nil)
	if err != nil || anyPrintActive(empty) {
		t.Errorf("nil flags: %+v, %v", empty, err)
	}

	if _, err := parsePrintFlags([]string{"bogus"}); err == nil {
		t.Error("expected error for unknown event")
	}
}

func TestExtractHelpers(t *testing.T) {
	if got := extractQuoted(`unknown command "recrods" for "fmrest"`); got != "recrods" {
		t.Errorf("extractQuoted = %q", got)
	}
	if got := extractQuoted("no quotes"); got != "" {
		t.Errorf("extractQuoted = %q", got)
	}
	tests := map[string]string{
		"unknown flag: --layuot":                 "--layuot",
		"unknown shorthand flag: 'z' in -z":      "-z",
		"unknown flag: --foo, did you mean that": "--foo",
		"nothing here":                           "",
	}
	for in, want := range tests {
		if got := extractFlag(in); got != want {
			t.Errorf("extractFlag(%q) = %q, want %q", in, got, want)
		}
	}
}
