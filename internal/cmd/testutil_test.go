package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/99designs/keyring"

	"github.com/fmrest/fmrest-cli/internal/cache"
	"github.com/fmrest/fmrest-cli/internal/config"
	"github.com/fmrest/fmrest-cli/internal/iocontext"
	"github.com/fmrest/fmrest-cli/internal/tokenstore"
)

// testDatabase is the database every test environment points at.
const testDatabase = "Sales"

// dataPath returns the server-side path of a database-scoped endpoint.
//
// Example:
//
//	dataPath("/layouts/Contacts/records") // "/fmi/data/vLatest/databases/Sales/layouts/Contacts/records"
func dataPath(suffix string) string {
	return "/fmi/data/vLatest/databases/" + testDatabase + suffix
}

// cmdResult is the captured outcome of one Execute call.
type cmdResult struct {
	Stdout string
	Stderr string
	Err    error
}

// runCmd executes the CLI with args and captures both streams through the
// context rather than swapping os.Stdout.
//
// Example:
//
//	res := runCmd(t, "records", "list", "-l", "Contacts")
//	if res.Err != nil {
//	    t.Fatalf("failed: %v\n%s", res.Err, res.Stderr)
//	}
func runCmd(t *testing.T, args ...string) cmdResult {
	t.Helper()
	return runCmdWithInput(t, "", args...)
}

// runCmdWithInput is runCmd with stdin set to input.
func runCmdWithInput(t *testing.T, input string, args ...string) cmdResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	ctx := iocontext.WithIO(context.Background(), &iocontext.IO{
		Out:    &stdout,
		ErrOut: &stderr,
		In:     strings.NewReader(input),
	})
	err := Execute(ctx, args)
	return cmdResult{Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
}

// testEnv is a mock Data API server plus the environment pointing at it.
type testEnv struct {
	t      *testing.T
	server *httptest.Server
}

// host is the server address as the CLI sees it (no scheme).
func (e *testEnv) host() string {
	return config.NormalizeHost(e.server.URL)
}

// tokenKey is the token store key for the test database.
func (e *testEnv) tokenKey() string {
	return tokenstore.Key(e.host(), testDatabase)
}

// setupTestEnv starts a mock server and configures the CLI through the
// environment.
//
// The function automatically:
//   - Points FMREST_HOST at the server over plain http
//   - Sets FMREST_DATABASE to testDatabase and FMREST_TOKEN to "test-token"
//   - Disables the token store so no real keyring is opened
//   - Moves the config dir into a temp dir so no real .env is loaded
//
// Example:
//
//	handler := newRouteHandler().
//	    On("GET", dataPath("/layouts"), fmResponse(`{"layouts":[]}`))
//	setupTestEnv(t, handler)
func setupTestEnv(t *testing.T, handler http.Handler) *testEnv {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	isolateConfig(t)
	t.Setenv(config.EnvHost, server.URL)
	t.Setenv(config.EnvScheme, "http")
	t.Setenv(config.EnvDatabase, testDatabase)
	t.Setenv(config.EnvToken, "test-token")
	t.Setenv(config.EnvTokenStore, tokenstore.KindNone)

	return &testEnv{t: t, server: server}
}

// isolateConfig clears every FMREST_* variable and points the config
// directory at a temp dir.
func isolateConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	for _, key := range []string{
		config.EnvHost, config.EnvDatabase, config.EnvToken, config.EnvVersion,
		config.EnvScheme, config.EnvRootPath, config.EnvProfile, config.EnvRedisURL,
		config.EnvTokenStore,
	} {
		t.Setenv(key, "")
	}
	t.Setenv("FMREST_OUTPUT", "text")
	t.Setenv(cache.EnvDir, filepath.Join(dir, "cache"))
	t.Setenv(cache.EnvDisable, "")
}

// withMockKeyring swaps the OS keyring for an in-memory one shared by every
// open during the test.
func withMockKeyring(t *testing.T) *keyring.ArrayKeyring {
	t.Helper()
	ring := keyring.NewArrayKeyring(nil)
	t.Cleanup(config.SetOpenKeyring(func(keyring.Config) (keyring.Keyring, error) {
		return ring, nil
	}))
	return ring
}

// jsonResponse creates an http.HandlerFunc that returns a JSON response with the given status and body.
func jsonResponse(statusCode int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_, _ = w.Write([]byte(body))
	}
}

// fmResponse wraps response in a successful Data API envelope.
func fmResponse(response string) http.HandlerFunc {
	return jsonResponse(http.StatusOK, `{"response":`+response+`,"messages":[{"code":"0","message":"OK"}]}`)
}

// fmError returns a Data API rejection carrying one message.
//
// Example:
//
//	fmError(500, "105", "Layout is missing")
func fmError(statusCode int, code, message string) http.HandlerFunc {
	return jsonResponse(statusCode, `{"response":{},"messages":[{"code":"`+code+`","message":"`+message+`"}]}`)
}

// withToken makes h answer with a renewed session token header.
func withToken(token string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-FM-Data-Access-Token", token)
		h(w, r)
	}
}

// routeHandler is a test HTTP handler that routes requests based on method and path.
//
// Routes are matched by exact "METHOD PATH" combination on the unescaped path.
// If no route matches, it returns 404 Not Found. Every request is recorded.
type routeHandler struct {
	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []*http.Request
}

// newRouteHandler creates a new routeHandler for defining mock API responses.
//
// Example:
//
//	handler := newRouteHandler().
//	    On("GET", dataPath("/layouts/Contacts/records"), fmResponse(`{"data":[]}`)).
//	    On("POST", dataPath("/layouts/Contacts/records"), fmResponse(`{"recordId":"1","modId":"0"}`))
func newRouteHandler() *routeHandler {
	return &routeHandler{routes: make(map[string]http.HandlerFunc)}
}

// On registers a handler for the given HTTP method and path.
// Returns the routeHandler to allow method chaining.
func (rh *routeHandler) On(method, path string, handler http.HandlerFunc) *routeHandler {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	rh.routes[method+" "+path] = handler
	return rh
}

// ServeHTTP implements http.Handler.
func (rh *routeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rh.mu.Lock()
	rh.requests = append(rh.requests, r.Clone(context.Background()))
	handler, ok := rh.routes[r.Method+" "+r.URL.Path]
	rh.mu.Unlock()

	if ok {
		handler(w, r)
		return
	}
	http.NotFound(w, r)
}

// Requests returns the recorded requests in arrival order.
func (rh *routeHandler) Requests() []*http.Request {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	return append([]*http.Request(nil), rh.requests...)
}

// Count returns how many requests hit method and path.
func (rh *routeHandler) Count(method, path string) int {
	n := 0
	for _, r := range rh.Requests() {
		if r.Method == method && r.URL.Path == path {
			n++
		}
	}
	return n
}

func TestTestInfrastructure(t *testing.T) {
	t.Run("routeHandler routes and records requests", func(t *testing.T) {
		handler := newRouteHandler().
			On("GET", "/fmi/data/vLatest/productInfo", fmResponse(`{"productInfo":{"name":"FileMaker Data API Engine"}}`))
		env := setupTestEnv(t, handler)

		resp, err := http.Get(env.server.URL + "/fmi/data/vLatest/productInfo")
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200, got %d", resp.StatusCode)
		}

		resp, err = http.Get(env.server.URL + "/unknown")
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", resp.StatusCode)
		}
		if got := len(handler.Requests()); got != 2 {
			t.Errorf("recorded %d requests, want 2", got)
		}
	})

	t.Run("host strips the scheme", func(t *testing.T) {
		env := setupTestEnv(t, newRouteHandler())
		if strings.Contains(env.host(), "://") {
			t.Errorf("host() = %q, want no scheme", env.host())
		}
		if !strings.HasSuffix(env.tokenKey(), "/"+testDatabase) {
			t.Errorf("tokenKey() = %q", env.tokenKey())
		}
	})
}
