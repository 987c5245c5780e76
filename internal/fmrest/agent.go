package fmrest

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fmrest/fmrest-cli/internal/debug"
)

// DefaultTimeout bounds a single call when the agent builds its own client.
const DefaultTimeout = 30 * time.Second

// Response headers that carry a renewed session token, in lookup order.
const (
	HeaderAccessToken     = "X-FM-Access-Token"
	HeaderDataAccessToken = "X-FM-Data-Access-Token"
)

// Doer sends one HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Observer is told about every finished call. outcome is "ok" or an error Kind name.
type Observer interface {
	ObserveCall(method Method, status int, outcome string, elapsed time.Duration)
}

// Agent executes built requests. It holds no per-call state and is safe for
// concurrent use as long as its fields are not reassigned during calls.
type Agent struct {
	HTTP     Doer
	Config   *Config
	Sink     Sink
	Observer Observer
}

// NewAgent returns an agent with a TLS 1.2+ HTTP client.
func NewAgent(cfg *Config) *Agent {
	baseTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		baseTransport = &http.Transport{}
	}
	transport := baseTransport.Clone()
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	} else {
		transport.TLSClientConfig = transport.TLSClientConfig.Clone()
	}
	transport.TLSClientConfig.MinVersion = tls.VersionTLS12

	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Agent{
		HTTP: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: transport,
		},
		Config: cfg,
	}
}

// Result is the terminal outcome of an asynchronous call.
type Result[T any] struct {
	Envelope Envelope[T]
	Err      error
}

// Run executes req and decodes a 200 body into Envelope[T].
//
// Every failure is returned as an *Error. If ctx is canceled before the
// response arrives, the error is KindRequest wrapping context.Canceled.
func Run[T any](ctx context.Context, a *Agent, req *Request) (Envelope[T], error) {
	env, _, err := execute[T](ctx, a, req)
	return env, err
}

// Start runs the call in the background. The returned channel yields exactly
// one Result and is then closed. If ctx is canceled before the response
// arrives, the channel is closed without a value.
func Start[T any](ctx context.Context, a *Agent, req *Request) <-chan Result[T] {
	out := make(chan Result[T], 1)
	go func() {
		defer close(out)
		env, canceled, err := execute[T](ctx, a, req)
		if canceled {
			return
		}
		out <- Result[T]{Envelope: env, Err: err}
	}()
	return out
}

// failure is a non-200 response before refinement.
type failure struct {
	code int
	body []byte
}

// execute runs the stages in order. canceled reports that ctx ended before a
// response was received; in that case nothing should be delivered.
func execute[T any](ctx context.Context, a *Agent, req *Request) (env Envelope[T], canceled bool, err error) {
	if a == nil {
		a = NewAgent(nil)
	}
	cfg := a.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	opts := cfg.Options
	if req == nil {
		return env, false, &Error{Kind: KindUnknown, Err: errors.New("nil request")}
	}
	doer := a.HTTP
	if doer == nil {
		doer = http.DefaultClient
	}

	start := time.Now()
	status := 0
	defer func() {
		if canceled {
			return
		}
		if a.Observer != nil {
			outcome := "ok"
			if err != nil {
				outcome = KindOf(err).String()
			}
			a.Observer.ObserveCall(req.Method, status, outcome, time.Since(start))
		}
		if err != nil {
			emit(a.Sink, opts, EventCompletion, fmt.Sprintf("failure(%v)", err))
		} else {
			printed := env
			if printed.AuthToken != "" {
				printed = printed.WithAuthToken("[redacted]")
			}
			emit(a.Sink, opts, EventOutput, printed)
			emit(a.Sink, opts, EventCompletion, "finished")
		}
	}()

	emitRequest(a.Sink, opts, req)

	// Transport stage.
	httpReq, reqErr := req.HTTPRequest(ctx)
	if reqErr != nil {
		return env, false, &Error{Kind: KindRequest, Err: reqErr}
	}
	// A response only counts once its body is fully read, so cancellation
	// during either step delivers nothing.
	wasCanceled := func() bool {
		if !errors.Is(ctx.Err(), context.Canceled) {
			return false
		}
		emit(a.Sink, opts, EventCancel, "cancel")
		if debug.IsEnabled(ctx) {
			slog.Debug("request canceled", "method", req.Method, "url", req.URL)
		}
		return true
	}
	resp, doErr := doer.Do(httpReq)
	if doErr != nil {
		if wasCanceled() {
			return env, true, &Error{Kind: KindRequest, Err: ctx.Err()}
		}
		if debug.IsEnabled(ctx) {
			slog.Debug("request failed", "method", req.Method, "url", req.URL, "error", doErr)
		}
		return env, false, &Error{Kind: KindRequest, Err: doErr}
	}
	if resp == nil {
		return env, false, &Error{Kind: KindResponse, Detail: "response was not an HTTP response"}
	}
	data, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		if wasCanceled() {
			return env, true, &Error{Kind: KindRequest, Err: ctx.Err()}
		}
		return env, false, &Error{Kind: KindRequest, Err: fmt.Errorf("failed to read response: %w", readErr)}
	}
	status = resp.StatusCode
	if debug.IsEnabled(ctx) {
		slog.Debug("request complete", "method", req.Method, "url", req.URL, "status", status, "duration", time.Since(start))
	}

	// Status classification stage.
	token, hasToken, fail := classify(resp.StatusCode, resp.Header, data)
	if fail != nil {
		return env, false, refine(*fail, cfg)
	}

	// Decode stage.
	var decoded Envelope[T]
	if decErr := cfg.decoder().Decode(data, &decoded); decErr != nil {
		return env, false, &Error{Kind: KindDecoding, Code: status, Err: decErr}
	}

	// Token attachment stage.
	if hasToken {
		decoded = decoded.WithAuthToken(token)
	}
	return decoded, false, nil
}

// classify splits a response into the success path (with an optional token)
// and a failure awaiting refinement.
func classify(code int, header http.Header, body []byte) (token string, found bool, fail *failure) {
	if code != http.StatusOK {
		return "", false, &failure{code: code, body: body}
	}
	for _, name := range []string{HeaderAccessToken, HeaderDataAccessToken} {
		if values := header.Values(name); len(values) > 0 {
			token, found = values[0], true
		}
	}
	return token, found, nil
}

// refine turns a failure into its final error kind.
func refine(f failure, cfg *Config) *Error {
	if len(f.body) == 0 {
		return statusError(f.code)
	}
	var mr MessageResponse
	if err := cfg.decoder().Decode(f.body, &mr); err != nil {
		return &Error{Kind: KindDecoding, Code: f.code, Err: err}
	}
	return &Error{Kind: KindAPI, Code: f.code, Messages: mr.Messages}
}

func emitRequest(sink Sink, opts ServerOptions, req *Request) {
	if sink == nil {
		return
	}
	emit(sink, opts, EventSubscription, fmt.Sprintf("%s %s", req.Method, req.URL))
	emit(sink, opts, EventDemand, "max: 1")
	emit(sink, opts, EventRequestMethod, req.Method)
	emit(sink, opts, EventRequestURL, req.URL)
	emit(sink, opts, EventRequestHeader, redactHeader(req.Header))
	emit(sink, opts, EventRequestBody, string(req.Body))
	emit(sink, opts, EventRequest, fmt.Sprintf("%s %s (%d bytes)", req.Method, req.URL, len(req.Body)))
}

// redactHeader hides the session token in printed headers.
func redactHeader(h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		return http.Header{}
	}
	if out.Get("Authorization") != "" {
		out.Set("Authorization", "[redacted]")
	}
	return out
}
