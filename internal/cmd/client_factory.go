package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fmrest/fmrest-cli/internal/config"
	"github.com/fmrest/fmrest-cli/internal/debug"
	"github.com/fmrest/fmrest-cli/internal/fmrest"
	"github.com/fmrest/fmrest-cli/internal/iocontext"
	"github.com/fmrest/fmrest-cli/internal/metrics"
	"github.com/fmrest/fmrest-cli/internal/tokenstore"
)

// clientFactory turns global flags and the resolved profile into a session.
type clientFactory struct {
	timeout     time.Duration
	profile     string
	storeKind   string
	printSet    fmrest.PrintSet
	debug       bool
	metricsFile string
	errOut      io.Writer
}

func newClientFactory(cmd *cobra.Command) *clientFactory {
	return &clientFactory{
		timeout:     flags.Timeout,
		profile:     flags.Profile,
		storeKind:   flags.TokenStore,
		printSet:    flags.printSet,
		debug:       flags.Debug,
		metricsFile: flags.MetricsFile,
		errOut:      iocontext.GetIO(cmd.Context()).ErrOut,
	}
}

// session is everything one command needs to talk to one database.
type session struct {
	Name    string
	Profile config.Profile
	Config  *fmrest.Config
	Agent   *fmrest.Agent
	Store   tokenstore.Store

	key         string
	recorder    *metrics.Recorder
	metricsFile string
	closers     []func() error
}

// openSession resolves the profile for cmd and prepares an agent.
func openSession(cmd *cobra.Command) (*session, error) {
	return newClientFactory(cmd).open(cmdContext(cmd))
}

func (f *clientFactory) open(ctx context.Context) (*session, error) {
	res, err := config.Resolve(f.profile)
	if err != nil {
		return nil, err
	}
	cfg, err := res.FMConfig()
	if err != nil {
		return nil, err
	}

	s := &session{
		Name:        res.Name,
		Profile:     res.Profile,
		Config:      cfg,
		key:         tokenstore.Key(res.Host, res.Database),
		metricsFile: f.metricsFile,
	}

	s.Agent = fmrest.NewAgent(cfg)
	if client, ok := s.Agent.HTTP.(*http.Client); ok && f.timeout > 0 {
		client.Timeout = f.timeout
	}
	f.attachSink(s)
	if f.metricsFile != "" {
		s.recorder = metrics.NewRecorder()
		s.Agent.Observer = s.recorder
	}

	store, closer, err := f.tokenStore(res.Profile)
	if err != nil {
		return nil, err
	}
	s.Store = store
	if closer != nil {
		s.closers = append(s.closers, closer)
	}
	if debug.IsEnabled(ctx) {
		slog.Debug("session opened", "profile", s.Name, "host", res.Host, "database", res.Database, "version", cfg.Version)
	}
	return s, nil
}

// attachSink routes pipeline events: --print goes to stderr, --debug alone
// sends every event through slog.
func (f *clientFactory) attachSink(s *session) {
	switch {
	case anyPrintActive(f.printSet):
		s.Config.Options.PrintDebug = f.printSet
		s.Agent.Sink = fmrest.NewWriterSink(f.errOut)
	case f.debug:
		all, _ := parsePrintFlags([]string{"all"})
		s.Config.Options.PrintDebug = all
		s.Agent.Sink = fmrest.SlogSink{}
	}
}

func (f *clientFactory) tokenStore(p config.Profile) (tokenstore.Store, func() error, error) {
	raw := f.storeKind
	if raw == "" {
		raw = p.TokenStore
	}
	kind, err := tokenstore.ParseKind(raw)
	if err != nil {
		return nil, nil, err
	}

	switch kind {
	case tokenstore.KindNone:
		return tokenstore.Nop{}, nil, nil
	case tokenstore.KindRedis:
		if strings.TrimSpace(p.RedisURL) == "" {
			return nil, nil, fmt.Errorf("token store redis requires a redis URL (set %s or 'fmrest profile set --redis-url')", config.EnvRedisURL)
		}
		store, err := tokenstore.NewRedis(p.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		ring, err := config.OpenKeyring()
		if err != nil {
			// Env-only setups (CI, containers) often have no keyring.
			slog.Warn("token store unavailable, renewed tokens will not be kept", "error", err)
			return tokenstore.Nop{}, nil, nil
		}
		return tokenstore.NewKeyring(ring), nil, nil
	}
}

// Token returns the session token to present: the stored one if any,
// otherwise the one pinned to the profile.
func (s *session) Token(ctx context.Context) (string, error) {
	return tokenstore.Lookup(ctx, s.Store, s.key, s.Profile.Token)
}

// Credentials returns bearer credentials, or a KindAuthType error when no
// token is available.
func (s *session) Credentials(ctx context.Context) (fmrest.Credentials, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, &fmrest.Error{Kind: fmrest.KindAuthType, Detail: fmt.Sprintf("no session token for %s", s.key)}
	}
	return fmrest.BearerToken(token), nil
}

// optionalCredentials is used by endpoints that also answer anonymous callers.
func (s *session) optionalCredentials(ctx context.Context) fmrest.Credentials {
	token, err := s.Token(ctx)
	if err != nil {
		slog.Warn("failed to read stored token", "error", err)
		return fmrest.StaticCredentials{}
	}
	return fmrest.BearerToken(token)
}

// Database returns the profile's database or an error explaining how to set one.
func (s *session) Database() (string, error) {
	return s.Profile.RequireDatabase()
}

func (s *session) Request(ctx context.Context, method fmrest.Method, ep fmrest.Endpoint, query []fmrest.QueryItem) (*fmrest.Request, error) {
	creds, err := s.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	return fmrest.NewRequest(creds, s.Profile.Host, s.Config, method, ep, query), nil
}

func (s *session) JSONRequest(ctx context.Context, method fmrest.Method, ep fmrest.Endpoint, query []fmrest.QueryItem, payload any) (*fmrest.Request, error) {
	creds, err := s.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	return fmrest.NewJSONRequest(creds, s.Profile.Host, s.Config, method, ep, query, payload)
}

func (s *session) UploadRequest(ctx context.Context, ep fmrest.Endpoint, file fmrest.ContainerFile) (*fmrest.Request, error) {
	creds, err := s.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	return fmrest.NewUploadRequest(creds, s.Profile.Host, s.Config, fmrest.MethodPost, ep, nil, file), nil
}

// keepToken stores a renewed token. A failure here does not fail the call
// that produced the token.
func (s *session) keepToken(ctx context.Context, token string) {
	if err := tokenstore.Save(ctx, s.Store, s.key, token); err != nil {
		slog.Warn("failed to store session token", "error", err)
	}
}

// Close writes the metrics textfile and releases the token store.
func (s *session) Close() error {
	var errs []error
	if s.recorder != nil && s.metricsFile != "" {
		if err := s.recorder.WriteTextfile(s.metricsFile); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
		}
	}
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// closeSession closes s, logging instead of failing the command.
func closeSession(s *session) {
	if err := s.Close(); err != nil {
		slog.Warn("session cleanup failed", "error", err)
	}
}

// call runs req and keeps any renewed token for the next invocation.
func call[T any](ctx context.Context, s *session, req *fmrest.Request) (fmrest.Envelope[T], error) {
	env, err := fmrest.Run[T](ctx, s.Agent, req)
	if err != nil {
		return env, err
	}
	s.keepToken(ctx, env.AuthToken)
	return env, nil
}

// callAsync is call for use from worker goroutines: the result arrives on the
// pipeline's async handle, and a canceled ctx yields ctx's error.
func callAsync[T any](ctx context.Context, s *session, req *fmrest.Request) (fmrest.Envelope[T], error) {
	res, ok := <-fmrest.Start[T](ctx, s.Agent, req)
	if !ok {
		return fmrest.Envelope[T]{}, &fmrest.Error{Kind: fmrest.KindRequest, Err: context.Cause(ctx)}
	}
	if res.Err != nil {
		return res.Envelope, res.Err
	}
	s.keepToken(ctx, res.Envelope.AuthToken)
	return res.Envelope, nil
}
