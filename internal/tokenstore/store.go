// Package tokenstore keeps the rotating Data API session token between
// invocations. The request pipeline never persists tokens itself; commands
// save the token an envelope carries so the next call can present it.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when no token is stored for a key.
var ErrNotFound = errors.New("no stored token")

// Store persists one token per key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, token string) error
	Clear(ctx context.Context, key string) error
}

// Store kinds accepted by --token-store.
const (
	KindKeyring = "keyring"
	KindRedis   = "redis"
	KindNone    = "none"
)

// Key identifies a session: tokens are scoped to host and database.
func Key(host, database string) string {
	return strings.ToLower(strings.TrimSpace(host)) + "/" + strings.TrimSpace(database)
}

// ParseKind validates a store kind; empty means keyring.
func ParseKind(s string) (string, error) {
	switch k := strings.ToLower(strings.TrimSpace(s)); k {
	case "":
		return KindKeyring, nil
	case KindKeyring, KindRedis, KindNone:
		return k, nil
	default:
		return "", fmt.Errorf("invalid token store %q (use keyring, redis, or none)", s)
	}
}

// Lookup returns the stored token for key, or fallback when none is stored.
func Lookup(ctx context.Context, s Store, key, fallback string) (string, error) {
	if s == nil {
		return fallback, nil
	}
	token, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// Save stores token unless it is empty. Calls that return no new token leave
// the stored one untouched.
func Save(ctx context.Context, s Store, key, token string) error {
	if s == nil || token == "" {
		return nil
	}
	return s.Set(ctx, key, token)
}

// Nop discards tokens.
type Nop struct{}

func (Nop) Get(context.Context, string) (string, error) { return "", ErrNotFound }
func (Nop) Set(context.Context, string, string) error   { return nil }
func (Nop) Clear(context.Context, string) error         { return nil }
