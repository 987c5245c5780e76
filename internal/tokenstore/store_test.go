package tokenstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedis("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestStores(t *testing.T) {
	redisStore, _ := newTestRedis(t)
	stores := map[string]Store{
		"keyring": NewKeyring(keyring.NewArrayKeyring(nil)),
		"redis":   redisStore,
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := Key("FMS.example.com", "Sales")

			_, err := s.Get(ctx, key)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, key, "tok1"))
			got, err := s.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, "tok1", got)

			require.NoError(t, s.Set(ctx, key, "tok2"))
			got, _ = s.Get(ctx, key)
			assert.Equal(t, "tok2", got)

			require.NoError(t, s.Clear(ctx, key))
			_, err = s.Get(ctx, key)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.NoError(t, s.Clear(ctx, key), "clearing twice is fine")
		})
	}
}

func TestRedisTTL(t *testing.T) {
	store, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "h/db", "tok"))
	assert.Equal(t, SessionTTL, mr.TTL(redisPrefix+"h/db"))

	mr.FastForward(SessionTTL + time.Second)
	_, err := store.Get(ctx, "h/db")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisUnavailable(t *testing.T) {
	store, mr := newTestRedis(t)
	mr.Close()

	_, err := store.Get(context.Background(), "h/db")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestNewRedisInvalidURL(t *testing.T) {
	_, err := NewRedis("http://nope")
	assert.Error(t, err)
}

func TestLookupAndSave(t *testing.T) {
	ctx := context.Background()
	s := NewKeyring(keyring.NewArrayKeyring(nil))

	got, err := Lookup(ctx, s, "k", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)

	require.NoError(t, Save(ctx, s, "k", ""))
	got, _ = Lookup(ctx, s, "k", "fallback")
	assert.Equal(t, "fallback", got, "empty tokens are not stored")

	require.NoError(t, Save(ctx, s, "k", "renewed"))
	got, _ = Lookup(ctx, s, "k", "fallback")
	assert.Equal(t, "renewed", got)

	got, err = Lookup(ctx, nil, "k", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)

	got, _ = Lookup(ctx, Nop{}, "k", "fallback")
	assert.Equal(t, "fallback", got)
}

func TestParseKindAndKey(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindKeyring, k)
	k, err = ParseKind("Redis")
	require.NoError(t, err)
	assert.Equal(t, KindRedis, k)
	_, err = ParseKind("disk")
	assert.Error(t, err)

	assert.Equal(t, "fms.example.com/Sales", Key(" FMS.example.com ", "Sales"))
}
