package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const keyringPrefix = "token:"

// Keyring stores tokens next to the profiles in the OS keyring.
type Keyring struct {
	Ring keyring.Keyring
}

// NewKeyring wraps an open keyring.
func NewKeyring(ring keyring.Keyring) *Keyring {
	return &Keyring{Ring: ring}
}

func (k *Keyring) Get(_ context.Context, key string) (string, error) {
	item, err := k.Ring.Get(keyringPrefix + key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get token: %w", err)
	}
	return string(item.Data), nil
}

func (k *Keyring) Set(_ context.Context, key, token string) error {
	if err := k.Ring.Set(keyring.Item{
		Key:         keyringPrefix + key,
		Data:        []byte(token),
		Label:       "fmrest session token",
		Description: key,
	}); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func (k *Keyring) Clear(_ context.Context, key string) error {
	if err := k.Ring.Remove(keyringPrefix + key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	return nil
}
