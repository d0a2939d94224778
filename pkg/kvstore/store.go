// Package kvstore provides the string key-value persistence the storefront
// uses for cart lines and the checkout handoff. Every Save either replaces the
// whole value or leaves the prior value untouched.
package kvstore

import (
	"context"
	"errors"
)

// ErrQuotaExceeded is returned when a write would exceed the store's capacity.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Store is a string key-value store.
type Store interface {
	// Load returns the value at key; ok is false when the key is absent.
	Load(ctx context.Context, key string) (value string, ok bool, err error)
	Save(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Take loads and removes key in one step. Of several concurrent callers
	// at most one sees ok for the same stored value.
	Take(ctx context.Context, key string) (value string, ok bool, err error)
}
