// Package storage defines the key/value contract the auth client persists pending
// authorizations and tokens through, with in-memory, redis and OS keyring backends.
package storage

import (
	"context"
	"errors"
)

var ErrEmptyKey = errors.New("key cannot be empty")

// Store is a string key/value store scoped to one user agent. Get reports a missing key
// with found == false and a nil error. Writes are last-writer-wins.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// RemoveAll removes every key, returning the first error after attempting all of them.
func RemoveAll(ctx context.Context, s Store, keys ...string) error {
	var errs []error
	for _, k := range keys {
		if err := s.Remove(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
