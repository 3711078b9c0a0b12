package storage

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

var _ Store = (*InMemoryStore)(nil)

// InMemoryStore is a thread-safe in-memory Store, the equivalent of browser session
// storage. Entries expire after the configured TTL; zero means they never expire.
type InMemoryStore struct {
	c *gocache.Cache
}

// NewInMemoryStore creates a new in-memory store
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	if ttl <= 0 {
		return &InMemoryStore{c: gocache.New(gocache.NoExpiration, 0)}
	}
	return &InMemoryStore{c: gocache.New(ttl, time.Minute)}
}

func (s *InMemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	v, ok := s.c.Get(key)
	if !ok {
		return "", false, nil
	}
	str, _ := v.(string)
	return str, true, nil
}

func (s *InMemoryStore) Set(_ context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.c.Set(key, value, gocache.DefaultExpiration)
	return nil
}

func (s *InMemoryStore) Remove(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.c.Delete(key)
	return nil
}

// Len returns the number of live entries.
func (s *InMemoryStore) Len() int {
	return s.c.ItemCount()
}
