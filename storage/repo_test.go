package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-orbit-auth/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func newRedisStore(t *testing.T, prefix string) (*storage.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := storage.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), prefix, 0)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStoreContract(t *testing.T) {
	keyring.MockInit()

	backends := map[string]func(t *testing.T) storage.Store{
		"memory": func(t *testing.T) storage.Store { return storage.NewInMemoryStore(0) },
		"redis": func(t *testing.T) storage.Store {
			s, _ := newRedisStore(t, "tab-1")
			return s
		},
		"keyring": func(t *testing.T) storage.Store { return storage.NewKeyringStore("orbit-test-" + t.Name()) },
	}

	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			_, found, err := s.Get(ctx, "orbit_auth_state")
			require.NoError(t, err)
			require.False(t, found)

			require.NoError(t, s.Set(ctx, "orbit_auth_state", "S1"))
			require.NoError(t, s.Set(ctx, "orbit_auth_state", "S2"))
			v, found, err := s.Get(ctx, "orbit_auth_state")
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, "S2", v)

			require.NoError(t, s.Remove(ctx, "orbit_auth_state"))
			_, found, err = s.Get(ctx, "orbit_auth_state")
			require.NoError(t, err)
			require.False(t, found)

			require.NoError(t, s.Remove(ctx, "never_set"), "removing a missing key is not an error")

			require.ErrorIs(t, s.Set(ctx, "", "x"), storage.ErrEmptyKey)
		})
	}
}

func TestRemoveAll(t *testing.T) {
	ctx := context.Background()
	s := storage.NewInMemoryStore(0)
	require.NoError(t, s.Set(ctx, "a", "1"))
	require.NoError(t, s.Set(ctx, "b", "2"))
	require.NoError(t, s.Set(ctx, "c", "3"))

	require.NoError(t, storage.RemoveAll(ctx, s, "a", "b"))
	require.Equal(t, 1, s.Len())

	err := storage.RemoveAll(ctx, s, "", "c")
	require.True(t, errors.Is(err, storage.ErrEmptyKey))
	require.Equal(t, 0, s.Len(), "later keys are still removed after a failure")
}

func TestInMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	s := storage.NewInMemoryStore(10 * time.Millisecond)
	require.NoError(t, s.Set(ctx, "k", "v"))
	require.Eventually(t, func() bool {
		_, found, _ := s.Get(ctx, "k")
		return !found
	}, time.Second, 5*time.Millisecond)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()

	t.Run("prefixes keys", func(t *testing.T) {
		s, mr := newRedisStore(t, "tab-1")
		require.NoError(t, s.Set(ctx, "orbit_access_token", "AT"))
		got, err := mr.Get("tab-1:orbit_access_token")
		require.NoError(t, err)
		require.Equal(t, "AT", got)
	})

	t.Run("applies ttl", func(t *testing.T) {
		mr := miniredis.RunT(t)
		s := storage.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "", time.Minute)
		require.NoError(t, s.Set(ctx, "k", "v"))
		require.Equal(t, time.Minute, mr.TTL("k"))
		mr.FastForward(2 * time.Minute)
		_, found, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("surfaces connection errors", func(t *testing.T) {
		s, mr := newRedisStore(t, "p")
		mr.Close()
		_, _, err := s.Get(ctx, "k")
		require.Error(t, err)
	})

	t.Run("from url", func(t *testing.T) {
		mr := miniredis.RunT(t)
		s, err := storage.NewRedisStoreFromURL("redis://"+mr.Addr()+"/0", "p", 0)
		require.NoError(t, err)
		defer s.Close()
		require.NoError(t, s.Set(ctx, "k", "v"))
		require.True(t, mr.Exists("p:k"))

		_, err = storage.NewRedisStoreFromURL("://bad", "p", 0)
		require.Error(t, err)
	})
}
