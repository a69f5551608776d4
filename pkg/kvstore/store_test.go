package kvstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "interview:state:abc", Key(NamespaceInterview, "abc"))
	assert.Equal(t, "user_info:u1", Key(NamespaceUserInfo, "u1"))
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer store.Close()

	key := Key(NamespaceInterview, "session-1")

	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, key, []byte(`{"cursor":1}`), time.Hour))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"cursor":1}`), got)

	// Overwrite replaces the value.
	require.NoError(t, store.Set(ctx, key, []byte(`{"cursor":2}`), time.Hour))
	got, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"cursor":2}`), got)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer store.Close()

	key := Key(NamespaceDocument, "session-2")
	require.NoError(t, store.Set(ctx, key, []byte("v"), time.Second))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	// A zero TTL never expires.
	forever := Key(NamespaceUserInfo, "u1")
	require.NoError(t, store.Set(ctx, forever, []byte("w"), 0))

	time.Sleep(1100 * time.Millisecond)

	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err = store.Get(ctx, forever)
	require.NoError(t, err)
	assert.Equal(t, []byte("w"), got)
}

func TestSQLiteStoreSweep(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), time.Millisecond))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), time.Hour))
	time.Sleep(1100 * time.Millisecond)

	n, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	time.Sleep(20 * time.Millisecond)
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

type flakyStore struct {
	*MemoryStore
	failures int
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("database is locked")
	}
	return f.MemoryStore.Set(ctx, key, value, ttl)
}

func TestRetryingStoreRecoversFromTransientFailure(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStore{MemoryStore: NewMemoryStore(), failures: 2}
	store := NewRetryingStore(inner, RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	})

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestRetryingStoreDoesNotRetryNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewRetryingStore(NewMemoryStore(), DefaultRetryConfig)

	start := time.Now()
	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Less(t, time.Since(start), 40*time.Millisecond, "not-found must return without backoff")
}

func TestRetryingStoreGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStore{MemoryStore: NewMemoryStore(), failures: 10}
	store := NewRetryingStore(inner, RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	})

	err := store.Set(ctx, "k", []byte("v"), 0)
	require.Error(t, err)
	assert.Equal(t, 7, inner.failures, "three attempts consume three failures")
}
