package kvstore

import (
	"context"
	"errors"
	"time"
)

// RetryConfig bounds the backoff applied to store operations.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryConfig suits a local database under occasional write contention.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:  3,
	InitialDelay: 50 * time.Millisecond,
	MaxDelay:     time.Second,
}

// RetryingStore wraps a Store with bounded retries on transient failures.
// ErrNotFound is never retried.
type RetryingStore struct {
	inner  Store
	config RetryConfig
}

// NewRetryingStore wraps the given store.
func NewRetryingStore(inner Store, config RetryConfig) *RetryingStore {
	return &RetryingStore{inner: inner, config: config}
}

func (r *RetryingStore) do(ctx context.Context, op func() error) error {
	delay := r.config.InitialDelay
	var lastErr error

	for attempt := 0; attempt < r.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > r.config.MaxDelay {
				delay = r.config.MaxDelay
			}
		}

		err := op()
		if err == nil || errors.Is(err, ErrNotFound) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// Get implements Store.
func (r *RetryingStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.do(ctx, func() error {
		var opErr error
		value, opErr = r.inner.Get(ctx, key)
		return opErr
	})
	return value, err
}

// Set implements Store.
func (r *RetryingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.do(ctx, func() error {
		return r.inner.Set(ctx, key, value, ttl)
	})
}

// Delete implements Store.
func (r *RetryingStore) Delete(ctx context.Context, key string) error {
	return r.do(ctx, func() error {
		return r.inner.Delete(ctx, key)
	})
}

// Close implements Store.
func (r *RetryingStore) Close() error { return r.inner.Close() }
