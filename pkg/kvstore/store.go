// Package kvstore provides the namespaced key-value state store backing
// session, interview, and workflow persistence, with TTL expiry.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Key namespaces. Every stored key is "<namespace>:<id>".
const (
	NamespaceInterview = "interview:state"
	NamespaceDocument  = "document:state"
	NamespaceDiagram   = "diagram:state"
	NamespaceUserInfo  = "user_info"
)

// ErrNotFound is returned when a key does not exist or has expired.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is the minimal key-value contract the session layer needs.
// Values are opaque byte slices, typically JSON.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes the value for key with the given TTL. A zero TTL means
	// the key never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases the underlying resources.
	Close() error
}

// Key builds a namespaced store key.
func Key(namespace, id string) string {
	return fmt.Sprintf("%s:%s", namespace, id)
}
