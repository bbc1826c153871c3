// Package storage persists bot state items keyed by conversation or user.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrPreconditionFailed is returned when a write carries an ETag that no
	// longer matches the stored item.
	ErrPreconditionFailed = errors.New("storage: etag precondition failed")

	// ErrInvalidKey is returned for empty keys.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// AnyETag disables the optimistic concurrency check for a write.
const AnyETag = "*"

// Item is one stored value with its concurrency token.
type Item struct {
	Value json.RawMessage `json:"value"`
	ETag  string          `json:"etag,omitempty"`
}

// Storage is the key/value persistence used for conversation and user state.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Read returns the items found for keys. Missing keys are absent from
	// the result.
	Read(ctx context.Context, keys []string) (map[string]Item, error)

	// Write stores all changes or none of them and returns the new ETag of
	// each written key. An item whose ETag is neither empty nor AnyETag is
	// only written if it matches the stored ETag.
	Write(ctx context.Context, changes map[string]Item) (map[string]string, error)

	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys []string) error
}

func validateKeys(keys []string) error {
	for _, k := range keys {
		if k == "" {
			return ErrInvalidKey
		}
	}
	return nil
}

// conflicts reports whether a write with ETag want may replace an item whose
// current ETag is have. exists is false when nothing is stored yet.
func conflicts(want, have string, exists bool) bool {
	if want == "" || want == AnyETag || !exists {
		return false
	}
	return want != have
}

func preconditionError(key string) error {
	return fmt.Errorf("%w: key %q", ErrPreconditionFailed, key)
}
