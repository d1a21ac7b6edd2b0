package kv

import (
	"context"

	"placementd/storage"
)

// Store provides a high-level KV API over the storage backend.
// It delegates all persistence to the underlying storage.Storage implementation.
//
type Store struct {
	s storage.Storage
}

// New returns a new KV store wrapper.
func New(s storage.Storage) *Store {
	return &Store{s: s}
}

// Ping provides a cheap health check path.
func (st *Store) Ping(ctx context.Context) error {
    // For now we rely on a lightweight operation against storage
    // Exists on a non-existing key should be very cheap.
    _, err := st.s.Exists(ctx, "__ping__")
    if err != nil {
        return err
    }
    return nil
}
