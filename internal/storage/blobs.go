package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrBlobMissing = errors.New("blob not found")
	ErrChecksum    = errors.New("blob checksum mismatch")
)

// BlobStore maps opaque content identifiers to raw payloads. It knows
// nothing about names or types; those live on the File record.
type BlobStore interface {
	// Put stores data under contentID, replacing any previous payload.
	Put(ctx context.Context, contentID string, data []byte) error
	// Get returns the exact bytes stored, or an error wrapping ErrBlobMissing.
	Get(ctx context.Context, contentID string) ([]byte, error)
	// Delete removes contentID. Deleting an absent key is a no-op.
	Delete(ctx context.Context, contentID string) error
	// Keys lists every stored content identifier.
	Keys(ctx context.Context) ([]string, error)
}

// MemBlobs is an in-memory BlobStore.
type MemBlobs struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemBlobs() *MemBlobs {
	return &MemBlobs{blobs: make(map[string][]byte)}
}

func (m *MemBlobs) Put(_ context.Context, contentID string, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[contentID] = buf
	return nil
}

func (m *MemBlobs) Get(_ context.Context, contentID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[contentID]
	if !ok {
		return nil, fmt.Errorf("blob %q: %w", contentID, ErrBlobMissing)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemBlobs) Delete(_ context.Context, contentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, contentID)
	return nil
}

func (m *MemBlobs) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.blobs))
	for k := range m.blobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored blobs.
func (m *MemBlobs) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
