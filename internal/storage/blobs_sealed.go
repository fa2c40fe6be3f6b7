package storage

import (
	"context"
	"fmt"

	"github.com/ssd-technologies/cumulus/internal/crypto"
)

// Sealed wraps a BlobStore and encrypts payloads at rest with AES-GCM.
type Sealed struct {
	next   BlobStore
	sealer *crypto.Sealer
}

// NewSealed derives a key from secret with a fresh salt. Blobs do not
// outlive the process, so the salt is never persisted.
func NewSealed(next BlobStore, secret string) (*Sealed, error) {
	sealer, err := crypto.NewSealer(secret, crypto.GenerateSalt())
	if err != nil {
		return nil, fmt.Errorf("create sealer: %w", err)
	}
	return &Sealed{next: next, sealer: sealer}, nil
}

func (s *Sealed) Put(ctx context.Context, contentID string, data []byte) error {
	sealed, err := s.sealer.Seal(data)
	if err != nil {
		return fmt.Errorf("seal blob %q: %w", contentID, err)
	}
	return s.next.Put(ctx, contentID, sealed)
}

func (s *Sealed) Get(ctx context.Context, contentID string) ([]byte, error) {
	sealed, err := s.next.Get(ctx, contentID)
	if err != nil {
		return nil, err
	}
	data, err := s.sealer.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("open blob %q: %w", contentID, err)
	}
	return data, nil
}

func (s *Sealed) Delete(ctx context.Context, contentID string) error {
	return s.next.Delete(ctx, contentID)
}

func (s *Sealed) Keys(ctx context.Context) ([]string, error) {
	return s.next.Keys(ctx)
}
