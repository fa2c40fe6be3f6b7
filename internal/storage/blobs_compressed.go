package storage

import (
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compressed wraps a BlobStore and zstd-compresses payloads at rest.
// Callers always get back the bytes they stored.
type Compressed struct {
	next BlobStore
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

// NewCompressed returns a Compressed store in front of next.
func NewCompressed(next BlobStore) (*Compressed, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Compressed{next: next, enc: enc, dec: dec}, nil
}

func (c *Compressed) Put(ctx context.Context, contentID string, data []byte) error {
	return c.next.Put(ctx, contentID, c.enc.EncodeAll(data, nil))
}

func (c *Compressed) Get(ctx context.Context, contentID string) ([]byte, error) {
	raw, err := c.next.Get(ctx, contentID)
	if err != nil {
		return nil, err
	}
	data, err := c.dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress blob %q: %w", contentID, err)
	}
	return data, nil
}

func (c *Compressed) Delete(ctx context.Context, contentID string) error {
	return c.next.Delete(ctx, contentID)
}

func (c *Compressed) Keys(ctx context.Context) ([]string, error) {
	return c.next.Keys(ctx)
}

// Close releases the encoder and decoder. It does not close the wrapped store.
func (c *Compressed) Close() error {
	c.dec.Close()
	return c.enc.Close()
}
