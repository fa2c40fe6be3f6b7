package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/klauspost/reedsolomon"
	"golang.org/x/crypto/sha3"
)

// Every shard starts with the payload's original length (Reed-Solomon pads
// the last data shard) followed by a sha3-256 sum over that length and the
// shard body. A shard whose sum does not match is treated as lost.
const (
	shardLenSize = 8
	shardSumSize = 32
	shardHeader  = shardLenSize + shardSumSize
)

func shardSum(lenField, body []byte) []byte {
	h := sha3.New256()
	h.Write(lenField)
	h.Write(body)
	return h.Sum(nil)
}

// Sharded stripes each payload across several backends with Reed-Solomon
// erasure coding. Any dataShards of the backends are enough to rebuild a
// payload, so up to parityShards backends may lose or corrupt it.
type Sharded struct {
	enc          reedsolomon.Encoder
	dataShards   int
	parityShards int
	backends     []BlobStore
}

// NewSharded returns a Sharded store writing shard i to backends[i].
// len(backends) must equal dataShards+parityShards.
func NewSharded(dataShards, parityShards int, backends []BlobStore) (*Sharded, error) {
	if len(backends) != dataShards+parityShards {
		return nil, fmt.Errorf("sharded blobs: %d backends for %d+%d shards", len(backends), dataShards, parityShards)
	}
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, fmt.Errorf("creating reed-solomon encoder: %w", err)
	}
	return &Sharded{
		enc:          enc,
		dataShards:   dataShards,
		parityShards: parityShards,
		backends:     backends,
	}, nil
}

func (s *Sharded) Put(ctx context.Context, contentID string, data []byte) error {
	shards, err := s.split(data)
	if err != nil {
		return fmt.Errorf("shard blob %q: %w", contentID, err)
	}

	lenField := make([]byte, shardLenSize)
	binary.BigEndian.PutUint64(lenField, uint64(len(data)))
	for i, b := range s.backends {
		payload := make([]byte, 0, shardHeader+len(shards[i]))
		payload = append(payload, lenField...)
		payload = append(payload, shardSum(lenField, shards[i])...)
		payload = append(payload, shards[i]...)
		if err := b.Put(ctx, contentID, payload); err != nil {
			errs := []error{fmt.Errorf("write shard %d of blob %q: %w", i, contentID, err)}
			// Leave no partial stripe behind.
			for j, written := range s.backends[:i] {
				if derr := written.Delete(ctx, contentID); derr != nil {
					errs = append(errs, fmt.Errorf("roll back shard %d: %w", j, derr))
				}
			}
			return errors.Join(errs...)
		}
	}
	return nil
}

// split encodes data into data and parity shards. An empty payload yields
// empty shards.
func (s *Sharded) split(data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return make([][]byte, len(s.backends)), nil
	}
	shards, err := s.enc.Split(data)
	if err != nil {
		return nil, fmt.Errorf("splitting data into shards: %w", err)
	}
	if err := s.enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("encoding parity shards: %w", err)
	}
	return shards, nil
}

func (s *Sharded) Get(ctx context.Context, contentID string) ([]byte, error) {
	shards := make([][]byte, len(s.backends))
	sizes := make([]int, len(s.backends))
	var errs []error
	for i, b := range s.backends {
		payload, err := b.Get(ctx, contentID)
		if err != nil {
			errs = append(errs, fmt.Errorf("shard %d: %w", i, err))
			continue
		}
		if len(payload) < shardHeader {
			errs = append(errs, fmt.Errorf("shard %d: short header: %w", i, ErrChecksum))
			continue
		}
		lenField, sum, body := payload[:shardLenSize], payload[shardLenSize:shardHeader], payload[shardHeader:]
		if !bytes.Equal(sum, shardSum(lenField, body)) {
			errs = append(errs, fmt.Errorf("shard %d: %w", i, ErrChecksum))
			continue
		}
		shards[i] = body
		sizes[i] = int(binary.BigEndian.Uint64(lenField))
	}

	// Intact shards left over from an earlier Put can disagree on the
	// length; the most common length wins.
	size, present := majoritySize(shards, sizes)
	for i := range shards {
		if shards[i] != nil && sizes[i] != size {
			errs = append(errs, fmt.Errorf("shard %d: length %d, want %d: %w", i, sizes[i], size, ErrChecksum))
			shards[i] = nil
		}
	}

	if present == 0 {
		if allMissing(errs) {
			return nil, fmt.Errorf("blob %q: %w", contentID, ErrBlobMissing)
		}
		return nil, fmt.Errorf("blob %q: %w", contentID, errors.Join(errs...))
	}
	if size == 0 {
		return []byte{}, nil
	}
	if present < s.dataShards {
		return nil, fmt.Errorf("blob %q: %d of %d shards readable, need %d: %w",
			contentID, present, len(s.backends), s.dataShards, errors.Join(errs...))
	}

	if err := s.enc.ReconstructData(shards); err != nil {
		return nil, fmt.Errorf("reconstructing shards of blob %q: %w", contentID, err)
	}
	var buf bytes.Buffer
	buf.Grow(size)
	if err := s.enc.Join(&buf, shards, size); err != nil {
		return nil, fmt.Errorf("joining shards of blob %q: %w", contentID, err)
	}
	return buf.Bytes(), nil
}

// majoritySize returns the length most intact shards agree on and how many
// agree. Ties go to the lowest shard index.
func majoritySize(shards [][]byte, sizes []int) (size, votes int) {
	counts := make(map[int]int)
	for i := range shards {
		if shards[i] == nil {
			continue
		}
		counts[sizes[i]]++
		if c := counts[sizes[i]]; c > votes {
			size, votes = sizes[i], c
		}
	}
	return size, votes
}

func allMissing(errs []error) bool {
	for _, err := range errs {
		if !errors.Is(err, ErrBlobMissing) {
			return false
		}
	}
	return true
}

func (s *Sharded) Delete(ctx context.Context, contentID string) error {
	var errs []error
	for i, b := range s.backends {
		if err := b.Delete(ctx, contentID); err != nil {
			errs = append(errs, fmt.Errorf("delete shard %d of blob %q: %w", i, contentID, err))
		}
	}
	return errors.Join(errs...)
}

// Keys lists every content id with at least one shard on any backend.
func (s *Sharded) Keys(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for i, b := range s.backends {
		keys, err := b.Keys(ctx)
		if err != nil {
			return nil, fmt.Errorf("list shard backend %d: %w", i, err)
		}
		for _, k := range keys {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
