package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSharded(t *testing.T, data, parity int) (*Sharded, []*MemBlobs) {
	t.Helper()
	mems := make([]*MemBlobs, data+parity)
	backends := make([]BlobStore, data+parity)
	for i := range mems {
		mems[i] = NewMemBlobs()
		backends[i] = mems[i]
	}
	s, err := NewSharded(data, parity, backends)
	require.NoError(t, err)
	return s, mems
}

func TestSharded(t *testing.T) {
	s, _ := newTestSharded(t, 4, 2)
	exerciseBlobStore(t, s)
}

func TestSharded_SurvivesLostShards(t *testing.T) {
	s, mems := newTestSharded(t, 4, 2)
	ctx := context.Background()
	payload := bytes.Repeat([]byte("erasure coded payload "), 50)
	require.NoError(t, s.Put(ctx, "c1", payload))

	require.NoError(t, mems[0].Delete(ctx, "c1"))
	require.NoError(t, mems[5].Delete(ctx, "c1"))

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestSharded_TooManyLostShards(t *testing.T) {
	s, mems := newTestSharded(t, 4, 2)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "c1", []byte("short-lived")))

	for _, i := range []int{1, 2, 3} {
		require.NoError(t, mems[i].Delete(ctx, "c1"))
	}
	_, err := s.Get(ctx, "c1")
	assert.ErrorIs(t, err, ErrBlobMissing)
}

func TestSharded_CorruptHeader(t *testing.T) {
	s, mems := newTestSharded(t, 2, 1)
	ctx := context.Background()
	payload := []byte("header check payload")
	require.NoError(t, s.Put(ctx, "c1", payload))

	require.NoError(t, mems[2].Put(ctx, "c1", []byte{1, 2}))
	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestSharded_CorruptLengthOnFirstShard(t *testing.T) {
	s, mems := newTestSharded(t, 2, 1)
	ctx := context.Background()
	payload := []byte("header check payload")
	require.NoError(t, s.Put(ctx, "c1", payload))

	shard, err := mems[0].Get(ctx, "c1")
	require.NoError(t, err)
	binary.BigEndian.PutUint64(shard[:shardLenSize], 7)
	require.NoError(t, mems[0].Put(ctx, "c1", shard))

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestSharded_CorruptDataByte(t *testing.T) {
	s, mems := newTestSharded(t, 2, 1)
	ctx := context.Background()
	payload := []byte("header check payload")
	require.NoError(t, s.Put(ctx, "c1", payload))

	shard, err := mems[0].Get(ctx, "c1")
	require.NoError(t, err)
	shard[shardHeader+1] ^= 0xff
	require.NoError(t, mems[0].Put(ctx, "c1", shard))

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// A second bad shard leaves too few to rebuild from.
	shard, err = mems[1].Get(ctx, "c1")
	require.NoError(t, err)
	shard[shardHeader] ^= 0x01
	require.NoError(t, mems[1].Put(ctx, "c1", shard))

	_, err = s.Get(ctx, "c1")
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestSharded_StaleShardOutvoted(t *testing.T) {
	s, mems := newTestSharded(t, 2, 2)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "c1", []byte("old and much longer payload")))
	stale, err := mems[3].Get(ctx, "c1")
	require.NoError(t, err)

	payload := []byte("new payload")
	require.NoError(t, s.Put(ctx, "c1", payload))
	require.NoError(t, mems[3].Put(ctx, "c1", stale))

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestSharded_RollbackErrorsReported(t *testing.T) {
	backends := []BlobStore{flakyBlobs{NewMemBlobs()}, NewMemBlobs(), failingPut{}}
	s, err := NewSharded(2, 1, backends)
	require.NoError(t, err)

	err = s.Put(context.Background(), "c1", []byte("doomed"))
	require.ErrorIs(t, err, errBlobDown)
	assert.Contains(t, err.Error(), "roll back shard 0")
}

func TestSharded_RollsBackFailedPut(t *testing.T) {
	mems := []*MemBlobs{NewMemBlobs(), NewMemBlobs()}
	backends := []BlobStore{mems[0], mems[1], failingPut{}}
	s, err := NewSharded(2, 1, backends)
	require.NoError(t, err)

	ctx := context.Background()
	require.ErrorIs(t, s.Put(ctx, "c1", []byte("doomed")), errBlobDown)
	assert.Zero(t, mems[0].Len())
	assert.Zero(t, mems[1].Len())
}

func TestNewSharded_BackendCount(t *testing.T) {
	_, err := NewSharded(2, 1, []BlobStore{NewMemBlobs()})
	assert.Error(t, err)
}

// failingPut rejects every write.
type failingPut struct {
	*MemBlobs
}

func (failingPut) Put(context.Context, string, []byte) error { return errBlobDown }
func (failingPut) Delete(context.Context, string) error     { return nil }
