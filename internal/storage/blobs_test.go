package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseBlobStore checks the BlobStore contract against bs.
func exerciseBlobStore(t *testing.T, bs BlobStore) {
	t.Helper()
	ctx := context.Background()

	payload := []byte("the quick brown fox jumps over the lazy dog, twice: the quick brown fox")
	require.NoError(t, bs.Put(ctx, "c1", payload))
	require.NoError(t, bs.Put(ctx, "c2", []byte{}))

	got, err := bs.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	empty, err := bs.Get(ctx, "c2")
	require.NoError(t, err)
	assert.Empty(t, empty)

	keys, err := bs.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2"}, keys)

	require.NoError(t, bs.Put(ctx, "c1", []byte("replaced")))
	got, err = bs.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []byte("replaced"), got)

	require.NoError(t, bs.Delete(ctx, "c1"))
	require.NoError(t, bs.Delete(ctx, "c1"), "delete must be idempotent")
	_, err = bs.Get(ctx, "c1")
	assert.ErrorIs(t, err, ErrBlobMissing)

	_, err = bs.Get(ctx, "never-stored")
	assert.ErrorIs(t, err, ErrBlobMissing)
}

func TestMemBlobs(t *testing.T) {
	exerciseBlobStore(t, NewMemBlobs())
}

func TestMemBlobs_CopiesInput(t *testing.T) {
	m := NewMemBlobs()
	buf := []byte("abc")
	require.NoError(t, m.Put(context.Background(), "k", buf))
	buf[0] = 'z'

	got, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'z'
	again, _ := m.Get(context.Background(), "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestCompressed(t *testing.T) {
	inner := NewMemBlobs()
	c, err := NewCompressed(inner)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	exerciseBlobStore(t, c)
}

func TestCompressed_ShrinksRepetitivePayload(t *testing.T) {
	inner := NewMemBlobs()
	c, err := NewCompressed(inner)
	require.NoError(t, err)
	defer c.Close()

	payload := make([]byte, 64<<10)
	for i := range payload {
		payload[i] = byte('a' + i%4)
	}
	require.NoError(t, c.Put(context.Background(), "big", payload))

	raw, err := inner.Get(context.Background(), "big")
	require.NoError(t, err)
	assert.Less(t, len(raw), len(payload)/10)
}

func TestSealed(t *testing.T) {
	inner := NewMemBlobs()
	s, err := NewSealed(inner, "blob-secret")
	require.NoError(t, err)

	exerciseBlobStore(t, s)
}

func TestSealed_EncryptsAtRest(t *testing.T) {
	inner := NewMemBlobs()
	s, err := NewSealed(inner, "blob-secret")
	require.NoError(t, err)

	require.NoError(t, s.Put(context.Background(), "k", []byte("plain words")))
	raw, err := inner.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "plain words")
}

func TestNewSealed_EmptySecret(t *testing.T) {
	_, err := NewSealed(NewMemBlobs(), "")
	assert.Error(t, err)
}

func openTestSQLite(t *testing.T) *SQLiteBlobs {
	t.Helper()
	db, err := OpenSQLiteBlobs(context.Background(), filepath.Join(t.TempDir(), "blobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteBlobs(t *testing.T) {
	exerciseBlobStore(t, openTestSQLite(t))
}

func TestSQLiteBlobs_DetectsCorruption(t *testing.T) {
	db := openTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, db.Put(ctx, "k", []byte("original")))

	_, err := db.db.ExecContext(ctx, `UPDATE blobs SET data = ? WHERE content_id = ?`, []byte("tampered"), "k")
	require.NoError(t, err)

	_, err = db.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestSQLiteBlobs_EmptiedOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobs.db")
	ctx := context.Background()

	first, err := OpenSQLiteBlobs(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, "k", []byte("v")))
	require.NoError(t, first.Close())

	second, err := OpenSQLiteBlobs(ctx, path)
	require.NoError(t, err)
	defer second.Close()

	keys, err := second.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStackedBackends(t *testing.T) {
	s, err := NewSealed(openTestSQLite(t), "stack-secret")
	require.NoError(t, err)
	c, err := NewCompressed(s)
	require.NoError(t, err)
	defer c.Close()

	exerciseBlobStore(t, c)
}
