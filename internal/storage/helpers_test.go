package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// tickClock advances one second on every reading so timestamps are distinct.
type tickClock struct {
	t time.Time
}

func (c *tickClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestStore(t *testing.T, opts ...Option) (*Store, User) {
	t.Helper()
	clock := &tickClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := New(append([]Option{WithClock(clock.Now)}, opts...)...)
	u, err := s.CreateUser(DefaultStorageLimit)
	require.NoError(t, err)
	return s, u
}

func ptr(v int64) *int64 { return &v }

func mustFolder(t *testing.T, s *Store, owner int64, name string, parent *int64) Folder {
	t.Helper()
	f, err := s.CreateFolder(NewFolder{Name: name, ParentID: parent, OwnerID: owner})
	require.NoError(t, err)
	return f
}

func mustUpload(t *testing.T, s *Store, owner int64, name string, folder *int64, data []byte) File {
	t.Helper()
	f, err := s.Upload(context.Background(), NewFile{
		Name:     name,
		MimeType: "application/octet-stream",
		FolderID: folder,
		OwnerID:  owner,
	}, data)
	require.NoError(t, err)
	return f
}

var errBlobDown = errors.New("blob backend down")

// flakyBlobs fails every Delete.
type flakyBlobs struct {
	*MemBlobs
}

func (f flakyBlobs) Delete(context.Context, string) error {
	return errBlobDown
}
