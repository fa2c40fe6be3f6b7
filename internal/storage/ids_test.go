package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocator_StartsAtOnePerKind(t *testing.T) {
	var a Allocator
	assert.Equal(t, int64(1), a.Next(KindFolder))
	assert.Equal(t, int64(1), a.Next(KindFile))
	assert.Equal(t, int64(2), a.Next(KindFolder))
	assert.Equal(t, int64(0), a.Peek(KindUser))
}

func TestAllocator_NeverReusesAfterDelete(t *testing.T) {
	s, u := newTestStore(t)
	f1 := mustUpload(t, s, u.ID, "a.txt", nil, []byte("a"))
	assert.NoError(t, s.DeleteFile(t.Context(), f1.ID))
	f2 := mustUpload(t, s, u.ID, "b.txt", nil, []byte("b"))
	assert.Greater(t, f2.ID, f1.ID)
}
