package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_FanOut(t *testing.T) {
	h := NewHub(4)
	a, cancelA := h.Subscribe()
	defer cancelA()
	b, cancelB := h.Subscribe()
	defer cancelB()
	require.Equal(t, 2, h.Subscribers())

	h.Publish(Event{Type: FileCreated, ID: 7})

	for _, ch := range []<-chan Event{a, b} {
		e := <-ch
		assert.Equal(t, FileCreated, e.Type)
		assert.Equal(t, int64(7), e.ID)
		assert.False(t, e.At.IsZero())
	}
}

func TestHub_CancelClosesAndUnregisters(t *testing.T) {
	h := NewHub(1)
	ch, cancel := h.Subscribe()
	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, h.Subscribers())

	h.Publish(Event{Type: FolderDeleted})
	assert.Zero(t, h.Dropped())
}

func TestHub_SlowSubscriberDrops(t *testing.T) {
	h := NewHub(1)
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish(Event{Type: FileCreated, ID: 1})
	h.Publish(Event{Type: FileCreated, ID: 2})
	h.Publish(Event{Type: FileCreated, ID: 3})

	assert.Equal(t, int64(2), h.Dropped())
	e := <-ch
	assert.Equal(t, int64(1), e.ID)
}
