package replacer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhukovaskychina/dbstorage-core/storage/page"
)

func TestLRUBasicVictimOrder(t *testing.T) {
	r := NewLRU(7)

	for _, id := range []page.FrameID{1, 2, 3, 4, 5} {
		r.Unpin(id)
	}
	assert.Equal(t, 5, r.Size())

	r.Pin(3)
	r.Pin(4)
	assert.Equal(t, 3, r.Size())

	r.Unpin(3)
	r.Unpin(6)
	r.Unpin(3) // already present, no-op

	assert.Equal(t, 5, r.Size())

	wantOrder := []page.FrameID{1, 2, 5, 3, 6}
	for _, want := range wantOrder {
		got, ok := r.Victim()
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok := r.Victim()
	assert.False(t, ok)
}

func TestLRUUnpinAtCapacityIsNoOp(t *testing.T) {
	r := NewLRU(2)
	r.Unpin(1)
	r.Unpin(2)
	r.Unpin(3) // over capacity, dropped

	assert.Equal(t, 2, r.Size())
	got, ok := r.Victim()
	assert.True(t, ok)
	assert.Equal(t, page.FrameID(1), got)
}

func TestLRUPinNoOpWhenAbsent(t *testing.T) {
	r := NewLRU(4)
	r.Pin(42) // never unpinned, no-op
	assert.Equal(t, 0, r.Size())
}
