package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/dbstorage-core/storage/page"
)

func TestDirectoryInitialState(t *testing.T) {
	d := NewDirectory()
	assert.Equal(t, uint32(0), d.GetGlobalDepth())
	assert.Equal(t, uint32(1), d.Size())
	assert.Equal(t, page.InvalidID, d.PageID())
}

func TestDirectoryIncrGlobalDepthMirrorsSlots(t *testing.T) {
	d := NewDirectory()
	d.SetBucketPageId(0, 5)
	d.SetLocalDepth(0, 0)

	d.IncrGlobalDepth()
	assert.Equal(t, uint32(1), d.GetGlobalDepth())
	assert.Equal(t, uint32(2), d.Size())
	assert.Equal(t, page.ID(5), d.GetBucketPageId(1), "mirrored slot must copy the low slot's bucket id")
	assert.Equal(t, uint32(0), d.GetLocalDepth(1))
}

func TestDirectoryCanShrink(t *testing.T) {
	d := NewDirectory()
	d.IncrGlobalDepth() // G=1, size 2
	d.SetLocalDepth(0, 1)
	d.SetLocalDepth(1, 1)
	assert.False(t, d.CanShrink(), "local depth == global depth blocks shrink")

	d.SetLocalDepth(0, 0)
	d.SetLocalDepth(1, 0)
	assert.True(t, d.CanShrink())
}

func TestDirectorySplitImageIndex(t *testing.T) {
	d := NewDirectory()
	d.SetLocalDepth(3, 2)
	assert.Equal(t, uint32(1), d.GetSplitImageIndex(3), "3 (011) with ld=2 flips bit 1 -> 1 (001)")

	d.SetLocalDepth(0, 0)
	assert.Equal(t, uint32(0), d.GetSplitImageIndex(0), "local depth 0 has no split image")
}

func TestDirectoryVerifyIntegrityCatchesInconsistentLocalDepth(t *testing.T) {
	d := NewDirectory()
	d.IncrGlobalDepth() // size 2
	d.SetBucketPageId(0, 10)
	d.SetBucketPageId(1, 10)
	d.SetLocalDepth(0, 1)
	d.SetLocalDepth(1, 0) // same page, disagreeing local depth

	err := d.VerifyIntegrity()
	require.Error(t, err)
}

func TestDirectoryVerifyIntegrityPassesOnConsistentDirectory(t *testing.T) {
	d := NewDirectory()
	d.SetBucketPageId(0, 1)
	assert.NoError(t, d.VerifyIntegrity())

	d.IncrGlobalDepth()
	d.SetLocalDepth(0, 1)
	d.SetBucketPageId(1, 2)
	d.SetLocalDepth(1, 1)
	assert.NoError(t, d.VerifyIntegrity())
}

func TestDirectoryCodecRoundTrip(t *testing.T) {
	d := NewDirectory()
	d.SetPageID(99)
	d.IncrGlobalDepth()
	d.IncrGlobalDepth()
	d.SetBucketPageId(2, 77)
	d.SetLocalDepth(2, 2)

	pg := page.NewPage()
	pg.SetID(99)
	d.Store(pg)

	loaded := LoadDirectory(pg)
	assert.Equal(t, d.PageID(), loaded.PageID())
	assert.Equal(t, d.GetGlobalDepth(), loaded.GetGlobalDepth())
	assert.Equal(t, page.ID(77), loaded.GetBucketPageId(2))
	assert.Equal(t, uint32(2), loaded.GetLocalDepth(2))
}
