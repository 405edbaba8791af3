package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/dbstorage-core/storage/disk"
	"github.com/zhukovaskychina/dbstorage-core/storage/page"
)

func newTestInstance(t *testing.T, poolSize int) *Instance {
	t.Helper()
	dm, err := disk.NewFileManager(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })
	return NewInstance(poolSize, dm, 0, 1)
}

// TestScenario1 walks spec §8 end-to-end scenario 1: pool size 3, new
// pages 0..2, unpin two, new a fourth (evicts page 0), then fetch both
// the resurrected page and the still-resident one.
func TestScenario1EvictionAndRefetch(t *testing.T) {
	bp := newTestInstance(t, 3)

	p0, err := bp.NewPage()
	require.NoError(t, err)
	require.NotNil(t, p0)
	assert.Equal(t, page.ID(0), p0.ID())

	p1, err := bp.NewPage()
	require.NoError(t, err)
	assert.Equal(t, page.ID(1), p1.ID())

	p2, err := bp.NewPage()
	require.NoError(t, err)
	assert.Equal(t, page.ID(2), p2.ID())

	copy(p1.Data()[:], []byte("page-one-dirty"))

	assert.True(t, bp.UnpinPage(0, false))
	assert.True(t, bp.UnpinPage(1, true))

	// pool is full of pinned page 2 and unpinned {0,1}; 0 is LRU (unpinned first)
	p3, err := bp.NewPage()
	require.NoError(t, err)
	require.NotNil(t, p3)
	assert.Equal(t, page.ID(3), p3.ID())

	// page 1 is still resident: fetch must not touch disk (data intact)
	p1Again, err := bp.FetchPage(1)
	require.NoError(t, err)
	require.NotNil(t, p1Again)
	assert.Equal(t, "page-one-dirty", string(p1Again.Data()[:14]))

	// page 0 was evicted: fetch reads a freshly zeroed page back
	p0Again, err := bp.FetchPage(0)
	require.NoError(t, err)
	require.NotNil(t, p0Again)
	assert.Equal(t, byte(0), p0Again.Data()[0])
}

func TestUnpinNotResidentOrOverUnpinFails(t *testing.T) {
	bp := newTestInstance(t, 2)

	assert.False(t, bp.UnpinPage(99, false))

	p, err := bp.NewPage()
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.True(t, bp.UnpinPage(p.ID(), false))
	assert.False(t, bp.UnpinPage(p.ID(), false)) // pin count already 0
}

func TestDeletePagePinnedFails(t *testing.T) {
	bp := newTestInstance(t, 2)

	p, err := bp.NewPage()
	require.NoError(t, err)

	ok, err := bp.DeletePage(p.ID())
	require.NoError(t, err)
	assert.False(t, ok)

	bp.UnpinPage(p.ID(), false)
	ok, err = bp.DeletePage(p.ID())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeletePageNotResidentSucceeds(t *testing.T) {
	bp := newTestInstance(t, 2)
	ok, err := bp.DeletePage(page.ID(1234))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewPageFailsWhenPoolFullyPinned(t *testing.T) {
	bp := newTestInstance(t, 2)

	_, err := bp.NewPage()
	require.NoError(t, err)
	_, err = bp.NewPage()
	require.NoError(t, err)

	p3, err := bp.NewPage()
	require.NoError(t, err)
	assert.Nil(t, p3)
}

func TestFlushPageClearsDirty(t *testing.T) {
	bp := newTestInstance(t, 2)

	p, err := bp.NewPage()
	require.NoError(t, err)
	p.MarkDirty()

	ok, err := bp.FlushPage(p.ID())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, p.IsDirty())

	ok, err = bp.FlushPage(page.ID(999))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDirtyBitIsOrredNeverCleared(t *testing.T) {
	bp := newTestInstance(t, 2)

	p, err := bp.NewPage()
	require.NoError(t, err)
	pid := p.ID()

	p.IncPin() // simulate a second concurrent pinner
	assert.True(t, bp.UnpinPage(pid, true))
	assert.True(t, p.IsDirty())
	assert.True(t, bp.UnpinPage(pid, false)) // must not clear dirty
	assert.True(t, p.IsDirty())
}
