package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/dbstorage-core/storage/disk"
	"github.com/zhukovaskychina/dbstorage-core/storage/page"
)

func newTestParallelPool(t *testing.T, numInstances, instanceSize int) *ParallelPool {
	t.Helper()
	disks := make([]disk.Manager, numInstances)
	for i := range disks {
		dm, err := disk.NewFileManager(t.TempDir() + "/shard.db")
		require.NoError(t, err)
		t.Cleanup(func() { _ = dm.Close() })
		disks[i] = dm
	}
	return NewParallelPool(numInstances, instanceSize, disks)
}

func TestParallelPoolSize(t *testing.T) {
	pool := newTestParallelPool(t, 4, 3)
	assert.Equal(t, 12, pool.GetPoolSize())
}

// TestParallelPoolRoutesByModulo covers BP4: dispatch always lands on
// the instance whose index equals page_id mod M.
func TestParallelPoolRoutesByModulo(t *testing.T) {
	pool := newTestParallelPool(t, 3, 4)

	ids := make([]page.ID, 0, 9)
	for i := 0; i < 9; i++ {
		p, err := pool.NewPage()
		require.NoError(t, err)
		require.NotNil(t, p)
		ids = append(ids, p.ID())
	}

	for _, id := range ids {
		wantInstance := pool.instanceFor(id)
		_, ok := wantInstance.pageTbl[id]
		assert.True(t, ok, "page %d should be resident in the instance id mod M selects", id)
	}
}

func TestParallelPoolNewPageSweepsAllInstances(t *testing.T) {
	pool := newTestParallelPool(t, 2, 1)

	p1, err := pool.NewPage()
	require.NoError(t, err)
	require.NotNil(t, p1)
	p2, err := pool.NewPage()
	require.NoError(t, err)
	require.NotNil(t, p2)

	// both single-frame instances are now pinned full
	p3, err := pool.NewPage()
	require.NoError(t, err)
	assert.Nil(t, p3)
}
