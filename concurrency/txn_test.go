package concurrency

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhukovaskychina/dbstorage-core/storage/page"
)

func TestTransactionIDsAreMonotonicallyIncreasing(t *testing.T) {
	a := NewTransaction(RepeatableRead)
	b := NewTransaction(RepeatableRead)
	assert.Less(t, a.ID(), b.ID())
}

func TestTransactionLockSetBookkeeping(t *testing.T) {
	txn := NewTransaction(RepeatableRead)
	rid := page.RID{PageID: 1, Slot: 2}

	assert.False(t, txn.IsSharedLocked(rid))
	txn.addShared(rid)
	assert.True(t, txn.IsSharedLocked(rid))

	txn.removeShared(rid)
	assert.False(t, txn.IsSharedLocked(rid))

	txn.addExclusive(rid)
	assert.True(t, txn.IsExclusiveLocked(rid))
	txn.clearLockSetsFor(rid)
	assert.False(t, txn.IsExclusiveLocked(rid))
}

func TestTransactionStateTransitions(t *testing.T) {
	txn := NewTransaction(ReadCommitted)
	assert.Equal(t, Growing, txn.State())
	txn.SetState(Shrinking)
	assert.Equal(t, Shrinking, txn.State())
	txn.SetState(Aborted)
	assert.Equal(t, Aborted, txn.State())
}
