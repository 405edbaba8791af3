package concurrency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/dbstorage-core/storage/page"
)

func registry(txns ...*Transaction) map[int64]*Transaction {
	m := make(map[int64]*Transaction, len(txns))
	for _, t := range txns {
		m[t.ID()] = t
	}
	return m
}

func TestLockSharedUnderReadUncommittedAborts(t *testing.T) {
	lm := NewLockManager()
	txn := NewTransaction(ReadUncommitted)
	rid := page.RID{PageID: 1, Slot: 0}

	ok, err := lm.LockShared(txn, rid, registry(txn))
	assert.False(t, ok)
	require.Error(t, err)
	var abortErr *TransactionAbortError
	require.ErrorAs(t, err, &abortErr)
	assert.Equal(t, LockSharedOnReadUncommitted, abortErr.Reason)
	assert.Equal(t, Aborted, txn.State())
}

func TestLockSharedSharedCompatible(t *testing.T) {
	lm := NewLockManager()
	a := NewTransaction(RepeatableRead)
	b := NewTransaction(RepeatableRead)
	rid := page.RID{PageID: 1, Slot: 0}
	regs := registry(a, b)

	ok, err := lm.LockShared(a, rid, regs)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lm.LockShared(b, rid, regs)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, a.IsSharedLocked(rid))
	assert.True(t, b.IsSharedLocked(rid))
}

// Scenario 4 (spec §8): txn A (id 1) holds X on r; txn B (id 2, younger)
// requests X and is wounded.
func TestLockExclusiveYoungerRequesterWoundsNoOneAndWins(t *testing.T) {
	lm := NewLockManager()
	a := NewTransaction(RepeatableRead) // becomes id N
	b := NewTransaction(RepeatableRead) // becomes id N+1, younger
	rid := page.RID{PageID: 1, Slot: 0}
	regs := registry(a, b)

	ok, err := lm.LockExclusive(a, rid, regs)
	require.NoError(t, err)
	assert.True(t, ok)

	// b is younger than a: a is the older holder, so b gets wounded.
	ok, err = lm.LockExclusive(b, rid, regs)
	assert.False(t, ok)
	var abortErr *TransactionAbortError
	require.ErrorAs(t, err, &abortErr)
	assert.Equal(t, Deadlock, abortErr.Reason)
	assert.Equal(t, Aborted, b.State())
	assert.True(t, a.IsExclusiveLocked(rid))
}

// Scenario 4 variant: younger transaction holds X; an older requester
// wounds the younger holder and proceeds immediately.
func TestLockExclusiveOlderRequesterWoundsYoungerHolder(t *testing.T) {
	lm := NewLockManager()
	young := NewTransaction(RepeatableRead)
	old := NewTransaction(RepeatableRead)
	// Force old < young regardless of allocation order.
	if old.ID() > young.ID() {
		old, young = young, old
	}
	rid := page.RID{PageID: 7, Slot: 0}
	regs := registry(old, young)

	ok, err := lm.LockExclusive(young, rid, regs)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lm.LockExclusive(old, rid, regs)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Aborted, young.State())
	assert.True(t, old.IsExclusiveLocked(rid))
	assert.False(t, young.IsExclusiveLocked(rid))
}

// Scenario 5 (spec §8): A,B hold S; A requests Upgrade, waits for B to
// unlock; a concurrent Upgrade from C aborts with UPGRADE_CONFLICT.
func TestLockUpgradeWaitsAndRejectsConcurrentUpgrader(t *testing.T) {
	lm := NewLockManager()
	a := NewTransaction(RepeatableRead)
	b := NewTransaction(RepeatableRead)
	c := NewTransaction(RepeatableRead)
	rid := page.RID{PageID: 3, Slot: 0}
	regs := registry(a, b, c)

	_, err := lm.LockShared(a, rid, regs)
	require.NoError(t, err)
	_, err = lm.LockShared(b, rid, regs)
	require.NoError(t, err)

	done := make(chan struct{})
	var upgradeOK bool
	var upgradeErr error
	go func() {
		upgradeOK, upgradeErr = lm.LockUpgrade(a, rid, regs)
		close(done)
	}()

	// Give the upgrader time to park on the condition variable.
	time.Sleep(20 * time.Millisecond)

	ok, err := lm.LockUpgrade(c, rid, regs)
	assert.False(t, ok)
	var abortErr *TransactionAbortError
	require.ErrorAs(t, err, &abortErr)
	assert.Equal(t, UpgradeConflict, abortErr.Reason)

	lm.Unlock(b, rid)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("upgrade did not complete after unlock")
	}
	require.NoError(t, upgradeErr)
	assert.True(t, upgradeOK)
	assert.True(t, a.IsExclusiveLocked(rid))
	assert.False(t, a.IsSharedLocked(rid))
}

// Scenario 6 (spec §8): isolation level behavior around SHRINKING.
func TestLockIsolationShrinkingTransition(t *testing.T) {
	lm := NewLockManager()
	rid := page.RID{PageID: 9, Slot: 0}

	uncommitted := NewTransaction(ReadUncommitted)
	ok, err := lm.LockShared(uncommitted, rid, registry(uncommitted))
	assert.False(t, ok)
	require.Error(t, err)

	committed := NewTransaction(ReadCommitted)
	_, err = lm.LockShared(committed, rid, registry(committed))
	require.NoError(t, err)
	lm.Unlock(committed, rid)
	assert.Equal(t, Growing, committed.State())

	repeatable := NewTransaction(RepeatableRead)
	_, err = lm.LockShared(repeatable, rid, registry(repeatable))
	require.NoError(t, err)
	lm.Unlock(repeatable, rid)
	assert.Equal(t, Shrinking, repeatable.State())

	ok, err = lm.LockShared(repeatable, rid, registry(repeatable))
	assert.False(t, ok)
	var abortErr *TransactionAbortError
	require.ErrorAs(t, err, &abortErr)
	assert.Equal(t, LockOnShrinking, abortErr.Reason)
}

func TestLockSharedWaitsBehindOlderExclusiveHolder(t *testing.T) {
	lm := NewLockManager()
	old := NewTransaction(RepeatableRead)
	young := NewTransaction(RepeatableRead)
	if old.ID() > young.ID() {
		old, young = young, old
	}
	rid := page.RID{PageID: 11, Slot: 0}
	regs := registry(old, young)

	_, err := lm.LockExclusive(old, rid, regs)
	require.NoError(t, err)

	done := make(chan struct{})
	var sharedOK bool
	var sharedErr error
	go func() {
		sharedOK, sharedErr = lm.LockShared(young, rid, regs)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("younger LockShared should block behind older X holder")
	default:
	}

	lm.Unlock(old, rid)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("LockShared did not complete after Unlock")
	}
	require.NoError(t, sharedErr)
	assert.True(t, sharedOK)
	assert.True(t, young.IsSharedLocked(rid))
}
