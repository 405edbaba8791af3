package concurrency

import (
	"sync"

	"github.com/juju/errors"

	"github.com/zhukovaskychina/dbstorage-core/storage/page"
)

// LockMode is the kind of lock a LockRequest holds or wants.
type LockMode int

const (
	Shared LockMode = iota
	Exclusive
)

// AbortReason explains why TransactionAbortError was raised.
type AbortReason int

const (
	Deadlock AbortReason = iota
	LockOnShrinking
	LockSharedOnReadUncommitted
	UpgradeConflict
)

func (r AbortReason) String() string {
	switch r {
	case Deadlock:
		return "DEADLOCK"
	case LockOnShrinking:
		return "LOCK_ON_SHRINKING"
	case LockSharedOnReadUncommitted:
		return "LOCKSHARED_ON_READ_UNCOMMITTED"
	case UpgradeConflict:
		return "UPGRADE_CONFLICT"
	default:
		return "UNKNOWN"
	}
}

// TransactionAbortError is the error the lock manager raises whenever
// wound-wait, isolation rules, or the upgrade-exclusivity rule force a
// transaction into ABORTED.
type TransactionAbortError struct {
	TxnID  int64
	Reason AbortReason
}

func (e *TransactionAbortError) Error() string {
	return errors.Errorf("transaction %d aborted: %s", e.TxnID, e.Reason).Error()
}

// request is one entry in a LockRequestQueue.
type request struct {
	txnID   int64
	mode    LockMode
	granted bool
}

// requestQueue is the per-RID wait/grant list plus the condition
// variable lock methods block and wake on (spec §4.G).
type requestQueue struct {
	cond      *sync.Cond
	requests  []*request
	upgrading bool
}

// LockManager is a per-RID two-phase locking service with wound-wait
// deadlock avoidance: lower txn id is older, older transactions
// preempt ("wound") younger holders, younger requesters wait.
type LockManager struct {
	latch sync.Mutex
	table map[page.RID]*requestQueue
}

// NewLockManager builds an empty lock manager.
func NewLockManager() *LockManager {
	return &LockManager{table: make(map[page.RID]*requestQueue)}
}

func (lm *LockManager) queueFor(rid page.RID) *requestQueue {
	q, ok := lm.table[rid]
	if !ok {
		q = &requestQueue{}
		q.cond = sync.NewCond(&lm.latch)
		lm.table[rid] = q
	}
	return q
}

func abort(txn *Transaction, rid page.RID, reason AbortReason) error {
	txn.SetState(Aborted)
	txn.clearLockSetsFor(rid)
	return &TransactionAbortError{TxnID: txn.ID(), Reason: reason}
}

func removeRequest(q *requestQueue, txnID int64) {
	for i, r := range q.requests {
		if r.txnID == txnID {
			q.requests = append(q.requests[:i], q.requests[i+1:]...)
			return
		}
	}
}

func findRequest(q *requestQueue, txnID int64) *request {
	for _, r := range q.requests {
		if r.txnID == txnID {
			return r
		}
	}
	return nil
}

// wound erases r from the queue and marks its owning transaction
// ABORTED, clearing its lock sets for rid. Caller holds lm.latch.
func wound(q *requestQueue, r *request, rid page.RID, txns map[int64]*Transaction) {
	removeRequest(q, r.txnID)
	if victim, ok := txns[r.txnID]; ok {
		victim.SetState(Aborted)
		victim.clearLockSetsFor(rid)
	}
}

// LockShared acquires a shared lock on rid for txn (spec §4.G).
//
// txns must map every txn id potentially present in rid's queue back
// to its Transaction, so wounded holders can be marked ABORTED; the
// caller (typically a single-process demo or test) is expected to
// pass a shared registry of live transactions.
func (lm *LockManager) LockShared(txn *Transaction, rid page.RID, txns map[int64]*Transaction) (bool, error) {
	if txn.State() == Aborted {
		return false, &TransactionAbortError{TxnID: txn.ID(), Reason: Deadlock}
	}
	if txn.IsolationLevel() == ReadUncommitted {
		return false, abort(txn, rid, LockSharedOnReadUncommitted)
	}
	if txn.State() == Shrinking {
		return false, abort(txn, rid, LockOnShrinking)
	}
	if txn.IsSharedLocked(rid) {
		return true, nil
	}

	lm.latch.Lock()
	defer lm.latch.Unlock()
	q := lm.queueFor(rid)
	queuedSelf := false

	for {
		conflict := false
		for _, r := range q.requests {
			if r.txnID == txn.ID() || r.mode != Exclusive || !r.granted {
				continue
			}
			if r.txnID > txn.ID() {
				wound(q, r, rid, txns)
				conflict = true
				break
			}
			// Older X-holder: queue self as not-granted and wait.
			if !queuedSelf {
				q.requests = append(q.requests, &request{txnID: txn.ID(), mode: Shared, granted: false})
				queuedSelf = true
			}
			q.cond.Wait()
			if txn.State() == Aborted {
				removeRequest(q, txn.ID())
				return false, &TransactionAbortError{TxnID: txn.ID(), Reason: Deadlock}
			}
			conflict = true
			break
		}
		if conflict {
			continue
		}
		if self := findRequest(q, txn.ID()); self != nil {
			self.granted = true
		} else {
			q.requests = append(q.requests, &request{txnID: txn.ID(), mode: Shared, granted: true})
		}
		txn.addShared(rid)
		txn.SetState(Growing)
		return true, nil
	}
}

// LockExclusive acquires an exclusive lock on rid for txn (spec §4.G).
// X never waits: it either wins immediately (wounding younger
// holders) or is wounded itself by an older holder.
func (lm *LockManager) LockExclusive(txn *Transaction, rid page.RID, txns map[int64]*Transaction) (bool, error) {
	if txn.State() == Aborted {
		return false, &TransactionAbortError{TxnID: txn.ID(), Reason: Deadlock}
	}
	if txn.State() == Shrinking && txn.IsolationLevel() == RepeatableRead {
		return false, abort(txn, rid, LockOnShrinking)
	}
	if txn.IsExclusiveLocked(rid) {
		return true, nil
	}

	lm.latch.Lock()
	defer lm.latch.Unlock()
	q := lm.queueFor(rid)

	for _, r := range append([]*request(nil), q.requests...) {
		if r.txnID == txn.ID() {
			continue
		}
		if r.txnID > txn.ID() {
			wound(q, r, rid, txns)
			continue
		}
		return false, abort(txn, rid, Deadlock)
	}

	q.requests = append(q.requests, &request{txnID: txn.ID(), mode: Exclusive, granted: true})
	txn.addExclusive(rid)
	txn.SetState(Growing)
	q.cond.Broadcast()
	return true, nil
}

// LockUpgrade upgrades txn's shared lock on rid to exclusive (spec
// §4.G). At most one upgrader per queue is allowed at a time.
func (lm *LockManager) LockUpgrade(txn *Transaction, rid page.RID, txns map[int64]*Transaction) (bool, error) {
	if txn.State() == Aborted {
		return false, &TransactionAbortError{TxnID: txn.ID(), Reason: Deadlock}
	}
	if txn.State() == Shrinking && txn.IsolationLevel() == RepeatableRead {
		return false, abort(txn, rid, LockOnShrinking)
	}

	lm.latch.Lock()
	defer lm.latch.Unlock()
	q := lm.queueFor(rid)

	if q.upgrading {
		return false, abort(txn, rid, UpgradeConflict)
	}
	q.upgrading = true

	for len(q.requests) != 1 {
		woundedAny := false
		for _, r := range append([]*request(nil), q.requests...) {
			if r.txnID == txn.ID() {
				continue
			}
			if r.txnID > txn.ID() {
				wound(q, r, rid, txns)
				woundedAny = true
			}
		}
		if woundedAny {
			continue
		}
		if txn.State() == Aborted {
			q.upgrading = false
			return false, &TransactionAbortError{TxnID: txn.ID(), Reason: Deadlock}
		}
		q.cond.Wait()
	}

	self := findRequest(q, txn.ID())
	if self == nil {
		q.upgrading = false
		return false, &TransactionAbortError{TxnID: txn.ID(), Reason: Deadlock}
	}
	self.mode = Exclusive
	self.granted = true
	txn.removeShared(rid)
	txn.addExclusive(rid)
	txn.SetState(Growing)
	q.upgrading = false
	return true, nil
}

// Unlock releases txn's lock on rid (spec §4.G). Under REPEATABLE_READ
// this transitions a GROWING transaction to SHRINKING (strict 2PL);
// READ_COMMITTED and READ_UNCOMMITTED do not enforce that rule.
func (lm *LockManager) Unlock(txn *Transaction, rid page.RID) bool {
	lm.latch.Lock()
	defer lm.latch.Unlock()
	q := lm.queueFor(rid)

	mode := Exclusive
	if txn.IsSharedLocked(rid) {
		mode = Shared
	}

	removeRequest(q, txn.ID())

	if txn.State() == Growing && txn.IsolationLevel() == RepeatableRead {
		txn.SetState(Shrinking)
	}

	switch mode {
	case Shared:
		txn.removeShared(rid)
	case Exclusive:
		txn.removeExclusive(rid)
	}
	q.cond.Broadcast()
	return true
}
