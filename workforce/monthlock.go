/*
monthlock.go - Per-month freeze flag

PURPOSE:
  Once a month's payroll is finalized an administrator locks it. While
  locked, attendance for that month cannot be written or deleted and
  payroll cannot be calculated without an explicit override.

STATE:
  Two values, locked and unlocked. A row is created on the first lock
  request and is never deleted; lock and unlock toggle it.

    (no row) --Lock--> locked --Unlock(reason)--> unlocked --Lock--> locked

  Lock clears the unlock metadata, Unlock clears the lock metadata and
  records who unlocked and why. The reason is mandatory.

CONCURRENCY:
  Lock and Unlock run inside a store transaction, as do the ledger writes
  that consult the lock. Since write transactions are serialized, an
  attendance write either commits before a lock or sees it.
*/
package workforce

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type MonthLockRegistry struct {
	store TxStore
	now   func() time.Time
}

func NewMonthLockRegistry(store TxStore) *MonthLockRegistry {
	return &MonthLockRegistry{store: store, now: time.Now}
}

// IsLocked returns false when the month was never locked.
func (r *MonthLockRegistry) IsLocked(ctx context.Context, p Period) (bool, error) {
	return isLocked(ctx, r.store, p)
}

func isLocked(ctx context.Context, s MonthLockStore, p Period) (bool, error) {
	lock, err := s.GetMonthLock(ctx, p)
	if err != nil {
		return false, err
	}
	return lock != nil && lock.Locked, nil
}

// Get returns the lock row for the month, or nil if none exists.
func (r *MonthLockRegistry) Get(ctx context.Context, p Period) (*MonthLock, error) {
	return r.store.GetMonthLock(ctx, p)
}

// List returns all lock rows, newest month first.
func (r *MonthLockRegistry) List(ctx context.Context) ([]MonthLock, error) {
	return r.store.ListMonthLocks(ctx)
}

// Lock freezes the month. Fails with ErrConflict if it is already locked.
func (r *MonthLockRegistry) Lock(ctx context.Context, p Period, lockedBy string) (MonthLock, error) {
	lockedBy = strings.TrimSpace(lockedBy)
	if lockedBy == "" {
		return MonthLock{}, badRequest(ReasonInvalidInput, "lockedBy is required")
	}

	var out MonthLock
	err := r.store.WithTx(ctx, func(s Store) error {
		existing, err := s.GetMonthLock(ctx, p)
		if err != nil {
			return err
		}
		if existing != nil && existing.Locked {
			return conflict(ReasonAlreadyLocked, "Month %s is already locked", p)
		}

		now := r.now().UTC()
		lock := MonthLock{ID: uuid.NewString(), Period: p, CreatedAt: now}
		if existing != nil {
			lock = *existing
		}
		lock.Locked = true
		lock.LockedBy = lockedBy
		lock.LockedAt = &now
		lock.UnlockedBy = ""
		lock.UnlockReason = ""
		lock.UnlockedAt = nil
		lock.UpdatedAt = now

		if err := s.SaveMonthLock(ctx, lock); err != nil {
			return err
		}
		out = lock
		return nil
	})
	return out, err
}

// Unlock reopens the month. The reason is mandatory; fails with ErrConflict
// if the month is not currently locked.
func (r *MonthLockRegistry) Unlock(ctx context.Context, p Period, unlockedBy, reason string) (MonthLock, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return MonthLock{}, badRequest(ReasonReasonRequired, "A reason is required to unlock month %s", p)
	}
	unlockedBy = strings.TrimSpace(unlockedBy)
	if unlockedBy == "" {
		return MonthLock{}, badRequest(ReasonInvalidInput, "unlockedBy is required")
	}

	var out MonthLock
	err := r.store.WithTx(ctx, func(s Store) error {
		lock, err := s.GetMonthLock(ctx, p)
		if err != nil {
			return err
		}
		if lock == nil || !lock.Locked {
			return conflict(ReasonNotLocked, "Month %s is not locked", p)
		}

		now := r.now().UTC()
		lock.Locked = false
		lock.LockedBy = ""
		lock.LockedAt = nil
		lock.UnlockedBy = unlockedBy
		lock.UnlockReason = reason
		lock.UnlockedAt = &now
		lock.UpdatedAt = now

		if err := s.SaveMonthLock(ctx, *lock); err != nil {
			return err
		}
		out = *lock
		return nil
	})
	return out, err
}
