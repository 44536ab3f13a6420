package workforce_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/site-payroll/workforce"
)

func TestMonthLock_NeverLocked_IsUnlocked(t *testing.T) {
	f := newFixture(t)

	locked, err := f.locks.IsLocked(f.ctx, workforce.MustPeriod(2024, 5))
	require.NoError(t, err)
	assert.False(t, locked)

	lock, err := f.locks.Get(f.ctx, workforce.MustPeriod(2024, 5))
	require.NoError(t, err)
	assert.Nil(t, lock)
}

func TestMonthLock_LockTwice_Conflict(t *testing.T) {
	// GIVEN: May 2024 is locked
	// WHEN: Locking it again
	// THEN: Conflict ALREADY_LOCKED, original locker kept

	f := newFixture(t)
	may := workforce.MustPeriod(2024, 5)

	lock, err := f.locks.Lock(f.ctx, may, "alice")
	require.NoError(t, err)
	assert.True(t, lock.Locked)
	assert.Equal(t, "alice", lock.LockedBy)
	require.NotNil(t, lock.LockedAt)

	_, err = f.locks.Lock(f.ctx, may, "bob")
	require.Error(t, err)
	assert.True(t, workforce.IsConflict(err))
	assert.Equal(t, workforce.ReasonAlreadyLocked, workforce.ReasonOf(err))

	stored, err := f.locks.Get(f.ctx, may)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.LockedBy)
}

func TestMonthLock_UnlockRequiresReason(t *testing.T) {
	// GIVEN: May 2024 is locked
	// WHEN: Unlocking without a reason, then with one
	// THEN: First fails validation and the month stays locked; second unlocks

	f := newFixture(t)
	may := workforce.MustPeriod(2024, 5)
	_, err := f.locks.Lock(f.ctx, may, "alice")
	require.NoError(t, err)

	_, err = f.locks.Unlock(f.ctx, may, "alice", "   ")
	require.Error(t, err)
	assert.True(t, workforce.IsBadRequest(err))
	assert.Equal(t, workforce.ReasonReasonRequired, workforce.ReasonOf(err))

	locked, err := f.locks.IsLocked(f.ctx, may)
	require.NoError(t, err)
	assert.True(t, locked)

	lock, err := f.locks.Unlock(f.ctx, may, "bob", "late timesheet from SITE-A")
	require.NoError(t, err)
	assert.False(t, lock.Locked)
	assert.Empty(t, lock.LockedBy)
	assert.Nil(t, lock.LockedAt)
	assert.Equal(t, "bob", lock.UnlockedBy)
	assert.Equal(t, "late timesheet from SITE-A", lock.UnlockReason)
	assert.NotNil(t, lock.UnlockedAt)

	locked, err = f.locks.IsLocked(f.ctx, may)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestMonthLock_UnlockWhenNotLocked_Conflict(t *testing.T) {
	f := newFixture(t)

	_, err := f.locks.Unlock(f.ctx, workforce.MustPeriod(2024, 6), "alice", "oops")
	require.Error(t, err)
	assert.True(t, workforce.IsConflict(err))
	assert.Equal(t, workforce.ReasonNotLocked, workforce.ReasonOf(err))
}

func TestMonthLock_Relock_ClearsUnlockMetadata_SameRow(t *testing.T) {
	f := newFixture(t)
	may := workforce.MustPeriod(2024, 5)

	first, err := f.locks.Lock(f.ctx, may, "alice")
	require.NoError(t, err)
	_, err = f.locks.Unlock(f.ctx, may, "bob", "correction")
	require.NoError(t, err)

	relocked, err := f.locks.Lock(f.ctx, may, "carol")
	require.NoError(t, err)
	assert.Equal(t, first.ID, relocked.ID, "one row per month")
	assert.Equal(t, "carol", relocked.LockedBy)
	assert.Empty(t, relocked.UnlockedBy)
	assert.Empty(t, relocked.UnlockReason)
	assert.Nil(t, relocked.UnlockedAt)

	all, err := f.locks.List(f.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMonthLock_List_NewestFirst(t *testing.T) {
	f := newFixture(t)
	for _, p := range []workforce.Period{
		workforce.MustPeriod(2023, 12), workforce.MustPeriod(2024, 2), workforce.MustPeriod(2024, 1),
	} {
		_, err := f.locks.Lock(f.ctx, p, "alice")
		require.NoError(t, err)
	}

	all, err := f.locks.List(f.ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2024-02", all[0].Period.String())
	assert.Equal(t, "2024-01", all[1].Period.String())
	assert.Equal(t, "2023-12", all[2].Period.String())
}

func TestMonthLock_LockRequiresActor(t *testing.T) {
	f := newFixture(t)

	_, err := f.locks.Lock(f.ctx, workforce.MustPeriod(2024, 5), "")
	assert.True(t, workforce.IsBadRequest(err))
}
