// StudyForge | 2026
// memory_test.go

package quota

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedgerIncrement(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	count, err := ledger.Increment(ctx, "acct-1", KindPlan)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = ledger.Increment(ctx, "acct-1", KindPlan)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Kinds and accounts are independent counters.
	count, err = ledger.Increment(ctx, "acct-1", KindLesson)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = ledger.Increment(ctx, "acct-2", KindPlan)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemoryLedgerConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	const n = 5
	results := make([]int64, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			count, err := ledger.Increment(ctx, "acct-1", KindLesson)
			require.NoError(t, err)
			results[i] = count
		}(i)
	}
	wg.Wait()

	// Every caller observed a distinct consecutive value: the results
	// are a permutation of 1..n.
	seen := make(map[int64]bool, n)
	for _, r := range results {
		assert.GreaterOrEqual(t, r, int64(1))
		assert.LessOrEqual(t, r, int64(n))
		assert.False(t, seen[r], "duplicate increment result %d", r)
		seen[r] = true
	}

	counters, err := ledger.Read(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(n), counters.Get(KindLesson))
}

func TestMemoryLedgerIncrementBelow(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	max := BoundOf(2)

	count, applied, err := ledger.IncrementBelow(ctx, "acct-1", KindPlan, max)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int64(1), count)

	count, applied, err = ledger.IncrementBelow(ctx, "acct-1", KindPlan, max)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int64(2), count)

	// The ceiling holds: the count returned is the blocking value.
	count, applied, err = ledger.IncrementBelow(ctx, "acct-1", KindPlan, max)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, int64(2), count)
}

func TestMemoryLedgerIncrementBelowConcurrent(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	const callers = 20
	max := BoundOf(5)

	var wg sync.WaitGroup
	appliedCount := make(chan bool, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, applied, err := ledger.IncrementBelow(ctx, "acct-1", KindFlashcard, max)
			require.NoError(t, err)
			appliedCount <- applied
		}()
	}
	wg.Wait()
	close(appliedCount)

	applied := 0
	for ok := range appliedCount {
		if ok {
			applied++
		}
	}

	// Exactly max increments succeed regardless of contention.
	assert.Equal(t, 5, applied)

	counters, err := ledger.Read(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), counters.Get(KindFlashcard))
}

func TestMemoryLedgerIncrementBelowUnbounded(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	for i := int64(1); i <= 100; i++ {
		count, applied, err := ledger.IncrementBelow(
			ctx, "acct-1", KindPlan, Unbounded(),
		)
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, i, count)
	}
}

func TestMemoryLedgerReadUnknownAccount(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	counters, err := ledger.Read(ctx, "never-seen")
	require.NoError(t, err)

	for _, kind := range AllKinds() {
		assert.Equal(t, int64(0), counters.Get(kind))
	}
}

func TestMemoryLedgerReadIsSnapshot(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	_, err := ledger.Increment(ctx, "acct-1", KindPlan)
	require.NoError(t, err)

	snapshot, err := ledger.Read(ctx, "acct-1")
	require.NoError(t, err)

	_, err = ledger.Increment(ctx, "acct-1", KindPlan)
	require.NoError(t, err)

	// The earlier snapshot is unaffected by later increments.
	assert.Equal(t, int64(1), snapshot.Get(KindPlan))
}

func TestMemoryLedgerReset(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	_, err := ledger.Increment(ctx, "acct-1", KindPlan)
	require.NoError(t, err)
	_, err = ledger.Increment(ctx, "acct-1", KindLesson)
	require.NoError(t, err)

	require.NoError(t, ledger.Reset(ctx, "acct-1", KindPlan))

	counters, err := ledger.Read(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), counters.Get(KindPlan))
	assert.Equal(t, int64(1), counters.Get(KindLesson))

	require.NoError(t, ledger.ResetAll(ctx, "acct-1"))

	counters, err = ledger.Read(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), counters.Get(KindLesson))
}

func TestMemoryLedgerUnknownKind(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	_, err := ledger.Increment(ctx, "acct-1", ContentKind("quiz"))
	assert.ErrorIs(t, err, ErrUnknownContentKind)

	_, _, err = ledger.IncrementBelow(ctx, "acct-1", ContentKind("quiz"), BoundOf(1))
	assert.ErrorIs(t, err, ErrUnknownContentKind)

	err = ledger.Reset(ctx, "acct-1", ContentKind("quiz"))
	assert.ErrorIs(t, err, ErrUnknownContentKind)
}
