// StudyForge | 2026
// enforcer_test.go

package quota

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnforcer(t *testing.T) (*Enforcer, *MemoryLedger) {
	t.Helper()

	policy, err := NewPolicy(testQuotaConfig())
	require.NoError(t, err)

	ledger := NewMemoryLedger()
	return NewEnforcer(ledger, policy, nil), ledger
}

func seedCounter(
	t *testing.T,
	ledger *MemoryLedger,
	accountID string,
	kind ContentKind,
	count int64,
) {
	t.Helper()
	for i := int64(0); i < count; i++ {
		_, err := ledger.Increment(context.Background(), accountID, kind)
		require.NoError(t, err)
	}
}

func TestCheckLimitGuestBelowMax(t *testing.T) {
	ctx := context.Background()
	enforcer, ledger := newTestEnforcer(t)

	seedCounter(t, ledger, "acct-1", KindPlan, 1)

	res, err := enforcer.CheckLimit(ctx, "acct-1", TierGuest, KindPlan)
	require.NoError(t, err)

	assert.True(t, res.Allowed)
	assert.False(t, res.LimitReached)
	assert.Equal(t, int64(1), res.Current)
	assert.Equal(t, int64(3), res.Max.Value())
	assert.Equal(t, int64(2), res.Remaining.Value())
	assert.False(t, res.UpgradeRequired)
}

func TestCheckLimitGuestNearLimit(t *testing.T) {
	ctx := context.Background()
	enforcer, ledger := newTestEnforcer(t)

	// 2 of 3 plans used: still allowed, but the warning fires before
	// the last slot is taken.
	seedCounter(t, ledger, "acct-1", KindPlan, 2)

	res, err := enforcer.CheckLimit(ctx, "acct-1", TierGuest, KindPlan)
	require.NoError(t, err)

	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.Remaining.Value())
	assert.True(t, res.Warning)

	warn, err := enforcer.ShouldShowWarning(ctx, "acct-1", TierGuest, KindPlan)
	require.NoError(t, err)
	assert.True(t, warn)
}

func TestCheckLimitGuestBlocked(t *testing.T) {
	ctx := context.Background()
	enforcer, ledger := newTestEnforcer(t)

	seedCounter(t, ledger, "acct-1", KindFlashcard, 10)

	res, err := enforcer.CheckLimit(ctx, "acct-1", TierGuest, KindFlashcard)
	require.NoError(t, err)

	assert.False(t, res.Allowed)
	assert.True(t, res.LimitReached)
	assert.Equal(t, int64(10), res.Current)
	assert.Equal(t, int64(0), res.Remaining.Value())
	assert.True(t, res.UpgradeRequired)
	assert.NotEmpty(t, res.Message)
}

func TestCheckLimitFullBypassesCounting(t *testing.T) {
	ctx := context.Background()
	enforcer, ledger := newTestEnforcer(t)

	seedCounter(t, ledger, "acct-1", KindPlan, 1000)

	res, err := enforcer.CheckLimit(ctx, "acct-1", TierFull, KindPlan)
	require.NoError(t, err)

	assert.True(t, res.Allowed)
	assert.False(t, res.LimitReached)
	assert.True(t, res.Max.IsUnbounded())
	assert.True(t, res.Remaining.IsUnbounded())
	assert.False(t, res.Warning)
	assert.Empty(t, res.Message)

	warn, err := enforcer.ShouldShowWarning(ctx, "acct-1", TierFull, KindPlan)
	require.NoError(t, err)
	assert.False(t, warn)

	msg, err := enforcer.UpgradeMessage(ctx, "acct-1", TierFull, KindPlan)
	require.NoError(t, err)
	assert.Empty(t, msg)
}

func TestCheckLimitIdempotent(t *testing.T) {
	ctx := context.Background()
	enforcer, ledger := newTestEnforcer(t)

	seedCounter(t, ledger, "acct-1", KindLesson, 3)

	first, err := enforcer.CheckLimit(ctx, "acct-1", TierGuest, KindLesson)
	require.NoError(t, err)
	second, err := enforcer.CheckLimit(ctx, "acct-1", TierGuest, KindLesson)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCheckLimitUnknownKind(t *testing.T) {
	ctx := context.Background()
	enforcer, _ := newTestEnforcer(t)

	_, err := enforcer.CheckLimit(ctx, "acct-1", TierGuest, ContentKind("quiz"))
	assert.ErrorIs(t, err, ErrUnknownContentKind)

	_, err = enforcer.Consume(ctx, "acct-1", TierGuest, ContentKind("quiz"))
	assert.ErrorIs(t, err, ErrUnknownContentKind)
}

func TestUpgradeAllowsImmediately(t *testing.T) {
	ctx := context.Background()
	enforcer, ledger := newTestEnforcer(t)

	seedCounter(t, ledger, "acct-1", KindPlan, 3)

	blocked, err := enforcer.CheckLimit(ctx, "acct-1", TierGuest, KindPlan)
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)

	// Same account, same counters: the tier flip alone unblocks it.
	// No ledger reset happens on upgrade.
	allowed, err := enforcer.CheckLimit(ctx, "acct-1", TierFull, KindPlan)
	require.NoError(t, err)
	assert.True(t, allowed.Allowed)

	counters, err := ledger.Read(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), counters.Get(KindPlan))
}

func TestConsumeGuest(t *testing.T) {
	ctx := context.Background()
	enforcer, _ := newTestEnforcer(t)

	// Plans cap at 3: three consumptions succeed, the fourth is denied.
	for i := int64(1); i <= 3; i++ {
		res, err := enforcer.Consume(ctx, "acct-1", TierGuest, KindPlan)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "consumption %d should apply", i)
		assert.Equal(t, i, res.Current)
	}

	res, err := enforcer.Consume(ctx, "acct-1", TierGuest, KindPlan)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.True(t, res.LimitReached)
	assert.Equal(t, int64(3), res.Current)
	assert.NotEmpty(t, res.Message)
}

func TestConsumeLastSlot(t *testing.T) {
	ctx := context.Background()
	enforcer, ledger := newTestEnforcer(t)

	seedCounter(t, ledger, "acct-1", KindPlan, 2)

	res, err := enforcer.Consume(ctx, "acct-1", TierGuest, KindPlan)
	require.NoError(t, err)

	// The last slot is granted; the state after it is blocked.
	assert.True(t, res.Allowed)
	assert.True(t, res.LimitReached)
	assert.Equal(t, int64(3), res.Current)
	assert.Equal(t, int64(0), res.Remaining.Value())
}

func TestConsumeFullTierStillCounts(t *testing.T) {
	ctx := context.Background()
	enforcer, ledger := newTestEnforcer(t)

	res, err := enforcer.Consume(ctx, "acct-1", TierFull, KindFlashcard)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.True(t, res.Max.IsUnbounded())

	// Full-tier usage still lands in the ledger for analytics.
	counters, err := ledger.Read(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counters.Get(KindFlashcard))
}

func TestUpgradeMessageSelection(t *testing.T) {
	ctx := context.Background()
	enforcer, ledger := newTestEnforcer(t)

	// Exhausted: names the limit.
	seedCounter(t, ledger, "exhausted", KindFlashcard, 10)
	msg, err := enforcer.UpgradeMessage(ctx, "exhausted", TierGuest, KindFlashcard)
	require.NoError(t, err)
	assert.Contains(t, msg, "10")
	assert.Contains(t, msg, "flashcards")

	// Near-limit with one slot left: singular noun, exact count.
	seedCounter(t, ledger, "near", KindFlashcard, 9)
	msg, err = enforcer.UpgradeMessage(ctx, "near", TierGuest, KindFlashcard)
	require.NoError(t, err)
	assert.Contains(t, msg, "1 flashcard left")
	assert.NotContains(t, msg, "1 flashcards")

	// Near-limit with two slots left: plural.
	seedCounter(t, ledger, "near2", KindLesson, 3)
	msg, err = enforcer.UpgradeMessage(ctx, "near2", TierGuest, KindLesson)
	require.NoError(t, err)
	assert.Contains(t, msg, "2 lessons left")

	// Plenty of room: generic pitch, no counts.
	msg, err = enforcer.UpgradeMessage(ctx, "fresh", TierGuest, KindFlashcard)
	require.NoError(t, err)
	assert.NotEmpty(t, msg)
	assert.NotContains(t, msg, "left")
}

func TestCheckAllConsistentSnapshot(t *testing.T) {
	ctx := context.Background()
	enforcer, ledger := newTestEnforcer(t)

	seedCounter(t, ledger, "acct-1", KindPlan, 2)
	seedCounter(t, ledger, "acct-1", KindFlashcard, 10)

	results, err := enforcer.CheckAll(ctx, "acct-1", TierGuest)
	require.NoError(t, err)
	require.Len(t, results, len(AllKinds()))

	byKind := make(map[ContentKind]Result, len(results))
	for _, res := range results {
		byKind[res.Kind] = res
	}

	assert.True(t, byKind[KindPlan].Allowed)
	assert.Equal(t, int64(2), byKind[KindPlan].Current)
	assert.True(t, byKind[KindLesson].Allowed)
	assert.Equal(t, int64(0), byKind[KindLesson].Current)
	assert.False(t, byKind[KindFlashcard].Allowed)
}

func TestRemainingNeverNegative(t *testing.T) {
	ctx := context.Background()
	enforcer, ledger := newTestEnforcer(t)

	// Overshoot the ceiling directly; remaining still floors at zero.
	seedCounter(t, ledger, "acct-1", KindPlan, 7)

	res, err := enforcer.CheckLimit(ctx, "acct-1", TierGuest, KindPlan)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Remaining.Value())
	assert.False(t, res.Allowed)
}

func TestEnforcerIsStateless(t *testing.T) {
	ctx := context.Background()

	policy, err := NewPolicy(testQuotaConfig())
	require.NoError(t, err)

	// Two enforcers over the same ledger agree; two ledgers under the
	// same policy are independent.
	shared := NewMemoryLedger()
	a := NewEnforcer(shared, policy, nil)
	b := NewEnforcer(shared, policy, nil)

	_, err = shared.Increment(ctx, "acct-1", KindPlan)
	require.NoError(t, err)

	resA, err := a.CheckLimit(ctx, "acct-1", TierGuest, KindPlan)
	require.NoError(t, err)
	resB, err := b.CheckLimit(ctx, "acct-1", TierGuest, KindPlan)
	require.NoError(t, err)
	assert.Equal(t, resA, resB)

	other := NewEnforcer(NewMemoryLedger(), policy, nil)
	resOther, err := other.CheckLimit(ctx, "acct-1", TierGuest, KindPlan)
	require.NoError(t, err)
	assert.Equal(t, int64(0), resOther.Current)
}

func TestWithLedger(t *testing.T) {
	ctx := context.Background()
	enforcer, _ := newTestEnforcer(t)

	replacement := NewMemoryLedger()
	seedCounter(t, replacement, "acct-1", KindPlan, 3)

	rebound := enforcer.WithLedger(replacement)

	res, err := rebound.CheckLimit(ctx, "acct-1", TierGuest, KindPlan)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	// The original enforcer still reads its own ledger.
	res, err = enforcer.CheckLimit(ctx, "acct-1", TierGuest, KindPlan)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestGuestAllowedInvariant(t *testing.T) {
	ctx := context.Background()
	enforcer, ledger := newTestEnforcer(t)

	policy, err := NewPolicy(testQuotaConfig())
	require.NoError(t, err)

	for _, kind := range AllKinds() {
		max, err := policy.MaxFor(TierGuest, kind)
		require.NoError(t, err)

		accountID := fmt.Sprintf("acct-%s", kind)
		for current := int64(0); current <= max.Value()+1; current++ {
			res, err := enforcer.CheckLimit(ctx, accountID, TierGuest, kind)
			require.NoError(t, err)

			if current < max.Value() {
				assert.True(t, res.Allowed, "%s at %d of %d", kind, current, max.Value())
			} else {
				assert.False(t, res.Allowed, "%s at %d of %d", kind, current, max.Value())
			}

			seedCounter(t, ledger, accountID, kind, 1)
		}
	}
}
