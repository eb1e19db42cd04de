// StudyForge | 2026
// policy_test.go

package quota

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyforge/backend/internal/config"
)

func testQuotaConfig() config.QuotaConfig {
	return config.QuotaConfig{
		GuestLimits: config.GuestLimits{
			Plans:      3,
			Lessons:    5,
			Flashcards: 10,
		},
		WarnThreshold: 0.80,
	}
}

func TestNewPolicy(t *testing.T) {
	policy, err := NewPolicy(testQuotaConfig())
	require.NoError(t, err)

	for _, tc := range []struct {
		kind ContentKind
		max  int64
	}{
		{KindPlan, 3},
		{KindLesson, 5},
		{KindFlashcard, 10},
	} {
		bound, err := policy.MaxFor(TierGuest, tc.kind)
		require.NoError(t, err)
		assert.False(t, bound.IsUnbounded())
		assert.Equal(t, tc.max, bound.Value())

		full, err := policy.MaxFor(TierFull, tc.kind)
		require.NoError(t, err)
		assert.True(t, full.IsUnbounded(), "full tier must be unbounded for %s", tc.kind)
	}
}

func TestNewPolicyRejectsBadThreshold(t *testing.T) {
	cfg := testQuotaConfig()
	cfg.WarnThreshold = 0

	_, err := NewPolicy(cfg)
	assert.Error(t, err)

	cfg.WarnThreshold = 1.5
	_, err = NewPolicy(cfg)
	assert.Error(t, err)
}

func TestMaxForUnknownKind(t *testing.T) {
	policy, err := NewPolicy(testQuotaConfig())
	require.NoError(t, err)

	_, err = policy.MaxFor(TierGuest, ContentKind("quiz"))
	assert.ErrorIs(t, err, ErrUnknownContentKind)

	_, err = policy.MaxFor(Tier("premium"), KindPlan)
	assert.Error(t, err)
}

func TestBoundRemaining(t *testing.T) {
	b := BoundOf(3)

	assert.Equal(t, int64(3), b.Remaining(0).Value())
	assert.Equal(t, int64(1), b.Remaining(2).Value())
	assert.Equal(t, int64(0), b.Remaining(3).Value())
	// Never negative, even if the count somehow overshot the ceiling.
	assert.Equal(t, int64(0), b.Remaining(7).Value())

	assert.True(t, Unbounded().Remaining(1_000_000).IsUnbounded())
}

func TestBoundReached(t *testing.T) {
	b := BoundOf(3)

	assert.False(t, b.Reached(2))
	assert.True(t, b.Reached(3))
	assert.True(t, b.Reached(4))

	assert.False(t, Unbounded().Reached(1<<40))
}

func TestBoundJSON(t *testing.T) {
	data, err := json.Marshal(BoundOf(5))
	require.NoError(t, err)
	assert.JSONEq(t, `5`, string(data))

	data, err = json.Marshal(Unbounded())
	require.NoError(t, err)
	assert.JSONEq(t, `"unlimited"`, string(data))

	var b Bound
	require.NoError(t, json.Unmarshal([]byte(`"unlimited"`), &b))
	assert.True(t, b.IsUnbounded())

	require.NoError(t, json.Unmarshal([]byte(`7`), &b))
	assert.Equal(t, int64(7), b.Value())

	assert.Error(t, json.Unmarshal([]byte(`-1`), &b))
	assert.Error(t, json.Unmarshal([]byte(`"infinite"`), &b))
}

func TestParseContentKind(t *testing.T) {
	for _, kind := range AllKinds() {
		parsed, err := ParseContentKind(string(kind))
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}

	_, err := ParseContentKind("quiz")
	assert.ErrorIs(t, err, ErrUnknownContentKind)
}

func TestContentKindPlural(t *testing.T) {
	assert.Equal(t, "flashcard", KindFlashcard.Plural(1))
	assert.Equal(t, "flashcards", KindFlashcard.Plural(2))
	assert.Equal(t, "plans", KindPlan.Plural(0))
}

func TestTierFromClaim(t *testing.T) {
	assert.Equal(t, TierFull, TierFromClaim("full"))
	assert.Equal(t, TierGuest, TierFromClaim("guest"))
	// Unknown claims fail closed to the restrictive tier.
	assert.Equal(t, TierGuest, TierFromClaim(""))
	assert.Equal(t, TierGuest, TierFromClaim("premium"))
}
