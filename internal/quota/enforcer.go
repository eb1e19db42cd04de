// StudyForge | 2026
// enforcer.go

package quota

import (
	"context"
	"fmt"
)

// Result is the advisory answer to "may this account create one more
// item of kind K right now?". It is derived from one ledger snapshot
// and never persisted; callers re-ask instead of caching it.
type Result struct {
	Kind            ContentKind `json:"kind"`
	Allowed         bool        `json:"allowed"`
	LimitReached    bool        `json:"limit_reached"`
	Current         int64       `json:"current"`
	Max             Bound       `json:"max"`
	Remaining       Bound       `json:"remaining"`
	Warning         bool        `json:"warning"`
	UpgradeRequired bool        `json:"upgrade_required"`
	Message         string      `json:"message,omitempty"`
}

// Enforcer composes the ledger and the policy into creation decisions
// and upgrade messaging. It is stateless and holds no lock; all shared
// mutable state lives behind the Ledger.
//
// CheckLimit is the advisory fast path for UI. Consume is
// authoritative: it performs the atomic increment-if-below-max in the
// ledger, so two concurrent creations can never both take the last
// remaining slot on the strength of a stale advisory answer.
type Enforcer struct {
	ledger  Ledger
	policy  *Policy
	metrics *Metrics
}

func NewEnforcer(ledger Ledger, policy *Policy, metrics *Metrics) *Enforcer {
	return &Enforcer{
		ledger:  ledger,
		policy:  policy,
		metrics: metrics,
	}
}

// WithLedger returns a copy bound to a different ledger, typically one
// scoped to an open transaction.
func (e *Enforcer) WithLedger(ledger Ledger) *Enforcer {
	return &Enforcer{
		ledger:  ledger,
		policy:  e.policy,
		metrics: e.metrics,
	}
}

// CheckLimit answers from a single ledger snapshot. Full accounts
// bypass counting entirely: always allowed, unbounded, no message —
// their history stays in the ledger for analytics but the ceiling is
// gone.
func (e *Enforcer) CheckLimit(
	ctx context.Context,
	accountID string,
	tier Tier,
	kind ContentKind,
) (Result, error) {
	if !kind.Valid() {
		return Result{}, fmt.Errorf("check limit: %w: %q", ErrUnknownContentKind, kind)
	}

	if tier == TierFull {
		e.metrics.Decision(kind, OutcomeBypass)
		return fullTierResult(kind), nil
	}

	max, err := e.policy.MaxFor(tier, kind)
	if err != nil {
		return Result{}, fmt.Errorf("check limit: %w", err)
	}

	counters, err := e.ledger.Read(ctx, accountID)
	if err != nil {
		e.metrics.Decision(kind, OutcomeError)
		return Result{}, fmt.Errorf("check limit: %w", err)
	}

	res := e.buildResult(kind, counters.Get(kind), max)

	if res.Allowed {
		e.metrics.Decision(kind, OutcomeAllowed)
	} else {
		e.metrics.Decision(kind, OutcomeDenied)
	}
	if res.Warning {
		e.metrics.Warning(kind)
	}

	return res, nil
}

// CheckAll reports every kind from one snapshot, so the dashboard's
// per-kind numbers are mutually consistent.
func (e *Enforcer) CheckAll(
	ctx context.Context,
	accountID string,
	tier Tier,
) ([]Result, error) {
	if tier == TierFull {
		results := make([]Result, 0, len(AllKinds()))
		for _, kind := range AllKinds() {
			results = append(results, fullTierResult(kind))
		}
		return results, nil
	}

	counters, err := e.ledger.Read(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("check limits: %w", err)
	}

	results := make([]Result, 0, len(AllKinds()))
	for _, kind := range AllKinds() {
		max, err := e.policy.MaxFor(tier, kind)
		if err != nil {
			return nil, fmt.Errorf("check limits: %w", err)
		}
		results = append(results, e.buildResult(kind, counters.Get(kind), max))
	}

	return results, nil
}

// ShouldShowWarning reports 80% utilization. It reads through the same
// snapshot logic as CheckLimit so the two can never disagree about the
// underlying numbers within one request.
func (e *Enforcer) ShouldShowWarning(
	ctx context.Context,
	accountID string,
	tier Tier,
	kind ContentKind,
) (bool, error) {
	if tier == TierFull {
		return false, nil
	}

	res, err := e.CheckLimit(ctx, accountID, tier, kind)
	if err != nil {
		return false, err
	}
	return res.Warning, nil
}

// UpgradeMessage returns the user-facing prompt for the current state:
// exhausted, near-limit, or the generic pitch. Always derived from a
// fresh snapshot, never cached.
func (e *Enforcer) UpgradeMessage(
	ctx context.Context,
	accountID string,
	tier Tier,
	kind ContentKind,
) (string, error) {
	if tier == TierFull {
		return "", nil
	}

	res, err := e.CheckLimit(ctx, accountID, tier, kind)
	if err != nil {
		return "", err
	}
	return res.Message, nil
}

// Consume is the authoritative enforcement point: an atomic
// increment-if-below-max in the ledger. Callers create content only
// inside the same transaction as a successful Consume, so a count is
// never spent on an abandoned request.
func (e *Enforcer) Consume(
	ctx context.Context,
	accountID string,
	tier Tier,
	kind ContentKind,
) (Result, error) {
	if !kind.Valid() {
		return Result{}, fmt.Errorf("consume: %w: %q", ErrUnknownContentKind, kind)
	}

	if tier == TierFull {
		// The ceiling is gone but the count still feeds analytics.
		count, err := e.ledger.Increment(ctx, accountID, kind)
		if err != nil {
			e.metrics.Decision(kind, OutcomeError)
			return Result{}, fmt.Errorf("consume: %w", err)
		}

		e.metrics.Decision(kind, OutcomeBypass)
		res := fullTierResult(kind)
		res.Current = count
		return res, nil
	}

	max, err := e.policy.MaxFor(tier, kind)
	if err != nil {
		return Result{}, fmt.Errorf("consume: %w", err)
	}

	count, applied, err := e.ledger.IncrementBelow(ctx, accountID, kind, max)
	if err != nil {
		e.metrics.Decision(kind, OutcomeError)
		return Result{}, fmt.Errorf("consume: %w", err)
	}

	res := e.buildResult(kind, count, max)
	if !applied {
		res.Allowed = false
		e.metrics.Decision(kind, OutcomeDenied)
	} else {
		// The slot was taken even if it was the last one; Allowed
		// reports this consumption, LimitReached the state after it.
		res.Allowed = true
		e.metrics.Decision(kind, OutcomeAllowed)
	}
	if res.Warning {
		e.metrics.Warning(kind)
	}

	return res, nil
}

// buildResult derives the full value object from one (current, max)
// observation. Everything here is recomputed per call; nothing is
// stored.
func (e *Enforcer) buildResult(kind ContentKind, current int64, max Bound) Result {
	limitReached := max.Reached(current)
	remaining := max.Remaining(current)

	res := Result{
		Kind:            kind,
		Allowed:         !limitReached,
		LimitReached:    limitReached,
		Current:         current,
		Max:             max,
		Remaining:       remaining,
		Warning:         e.nearLimit(current, max),
		UpgradeRequired: limitReached,
	}
	res.Message = upgradeMessage(kind, remaining, max)

	return res
}

// nearLimit measures utilization including the slot under
// consideration, so a guest at 2 of 3 plans is warned before taking
// the last one.
func (e *Enforcer) nearLimit(current int64, max Bound) bool {
	if max.IsUnbounded() {
		return false
	}
	if max.Value() <= 0 {
		return true
	}
	return float64(current+1)/float64(max.Value()) >= e.policy.WarnThreshold()
}

func fullTierResult(kind ContentKind) Result {
	return Result{
		Kind:      kind,
		Allowed:   true,
		Max:       Unbounded(),
		Remaining: Unbounded(),
	}
}

// upgradeMessage selects one of three tiers of prompt: exhausted,
// near-limit (exact remaining count, pluralized), or the generic
// upgrade pitch.
func upgradeMessage(kind ContentKind, remaining Bound, max Bound) string {
	if remaining.IsUnbounded() {
		return ""
	}

	left := remaining.Value()

	switch {
	case left == 0:
		return fmt.Sprintf(
			"You've used all %d free %s. Upgrade to create unlimited %s and keep your progress synced across devices.",
			max.Value(), kind.Plural(max.Value()), kind.Plural(2),
		)
	case left <= 2:
		return fmt.Sprintf(
			"Only %d %s left on the free plan. Upgrade for unlimited %s.",
			left, kind.Plural(left), kind.Plural(2),
		)
	default:
		return fmt.Sprintf(
			"Upgrade to create unlimited %s and sync your progress across devices.",
			kind.Plural(2),
		)
	}
}
