// StudyForge | 2026
// ledger.go

package quota

import (
	"context"
)

// Counters is a snapshot of one account's per-kind creation counts,
// all kinds as of a single observation instant. Missing kinds read as
// zero.
type Counters map[ContentKind]int64

func (c Counters) Get(kind ContentKind) int64 {
	return c[kind]
}

// Ledger is the authoritative counter store and the sole serialization
// point for concurrent creations. The enforcer's CheckLimit is the
// advisory fast path; IncrementBelow is the source of truth — two
// concurrent callers can never both take the last slot.
type Ledger interface {
	// Increment atomically adds one to (accountID, kind) and returns
	// the post-increment value. Concurrent calls for the same pair
	// observe distinct, consecutive results.
	Increment(ctx context.Context, accountID string, kind ContentKind) (int64, error)

	// IncrementBelow increments only while the current count is below
	// max, atomically. It returns the resulting count and whether the
	// increment was applied; when denied, the returned count is the
	// current value that blocked it. An unbounded max always applies.
	IncrementBelow(ctx context.Context, accountID string, kind ContentKind, max Bound) (int64, bool, error)

	// Read returns a consistent snapshot of all kinds. Unknown
	// accounts read as freshly initialized (all zeros) rather than
	// erroring; first-time users have no ledger rows yet.
	Read(ctx context.Context, accountID string) (Counters, error)

	// Reset zeroes one counter. Administrative tooling and account
	// deletion only; never part of the request flow.
	Reset(ctx context.Context, accountID string, kind ContentKind) error

	// ResetAll zeroes every counter for an account (account deletion
	// cleanup).
	ResetAll(ctx context.Context, accountID string) error
}
