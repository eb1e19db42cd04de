// StudyForge | 2026
// postgres.go

package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sony/gobreaker/v2"

	"github.com/studyforge/backend/internal/config"
	"github.com/studyforge/backend/internal/core"
)

// PostgresLedger stores counters in the usage_counters table. The
// row-level upsert is the serialization point: concurrent increments
// for one (account, kind) queue on the row lock and each observes a
// distinct consecutive count.
//
// Transient storage errors are retried with jittered backoff behind a
// circuit breaker; once the budget is spent the error surfaces as
// core.ErrStorageUnavailable and callers gating creation fail closed.
type PostgresLedger struct {
	db       core.DBTX
	breaker  *gobreaker.CircuitBreaker[any]
	attempts int
	backoff  time.Duration
}

func NewPostgresLedger(db core.DBTX, cfg config.QuotaConfig) *PostgresLedger {
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:     "usage-ledger",
		Interval: 60 * time.Second,
		Timeout:  10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &PostgresLedger{
		db:       db,
		breaker:  breaker,
		attempts: attempts,
		backoff:  backoff,
	}
}

// WithTx rebinds the ledger to an open transaction. Retries and the
// breaker are disabled inside a transaction: a failed statement aborts
// the tx, so replaying it there would be wrong.
func (l *PostgresLedger) WithTx(tx *sqlx.Tx) *PostgresLedger {
	return &PostgresLedger{
		db:       tx,
		attempts: 1,
	}
}

func (l *PostgresLedger) Increment(
	ctx context.Context,
	accountID string,
	kind ContentKind,
) (int64, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("increment: %w: %q", ErrUnknownContentKind, kind)
	}

	query := `
		INSERT INTO usage_counters (account_id, kind, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (account_id, kind)
		DO UPDATE SET count = usage_counters.count + 1, updated_at = NOW()
		RETURNING count`

	var count int64
	err := l.run(ctx, func() error {
		return l.db.GetContext(ctx, &count, query, accountID, kind)
	})
	if err != nil {
		return 0, fmt.Errorf("increment counter: %w", err)
	}

	return count, nil
}

func (l *PostgresLedger) IncrementBelow(
	ctx context.Context,
	accountID string,
	kind ContentKind,
	max Bound,
) (int64, bool, error) {
	if !kind.Valid() {
		return 0, false, fmt.Errorf(
			"increment below: %w: %q", ErrUnknownContentKind, kind,
		)
	}

	if max.IsUnbounded() {
		count, err := l.Increment(ctx, accountID, kind)
		return count, err == nil, err
	}

	// A zero ceiling can never admit the insert-first-row path below.
	if max.Value() <= 0 {
		current, err := l.currentCount(ctx, accountID, kind)
		if err != nil {
			return 0, false, err
		}
		return current, false, nil
	}

	// Single atomic statement: first creation inserts count=1,
	// otherwise the conflict arm bumps the row only while still below
	// the ceiling. No row back means the ceiling held.
	query := `
		INSERT INTO usage_counters (account_id, kind, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (account_id, kind)
		DO UPDATE SET count = usage_counters.count + 1, updated_at = NOW()
		WHERE usage_counters.count < $3
		RETURNING count`

	var count int64
	err := l.run(ctx, func() error {
		err := l.db.GetContext(ctx, &count, query, accountID, kind, max.Value())
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("increment counter: %w", err)
	}

	if count > 0 {
		return count, true, nil
	}

	current, err := l.currentCount(ctx, accountID, kind)
	if err != nil {
		return 0, false, err
	}
	return current, false, nil
}

func (l *PostgresLedger) Read(
	ctx context.Context,
	accountID string,
) (Counters, error) {
	query := `
		SELECT kind, count
		FROM usage_counters
		WHERE account_id = $1`

	var rows []struct {
		Kind  ContentKind `db:"kind"`
		Count int64       `db:"count"`
	}

	err := l.run(ctx, func() error {
		rows = rows[:0]
		return l.db.SelectContext(ctx, &rows, query, accountID)
	})
	if err != nil {
		return nil, fmt.Errorf("read counters: %w", err)
	}

	// Unknown accounts read as freshly initialized.
	counters := make(Counters, len(AllKinds()))
	for _, kind := range AllKinds() {
		counters[kind] = 0
	}
	for _, row := range rows {
		counters[row.Kind] = row.Count
	}

	return counters, nil
}

func (l *PostgresLedger) Reset(
	ctx context.Context,
	accountID string,
	kind ContentKind,
) error {
	if !kind.Valid() {
		return fmt.Errorf("reset: %w: %q", ErrUnknownContentKind, kind)
	}

	query := `
		UPDATE usage_counters
		SET count = 0, updated_at = NOW()
		WHERE account_id = $1 AND kind = $2`

	// A missing row already reads as zero; nothing to do.
	err := l.run(ctx, func() error {
		_, execErr := l.db.ExecContext(ctx, query, accountID, kind)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("reset counter: %w", err)
	}

	return nil
}

func (l *PostgresLedger) ResetAll(ctx context.Context, accountID string) error {
	query := `DELETE FROM usage_counters WHERE account_id = $1`

	err := l.run(ctx, func() error {
		_, execErr := l.db.ExecContext(ctx, query, accountID)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("reset counters: %w", err)
	}

	return nil
}

func (l *PostgresLedger) currentCount(
	ctx context.Context,
	accountID string,
	kind ContentKind,
) (int64, error) {
	query := `
		SELECT COALESCE(
			(SELECT count FROM usage_counters WHERE account_id = $1 AND kind = $2),
			0
		)`

	var count int64
	err := l.run(ctx, func() error {
		return l.db.GetContext(ctx, &count, query, accountID, kind)
	})
	if err != nil {
		return 0, fmt.Errorf("read counter: %w", err)
	}

	return count, nil
}

func (l *PostgresLedger) run(ctx context.Context, fn func() error) error {
	if l.breaker == nil {
		if err := fn(); err != nil {
			return l.classify(err)
		}
		return nil
	}

	_, err := l.breaker.Execute(func() (any, error) {
		return nil, l.retry(ctx, fn)
	})
	if errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests) {
		return core.ErrStorageUnavailable
	}
	return err
}

func (l *PostgresLedger) retry(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < l.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(jitteredBackoff(l.backoff, attempt)):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !retryable(lastErr) {
			return lastErr
		}
	}

	return l.classify(lastErr)
}

func (l *PostgresLedger) classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// No-row results are handled by callers before reaching here.
	return !errors.Is(err, sql.ErrNoRows)
}

func jitteredBackoff(base time.Duration, attempt int) time.Duration {
	backoff := base << uint(attempt-1)
	//nolint:gosec // G404: non-security-sensitive retry jitter
	jitter := time.Duration(rand.Int64N(int64(base)))
	return backoff + jitter
}

var _ Ledger = (*PostgresLedger)(nil)
