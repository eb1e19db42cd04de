// StudyForge | 2026
// memory.go

package quota

import (
	"context"
	"sync"
)

// MemoryLedger is an in-process Ledger for development and tests. A
// single mutex guards the counter map; critical sections are a few map
// operations, so readers never block writers for long.
type MemoryLedger struct {
	mu       sync.Mutex
	counters map[string]Counters
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		counters: make(map[string]Counters),
	}
}

func (l *MemoryLedger) Increment(
	ctx context.Context,
	accountID string,
	kind ContentKind,
) (int64, error) {
	if !kind.Valid() {
		return 0, ErrUnknownContentKind
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.account(accountID)
	c[kind]++
	return c[kind], nil
}

func (l *MemoryLedger) IncrementBelow(
	ctx context.Context,
	accountID string,
	kind ContentKind,
	max Bound,
) (int64, bool, error) {
	if !kind.Valid() {
		return 0, false, ErrUnknownContentKind
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.account(accountID)
	if max.Reached(c[kind]) {
		return c[kind], false, nil
	}

	c[kind]++
	return c[kind], true, nil
}

func (l *MemoryLedger) Read(
	ctx context.Context,
	accountID string,
) (Counters, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot := make(Counters, len(AllKinds()))
	for _, kind := range AllKinds() {
		snapshot[kind] = l.account(accountID)[kind]
	}
	return snapshot, nil
}

func (l *MemoryLedger) Reset(
	ctx context.Context,
	accountID string,
	kind ContentKind,
) error {
	if !kind.Valid() {
		return ErrUnknownContentKind
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.account(accountID)[kind] = 0
	return nil
}

func (l *MemoryLedger) ResetAll(ctx context.Context, accountID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.counters, accountID)
	return nil
}

// account lazily initializes counters; callers must hold l.mu.
func (l *MemoryLedger) account(accountID string) Counters {
	c, ok := l.counters[accountID]
	if !ok {
		c = make(Counters)
		l.counters[accountID] = c
	}
	return c
}

var _ Ledger = (*MemoryLedger)(nil)
