// StudyForge | 2026
// service_test.go

package account

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyforge/backend/internal/auth"
	"github.com/studyforge/backend/internal/core"
	"github.com/studyforge/backend/internal/quota"
)

// fakeRepository mirrors the SQL repository's semantics in memory,
// including the monotonic tier guard on Upgrade and PromoteTier.
type fakeRepository struct {
	mu       sync.Mutex
	accounts map[string]*Account
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{accounts: make(map[string]*Account)}
}

func (f *fakeRepository) Create(_ context.Context, account *Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if account.Email != nil {
		for _, existing := range f.accounts {
			if existing.Email != nil && *existing.Email == *account.Email && existing.DeletedAt == nil {
				return fmt.Errorf("create account: %w", core.ErrDuplicateKey)
			}
		}
	}

	clone := *account
	f.accounts[account.ID] = &clone
	return nil
}

func (f *fakeRepository) GetByID(_ context.Context, id string) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[id]
	if !ok || account.DeletedAt != nil {
		return nil, fmt.Errorf("get account: %w", core.ErrNotFound)
	}
	clone := *account
	return &clone, nil
}

func (f *fakeRepository) GetByEmail(_ context.Context, email string) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, account := range f.accounts {
		if account.Email != nil && *account.Email == email && account.DeletedAt == nil {
			clone := *account
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("get account by email: %w", core.ErrNotFound)
}

func (f *fakeRepository) Update(_ context.Context, account *Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.accounts[account.ID]
	if !ok || stored.DeletedAt != nil {
		return fmt.Errorf("update account: %w", core.ErrNotFound)
	}
	stored.Name = account.Name
	stored.Role = account.Role
	return nil
}

func (f *fakeRepository) Upgrade(_ context.Context, account *Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.accounts[account.ID]
	if !ok || stored.DeletedAt != nil || stored.Tier != TierGuest {
		return fmt.Errorf("upgrade account: %w", core.ErrNotFound)
	}
	stored.Email = account.Email
	stored.PasswordHash = account.PasswordHash
	stored.Name = account.Name
	stored.Tier = TierFull
	account.Tier = TierFull
	return nil
}

func (f *fakeRepository) PromoteTier(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.accounts[id]
	if !ok || stored.DeletedAt != nil {
		return nil
	}
	if stored.Tier == TierGuest {
		stored.Tier = TierFull
	}
	return nil
}

func (f *fakeRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.accounts[id]
	if !ok || stored.DeletedAt != nil {
		return fmt.Errorf("update password: %w", core.ErrNotFound)
	}
	stored.PasswordHash = &passwordHash
	return nil
}

func (f *fakeRepository) IncrementTokenVersion(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.accounts[id]
	if !ok || stored.DeletedAt != nil {
		return fmt.Errorf("increment token version: %w", core.ErrNotFound)
	}
	stored.TokenVersion++
	return nil
}

func (f *fakeRepository) SoftDelete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.accounts[id]
	if !ok || stored.DeletedAt != nil {
		return fmt.Errorf("delete account: %w", core.ErrNotFound)
	}
	now := time.Now()
	stored.DeletedAt = &now
	return nil
}

func (f *fakeRepository) List(_ context.Context, params ListAccountsParams) ([]Account, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Account
	for _, account := range f.accounts {
		if account.DeletedAt != nil {
			continue
		}
		if params.Tier != "" && account.Tier != params.Tier {
			continue
		}
		if params.Role != "" && account.Role != params.Role {
			continue
		}
		out = append(out, *account)
	}
	return out, len(out), nil
}

func (f *fakeRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := f.GetByEmail(ctx, email)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func newTestService() (*Service, *fakeRepository, *quota.MemoryLedger) {
	repo := newFakeRepository()
	ledger := quota.NewMemoryLedger()
	return NewService(repo, ledger), repo, ledger
}

func TestCreateGuest(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()

	info, err := svc.CreateGuest(ctx)
	require.NoError(t, err)

	assert.NotEmpty(t, info.ID)
	assert.Empty(t, info.Email)
	assert.Empty(t, info.PasswordHash)
	assert.Equal(t, TierGuest, info.Tier)
	assert.Equal(t, RoleUser, info.Role)

	stored, err := repo.GetByID(ctx, info.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Email)
	assert.Nil(t, stored.PasswordHash)
	assert.True(t, stored.IsGuest())
}

func TestCreateFullAccount(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	info, err := svc.Create(ctx, "Ada@Example.com", "hash", "Ada")
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", info.Email)
	assert.Equal(t, TierFull, info.Tier)

	// Duplicate email is rejected.
	_, err = svc.Create(ctx, "ada@example.com", "hash2", "Other")
	assert.ErrorIs(t, err, core.ErrDuplicateKey)
}

func TestUpgradePreservesAccountID(t *testing.T) {
	ctx := context.Background()
	svc, _, ledger := newTestService()

	guest, err := svc.CreateGuest(ctx)
	require.NoError(t, err)

	// Usage accrued as a guest stays attached to the account.
	_, err = ledger.Increment(ctx, guest.ID, quota.KindPlan)
	require.NoError(t, err)

	upgraded, err := svc.Upgrade(ctx, guest.ID, "ada@example.com", "hash", "Ada")
	require.NoError(t, err)

	assert.Equal(t, guest.ID, upgraded.ID)
	assert.Equal(t, TierFull, upgraded.Tier)
	assert.Equal(t, "ada@example.com", upgraded.Email)

	counters, err := ledger.Read(ctx, guest.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counters.Get(quota.KindPlan))
}

func TestUpgradeAlreadyFull(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	full, err := svc.Create(ctx, "ada@example.com", "hash", "Ada")
	require.NoError(t, err)

	_, err = svc.Upgrade(ctx, full.ID, "other@example.com", "hash2", "Ada")
	assert.ErrorIs(t, err, auth.ErrAlreadyUpgraded)
}

func TestPromoteAccountTier(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	guest, err := svc.CreateGuest(ctx)
	require.NoError(t, err)

	promoted, err := svc.PromoteAccountTier(ctx, guest.ID, TierFull)
	require.NoError(t, err)
	assert.Equal(t, TierFull, promoted.Tier)

	// Promoting again is a no-op, not an error.
	promoted, err = svc.PromoteAccountTier(ctx, guest.ID, TierFull)
	require.NoError(t, err)
	assert.Equal(t, TierFull, promoted.Tier)

	// Demotion is never a valid tier change.
	_, err = svc.PromoteAccountTier(ctx, guest.ID, TierGuest)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestDeleteAccountClearsCounters(t *testing.T) {
	ctx := context.Background()
	svc, repo, ledger := newTestService()

	guest, err := svc.CreateGuest(ctx)
	require.NoError(t, err)

	_, err = ledger.Increment(ctx, guest.ID, quota.KindFlashcard)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAccount(ctx, guest.ID))

	_, err = repo.GetByID(ctx, guest.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	counters, err := ledger.Read(ctx, guest.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), counters.Get(quota.KindFlashcard))
}

func TestUpdateAccountRole(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	acct, err := svc.Create(ctx, "ada@example.com", "hash", "Ada")
	require.NoError(t, err)

	updated, err := svc.UpdateAccountRole(ctx, acct.ID, RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, updated.Role)

	_, err = svc.UpdateAccountRole(ctx, acct.ID, "superuser")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestCanDeleteAccount(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	admin, err := svc.Create(ctx, "admin@example.com", "hash", "Admin")
	require.NoError(t, err)
	_, err = svc.UpdateAccountRole(ctx, admin.ID, RoleAdmin)
	require.NoError(t, err)

	user, err := svc.Create(ctx, "user@example.com", "hash", "User")
	require.NoError(t, err)

	// Self-deletion is always permitted.
	assert.NoError(t, svc.CanDeleteAccount(ctx, user.ID, user.ID))

	// Admins may delete regular users but not other admins.
	assert.NoError(t, svc.CanDeleteAccount(ctx, admin.ID, user.ID))

	other, err := svc.Create(ctx, "admin2@example.com", "hash", "Admin2")
	require.NoError(t, err)
	_, err = svc.UpdateAccountRole(ctx, other.ID, RoleAdmin)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.CanDeleteAccount(ctx, admin.ID, other.ID), core.ErrForbidden)

	// Regular users cannot delete anyone else.
	assert.ErrorIs(t, svc.CanDeleteAccount(ctx, user.ID, admin.ID), core.ErrForbidden)
}

func TestGetMeRequiresAccountID(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	_, err := svc.GetMe(ctx, "")
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}
