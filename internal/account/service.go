// StudyForge | 2026
// service.go

package account

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/studyforge/backend/internal/auth"
	"github.com/studyforge/backend/internal/core"
	"github.com/studyforge/backend/internal/quota"
)

type Service struct {
	repo   Repository
	ledger quota.Ledger
}

func NewService(repo Repository, ledger quota.Ledger) *Service {
	return &Service{repo: repo, ledger: ledger}
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.AccountInfo, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toAccountInfo(account), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.AccountInfo, error) {
	account, err := s.repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, err
	}

	return toAccountInfo(account), nil
}

// CreateGuest provisions an anonymous guest account: no credentials,
// tier guest, counters implicitly zero.
func (s *Service) CreateGuest(ctx context.Context) (*auth.AccountInfo, error) {
	account := &Account{
		ID:   uuid.New().String(),
		Name: "Guest",
		Role: RoleUser,
		Tier: TierGuest,
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return nil, err
	}

	return toAccountInfo(account), nil
}

// Create registers a brand-new full account, for users who skip the
// guest stage entirely.
func (s *Service) Create(
	ctx context.Context,
	email, passwordHash, name string,
) (*auth.AccountInfo, error) {
	normalized := strings.ToLower(email)
	account := &Account{
		ID:           uuid.New().String(),
		Email:        &normalized,
		PasswordHash: &passwordHash,
		Name:         name,
		Role:         RoleUser,
		Tier:         TierFull,
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return nil, err
	}

	return toAccountInfo(account), nil
}

// Upgrade promotes a guest to full in place, attaching credentials.
// The account ID is preserved, so existing content and usage counters
// carry over untouched; prior usage never blocks a full account.
func (s *Service) Upgrade(
	ctx context.Context,
	id, email, passwordHash, name string,
) (*auth.AccountInfo, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !existing.IsGuest() {
		return nil, auth.ErrAlreadyUpgraded
	}

	normalized := strings.ToLower(email)
	existing.Email = &normalized
	existing.PasswordHash = &passwordHash
	existing.Name = name

	if err := s.repo.Upgrade(ctx, existing); err != nil {
		return nil, err
	}

	return toAccountInfo(existing), nil
}

func (s *Service) IncrementTokenVersion(
	ctx context.Context,
	accountID string,
) error {
	return s.repo.IncrementTokenVersion(ctx, accountID)
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	accountID, passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, accountID, passwordHash)
}

func (s *Service) GetAccount(ctx context.Context, id string) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateAccount(
	ctx context.Context,
	id string,
	req UpdateAccountRequest,
) (*Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		account.Name = *req.Name
	}

	if err := s.repo.Update(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

func (s *Service) UpdateAccountRole(
	ctx context.Context,
	id, role string,
) (*Account, error) {
	if role != RoleUser && role != RoleAdmin {
		return nil, fmt.Errorf(
			"update role: invalid role %q: %w",
			role,
			core.ErrInvalidInput,
		)
	}

	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	account.Role = role

	if err := s.repo.Update(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

// PromoteAccountTier is the admin-side promotion. Tier changes are
// monotonic: guest -> full only, and promoting an already-full account
// is a no-op rather than an error.
func (s *Service) PromoteAccountTier(
	ctx context.Context,
	id, tier string,
) (*Account, error) {
	if tier != TierFull {
		return nil, fmt.Errorf(
			"promote tier: invalid tier %q: %w",
			tier,
			core.ErrInvalidInput,
		)
	}

	if err := s.repo.PromoteTier(ctx, id); err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, id)
}

// DeleteAccount soft-deletes the row and clears its usage counters.
// Counter cleanup is best-effort: a dangling ledger row for a deleted
// account is invisible to every read path.
func (s *Service) DeleteAccount(ctx context.Context, id string) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}

	if err := s.ledger.ResetAll(ctx, id); err != nil {
		slog.Warn("failed to clear usage counters for deleted account",
			"account_id", id,
			"error", err,
		)
	}

	return nil
}

func (s *Service) ListAccounts(
	ctx context.Context,
	params ListAccountsParams,
) ([]Account, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) GetMe(ctx context.Context, accountID string) (*Account, error) {
	if accountID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}

	return s.repo.GetByID(ctx, accountID)
}

func (s *Service) UpdateMe(
	ctx context.Context,
	accountID string,
	req UpdateAccountRequest,
) (*Account, error) {
	if accountID == "" {
		return nil, fmt.Errorf("update me: %w", core.ErrUnauthorized)
	}

	return s.UpdateAccount(ctx, accountID, req)
}

func (s *Service) DeleteMe(ctx context.Context, accountID string) error {
	if accountID == "" {
		return fmt.Errorf("delete me: %w", core.ErrUnauthorized)
	}

	return s.DeleteAccount(ctx, accountID)
}

func (s *Service) EmailExists(
	ctx context.Context,
	email string,
) (bool, error) {
	return s.repo.ExistsByEmail(ctx, strings.ToLower(email))
}

func (s *Service) CanDeleteAccount(
	ctx context.Context,
	requesterID, targetID string,
) error {
	if requesterID == targetID {
		return nil
	}

	requester, err := s.repo.GetByID(ctx, requesterID)
	if err != nil {
		return err
	}

	if !requester.IsAdmin() {
		return fmt.Errorf("delete account: %w", core.ErrForbidden)
	}

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	if target.IsAdmin() {
		return fmt.Errorf("cannot delete admin accounts: %w", core.ErrForbidden)
	}

	return nil
}

func toAccountInfo(a *Account) *auth.AccountInfo {
	return &auth.AccountInfo{
		ID:           a.ID,
		Email:        a.EmailOrEmpty(),
		Name:         a.Name,
		PasswordHash: passwordHashOrEmpty(a),
		Role:         a.Role,
		Tier:         a.Tier,
		TokenVersion: a.TokenVersion,
	}
}

func passwordHashOrEmpty(a *Account) string {
	if a.PasswordHash == nil {
		return ""
	}
	return *a.PasswordHash
}

var _ auth.AccountProvider = (*Service)(nil)
