// StudyForge | 2026
// repository.go

package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/studyforge/backend/internal/core"
)

type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Update(ctx context.Context, account *Account) error
	Upgrade(ctx context.Context, account *Account) error
	PromoteTier(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	IncrementTokenVersion(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context, params ListAccountsParams) ([]Account, int, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, account *Account) error {
	query := `
		INSERT INTO accounts (id, email, password_hash, name, role, tier)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at, token_version`

	err := r.db.GetContext(ctx, account, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.Name,
		account.Role,
		account.Tier,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create account: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create account: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Account, error) {
	query := `
		SELECT id, email, password_hash, name, role, tier, token_version,
		       created_at, updated_at, deleted_at
		FROM accounts
		WHERE id = $1 AND deleted_at IS NULL`

	var account Account
	err := r.db.GetContext(ctx, &account, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get account: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	return &account, nil
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*Account, error) {
	query := `
		SELECT id, email, password_hash, name, role, tier, token_version,
		       created_at, updated_at, deleted_at
		FROM accounts
		WHERE email = $1 AND deleted_at IS NULL`

	var account Account
	err := r.db.GetContext(ctx, &account, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get account by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account by email: %w", err)
	}

	return &account, nil
}

func (r *repository) Update(ctx context.Context, account *Account) error {
	query := `
		UPDATE accounts
		SET name = $2, role = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &account.UpdatedAt, query,
		account.ID,
		account.Name,
		account.Role,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update account: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	return nil
}

// Upgrade promotes a guest in place. The tier guard lives in the WHERE
// clause, so the transition is monotonic even under concurrent upgrade
// attempts: only one statement finds the row still at 'guest'.
func (r *repository) Upgrade(ctx context.Context, account *Account) error {
	query := `
		UPDATE accounts
		SET email = $2, password_hash = $3, name = $4, tier = $5,
		    updated_at = NOW()
		WHERE id = $1 AND tier = $6 AND deleted_at IS NULL
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &account.UpdatedAt, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.Name,
		TierFull,
		TierGuest,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("upgrade account: %w", core.ErrNotFound)
	}
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("upgrade account: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("upgrade account: %w", err)
	}

	account.Tier = TierFull
	return nil
}

// PromoteTier is the credential-less admin promotion. Same monotonic
// guard as Upgrade; promoting an already-full account affects no rows.
func (r *repository) PromoteTier(ctx context.Context, id string) error {
	query := `
		UPDATE accounts
		SET tier = $2, updated_at = NOW()
		WHERE id = $1 AND tier = $3 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, TierFull, TierGuest)
	if err != nil {
		return fmt.Errorf("promote tier: %w", err)
	}

	if _, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("promote tier: %w", err)
	}

	return nil
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE accounts
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("update password: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) IncrementTokenVersion(
	ctx context.Context,
	id string,
) error {
	query := `
		UPDATE accounts
		SET token_version = token_version + 1, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("increment token version: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE accounts
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete account: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	params ListAccountsParams,
) ([]Account, int, error) {
	params.Normalize()

	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, "deleted_at IS NULL")

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(email ILIKE $%d OR name ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+escapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argIdx))
		args = append(args, params.Role)
		argIdx++
	}

	if params.Tier != "" {
		conditions = append(conditions, fmt.Sprintf("tier = $%d", argIdx))
		args = append(args, params.Tier)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM accounts WHERE %s",
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, email, name, role, tier, token_version,
		       created_at, updated_at, deleted_at
		FROM accounts
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var accounts []Account
	if err := r.db.SelectContext(ctx, &accounts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}

	return accounts, total, nil
}

func (r *repository) ExistsByEmail(
	ctx context.Context,
	email string,
) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM accounts WHERE email = $1 AND deleted_at IS NULL)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email); err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}

	return exists, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
