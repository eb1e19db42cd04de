// StudyForge | 2026
// repository.go

package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/studyforge/backend/internal/core"
	"github.com/studyforge/backend/internal/quota"
)

type Repository interface {
	Insert(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, accountID, id string) (*Item, error)
	Update(ctx context.Context, item *Item) error
	List(
		ctx context.Context,
		accountID string,
		params ListItemsParams,
	) ([]Item, int, error)
	Delete(ctx context.Context, accountID, id string) error

	// WithTx rebinds the repository to an open transaction so an insert
	// can share a commit with the quota consumption.
	WithTx(tx core.DBTX) Repository
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx core.DBTX) Repository {
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, item *Item) error {
	query := `
		INSERT INTO content_items (id, account_id, kind, title, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, item, query,
		item.ID,
		item.AccountID,
		item.Kind,
		item.Title,
		item.Body,
	)
	if err != nil {
		return fmt.Errorf("insert content item: %w", err)
	}

	return nil
}

func (r *repository) GetByID(
	ctx context.Context,
	accountID, id string,
) (*Item, error) {
	query := `
		SELECT id, account_id, kind, title, body, created_at, updated_at
		FROM content_items
		WHERE id = $1 AND account_id = $2`

	var item Item
	err := r.db.GetContext(ctx, &item, query, id, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get content item: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get content item: %w", err)
	}

	return &item, nil
}

func (r *repository) Update(ctx context.Context, item *Item) error {
	query := `
		UPDATE content_items
		SET title = $3, body = $4, updated_at = NOW()
		WHERE id = $1 AND account_id = $2
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &item.UpdatedAt, query,
		item.ID,
		item.AccountID,
		item.Title,
		item.Body,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update content item: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update content item: %w", err)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	accountID string,
	params ListItemsParams,
) ([]Item, int, error) {
	params.Normalize()

	where := "account_id = $1"
	args := []any{accountID}

	if params.Kind != quota.ContentKind("") {
		where += " AND kind = $2"
		args = append(args, params.Kind)
	}

	countQuery := "SELECT COUNT(*) FROM content_items WHERE " + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count content items: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, account_id, kind, title, body, created_at, updated_at
		FROM content_items
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)

	args = append(args, params.PageSize, params.Offset())

	var items []Item
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list content items: %w", err)
	}

	return items, total, nil
}

func (r *repository) Delete(ctx context.Context, accountID, id string) error {
	query := `DELETE FROM content_items WHERE id = $1 AND account_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, accountID)
	if err != nil {
		return fmt.Errorf("delete content item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete content item: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete content item: %w", core.ErrNotFound)
	}

	return nil
}
