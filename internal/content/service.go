// StudyForge | 2026
// service.go

package content

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studyforge/backend/internal/core"
	"github.com/studyforge/backend/internal/quota"
)

// LimitReachedError carries the denial's quota state up to the
// handler, which turns it into the upgrade-prompt response.
type LimitReachedError struct {
	Result quota.Result
}

func (e *LimitReachedError) Error() string {
	return fmt.Sprintf("%s limit reached", e.Result.Kind)
}

type Service struct {
	db       *sqlx.DB
	repo     Repository
	ledger   *quota.PostgresLedger
	enforcer *quota.Enforcer
}

func NewService(
	db *sqlx.DB,
	repo Repository,
	ledger *quota.PostgresLedger,
	enforcer *quota.Enforcer,
) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		ledger:   ledger,
		enforcer: enforcer,
	}
}

// Create runs the quota consumption and the item insert in one
// transaction. The counter bump and the row become durable together or
// not at all: an insert failure rolls the consumption back, and a
// denied consumption never leaves a row behind.
func (s *Service) Create(
	ctx context.Context,
	accountID string,
	tier quota.Tier,
	kind quota.ContentKind,
	req CreateItemRequest,
) (*Item, quota.Result, error) {
	var (
		item   *Item
		result quota.Result
	)

	err := core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		txEnforcer := s.enforcer.WithLedger(s.ledger.WithTx(tx))

		res, err := txEnforcer.Consume(ctx, accountID, tier, kind)
		if err != nil {
			return err
		}
		if !res.Allowed {
			return &LimitReachedError{Result: res}
		}
		result = res

		item = &Item{
			ID:        uuid.New().String(),
			AccountID: accountID,
			Kind:      kind,
			Title:     req.Title,
			Body:      req.Body,
		}
		return s.repo.WithTx(tx).Insert(ctx, item)
	})
	if err != nil {
		return nil, quota.Result{}, err
	}

	return item, result, nil
}

func (s *Service) Get(
	ctx context.Context,
	accountID, id string,
) (*Item, error) {
	return s.repo.GetByID(ctx, accountID, id)
}

func (s *Service) Update(
	ctx context.Context,
	accountID, id string,
	req UpdateItemRequest,
) (*Item, error) {
	item, err := s.repo.GetByID(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		item.Title = *req.Title
	}
	if req.Body != nil {
		item.Body = *req.Body
	}

	if err := s.repo.Update(ctx, item); err != nil {
		return nil, err
	}

	return item, nil
}

func (s *Service) List(
	ctx context.Context,
	accountID string,
	params ListItemsParams,
) ([]Item, int, error) {
	return s.repo.List(ctx, accountID, params)
}

// Delete removes the item. The usage counter is deliberately left
// alone: guests cannot free a slot by deleting, which would defeat the
// limit via churn.
func (s *Service) Delete(ctx context.Context, accountID, id string) error {
	return s.repo.Delete(ctx, accountID, id)
}
