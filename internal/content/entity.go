// StudyForge | 2026
// entity.go

package content

import (
	"time"

	"github.com/studyforge/backend/internal/quota"
)

// Item is one user-created study artifact: a plan, lesson, or
// flashcard. Creation is quota-gated; deletion never returns the spent
// slot to a guest.
type Item struct {
	ID        string            `db:"id"`
	AccountID string            `db:"account_id"`
	Kind      quota.ContentKind `db:"kind"`
	Title     string            `db:"title"`
	Body      string            `db:"body"`
	CreatedAt time.Time         `db:"created_at"`
	UpdatedAt time.Time         `db:"updated_at"`
}
