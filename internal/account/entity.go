// StudyForge | 2026
// entity.go

package account

import (
	"time"
)

// Account represents one learner. Guest accounts are created without
// credentials; Email and PasswordHash stay NULL until the account is
// upgraded. Tier moves guest -> full exactly once and never back.
type Account struct {
	ID           string     `db:"id"`
	Email        *string    `db:"email"`
	PasswordHash *string    `db:"password_hash"`
	Name         string     `db:"name"`
	Role         string     `db:"role"`
	Tier         string     `db:"tier"`
	TokenVersion int        `db:"token_version"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at"`
}

func (a *Account) IsDeleted() bool {
	return a.DeletedAt != nil
}

func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a *Account) IsGuest() bool {
	return a.Tier == TierGuest
}

// EmailOrEmpty flattens the nullable column for DTOs and claims.
func (a *Account) EmailOrEmpty() string {
	if a.Email == nil {
		return ""
	}
	return *a.Email
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	TierGuest = "guest"
	TierFull  = "full"
)
