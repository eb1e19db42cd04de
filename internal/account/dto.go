// StudyForge | 2026
// dto.go

package account

import (
	"time"
)

type UpdateAccountRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
}

type UpdateAccountRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

type UpdateAccountTierRequest struct {
	Tier string `json:"tier" validate:"required,oneof=full"`
}

type AccountResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Tier      string    `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ListAccountsParams struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Search   string `json:"search"`
	Role     string `json:"role"`
	Tier     string `json:"tier"`
}

func (p *ListAccountsParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListAccountsParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToAccountResponse(a *Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID,
		Email:     a.EmailOrEmpty(),
		Name:      a.Name,
		Role:      a.Role,
		Tier:      a.Tier,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func ToAccountResponseList(accounts []Account) []AccountResponse {
	responses := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		responses = append(responses, ToAccountResponse(&a))
	}
	return responses
}
