// StudyForge | 2026
// dto.go

package content

import (
	"time"

	"github.com/studyforge/backend/internal/quota"
)

type CreateItemRequest struct {
	Title string `json:"title" validate:"required,min=1,max=200"`
	Body  string `json:"body"  validate:"max=65536"`
}

type UpdateItemRequest struct {
	Title *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Body  *string `json:"body,omitempty"  validate:"omitempty,max=65536"`
}

type ItemResponse struct {
	ID        string            `json:"id"`
	Kind      quota.ContentKind `json:"kind"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// CreateItemResponse pairs the created item with the post-creation
// quota state so the client can surface the near-limit warning without
// a second round trip.
type CreateItemResponse struct {
	Item  ItemResponse `json:"item"`
	Quota quota.Result `json:"quota"`
}

type ListItemsParams struct {
	Kind     quota.ContentKind
	Page     int
	PageSize int
}

func (p *ListItemsParams) Normalize() {
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

func (p *ListItemsParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToItemResponse(item *Item) ItemResponse {
	return ItemResponse{
		ID:        item.ID,
		Kind:      item.Kind,
		Title:     item.Title,
		Body:      item.Body,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

func ToItemResponseList(items []Item) []ItemResponse {
	responses := make([]ItemResponse, 0, len(items))
	for i := range items {
		responses = append(responses, ToItemResponse(&items[i]))
	}
	return responses
}
