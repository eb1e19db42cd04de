// StudyForge | 2026
// handler.go

package content

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/studyforge/backend/internal/core"
	"github.com/studyforge/backend/internal/middleware"
	"github.com/studyforge/backend/internal/quota"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/content", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.List)
		r.Post("/{kind}", h.Create)
		r.Get("/items/{itemID}", h.Get)
		r.Put("/items/{itemID}", h.Update)
		r.Delete("/items/{itemID}", h.Delete)
	})
}

// Create is the quota-gated creation endpoint. A guest at their limit
// gets 402 with the upgrade prompt; nothing is persisted in that case.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	kind, err := quota.ParseContentKind(chi.URLParam(r, "kind"))
	if err != nil {
		core.BadRequest(w, err.Error())
		return
	}

	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	accountID := middleware.GetUserID(r.Context())
	tier := quota.TierFromClaim(middleware.GetUserTier(r.Context()))

	item, result, err := h.service.Create(r.Context(), accountID, tier, kind, req)
	if err != nil {
		var limitErr *LimitReachedError
		if errors.As(err, &limitErr) {
			core.JSONError(w, quota.LimitReachedError(limitErr.Result.Message))
			return
		}
		if errors.Is(err, core.ErrStorageUnavailable) {
			core.JSONError(w, core.StorageUnavailableError())
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.Created(w, CreateItemResponse{
		Item:  ToItemResponse(item),
		Quota: result,
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())
	itemID := chi.URLParam(r, "itemID")

	item, err := h.service.Get(r.Context(), accountID, itemID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "content item")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToItemResponse(item))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())
	itemID := chi.URLParam(r, "itemID")

	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	item, err := h.service.Update(r.Context(), accountID, itemID, req)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "content item")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToItemResponse(item))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())

	params := ListItemsParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 20),
	}

	if kindParam := r.URL.Query().Get("kind"); kindParam != "" {
		kind, err := quota.ParseContentKind(kindParam)
		if err != nil {
			core.BadRequest(w, err.Error())
			return
		}
		params.Kind = kind
	}

	items, total, err := h.service.List(r.Context(), accountID, params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(
		w,
		ToItemResponseList(items),
		params.Page,
		params.PageSize,
		total,
	)
}

// Delete removes an item without refunding quota.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())
	itemID := chi.URLParam(r, "itemID")

	if err := h.service.Delete(r.Context(), accountID, itemID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "content item")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}
