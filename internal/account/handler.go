// StudyForge | 2026
// handler.go

package account

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/studyforge/backend/internal/core"
	"github.com/studyforge/backend/internal/middleware"
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
	r.Route("/accounts", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/me", h.GetMe)
		r.Put("/me", h.UpdateMe)
		r.Delete("/me", h.DeleteMe)
	})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())

	account, err := h.service.GetMe(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "account")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToAccountResponse(account))
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())

	var req UpdateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	account, err := h.service.UpdateMe(r.Context(), accountID, req)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "account")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToAccountResponse(account))
}

func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())

	if err := h.service.DeleteMe(r.Context(), accountID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "account")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

// RegisterAdminRoutes registers admin-only account management endpoints.
func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/accounts", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.ListAccounts)
		r.Get("/{accountID}", h.GetAccount)
		r.Put("/{accountID}", h.UpdateAccount)
		r.Put("/{accountID}/role", h.UpdateAccountRole)
		r.Put("/{accountID}/tier", h.PromoteAccountTier)
		r.Delete("/{accountID}", h.DeleteAccount)
	})
}

// ListAccounts returns a paginated account list with optional filtering.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	params := ListAccountsParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 20),
		Search:   r.URL.Query().Get("search"),
		Role:     r.URL.Query().Get("role"),
		Tier:     r.URL.Query().Get("tier"),
	}

	accounts, total, err := h.service.ListAccounts(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(
		w,
		ToAccountResponseList(accounts),
		params.Page,
		params.PageSize,
		total,
	)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	account, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "account")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToAccountResponse(account))
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	var req UpdateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	account, err := h.service.UpdateAccount(r.Context(), accountID, req)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "account")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToAccountResponse(account))
}

func (h *Handler) UpdateAccountRole(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	var req UpdateAccountRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	account, err := h.service.UpdateAccountRole(r.Context(), accountID, req.Role)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "account")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToAccountResponse(account))
}

// PromoteAccountTier promotes a guest to full (admin only). Tier moves
// in one direction; downgrades are rejected at validation.
func (h *Handler) PromoteAccountTier(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	var req UpdateAccountTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	account, err := h.service.PromoteAccountTier(r.Context(), accountID, req.Tier)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "account")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToAccountResponse(account))
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	requesterID := middleware.GetUserID(r.Context())
	targetID := chi.URLParam(r, "accountID")

	if err := h.service.CanDeleteAccount(r.Context(), requesterID, targetID); err != nil {
		if errors.Is(err, core.ErrForbidden) {
			core.Forbidden(w, "insufficient permissions")
			return
		}
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "account")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	if err := h.service.DeleteAccount(r.Context(), targetID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "account")
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
