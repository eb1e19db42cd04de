// StudyForge | 2026
// handler.go

package quota

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studyforge/backend/internal/core"
	"github.com/studyforge/backend/internal/middleware"
)

type Handler struct {
	enforcer *Enforcer
	ledger   Ledger
}

func NewHandler(enforcer *Enforcer, ledger Ledger) *Handler {
	return &Handler{
		enforcer: enforcer,
		ledger:   ledger,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/limits", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.GetLimits)
		r.Get("/{kind}", h.GetLimit)
		r.Post("/{kind}/increment", h.Increment)
	})
}

// GetLimits reports every kind's state for the caller in one snapshot.
func (h *Handler) GetLimits(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())
	tier := TierFromClaim(middleware.GetUserTier(r.Context()))

	results, err := h.enforcer.CheckAll(r.Context(), accountID, tier)
	if err != nil {
		h.writeEnforcerError(w, err)
		return
	}

	core.OK(w, results)
}

// GetLimit is the advisory pre-check the client calls before showing a
// creation form. It never consumes a slot.
func (h *Handler) GetLimit(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseContentKind(chi.URLParam(r, "kind"))
	if err != nil {
		core.BadRequest(w, err.Error())
		return
	}

	accountID := middleware.GetUserID(r.Context())
	tier := TierFromClaim(middleware.GetUserTier(r.Context()))

	result, err := h.enforcer.CheckLimit(r.Context(), accountID, tier, kind)
	if err != nil {
		h.writeEnforcerError(w, err)
		return
	}

	core.OK(w, result)
}

// Increment is the authoritative consume endpoint for clients that
// manage content elsewhere. Denial is 402 with the upgrade prompt.
func (h *Handler) Increment(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseContentKind(chi.URLParam(r, "kind"))
	if err != nil {
		core.BadRequest(w, err.Error())
		return
	}

	accountID := middleware.GetUserID(r.Context())
	tier := TierFromClaim(middleware.GetUserTier(r.Context()))

	result, err := h.enforcer.Consume(r.Context(), accountID, tier, kind)
	if err != nil {
		h.writeEnforcerError(w, err)
		return
	}

	if !result.Allowed {
		core.JSONError(w, LimitReachedError(result.Message))
		return
	}

	core.OK(w, result)
}

// RegisterAdminRoutes exposes counter resets for support tooling. Never
// part of the request flow.
func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/limits/{accountID}", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.GetAccountLimits)
		r.Post("/reset", h.ResetAll)
		r.Post("/reset/{kind}", h.Reset)
	})
}

func (h *Handler) GetAccountLimits(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	counters, err := h.ledger.Read(r.Context(), accountID)
	if err != nil {
		h.writeEnforcerError(w, err)
		return
	}

	core.OK(w, counters)
}

func (h *Handler) ResetAll(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	if err := h.ledger.ResetAll(r.Context(), accountID); err != nil {
		h.writeEnforcerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseContentKind(chi.URLParam(r, "kind"))
	if err != nil {
		core.BadRequest(w, err.Error())
		return
	}

	accountID := chi.URLParam(r, "accountID")

	if err := h.ledger.Reset(r.Context(), accountID, kind); err != nil {
		h.writeEnforcerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) writeEnforcerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnknownContentKind):
		core.BadRequest(w, err.Error())
	case errors.Is(err, core.ErrStorageUnavailable):
		core.JSONError(w, core.StorageUnavailableError())
	default:
		core.InternalServerError(w, err)
	}
}

// LimitReachedError is the denial payload for gated creation: the
// client renders the message and offers the upgrade path.
func LimitReachedError(message string) *core.AppError {
	return core.NewAppError(
		core.ErrForbidden,
		message,
		http.StatusPaymentRequired,
		"LIMIT_REACHED",
	)
}
