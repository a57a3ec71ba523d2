package subscription

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/swapcash/swapcash-api/internal/middleware"
	"github.com/swapcash/swapcash-api/internal/pkg/response"
	"github.com/swapcash/swapcash-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=255"`
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/plans", h.ListPlans)
	r.Get("/plans/{planID}", h.GetPlan)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/current", h.Current)
		r.Post("/cancel", h.Cancel)
	})
	return r
}

func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.svc.ListPlans(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list plans")
		response.InternalError(w)
		return
	}
	response.OK(w, plans)
}

func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.svc.GetPlan(r.Context(), chi.URLParam(r, "planID"))
	if err != nil {
		if errors.Is(err, ErrPlanNotFound) {
			response.NotFound(w, "plan not found")
			return
		}
		log.Error().Err(err).Msg("failed to get plan")
		response.InternalError(w)
		return
	}
	response.OK(w, plan)
}

func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	sub, err := h.svc.GetCurrent(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("failed to get current subscription")
		response.InternalError(w)
		return
	}
	response.OK(w, sub)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req cancelRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid JSON body")
			return
		}
		if details := validator.Validate(req); details != nil {
			response.ValidationError(w, details)
			return
		}
	}

	if err := h.svc.Cancel(r.Context(), userID, req.Reason); err != nil {
		if errors.Is(err, ErrCannotCancelInactive) {
			response.Conflict(w, "no active subscription to cancel")
			return
		}
		log.Error().Err(err).Msg("failed to cancel subscription")
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]string{"status": "cancelled"})
}
