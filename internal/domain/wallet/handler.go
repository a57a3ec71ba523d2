package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/swapcash/swapcash-api/internal/domain/subscription"
	"github.com/swapcash/swapcash-api/internal/middleware"
	"github.com/swapcash/swapcash-api/internal/pkg/paystack"
	"github.com/swapcash/swapcash-api/internal/pkg/response"
	"github.com/swapcash/swapcash-api/internal/pkg/validator"
)

type Handler struct {
	svc           *Service
	webhookSecret string
}

func NewHandler(svc *Service, webhookSecret string) *Handler {
	return &Handler{svc: svc, webhookSecret: webhookSecret}
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/balance", h.Balance)
	r.Get("/transactions", h.Transactions)
	r.Post("/deposits", h.InitiateDeposit)
	r.Get("/deposits/verify/{reference}", h.VerifyDeposit)
	r.Post("/transfers", h.Transfer)
	r.Post("/withdrawals", h.InitiateWithdrawal)
	r.Post("/subscriptions", h.InitiateSubscriptionPayment)
	r.Get("/subscriptions/verify/{reference}", h.VerifySubscriptionPayment)
	return r
}

// WebhookRoutes are mounted without authentication; requests are
// authenticated by the gateway's HMAC signature instead.
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/paystack", h.PaystackWebhook)
	return r
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	wallet, err := h.svc.GetBalance(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	response.OK(w, wallet)
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	q := TransactionQuery{
		Type:   r.URL.Query().Get("type"),
		Status: r.URL.Query().Get("status"),
		Limit:  parseIntParam(r, "limit", 20),
		Offset: parseIntParam(r, "offset", 0),
	}
	if details := validator.Validate(q); details != nil {
		response.ValidationError(w, details)
		return
	}

	items, total, err := h.svc.ListTransactions(r.Context(), userID, ListFilter{
		Type:   TransactionType(q.Type),
		Status: TransactionStatus(q.Status),
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	response.WithMeta(w, items, response.Meta{Total: total, Limit: q.Limit, Offset: q.Offset})
}

func (h *Handler) InitiateDeposit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	intent, err := h.svc.InitiateDeposit(r.Context(), userID, req.Amount, req.Description)
	if err != nil {
		h.respondError(w, err)
		return
	}
	response.Created(w, intent)
}

func (h *Handler) VerifyDeposit(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, h.svc.VerifyDeposit)
}

func (h *Handler) VerifySubscriptionPayment(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, h.svc.VerifySubscriptionPayment)
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	result, err := h.svc.Transfer(r.Context(), userID, req.Recipient, req.Amount, h.svc.cfg.TransferFee, req.Description)
	if err != nil {
		h.respondError(w, err)
		return
	}
	response.Created(w, result)
}

func (h *Handler) InitiateWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	t, err := h.svc.InitiateWithdrawal(r.Context(), userID, req.Amount, PayoutDestination{
		Name:          req.AccountName,
		AccountNumber: req.AccountNumber,
		BankCode:      req.BankCode,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	response.Created(w, t)
}

func (h *Handler) InitiateSubscriptionPayment(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req SubscriptionPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	intent, err := h.svc.InitiateSubscriptionPayment(r.Context(), userID, req.PlanID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	response.Created(w, intent)
}

// PaystackWebhook re-verifies charge events against the gateway rather than
// trusting the delivered payload; transfer events settle pending payouts.
// Handled events always answer 200 so the gateway stops retrying.
func (h *Handler) PaystackWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		response.BadRequest(w, "cannot read body")
		return
	}

	if !paystack.VerifyWebhookSignature(h.webhookSecret, body, r.Header.Get("X-Paystack-Signature")) {
		response.Unauthorized(w, "invalid signature")
		return
	}

	event, err := paystack.ParseWebhook(body)
	if err != nil {
		response.BadRequest(w, "invalid payload")
		return
	}

	switch event.Event {
	case paystack.EventChargeSuccess:
		if _, err := h.svc.VerifyDeposit(r.Context(), event.Data.Reference); err != nil {
			log.Error().Err(err).Str("reference", event.Data.Reference).Str("event", event.Event).Msg("webhook charge processing failed")
		}
	case paystack.EventTransferSuccess, paystack.EventTransferFailed, paystack.EventTransferReversed:
		if err := h.svc.HandlePayoutEvent(r.Context(), event.Data.Reference, event.Data.Status); err != nil {
			log.Error().Err(err).Str("reference", event.Data.Reference).Str("event", event.Event).Msg("webhook payout processing failed")
		}
	default:
		log.Debug().Str("event", event.Event).Msg("ignoring webhook event")
	}

	response.OK(w, map[string]string{"status": "received"})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, reference string) (*VerifyResult, error)) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		response.BadRequest(w, "reference is required")
		return
	}

	result, err := fn(r.Context(), reference)
	if err != nil {
		h.respondError(w, err)
		return
	}
	response.OK(w, result)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		response.BadRequest(w, "amount must be greater than zero")
	case errors.Is(err, ErrSelfTransfer):
		response.BadRequest(w, "cannot transfer to yourself")
	case errors.Is(err, ErrInsufficientBalance):
		response.UnprocessableEntity(w, "insufficient wallet balance")
	case errors.Is(err, ErrRecipientNotFound):
		response.NotFound(w, "recipient not found")
	case errors.Is(err, ErrTransactionNotFound):
		response.NotFound(w, "transaction not found")
	case errors.Is(err, subscription.ErrPlanNotFound):
		response.NotFound(w, "plan not found")
	case errors.Is(err, ErrCurrencyMismatch):
		response.Conflict(w, "currency mismatch")
	case errors.Is(err, ErrTerminalTransaction):
		response.Conflict(w, "transaction already finalized")
	case errors.Is(err, ErrGatewayError):
		response.BadGateway(w, "payment gateway rejected the request")
	case errors.Is(err, ErrGatewayUnavailable):
		response.BadGateway(w, "payment gateway unavailable")
	default:
		log.Error().Err(err).Msg("wallet handler error")
		response.InternalError(w)
	}
}

func parseIntParam(r *http.Request, name string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
