package referralcredit

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crowdlend/crowdlend-api/internal/domain/admin"
	"github.com/crowdlend/crowdlend-api/internal/middleware"
	"github.com/crowdlend/crowdlend-api/internal/pkg/logger"
	"github.com/crowdlend/crowdlend-api/internal/pkg/response"
	"github.com/crowdlend/crowdlend-api/internal/pkg/validator"
)

// Ledger is the credit service as seen by HTTP handlers
type Ledger interface {
	GetAvailableCredits(ctx context.Context, userID uuid.UUID) (*AvailableCredits, error)
	ApplyCredits(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, transactionType, transactionID string) (*ApplyResult, error)
	RefundCredit(ctx context.Context, transactionID uuid.UUID) (*RefundResult, error)
	AutoExpireCredits(ctx context.Context) (*ExpireResult, error)
	SendExpirationWarnings(ctx context.Context, days int) (*WarningsResult, error)
	GetBalanceSummary(ctx context.Context, userID uuid.UUID) (*BalanceSummary, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error)
}

// AuditLogger records admin actions
type AuditLogger interface {
	LogActionWithReason(ctx context.Context, adminID uuid.UUID, action, entityType string, entityID uuid.UUID, reason string, oldValue, newValue interface{})
}

// Handler handles referral credit HTTP requests
type Handler struct {
	ledger Ledger
	audit  AuditLogger
}

// NewHandler creates referral credit handler
func NewHandler(ledger Ledger, audit AuditLogger) *Handler {
	return &Handler{ledger: ledger, audit: audit}
}

// Routes returns the user-facing credit router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.Available)
	r.Get("/summary", h.Summary)
	r.Get("/transactions", h.Transactions)
	r.With(middleware.RequireBorrowerOrLender()).Post("/apply", h.Apply)
	return r
}

// AdminRoutes registers back-office credit endpoints on an authenticated admin router
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Route("/credits", func(r chi.Router) {
		r.With(admin.RequirePermission(admin.PermManageCredits)).Post("/expire", h.Expire)
		r.With(admin.RequirePermission(admin.PermViewCredits)).Get("/expiring", h.Expiring)
		r.With(admin.RequirePermission(admin.PermManageCredits)).Post("/transactions/{id}/refund", h.Refund)
	})
	r.With(admin.RequirePermission(admin.PermViewCredits)).Get("/users/{id}/credits/summary", h.UserSummary)
}

// Available handles GET /credits
func (h *Handler) Available(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	available, err := h.ledger.GetAvailableCredits(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, available)
}

// Summary handles GET /credits/summary
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}
	h.writeSummary(w, r, userID)
}

// Transactions handles GET /credits/transactions
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	txs, err := h.ledger.ListTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.WithMeta(w, txs, response.Meta{Limit: limit, Offset: offset, Count: len(txs)})
}

// Apply handles POST /credits/apply
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req ApplyCreditsRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	result, err := h.ledger.ApplyCredits(r.Context(), userID, req.TransactionAmount, req.TransactionType, req.TransactionID)
	if err != nil {
		switch {
		case errors.Is(err, ErrBelowMinimum):
			response.ValidationError(w, map[string]string{"transaction_amount": err.Error()})
		case errors.Is(err, ErrInvalidAmount):
			response.ValidationError(w, map[string]string{"transaction_amount": err.Error()})
		case errors.Is(err, ErrMissingReference):
			response.BadRequest(w, err.Error())
		default:
			response.InternalError(w)
		}
		return
	}
	response.OK(w, result)
}

// Expire handles POST /admin/credits/expire
func (h *Handler) Expire(w http.ResponseWriter, r *http.Request) {
	result, err := h.ledger.AutoExpireCredits(r.Context())
	if err != nil {
		logger.LogError(r.Context(), err, "Manual credit sweep failed")
		response.InternalError(w)
		return
	}
	if h.audit != nil && result.ExpiredCount > 0 {
		h.audit.LogActionWithReason(r.Context(), admin.GetAdminID(r.Context()), "credits.expire", "referral_credit", uuid.Nil, "manual sweep", nil, result)
	}
	response.OK(w, result)
}

// Expiring handles GET /admin/credits/expiring
func (h *Handler) Expiring(w http.ResponseWriter, r *http.Request) {
	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d <= 0 || d > 365 {
			response.BadRequest(w, "days must be between 1 and 365")
			return
		}
		days = d
	}

	result, err := h.ledger.SendExpirationWarnings(r.Context(), days)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, result)
}

// Refund handles POST /admin/credits/transactions/{id}/refund
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	txID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid transaction ID")
		return
	}

	var req RefundRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	result, err := h.ledger.RefundCredit(r.Context(), txID)
	if err != nil {
		switch {
		case errors.Is(err, ErrTransactionNotFound):
			response.NotFound(w, "Credit transaction not found")
		case errors.Is(err, ErrCreditNotFound):
			response.NotFound(w, "Credit not found")
		case errors.Is(err, ErrAlreadyRefunded):
			response.Conflict(w, "Credit transaction already refunded")
		default:
			logger.LogError(r.Context(), err, "Credit refund failed", "transaction_id", txID.String())
			response.InternalError(w)
		}
		return
	}

	logger.LogInfo(r.Context(), "Credit transaction refunded",
		"transaction_id", txID.String(), "credit_id", result.CreditID.String(), "amount", result.RefundAmount.String())
	if h.audit != nil {
		h.audit.LogActionWithReason(r.Context(), admin.GetAdminID(r.Context()), "credits.refund", "credit_transaction", txID, req.Reason, nil, result)
	}
	response.OK(w, result)
}

// UserSummary handles GET /admin/users/{id}/credits/summary
func (h *Handler) UserSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}
	h.writeSummary(w, r, userID)
}

func (h *Handler) writeSummary(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	summary, err := h.ledger.GetBalanceSummary(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, summary)
}
