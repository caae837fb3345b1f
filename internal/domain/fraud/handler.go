package fraud

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crowdlend/crowdlend-api/internal/domain/admin"
	"github.com/crowdlend/crowdlend-api/internal/domain/user"
	"github.com/crowdlend/crowdlend-api/internal/middleware"
	"github.com/crowdlend/crowdlend-api/internal/pkg/logger"
	"github.com/crowdlend/crowdlend-api/internal/pkg/response"
	"github.com/crowdlend/crowdlend-api/internal/pkg/validator"
)

// Scorer is the fraud service as seen by HTTP handlers
type Scorer interface {
	ComprehensiveCheck(ctx context.Context, p Params) (*Check, error)
	GetFlaggedConversions(ctx context.Context, limit int) ([]FlaggedConversion, error)
	ResolveFraudCheck(ctx context.Context, checkID uuid.UUID, resolution Resolution, reviewerID uuid.UUID, notes string) (*Check, error)
	BlockUser(ctx context.Context, userID uuid.UUID, reason string, blockedBy uuid.UUID) (*BlockResult, error)
}

// AuditLogger records admin actions
type AuditLogger interface {
	LogActionWithReason(ctx context.Context, adminID uuid.UUID, action, entityType string, entityID uuid.UUID, reason string, oldValue, newValue interface{})
}

// Handler handles fraud HTTP requests
type Handler struct {
	scorer Scorer
	audit  AuditLogger
}

// NewHandler creates fraud handler
func NewHandler(scorer Scorer, audit AuditLogger) *Handler {
	return &Handler{scorer: scorer, audit: audit}
}

// Routes returns the user-facing referral router. rateLimit guards the
// scoring endpoint, which is the only one that writes.
func (h *Handler) Routes(authMiddleware, rateLimit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.With(rateLimit).Post("/fraud-check", h.Check)
	return r
}

// AdminRoutes registers the review queue on an authenticated admin router
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Route("/fraud", func(r chi.Router) {
		r.With(admin.RequirePermission(admin.PermViewFraud)).Get("/flagged", h.Flagged)
		r.With(admin.RequirePermission(admin.PermReviewFraud)).Post("/checks/{id}/resolve", h.Resolve)
		r.With(admin.RequirePermission(admin.PermBlockUsers)).Post("/users/{id}/block", h.Block)
	})
}

// Check handles POST /referrals/fraud-check
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req FraudCheckRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	userAgent := truncateUserAgent(r.UserAgent())
	check, err := h.scorer.ComprehensiveCheck(r.Context(), Params{
		UserID:         &userID,
		ReferralLinkID: req.ReferralLinkID,
		ConversionID:   req.ConversionID,
		IPAddress:      middleware.ClientIP(r),
		UserAgent:      userAgent,
		DeviceType:     DeviceTypeFromUserAgent(userAgent),
	})
	if err != nil {
		switch {
		case errors.Is(err, user.ErrUserNotFound):
			response.NotFound(w, "User not found")
		case errors.Is(err, ErrNotParticipant):
			response.Forbidden(w, err.Error())
		default:
			logger.LogError(r.Context(), err, "Fraud check failed", "user_id", userID.String())
			response.InternalError(w)
		}
		return
	}
	response.Created(w, FraudCheckResponseFromEntity(check))
}

// Flagged handles GET /admin/fraud/flagged
func (h *Handler) Flagged(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	rows, err := h.scorer.GetFlaggedConversions(r.Context(), limit)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, rows)
}

// Resolve handles POST /admin/fraud/checks/{id}/resolve
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	checkID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid fraud check ID")
		return
	}

	var req ResolveRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	adminID := admin.GetAdminID(r.Context())
	check, err := h.scorer.ResolveFraudCheck(r.Context(), checkID, Resolution(req.Resolution), adminID, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, ErrFraudCheckNotFound):
			response.NotFound(w, "Fraud check not found")
		case errors.Is(err, ErrAlreadyResolved):
			response.Conflict(w, "Fraud check already resolved")
		case errors.Is(err, ErrInvalidResolution):
			response.ValidationError(w, map[string]string{"resolution": err.Error()})
		default:
			response.InternalError(w)
		}
		return
	}

	if h.audit != nil {
		h.audit.LogActionWithReason(r.Context(), adminID, "fraud.resolve", "fraud_check", checkID, req.Notes,
			nil, map[string]interface{}{"resolution": req.Resolution})
	}
	response.OK(w, check)
}

// Block handles POST /admin/fraud/users/{id}/block
func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	var req BlockRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	adminID := admin.GetAdminID(r.Context())
	result, err := h.scorer.BlockUser(r.Context(), userID, req.Reason, adminID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			response.NotFound(w, "User not found")
			return
		}
		response.InternalError(w)
		return
	}

	if h.audit != nil {
		h.audit.LogActionWithReason(r.Context(), adminID, "users.block", "user", userID, req.Reason, nil, result)
	}
	response.OK(w, result)
}
