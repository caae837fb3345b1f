package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crowdlend/crowdlend-api/internal/pkg/response"
)

// Handler handles admin HTTP requests
type Handler struct {
	service *Service
	jwtSvc  *JWTService
}

// NewHandler creates admin handler
func NewHandler(service *Service, jwtSvc *JWTService) *Handler {
	return &Handler{
		service: service,
		jwtSvc:  jwtSvc,
	}
}

// Routes returns the admin router. Domain routers passed in are registered
// inside the authenticated group and guard themselves with RequirePermission.
func (h *Handler) Routes(domains ...func(r chi.Router)) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(h.jwtSvc, h.service))

		r.Get("/auth/me", h.Me)

		r.Route("/audit", func(r chi.Router) {
			r.Use(RequirePermission(PermViewAuditLogs))
			r.Get("/logs", h.AuditLogs)
		})

		for _, mount := range domains {
			mount(r)
		}
	})

	return r
}

// Me handles GET /admin/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	admin, err := h.service.GetAdminByID(r.Context(), GetAdminID(r.Context()))
	if err != nil {
		if errors.Is(err, ErrAdminNotFound) {
			response.NotFound(w, "Admin not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, AdminResponseFromEntity(admin))
}

// AuditLogs handles GET /admin/audit/logs
func (h *Handler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := AuditFilter{Limit: 50}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 && v <= 100 {
		filter.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v >= 0 {
		filter.Offset = v
	}
	if action := q.Get("action"); action != "" {
		filter.Action = &action
	}
	if entityType := q.Get("entity_type"); entityType != "" {
		filter.EntityType = &entityType
	}
	if id, err := uuid.Parse(q.Get("entity_id")); err == nil {
		filter.EntityID = &id
	}

	logs, total, err := h.service.ListAuditLogs(r.Context(), filter)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.WithMeta(w, logs, response.Meta{Limit: filter.Limit, Offset: filter.Offset, Count: total})
}
