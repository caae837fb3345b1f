package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Repository defines admin data access
type Repository interface {
	GetAdminByID(ctx context.Context, id uuid.UUID) (*AdminUser, error)

	CreateAuditLog(ctx context.Context, log *AuditLog) error
	ListAuditLogs(ctx context.Context, filter AuditFilter) ([]*AuditLog, int, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates admin repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetAdminByID(ctx context.Context, id uuid.UUID) (*AdminUser, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, email, role, name, is_active, last_login_at, created_at, updated_at
		FROM admin_users WHERE id = $1
	`
	var admin AdminUser
	if err := r.db.GetContext(ctx, &admin, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get admin: %v", ErrInternal, err)
	}
	return &admin, nil
}

func (r *repository) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO admin_audit_logs (id, admin_id, admin_email, action, entity_type, entity_id, old_value, new_value, reason, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.AdminID,
		log.AdminEmail,
		log.Action,
		log.EntityType,
		log.EntityID,
		nullJSON(log.OldValue),
		nullJSON(log.NewValue),
		log.Reason,
		log.IPAddress,
		log.UserAgent,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert audit log: %v", ErrInternal, err)
	}
	return nil
}

// nullJSON maps an empty payload to SQL NULL instead of an empty jsonb literal
func nullJSON(b json.RawMessage) interface{} {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}

func (r *repository) ListAuditLogs(ctx context.Context, filter AuditFilter) ([]*AuditLog, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where := []string{"1=1"}
	args := []interface{}{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if filter.AdminID != nil {
		add("admin_id = $%d", *filter.AdminID)
	}
	if filter.Action != nil {
		add("action = $%d", *filter.Action)
	}
	if filter.EntityType != nil {
		add("entity_type = $%d", *filter.EntityType)
	}
	if filter.EntityID != nil {
		add("entity_id = $%d", *filter.EntityID)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM admin_audit_logs WHERE `+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("%w: count audit logs: %v", ErrInternal, err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT id, admin_id, admin_email, action, entity_type, entity_id, old_value, new_value, reason, ip_address, user_agent, created_at
		FROM admin_audit_logs
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, clause, len(args)+1, len(args)+2)

	logs := make([]*AuditLog, 0)
	if err := r.db.SelectContext(ctx, &logs, query, append(args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("%w: list audit logs: %v", ErrInternal, err)
	}

	return logs, total, nil
}
