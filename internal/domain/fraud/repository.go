package fraud

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const queryTimeout = 3 * time.Second

const checkColumns = `id, check_type, user_id, referral_link_id, conversion_id, risk_score, risk_level,
	is_flagged, is_blocked, requires_manual_review, check_details, resolution, reviewed_by,
	reviewed_at, notes, created_at`

// Repository reads referral activity and stores fraud checks
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// CountConvertedByIP counts converted clicks from ip since the given time
func (r *Repository) CountConvertedByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM referral_clicks
		WHERE ip_address = $1 AND converted = true AND created_at >= $2
	`, ip, since)
	if err != nil {
		return 0, fmt.Errorf("%w: count clicks by ip: %v", ErrInternal, err)
	}
	return count, nil
}

// CountConvertedByDevice counts converted clicks sharing a user agent and device type
func (r *Repository) CountConvertedByDevice(ctx context.Context, userAgent, deviceType string, since time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM referral_clicks
		WHERE user_agent = $1 AND device_type = $2 AND converted = true AND created_at >= $3
	`, userAgent, deviceType, since)
	if err != nil {
		return 0, fmt.Errorf("%w: count clicks by device: %v", ErrInternal, err)
	}
	return count, nil
}

type linkStats struct {
	Clicks      int `db:"clicks"`
	Conversions int `db:"conversions"`
}

// LinkStats returns total clicks and conversions of a referral link
func (r *Repository) LinkStats(ctx context.Context, linkID uuid.UUID) (clicks, conversions int, err error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var s linkStats
	err = r.db.GetContext(ctx, &s, `
		SELECT
			(SELECT COUNT(*) FROM referral_clicks WHERE referral_link_id = $1) AS clicks,
			(SELECT COUNT(*) FROM referral_conversions WHERE referral_link_id = $1) AS conversions
	`, linkID)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: link stats: %v", ErrInternal, err)
	}
	return s.Clicks, s.Conversions, nil
}

// LinkInvolves reports whether userID owns the link or converted through it
func (r *Repository) LinkInvolves(ctx context.Context, linkID, userID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var ok bool
	err := r.db.GetContext(ctx, &ok, `
		SELECT EXISTS (
			SELECT 1 FROM referral_links l
			WHERE l.id = $1 AND (
				l.user_id = $2 OR EXISTS (
					SELECT 1 FROM referral_conversions c
					WHERE c.referral_link_id = l.id AND c.referred_user_id = $2
				)
			)
		)
	`, linkID, userID)
	if err != nil {
		return false, fmt.Errorf("%w: check link participant: %v", ErrInternal, err)
	}
	return ok, nil
}

// ConversionInvolves reports whether userID is the referrer or the referred user
// of the conversion. A non-nil linkID also requires the conversion to come from that link.
func (r *Repository) ConversionInvolves(ctx context.Context, conversionID, userID uuid.UUID, linkID *uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var ok bool
	err := r.db.GetContext(ctx, &ok, `
		SELECT EXISTS (
			SELECT 1 FROM referral_conversions
			WHERE id = $1 AND (referrer_id = $2 OR referred_user_id = $2)
				AND ($3::uuid IS NULL OR referral_link_id = $3)
		)
	`, conversionID, userID, linkID)
	if err != nil {
		return false, fmt.Errorf("%w: check conversion participant: %v", ErrInternal, err)
	}
	return ok, nil
}

// CreateCheck inserts a fraud check outside any transaction
func (r *Repository) CreateCheck(ctx context.Context, c *Check) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return insertCheck(ctx, r.db, c)
}

func insertCheck(ctx context.Context, exec sqlx.ExecerContext, c *Check) error {
	_, err := exec.ExecContext(ctx, `
		INSERT INTO referral_fraud_checks (
			id, check_type, user_id, referral_link_id, conversion_id, risk_score, risk_level,
			is_flagged, is_blocked, requires_manual_review, check_details, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		c.ID, c.CheckType, c.UserID, c.ReferralLinkID, c.ConversionID, c.RiskScore, c.RiskLevel,
		c.IsFlagged, c.IsBlocked, c.RequiresManualReview, c.Details, c.Notes, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert fraud check: %v", ErrInternal, err)
	}
	return nil
}

// GetCheck returns a fraud check, or nil when it does not exist
func (r *Repository) GetCheck(ctx context.Context, id uuid.UUID) (*Check, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c Check
	err := r.db.GetContext(ctx, &c, `SELECT `+checkColumns+` FROM referral_fraud_checks WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get fraud check: %v", ErrInternal, err)
	}
	return &c, nil
}

// ListFlagged returns unreviewed checks awaiting manual review, newest first
func (r *Repository) ListFlagged(ctx context.Context, limit int) ([]FlaggedConversion, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows := make([]FlaggedConversion, 0)
	err := r.db.SelectContext(ctx, &rows, `
		SELECT f.id, f.check_type, f.user_id, f.referral_link_id, f.conversion_id, f.risk_score,
			f.risk_level, f.is_flagged, f.is_blocked, f.requires_manual_review, f.check_details,
			f.resolution, f.reviewed_by, f.reviewed_at, f.notes, f.created_at,
			u.email AS user_email, u.full_name AS user_full_name,
			c.status AS conversion_status, c.created_at AS converted_at
		FROM referral_fraud_checks f
		LEFT JOIN users u ON u.id = f.user_id
		LEFT JOIN referral_conversions c ON c.id = f.conversion_id
		WHERE f.requires_manual_review = true AND f.reviewed_at IS NULL
		ORDER BY f.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list flagged checks: %v", ErrInternal, err)
	}
	return rows, nil
}

// Resolve records a verdict on a check that has not been reviewed yet.
// It returns nil when the check is missing or already reviewed.
func (r *Repository) Resolve(ctx context.Context, id uuid.UUID, resolution Resolution, reviewerID uuid.UUID, notes *string, at time.Time) (*Check, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c Check
	err := r.db.GetContext(ctx, &c, `
		UPDATE referral_fraud_checks
		SET resolution = $2, reviewed_by = $3, reviewed_at = $4, notes = $5
		WHERE id = $1 AND reviewed_at IS NULL
		RETURNING `+checkColumns,
		id, resolution, reviewerID, at, notes,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: resolve fraud check: %v", ErrInternal, err)
	}
	return &c, nil
}

// LockedCredit is a credit row held for cancellation
type LockedCredit struct {
	ID        uuid.UUID       `db:"id"`
	Remaining decimal.Decimal `db:"remaining_amount"`
}

// LockActiveCredits locks the user's active credits in the same
// expiry order the ledger uses when applying them.
func (r *Repository) LockActiveCredits(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) ([]LockedCredit, error) {
	credits := make([]LockedCredit, 0)
	err := tx.SelectContext(ctx, &credits, `
		SELECT id, remaining_amount
		FROM referral_credits
		WHERE user_id = $1 AND status = 'active'
		ORDER BY expiry_date ASC, id ASC
		FOR UPDATE
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: lock active credits: %v", ErrInternal, err)
	}
	return credits, nil
}

// DeactivateLinks switches off every active referral link of the user
func (r *Repository) DeactivateLinks(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, now time.Time) (int, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE referral_links SET is_active = false, updated_at = $2
		WHERE user_id = $1 AND is_active = true
	`, userID, now)
	if err != nil {
		return 0, fmt.Errorf("%w: deactivate referral links: %v", ErrInternal, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// CancelCredits cancels the user's active credits without a ledger entry
func (r *Repository) CancelCredits(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, now time.Time) (int, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE referral_credits SET status = 'cancelled', updated_at = $2
		WHERE user_id = $1 AND status = 'active'
	`, userID, now)
	if err != nil {
		return 0, fmt.Errorf("%w: cancel credits: %v", ErrInternal, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// CreateCheckTx inserts a fraud check inside the caller's transaction
func (r *Repository) CreateCheckTx(ctx context.Context, tx *sqlx.Tx, c *Check) error {
	return insertCheck(ctx, tx, c)
}
