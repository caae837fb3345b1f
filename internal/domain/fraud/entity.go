package fraud

import (
	"time"

	"github.com/google/uuid"
)

// CheckType identifies what produced a fraud check record
type CheckType string

const (
	CheckComprehensive CheckType = "comprehensive"
	CheckManualReview  CheckType = "manual_review"
)

// RiskLevel buckets a 0-100 risk score
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Resolution is the reviewer's verdict on a flagged check
type Resolution string

const (
	ResolutionApproved Resolution = "approved"
	ResolutionRejected Resolution = "rejected"
)

// Check is one persisted fraud evaluation
type Check struct {
	ID                   uuid.UUID    `db:"id" json:"id"`
	CheckType            CheckType    `db:"check_type" json:"check_type"`
	UserID               *uuid.UUID   `db:"user_id" json:"user_id,omitempty"`
	ReferralLinkID       *uuid.UUID   `db:"referral_link_id" json:"referral_link_id,omitempty"`
	ConversionID         *uuid.UUID   `db:"conversion_id" json:"conversion_id,omitempty"`
	RiskScore            int          `db:"risk_score" json:"risk_score"`
	RiskLevel            RiskLevel    `db:"risk_level" json:"risk_level"`
	IsFlagged            bool         `db:"is_flagged" json:"is_flagged"`
	IsBlocked            bool         `db:"is_blocked" json:"is_blocked"`
	RequiresManualReview bool         `db:"requires_manual_review" json:"requires_manual_review"`
	Details              CheckDetails `db:"check_details" json:"checks"`
	Resolution           *Resolution  `db:"resolution" json:"resolution,omitempty"`
	ReviewedBy           *uuid.UUID   `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt           *time.Time   `db:"reviewed_at" json:"reviewed_at,omitempty"`
	Notes                *string      `db:"notes" json:"notes,omitempty"`
	CreatedAt            time.Time    `db:"created_at" json:"created_at"`
}

// IsResolved reports whether a reviewer has already ruled on the check
func (c *Check) IsResolved() bool {
	return c.ReviewedAt != nil
}

// FlaggedConversion is a review-queue row: the check plus who and what it is about
type FlaggedConversion struct {
	Check
	UserEmail        *string    `db:"user_email" json:"user_email,omitempty"`
	UserFullName     *string    `db:"user_full_name" json:"user_full_name,omitempty"`
	ConversionStatus *string    `db:"conversion_status" json:"conversion_status,omitempty"`
	ConvertedAt      *time.Time `db:"converted_at" json:"converted_at,omitempty"`
}

// Params carries the signals available for a comprehensive check.
// Every field is optional; a check runs only when its inputs are present.
type Params struct {
	UserID         *uuid.UUID
	ReferralLinkID *uuid.UUID
	ConversionID   *uuid.UUID
	IPAddress      string
	UserAgent      string
	DeviceType     string
}

// BlockResult describes what BlockUser changed
type BlockResult struct {
	UserID           uuid.UUID `json:"user_id"`
	CheckID          uuid.UUID `json:"fraud_check_id"`
	LinksDeactivated int       `json:"links_deactivated"`
	CreditsCancelled int       `json:"credits_cancelled"`
	AmountForfeited  string    `json:"amount_forfeited"`
}
