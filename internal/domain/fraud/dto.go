package fraud

import "github.com/google/uuid"

// FraudCheckRequest is the body of POST /referrals/fraud-check.
// Network and device signals come from the request itself, never from the body.
type FraudCheckRequest struct {
	ReferralLinkID *uuid.UUID `json:"referral_link_id"`
	ConversionID   *uuid.UUID `json:"conversion_id"`
}

// ResolveRequest is the body of POST /admin/fraud/checks/{id}/resolve
type ResolveRequest struct {
	Resolution string `json:"resolution" validate:"required,fraud_resolution"`
	Notes      string `json:"notes" validate:"omitempty,max=1000"`
}

// BlockRequest is the body of POST /admin/fraud/users/{id}/block
type BlockRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// FraudCheckResponse is what the user-facing check endpoint returns
type FraudCheckResponse struct {
	CheckID              uuid.UUID    `json:"fraud_check_id"`
	RiskScore            int          `json:"risk_score"`
	RiskLevel            RiskLevel    `json:"risk_level"`
	IsFlagged            bool         `json:"is_flagged"`
	IsBlocked            bool         `json:"is_blocked"`
	RequiresManualReview bool         `json:"requires_manual_review"`
	ChecksPerformed      int          `json:"checks_performed"`
	Checks               CheckDetails `json:"checks"`
}

func FraudCheckResponseFromEntity(c *Check) FraudCheckResponse {
	return FraudCheckResponse{
		CheckID:              c.ID,
		RiskScore:            c.RiskScore,
		RiskLevel:            c.RiskLevel,
		IsFlagged:            c.IsFlagged,
		IsBlocked:            c.IsBlocked,
		RequiresManualReview: c.RequiresManualReview,
		ChecksPerformed:      len(c.Details),
		Checks:               c.Details,
	}
}
