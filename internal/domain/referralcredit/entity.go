package referralcredit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditStatus is the lifecycle state of a credit
type CreditStatus string

const (
	StatusActive    CreditStatus = "active"
	StatusUsed      CreditStatus = "used"
	StatusExpired   CreditStatus = "expired"
	StatusCancelled CreditStatus = "cancelled"
)

// TransactionType is the kind of ledger movement
type TransactionType string

const (
	TxUsed     TransactionType = "used"
	TxRefunded TransactionType = "refunded"
	TxExpired  TransactionType = "expired"
)

// Credit is a grant of spendable referral balance.
// RemainingAmount is a generated column and is only ever read back.
type Credit struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	UserID          uuid.UUID       `db:"user_id" json:"user_id"`
	CreditType      string          `db:"credit_type" json:"credit_type"`
	CreditAmount    decimal.Decimal `db:"credit_amount" json:"credit_amount"`
	UsedAmount      decimal.Decimal `db:"used_amount" json:"used_amount"`
	RemainingAmount decimal.Decimal `db:"remaining_amount" json:"remaining_amount"`
	Status          CreditStatus    `db:"status" json:"status"`
	IsExpired       bool            `db:"is_expired" json:"is_expired"`
	ExpiredAt       *time.Time      `db:"expired_at" json:"expired_at,omitempty"`
	ExpiryDate      time.Time       `db:"expiry_date" json:"expiry_date"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// IsAvailable reports whether the credit can still be spent at now
func (c *Credit) IsAvailable(now time.Time) bool {
	return c.Status == StatusActive && c.RemainingAmount.IsPositive() && !c.ExpiryDate.Before(now)
}

// Transaction is one append-only ledger movement against a credit.
// RefundedAt is the only field written after insert.
type Transaction struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	UserID          uuid.UUID       `db:"user_id" json:"user_id"`
	CreditID        uuid.UUID       `db:"credit_id" json:"credit_id"`
	TransactionType TransactionType `db:"transaction_type" json:"transaction_type"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	AppliedToType   *string         `db:"applied_to_type" json:"applied_to_type,omitempty"`
	AppliedToID     *string         `db:"applied_to_id" json:"applied_to_id,omitempty"`
	Description     string          `db:"description" json:"description"`
	RefundedAt      *time.Time      `db:"refunded_at" json:"refunded_at,omitempty"`
	RefundOf        *uuid.UUID      `db:"refund_of" json:"refund_of,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// AvailableCredits is the spendable balance of one user, oldest expiry first
type AvailableCredits struct {
	TotalAvailable decimal.Decimal `json:"total_available"`
	Credits        []Credit        `json:"credits"`
}

// AppliedCredit is the share of one credit consumed by an application
type AppliedCredit struct {
	CreditID      uuid.UUID       `json:"credit_id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	AmountUsed    decimal.Decimal `json:"amount_used"`
}

// ApplyResult is the outcome of applying credits to a business transaction.
// RemainingAmount is what the caller still has to charge by other means.
type ApplyResult struct {
	CreditsApplied  decimal.Decimal `json:"credits_applied"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	AppliedCredits  []AppliedCredit `json:"applied_credits"`
	Replayed        bool            `json:"replayed"`
}

// RefundResult is the outcome of reversing one "used" transaction
type RefundResult struct {
	TransactionID       uuid.UUID       `json:"transaction_id"`
	RefundTransactionID uuid.UUID       `json:"refund_transaction_id"`
	CreditID            uuid.UUID       `json:"credit_id"`
	RefundAmount        decimal.Decimal `json:"refund_amount"`
	CreditStatus        CreditStatus    `json:"credit_status"`
}

// ExpireResult is the outcome of one expiry sweep
type ExpireResult struct {
	ExpiredCount  int             `json:"expired_count"`
	ExpiredAmount decimal.Decimal `json:"expired_amount"`
}

// ExpiringCredit is one credit inside an expiry warning
type ExpiringCredit struct {
	CreditID        uuid.UUID       `json:"credit_id"`
	CreditType      string          `json:"credit_type"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	ExpiryDate      time.Time       `json:"expiry_date"`
	DaysUntilExpiry int             `json:"days_until_expiry"`
}

// Notification is the per-user payload handed to the notifier
type Notification struct {
	UserID         uuid.UUID        `json:"user_id"`
	Email          string           `json:"email"`
	Phone          string           `json:"phone,omitempty"`
	FullName       string           `json:"full_name,omitempty"`
	TotalExpiring  decimal.Decimal  `json:"total_expiring"`
	EarliestExpiry time.Time        `json:"earliest_expiry"`
	Credits        []ExpiringCredit `json:"credits"`
}

// WarningsResult lists the users to warn about upcoming expiry
type WarningsResult struct {
	WarningsSent  int            `json:"warnings_sent"`
	Notifications []Notification `json:"notifications"`
}

// TypeBreakdown aggregates credits of one credit_type
type TypeBreakdown struct {
	Count          int             `json:"count"`
	TotalEarned    decimal.Decimal `json:"total_earned"`
	TotalUsed      decimal.Decimal `json:"total_used"`
	TotalAvailable decimal.Decimal `json:"total_available"`
}

// BalanceSummary aggregates every credit a user ever held
type BalanceSummary struct {
	TotalEarned    decimal.Decimal          `json:"total_earned"`
	TotalUsed      decimal.Decimal          `json:"total_used"`
	TotalAvailable decimal.Decimal          `json:"total_available"`
	TotalExpired   decimal.Decimal          `json:"total_expired"`
	TotalCancelled decimal.Decimal          `json:"total_cancelled"`
	ActiveCredits  int                      `json:"active_credits"`
	ExpiringSoon   decimal.Decimal          `json:"expiring_soon"`
	ByType         map[string]TypeBreakdown `json:"by_type"`
}
