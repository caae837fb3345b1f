package referralcredit

import "github.com/shopspring/decimal"

// ApplyCreditsRequest is the body of POST /credits/apply
type ApplyCreditsRequest struct {
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	TransactionType   string          `json:"transaction_type" validate:"required,entity_type"`
	TransactionID     string          `json:"transaction_id" validate:"required,max=100"`
}

// RefundRequest is the optional body of the admin refund endpoint
type RefundRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}
