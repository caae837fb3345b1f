package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type resolveRequest struct {
	Resolution string `json:"resolution" validate:"required,fraud_resolution"`
	Notes      string `json:"notes" validate:"max=10"`
}

type applyRequest struct {
	TransactionType string `json:"transaction_type" validate:"required,entity_type"`
}

func TestValidateFraudResolution(t *testing.T) {
	assert.Nil(t, Validate(&resolveRequest{Resolution: "approved"}))

	errs := Validate(&resolveRequest{Resolution: "maybe", Notes: "way too long notes"})
	assert.Equal(t, "Invalid resolution. Must be: approved or rejected", errs["resolution"])
	assert.Contains(t, errs["notes"], "max: 10")
}

func TestValidateEntityType(t *testing.T) {
	assert.Nil(t, Validate(&applyRequest{TransactionType: "loan_fee"}))

	errs := Validate(&applyRequest{TransactionType: "Loan Fee"})
	assert.Contains(t, errs, "transaction_type")
}
