package referralcredit

import "errors"

var (
	// ErrBelowMinimum is returned when the transaction is too small for credits
	ErrBelowMinimum = errors.New("transaction amount is below the minimum for credit use")

	// ErrInvalidAmount is returned when amount is <= 0 or finer than a cent
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0 with at most 2 decimal places")

	// ErrMissingReference is returned when the business transaction is not identified
	ErrMissingReference = errors.New("transaction type and transaction id are required")

	ErrTransactionNotFound = errors.New("credit transaction not found")
	ErrCreditNotFound      = errors.New("credit not found")
	ErrAlreadyRefunded     = errors.New("credit transaction already refunded")

	ErrInternal = errors.New("internal error")
)
