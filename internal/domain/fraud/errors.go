package fraud

import "errors"

var (
	ErrFraudCheckNotFound = errors.New("fraud check not found")

	// ErrAlreadyResolved is returned when a reviewer rules on a check twice
	ErrAlreadyResolved = errors.New("fraud check already resolved")

	ErrInvalidResolution = errors.New("resolution must be approved or rejected")

	// ErrNotParticipant is returned when a user asks for a check on a referral
	// link or conversion they are not part of. Missing rows report the same error.
	ErrNotParticipant = errors.New("referral does not involve this user")

	ErrInternal = errors.New("internal error")
)
