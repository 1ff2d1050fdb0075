package domain

import "errors"

var (
	ErrFlightNotFound       = errors.New("flight not found")
	ErrValidation           = errors.New("invalid passenger details")
	ErrCodeDelivery         = errors.New("verification code delivery failed")
	ErrFlightExists         = errors.New("flight already exists")
	ErrSeatNotFound         = errors.New("seat not found")
	ErrSeatUnavailable      = errors.New("seat unavailable")
	ErrHoldExpired          = errors.New("hold expired")
	ErrHoldMismatch         = errors.New("hold owned by another attempt")
	ErrCodeMismatch         = errors.New("verification code mismatch")
	ErrCodeExpired          = errors.New("verification code expired")
	ErrPaymentCancelled     = errors.New("payment cancelled")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrDuplicateBooking     = errors.New("booking already exists for seat")
	ErrAttemptNotFound      = errors.New("booking attempt not found")
	ErrAttemptTerminal      = errors.New("booking attempt already finished")
	ErrInvalidState         = errors.New("operation not allowed in current state")
)
