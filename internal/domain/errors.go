package domain

import "errors"

// Sentinel errors for domain rule violations. Services wrap these with
// context via fmt.Errorf("...: %w", err); the HTTP layer maps them to
// status codes with errors.Is.
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrForbidden            = errors.New("forbidden")
	ErrInsufficientSeats    = errors.New("insufficient seats")
	ErrCapacityExceeded     = errors.New("advertisement capacity exceeded")
	ErrPaymentWindowExpired = errors.New("payment window expired")
	ErrTicketNotBookable    = errors.New("ticket not bookable")
	ErrConflict             = errors.New("concurrent update conflict")
	ErrValidation           = errors.New("validation failed")
)
