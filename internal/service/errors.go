package service

import "errors"

// Domain errors returned by the service. Callers match them with errors.Is;
// anything else is a storage or internal failure.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidState     = errors.New("invalid state")
	ErrBelowMinimum     = errors.New("contribution below minimum amount")
	ErrExceedsRemaining = errors.New("contribution exceeds remaining amount")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrValidation       = errors.New("validation failed")
)

// rejectionReason labels a domain error for metrics. It returns "" for
// errors that are not rejections.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrBelowMinimum):
		return "below_minimum"
	case errors.Is(err, ErrExceedsRemaining):
		return "exceeds_remaining"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return ""
	}
}
