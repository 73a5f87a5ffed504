package payoutservice

import (
	"errors"
	"fmt"

	"github.com/GlebRadaev/partnerpay/internal/ratelimit"
)

var (
	ErrBelowMinimum           = errors.New("amount is below the minimum payout")
	ErrInvalidMethod          = errors.New("unsupported payment method")
	ErrInvalidDestination     = errors.New("partner payout destination is not valid for the method")
	ErrInvalidTransactionID   = errors.New("external transaction id is required")
	ErrRateLimited            = errors.New("payout request rate limit exceeded")
	ErrPartnerNotFound        = errors.New("partner not found")
	ErrPayoutNotFound         = errors.New("payout not found")
	ErrPersistence            = errors.New("payout could not be persisted")
	ErrInvalidStateTransition = errors.New("invalid payout state transition")
	ErrGateway                = errors.New("payment gateway error")
)

// RateLimitError is returned when the payout_request class refuses a partner.
type RateLimitError struct {
	Decision ratelimit.Decision
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s, retry after %ds", ErrRateLimited, e.Decision.RetryAfterSeconds())
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// ErrorCode maps err to the stable machine-readable code shown to callers.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBelowMinimum):
		return "BELOW_MINIMUM"
	case errors.Is(err, ErrInvalidMethod):
		return "INVALID_METHOD"
	case errors.Is(err, ErrInvalidDestination):
		return "INVALID_DESTINATION"
	case errors.Is(err, ErrInvalidTransactionID):
		return "INVALID_TRANSACTION_ID"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, ErrPartnerNotFound):
		return "PARTNER_NOT_FOUND"
	case errors.Is(err, ErrPayoutNotFound):
		return "PAYOUT_NOT_FOUND"
	case errors.Is(err, ErrPersistence):
		return "PERSISTENCE_ERROR"
	case errors.Is(err, ErrInvalidStateTransition):
		return "INVALID_STATE_TRANSITION"
	case errors.Is(err, ErrGateway):
		return "GATEWAY_ERROR"
	}
	return "INTERNAL_ERROR"
}

func persistenceError(err error) error {
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
