package apierror

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/GlebRadaev/partnerpay/internal/ratelimit"
	"github.com/GlebRadaev/partnerpay/internal/service/payoutservice"
	"github.com/GlebRadaev/partnerpay/pkg/utils"
)

// Status maps a settlement error to its HTTP status.
func Status(err error) int {
	switch {
	case errors.Is(err, payoutservice.ErrBelowMinimum),
		errors.Is(err, payoutservice.ErrInvalidDestination):
		return http.StatusUnprocessableEntity
	case errors.Is(err, payoutservice.ErrInvalidMethod),
		errors.Is(err, payoutservice.ErrInvalidTransactionID):
		return http.StatusBadRequest
	case errors.Is(err, payoutservice.ErrPartnerNotFound),
		errors.Is(err, payoutservice.ErrPayoutNotFound):
		return http.StatusNotFound
	case errors.Is(err, payoutservice.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, payoutservice.ErrInvalidStateTransition):
		return http.StatusConflict
	case errors.Is(err, payoutservice.ErrPersistence):
		return http.StatusServiceUnavailable
	case errors.Is(err, payoutservice.ErrGateway):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func Respond(w http.ResponseWriter, err error) {
	status := Status(err)

	var rlErr *payoutservice.RateLimitError
	if errors.As(err, &rlErr) {
		ratelimit.SetHeaders(w, rlErr.Decision)
	}

	// Storage and gateway errors carry driver and provider details.
	switch status {
	case http.StatusInternalServerError:
		zap.L().Error("unhandled error", zap.Error(err))
		utils.RespondWithCode(w, status, payoutservice.ErrorCode(err), "Internal server error")
	case http.StatusServiceUnavailable:
		zap.L().Error("persistence error", zap.Error(err))
		utils.RespondWithCode(w, status, payoutservice.ErrorCode(err), "Service temporarily unavailable")
	case http.StatusBadGateway:
		zap.L().Error("gateway error", zap.Error(err))
		utils.RespondWithCode(w, status, payoutservice.ErrorCode(err), "Payment gateway error")
	default:
		utils.RespondWithCode(w, status, payoutservice.ErrorCode(err), err.Error())
	}
}
