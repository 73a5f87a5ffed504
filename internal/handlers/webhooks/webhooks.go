package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/GlebRadaev/partnerpay/internal/gateway"
	"github.com/GlebRadaev/partnerpay/internal/handlers/apierror"
	"github.com/GlebRadaev/partnerpay/internal/service/payoutservice"
	"github.com/GlebRadaev/partnerpay/pkg/utils"
)

const maxBodyBytes = 64 << 10

type Service interface {
	CompletePayout(ctx context.Context, id, externalTransactionID string) (*payoutservice.TransitionResult, error)
	FailPayout(ctx context.Context, id, reason string) (*payoutservice.TransitionResult, error)
}

type WebhookHandler struct {
	payoutService Service
	secret        string
}

func New(payoutService Service, secret string) *WebhookHandler {
	return &WebhookHandler{
		payoutService: payoutService,
		secret:        secret,
	}
}

// Stripe settles payouts from payout.paid and payout.failed events.
// Duplicate deliveries land on ALREADY_TERMINAL and are acknowledged.
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	event, err := gateway.ParseStripeEvent(body, r.Header.Get("Stripe-Signature"), h.secret)
	if err != nil {
		zap.L().Warn("rejected stripe webhook", zap.Error(err))
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid signature")
		return
	}
	if event.Kind == gateway.EventIgnored || event.PayoutID == "" {
		utils.RespondWithJSON(w, http.StatusOK, utils.Response{Message: "ignored"})
		return
	}

	var res *payoutservice.TransitionResult
	switch event.Kind {
	case gateway.EventPayoutPaid:
		res, err = h.payoutService.CompletePayout(r.Context(), event.PayoutID, event.GatewayPayoutID)
	case gateway.EventPayoutFailed:
		res, err = h.payoutService.FailPayout(r.Context(), event.PayoutID, event.FailureReason)
	}

	if errors.Is(err, payoutservice.ErrPayoutNotFound) {
		zap.L().Warn("stripe webhook for unknown payout", zap.String("eventID", event.EventID), zap.String("payoutID", event.PayoutID))
		utils.RespondWithJSON(w, http.StatusOK, utils.Response{Message: "ignored"})
		return
	}
	if err != nil {
		zap.L().Error("failed to apply stripe webhook", zap.String("eventID", event.EventID), zap.Error(err))
		apierror.Respond(w, err)
		return
	}

	zap.L().Info("stripe webhook applied",
		zap.String("eventID", event.EventID),
		zap.String("payoutID", event.PayoutID),
		zap.String("outcome", string(res.Outcome)),
	)
	utils.RespondWithJSON(w, http.StatusOK, utils.Response{Message: string(res.Outcome)})
}
