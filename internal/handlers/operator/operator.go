package operator

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/GlebRadaev/partnerpay/internal/dto"
	"github.com/GlebRadaev/partnerpay/internal/handlers/apierror"
	"github.com/GlebRadaev/partnerpay/internal/service/payoutservice"
	"github.com/GlebRadaev/partnerpay/pkg/utils"
)

type Service interface {
	ApprovePayout(ctx context.Context, id string) (*payoutservice.TransitionResult, error)
	CompletePayout(ctx context.Context, id, externalTransactionID string) (*payoutservice.TransitionResult, error)
	FailPayout(ctx context.Context, id, reason string) (*payoutservice.TransitionResult, error)
	CancelPayout(ctx context.Context, id, reason string) (*payoutservice.TransitionResult, error)
}

// OperatorHandler exposes the manual lifecycle actions. Both APPLIED and
// ALREADY_TERMINAL answer 200; the outcome field tells them apart.
type OperatorHandler struct {
	payoutService Service
}

func New(payoutService Service) *OperatorHandler {
	return &OperatorHandler{
		payoutService: payoutService,
	}
}

func (h *OperatorHandler) Approve(w http.ResponseWriter, r *http.Request) {
	res, err := h.payoutService.ApprovePayout(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, res, err)
}

func (h *OperatorHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req dto.CompletePayoutDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.payoutService.CompletePayout(r.Context(), chi.URLParam(r, "id"), req.ExternalTransactionID)
	h.respond(w, r, res, err)
}

func (h *OperatorHandler) Fail(w http.ResponseWriter, r *http.Request) {
	var req dto.ReasonDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.payoutService.FailPayout(r.Context(), chi.URLParam(r, "id"), req.Reason)
	h.respond(w, r, res, err)
}

// Cancel accepts an empty body.
func (h *OperatorHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req dto.ReasonDTO
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	res, err := h.payoutService.CancelPayout(r.Context(), chi.URLParam(r, "id"), req.Reason)
	h.respond(w, r, res, err)
}

func (h *OperatorHandler) respond(w http.ResponseWriter, r *http.Request, res *payoutservice.TransitionResult, err error) {
	if err != nil {
		apierror.Respond(w, err)
		return
	}
	zap.L().Info("operator action",
		zap.String("path", r.URL.Path),
		zap.String("payoutID", res.Payout.ID),
		zap.String("outcome", string(res.Outcome)),
	)
	utils.RespondWithJSON(w, http.StatusOK, dto.NewTransitionResultDTO(res))
}
