package payouts

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/GlebRadaev/partnerpay/internal/domain"
	"github.com/GlebRadaev/partnerpay/internal/dto"
	"github.com/GlebRadaev/partnerpay/internal/handlers/apierror"
	"github.com/GlebRadaev/partnerpay/internal/service/payoutservice"
	"github.com/GlebRadaev/partnerpay/pkg/auth"
	"github.com/GlebRadaev/partnerpay/pkg/utils"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type Service interface {
	RequestPayout(ctx context.Context, req payoutservice.PayoutRequest) (*payoutservice.PayoutSummary, error)
	ListPayouts(ctx context.Context, partnerID string, filter domain.PayoutFilter) ([]domain.Payout, error)
	GetPartnerPayoutStats(ctx context.Context, partnerID string) (*domain.PayoutStats, error)
	GetPayout(ctx context.Context, partnerID, id string) (*domain.Payout, error)
}

type PayoutHandler struct {
	payoutService Service
}

func New(payoutService Service) *PayoutHandler {
	return &PayoutHandler{
		payoutService: payoutService,
	}
}

// RequestPayout accepts a payout request for the authenticated partner.
// A repeated Idempotency-Key returns the payout created by the first call.
func (h *PayoutHandler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	partnerID, ok := auth.PartnerIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req dto.RequestPayoutDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	summary, err := h.payoutService.RequestPayout(r.Context(), payoutservice.PayoutRequest{
		PartnerID:      partnerID,
		AmountCents:    req.AmountCents,
		Method:         domain.PaymentMethod(req.PaymentMethod),
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		apierror.Respond(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusAccepted, dto.NewPayoutSummaryDTO(summary))
}

// ListPayouts supports ?status=, ?limit= and ?offset=.
func (h *PayoutHandler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	partnerID, ok := auth.PartnerIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var filter domain.PayoutFilter
	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		status := domain.PayoutStatus(s)
		if !status.Valid() {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid status")
			return
		}
		filter.Status = &status
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid "+name)
			return
		}
		*dst = n
	}

	payouts, err := h.payoutService.ListPayouts(r.Context(), partnerID, filter)
	if err != nil {
		apierror.Respond(w, err)
		return
	}

	response := make([]dto.PayoutDTO, 0, len(payouts))
	for i := range payouts {
		response = append(response, dto.NewPayoutDTO(&payouts[i]))
	}
	utils.RespondWithJSON(w, http.StatusOK, response)
}

func (h *PayoutHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	partnerID, ok := auth.PartnerIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	stats, err := h.payoutService.GetPartnerPayoutStats(r.Context(), partnerID)
	if err != nil {
		apierror.Respond(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewPayoutStatsDTO(stats))
}

func (h *PayoutHandler) GetPayout(w http.ResponseWriter, r *http.Request) {
	partnerID, ok := auth.PartnerIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	payout, err := h.payoutService.GetPayout(r.Context(), partnerID, chi.URLParam(r, "id"))
	if err != nil {
		apierror.Respond(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewPayoutDTO(payout))
}
