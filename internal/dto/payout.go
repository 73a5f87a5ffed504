package dto

import (
	"time"

	"github.com/GlebRadaev/partnerpay/internal/domain"
	"github.com/GlebRadaev/partnerpay/internal/service/payoutservice"
)

type RequestPayoutDTO struct {
	AmountCents   int64  `json:"amount_cents" example:"10000"`
	PaymentMethod string `json:"payment_method" example:"stripe"`
}

type PayoutSummaryDTO struct {
	ID               string  `json:"id"`
	PartnerID        string  `json:"partner_id"`
	GrossAmount      int64   `json:"gross_amount"`
	PlatformFee      int64   `json:"platform_fee"`
	GatewayFee       int64   `json:"gateway_fee"`
	NetAmount        int64   `json:"net_amount"`
	Currency         string  `json:"currency"`
	PaymentMethod    string  `json:"payment_method"`
	Status           string  `json:"status"`
	RequestedAt      string  `json:"requested_at"`
	EstimatedArrival *string `json:"estimated_arrival,omitempty"`
}

type PayoutDTO struct {
	ID                    string  `json:"id"`
	PartnerID             string  `json:"partner_id"`
	Status                string  `json:"status"`
	GrossAmount           int64   `json:"gross_amount"`
	PlatformFee           int64   `json:"platform_fee"`
	GatewayFee            int64   `json:"gateway_fee"`
	NetAmount             int64   `json:"net_amount"`
	Currency              string  `json:"currency"`
	PaymentMethod         string  `json:"payment_method"`
	ExternalTransactionID *string `json:"external_transaction_id,omitempty"`
	FailureReason         *string `json:"failure_reason,omitempty"`
	EstimatedArrival      *string `json:"estimated_arrival,omitempty"`
	RequestedAt           string  `json:"requested_at"`
	ProcessedAt           *string `json:"processed_at,omitempty"`
	CompletedAt           *string `json:"completed_at,omitempty"`
}

type PayoutStatsDTO struct {
	TotalPaid       int64   `json:"total_paid"`
	TotalPending    int64   `json:"total_pending"`
	TotalProcessing int64   `json:"total_processing"`
	PayoutCount     int64   `json:"payout_count"`
	LastPayoutDate  *string `json:"last_payout_date,omitempty"`
}

type CompletePayoutDTO struct {
	ExternalTransactionID string `json:"external_transaction_id" example:"wire-2026-0042"`
}

type ReasonDTO struct {
	Reason string `json:"reason" example:"account closed"`
}

type TransitionResultDTO struct {
	Outcome string    `json:"outcome"`
	Payout  PayoutDTO `json:"payout"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func NewPayoutSummaryDTO(s *payoutservice.PayoutSummary) PayoutSummaryDTO {
	return PayoutSummaryDTO{
		ID:               s.ID,
		PartnerID:        s.PartnerID,
		GrossAmount:      s.GrossAmount,
		PlatformFee:      s.PlatformFee,
		GatewayFee:       s.GatewayFee,
		NetAmount:        s.NetAmount,
		Currency:         s.Currency,
		PaymentMethod:    string(s.Method),
		Status:           string(s.Status),
		RequestedAt:      s.RequestedAt.Format(time.RFC3339),
		EstimatedArrival: formatTime(s.EstimatedArrival),
	}
}

func NewPayoutDTO(p *domain.Payout) PayoutDTO {
	return PayoutDTO{
		ID:                    p.ID,
		PartnerID:             p.PartnerID,
		Status:                string(p.Status),
		GrossAmount:           p.GrossAmount,
		PlatformFee:           p.PlatformFee,
		GatewayFee:            p.GatewayFee,
		NetAmount:             p.NetAmount,
		Currency:              p.Currency,
		PaymentMethod:         string(p.PaymentMethod),
		ExternalTransactionID: p.ExternalTransactionID,
		FailureReason:         p.FailureReason,
		EstimatedArrival:      formatTime(p.EstimatedArrival),
		RequestedAt:           p.RequestedAt.Format(time.RFC3339),
		ProcessedAt:           formatTime(p.ProcessedAt),
		CompletedAt:           formatTime(p.CompletedAt),
	}
}

func NewPayoutStatsDTO(s *domain.PayoutStats) PayoutStatsDTO {
	return PayoutStatsDTO{
		TotalPaid:       s.TotalPaid,
		TotalPending:    s.TotalPending,
		TotalProcessing: s.TotalProcessing,
		PayoutCount:     s.PayoutCount,
		LastPayoutDate:  formatTime(s.LastPayoutDate),
	}
}

func NewTransitionResultDTO(r *payoutservice.TransitionResult) TransitionResultDTO {
	return TransitionResultDTO{
		Outcome: string(r.Outcome),
		Payout:  NewPayoutDTO(r.Payout),
	}
}
