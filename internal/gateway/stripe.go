package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/payout"
	"github.com/stripe/stripe-go/v82/transfer"
	"github.com/stripe/stripe-go/v82/transferreversal"

	"github.com/GlebRadaev/partnerpay/internal/metrics"
)

// Stripe moves funds to a connected account with a transfer and then pays
// them out from that account.
type Stripe struct{}

func NewStripe(secretKey string) *Stripe {
	stripe.Key = secretKey
	return &Stripe{}
}

func (s *Stripe) CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	if req.Destination == "" {
		return nil, &Error{Op: "transfer", Reason: "missing_destination", Err: ErrDestinationRequired}
	}

	params := &stripe.TransferParams{
		Amount:      stripe.Int64(req.AmountCents),
		Currency:    stripe.String(req.Currency),
		Destination: stripe.String(req.Destination),
		Metadata:    req.Metadata,
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)

	start := time.Now()
	t, err := transfer.New(params)
	metrics.ObserveGatewayCall("transfer", err, time.Since(start))
	if err != nil {
		return nil, &Error{Op: "transfer", Reason: stripeReason(err), Err: err}
	}
	return &Transfer{ID: t.ID}, nil
}

func (s *Stripe) CreatePayout(ctx context.Context, req PayoutRequest) (*PayoutReceipt, error) {
	if req.Destination == "" {
		return nil, &Error{Op: "payout", Reason: "missing_destination", Err: ErrDestinationRequired}
	}

	params := &stripe.PayoutParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(req.Currency),
		Metadata: req.Metadata,
	}
	params.Context = ctx
	params.SetStripeAccount(req.Destination)
	params.SetIdempotencyKey(req.IdempotencyKey)

	start := time.Now()
	po, err := payout.New(params)
	metrics.ObserveGatewayCall("payout", err, time.Since(start))
	if err != nil {
		return nil, &Error{Op: "payout", Reason: stripeReason(err), Err: err}
	}

	receipt := &PayoutReceipt{ID: po.ID}
	if po.ArrivalDate > 0 {
		arrival := time.Unix(po.ArrivalDate, 0).UTC()
		receipt.ArrivalDate = &arrival
	}
	return receipt, nil
}

// ReverseTransfer reverses the whole transfer.
func (s *Stripe) ReverseTransfer(ctx context.Context, req ReversalRequest) error {
	if req.TransferID == "" {
		return &Error{Op: "reversal", Reason: "missing_transfer", Err: ErrTransferRequired}
	}

	params := &stripe.TransferReversalParams{
		ID:       stripe.String(req.TransferID),
		Metadata: req.Metadata,
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)

	start := time.Now()
	_, err := transferreversal.New(params)
	metrics.ObserveGatewayCall("reversal", err, time.Since(start))
	if err != nil {
		return &Error{Op: "reversal", Reason: stripeReason(err), Err: err}
	}
	return nil
}

func stripeReason(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Code != "" {
			return string(stripeErr.Code)
		}
		if stripeErr.Type != "" {
			return string(stripeErr.Type)
		}
	}
	return "gateway_error"
}
