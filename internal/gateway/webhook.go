package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

type EventKind string

const (
	EventPayoutPaid   EventKind = "paid"
	EventPayoutFailed EventKind = "failed"
	EventIgnored      EventKind = "ignored"
)

type PayoutEvent struct {
	Kind            EventKind
	EventID         string
	PayoutID        string
	GatewayPayoutID string
	FailureReason   string
}

// ParseStripeEvent verifies the Stripe-Signature header and extracts the
// payout outcome. Events other than payout.paid and payout.failed are ignored.
func ParseStripeEvent(payload []byte, signature, secret string) (*PayoutEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("verify stripe event: %w", err)
	}

	out := &PayoutEvent{Kind: EventIgnored, EventID: event.ID}

	switch event.Type {
	case stripe.EventTypePayoutPaid, stripe.EventTypePayoutFailed:
	default:
		return out, nil
	}

	var po stripe.Payout
	if err := json.Unmarshal(event.Data.Raw, &po); err != nil {
		return nil, fmt.Errorf("decode stripe payout: %w", err)
	}

	out.PayoutID = po.Metadata[MetadataPayoutIDKey]
	out.GatewayPayoutID = po.ID
	if event.Type == stripe.EventTypePayoutPaid {
		out.Kind = EventPayoutPaid
	} else {
		out.Kind = EventPayoutFailed
		out.FailureReason = string(po.FailureCode)
		if out.FailureReason == "" {
			out.FailureReason = "payout_failed"
		}
	}
	return out, nil
}
