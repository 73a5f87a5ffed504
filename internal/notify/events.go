package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/GlebRadaev/partnerpay/internal/domain"
)

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type Event struct {
	ID          string            `json:"id"`
	PayoutID    string            `json:"payout_id"`
	PartnerID   string            `json:"partner_id"`
	Status      string            `json:"status"`
	GrossAmount int64             `json:"gross_amount"`
	PlatformFee int64             `json:"platform_fee"`
	GatewayFee  int64             `json:"gateway_fee"`
	NetAmount   int64             `json:"net_amount"`
	Currency    string            `json:"currency"`
	Method      string            `json:"payment_method"`
	Extra       map[string]string `json:"extra,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// EventChannel publishes notices to <subject>.<status>, e.g. payouts.lifecycle.completed.
type EventChannel struct {
	pub     Publisher
	subject string
	now     func() time.Time
}

func NewEventChannel(pub Publisher, subject string) *EventChannel {
	return &EventChannel{pub: pub, subject: subject, now: time.Now}
}

func DialNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("partnerpay"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return nc, nil
}

func (c *EventChannel) Name() string { return "nats" }

func (c *EventChannel) Send(_ context.Context, notice domain.LifecycleNotice) error {
	p := notice.Payout
	data, err := json.Marshal(Event{
		ID:          uuid.NewString(),
		PayoutID:    p.ID,
		PartnerID:   notice.Partner.ID,
		Status:      string(notice.Status),
		GrossAmount: p.GrossAmount,
		PlatformFee: p.PlatformFee,
		GatewayFee:  p.GatewayFee,
		NetAmount:   p.NetAmount,
		Currency:    p.Currency,
		Method:      string(p.PaymentMethod),
		Extra:       notice.Extra,
		OccurredAt:  c.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal payout event: %w", err)
	}

	subject := c.subject + "." + strings.ToLower(string(notice.Status))
	if err := c.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}
