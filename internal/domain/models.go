package domain

import "time"

type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "PENDING"
	PayoutProcessing PayoutStatus = "PROCESSING"
	PayoutCompleted  PayoutStatus = "COMPLETED"
	PayoutFailed     PayoutStatus = "FAILED"
	PayoutCancelled  PayoutStatus = "CANCELLED"
)

var transitions = map[PayoutStatus][]PayoutStatus{
	PayoutPending:    {PayoutProcessing, PayoutFailed, PayoutCancelled},
	PayoutProcessing: {PayoutCompleted, PayoutFailed, PayoutCancelled},
}

func (s PayoutStatus) Valid() bool {
	switch s {
	case PayoutPending, PayoutProcessing, PayoutCompleted, PayoutFailed, PayoutCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s PayoutStatus) IsTerminal() bool {
	return s == PayoutCompleted || s == PayoutFailed || s == PayoutCancelled
}

func (s PayoutStatus) CanTransitionTo(next PayoutStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	MethodManual PaymentMethod = "manual"
	MethodCard   PaymentMethod = "card"
	MethodStripe PaymentMethod = "stripe"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodManual, MethodCard, MethodStripe:
		return true
	}
	return false
}

// UsesGateway reports whether funds are moved by the payment gateway
// rather than by an operator.
func (m PaymentMethod) UsesGateway() bool {
	return m == MethodStripe
}

type Partner struct {
	ID                string    `db:"id"`
	Name              string    `db:"name"`
	Email             string    `db:"email"`
	PayoutDestination string    `db:"payout_destination"`
	CreatedAt         time.Time `db:"created_at"`
}

type FeeBreakdown struct {
	GrossAmount int64
	PlatformFee int64
	GatewayFee  int64
	NetAmount   int64
}

type Payout struct {
	ID                    string        `db:"id"`
	PartnerID             string        `db:"partner_id"`
	Status                PayoutStatus  `db:"status"`
	GrossAmount           int64         `db:"gross_amount"`
	PlatformFee           int64         `db:"platform_fee"`
	GatewayFee            int64         `db:"gateway_fee"`
	NetAmount             int64         `db:"net_amount"`
	Currency              string        `db:"currency"`
	PaymentMethod         PaymentMethod `db:"payment_method"`
	IdempotencyKey        *string       `db:"idempotency_key"`
	ExternalTransactionID *string       `db:"external_transaction_id"`
	GatewayTransferID     *string       `db:"gateway_transfer_id"`
	GatewayPayoutID       *string       `db:"gateway_payout_id"`
	EstimatedArrival      *time.Time    `db:"estimated_arrival"`
	FailureReason         *string       `db:"failure_reason"`
	RequestedAt           time.Time     `db:"requested_at"`
	ProcessedAt           *time.Time    `db:"processed_at"`
	CompletedAt           *time.Time    `db:"completed_at"`
	UpdatedAt             time.Time     `db:"updated_at"`
}

func (p *Payout) Fees() FeeBreakdown {
	return FeeBreakdown{
		GrossAmount: p.GrossAmount,
		PlatformFee: p.PlatformFee,
		GatewayFee:  p.GatewayFee,
		NetAmount:   p.NetAmount,
	}
}

// PayoutUpdate carries the columns a transition writes. Nil fields are left unchanged.
type PayoutUpdate struct {
	Status                *PayoutStatus
	ExternalTransactionID *string
	GatewayTransferID     *string
	GatewayPayoutID       *string
	EstimatedArrival      *time.Time
	FailureReason         *string
	ProcessedAt           *time.Time
	CompletedAt           *time.Time
}

type PayoutFilter struct {
	Status *PayoutStatus
	Limit  int
	Offset int
}

type PayoutStats struct {
	TotalPaid       int64
	TotalPending    int64
	TotalProcessing int64
	PayoutCount     int64
	LastPayoutDate  *time.Time
}

type LifecycleNotice struct {
	Partner Partner
	Payout  Payout
	Status  PayoutStatus
	Extra   map[string]string
}
