package payoutservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/GlebRadaev/partnerpay/internal/domain"
	"github.com/GlebRadaev/partnerpay/internal/gateway"
	"github.com/GlebRadaev/partnerpay/internal/pg"
	"github.com/GlebRadaev/partnerpay/internal/ratelimit"
	"github.com/GlebRadaev/partnerpay/pkg/fees"
)

const (
	partnerID = "7d9f1c2e-0000-4000-8000-000000000001"
	payoutID  = "0b8c4a52-0000-4000-8000-000000000001"
)

var (
	fixedNow   = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	payoutRule = ratelimit.Rule{Class: ratelimit.ClassPayoutRequest, Requests: 5, Window: 24 * time.Hour}
	admitted   = ratelimit.Decision{Admitted: true, Limit: 5, Remaining: 4, ResetAt: fixedNow.Add(24 * time.Hour)}
)

type mocks struct {
	partners *MockPartnerRepo
	payouts  *MockPayoutRepo
	limiter  *MockLimiter
	gateway  *MockGateway
	notifier *MockNotifier
	queue    *MockTaskQueue
	tx       *pg.MockTXManager
}

func testConfig() Config {
	return Config{MinPayoutCents: 1000, Currency: "usd", PayoutRule: payoutRule}
}

func NewMock(t *testing.T, cfg Config) (*Service, *mocks) {
	ctrl := gomock.NewController(t)
	m := &mocks{
		partners: NewMockPartnerRepo(ctrl),
		payouts:  NewMockPayoutRepo(ctrl),
		limiter:  NewMockLimiter(ctrl),
		gateway:  NewMockGateway(ctrl),
		notifier: NewMockNotifier(ctrl),
		queue:    NewMockTaskQueue(ctrl),
		tx:       pg.NewMockTXManager(ctrl),
	}
	m.tx.EXPECT().Begin(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn pg.TransactionalFn) error { return fn(ctx) }).
		AnyTimes()

	calc, err := fees.NewCalculator("0.01", 25)
	require.NoError(t, err)

	svc := New(cfg, Deps{
		Partners:  m.partners,
		Payouts:   m.payouts,
		TxManager: m.tx,
		Limiter:   m.limiter,
		Fees:      calc,
		Gateway:   m.gateway,
		Notifier:  m.notifier,
		Queue:     m.queue,
	})
	svc.now = func() time.Time { return fixedNow }
	svc.newID = func() string { return payoutID }
	return svc, m
}

func partner(dest string) *domain.Partner {
	return &domain.Partner{ID: partnerID, Name: "Acme", Email: "acme@example.com", PayoutDestination: dest}
}

func payout(status domain.PayoutStatus, method domain.PaymentMethod) *domain.Payout {
	return &domain.Payout{
		ID:            payoutID,
		PartnerID:     partnerID,
		Status:        status,
		GrossAmount:   10000,
		PlatformFee:   100,
		GatewayFee:    25,
		NetAmount:     9875,
		Currency:      "usd",
		PaymentMethod: method,
		RequestedAt:   fixedNow,
		UpdatedAt:     fixedNow,
	}
}

// applyUpdate mimics the repository compare-and-set on top of base.
func applyUpdate(base *domain.Payout) func(context.Context, string, domain.PayoutUpdate, []domain.PayoutStatus) (*domain.Payout, error) {
	return func(_ context.Context, _ string, upd domain.PayoutUpdate, from []domain.PayoutStatus) (*domain.Payout, error) {
		if !statusIn(base.Status, from) {
			return nil, nil
		}
		p := *base
		if upd.Status != nil {
			p.Status = *upd.Status
		}
		if upd.ExternalTransactionID != nil {
			p.ExternalTransactionID = upd.ExternalTransactionID
		}
		if upd.GatewayTransferID != nil {
			p.GatewayTransferID = upd.GatewayTransferID
		}
		if upd.GatewayPayoutID != nil {
			p.GatewayPayoutID = upd.GatewayPayoutID
		}
		if upd.EstimatedArrival != nil {
			p.EstimatedArrival = upd.EstimatedArrival
		}
		if upd.FailureReason != nil {
			p.FailureReason = upd.FailureReason
		}
		if upd.ProcessedAt != nil {
			p.ProcessedAt = upd.ProcessedAt
		}
		if upd.CompletedAt != nil {
			p.CompletedAt = upd.CompletedAt
		}
		return &p, nil
	}
}

func TestService_RequestPayout(t *testing.T) {
	tests := []struct {
		name        string
		cfg         func(*Config)
		req         PayoutRequest
		prepareMock func(m *mocks)
		wantErr     error
		wantStatus  domain.PayoutStatus
	}{
		{
			name:    "Below minimum creates nothing",
			req:     PayoutRequest{PartnerID: partnerID, AmountCents: 500, Method: domain.MethodManual},
			wantErr: ErrBelowMinimum,
		},
		{
			name:    "Zero amount",
			req:     PayoutRequest{PartnerID: partnerID, AmountCents: 0, Method: domain.MethodManual},
			wantErr: ErrBelowMinimum,
		},
		{
			name:    "Unknown method",
			req:     PayoutRequest{PartnerID: partnerID, AmountCents: 10000, Method: "paypal"},
			wantErr: ErrInvalidMethod,
		},
		{
			name:    "Malformed partner id",
			req:     PayoutRequest{PartnerID: "42", AmountCents: 10000, Method: domain.MethodManual},
			wantErr: ErrPartnerNotFound,
		},
		{
			name: "Replayed idempotency key returns the original",
			req:  PayoutRequest{PartnerID: partnerID, AmountCents: 10000, Method: domain.MethodStripe, IdempotencyKey: "key-1"},
			prepareMock: func(m *mocks) {
				m.payouts.EXPECT().FindByIdempotencyKey(gomock.Any(), partnerID, "key-1").
					Return(payout(domain.PayoutProcessing, domain.MethodStripe), nil)
			},
			wantStatus: domain.PayoutProcessing,
		},
		{
			name: "Rate limited",
			req:  PayoutRequest{PartnerID: partnerID, AmountCents: 10000, Method: domain.MethodManual},
			prepareMock: func(m *mocks) {
				m.limiter.EXPECT().Check(gomock.Any(), partnerID, payoutRule).
					Return(ratelimit.Decision{Limit: 5, RetryAfter: 3 * time.Hour})
			},
			wantErr: ErrRateLimited,
		},
		{
			name: "Partner not found",
			req:  PayoutRequest{PartnerID: partnerID, AmountCents: 10000, Method: domain.MethodManual},
			prepareMock: func(m *mocks) {
				m.limiter.EXPECT().Check(gomock.Any(), partnerID, payoutRule).Return(admitted)
				m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(nil, nil)
			},
			wantErr: ErrPartnerNotFound,
		},
		{
			name: "Partner lookup fails",
			req:  PayoutRequest{PartnerID: partnerID, AmountCents: 10000, Method: domain.MethodManual},
			prepareMock: func(m *mocks) {
				m.limiter.EXPECT().Check(gomock.Any(), partnerID, payoutRule).Return(admitted)
				m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(nil, errors.New("connection reset"))
			},
			wantErr: ErrPersistence,
		},
		{
			name: "Card destination fails Luhn check",
			req:  PayoutRequest{PartnerID: partnerID, AmountCents: 10000, Method: domain.MethodCard},
			prepareMock: func(m *mocks) {
				m.limiter.EXPECT().Check(gomock.Any(), partnerID, payoutRule).Return(admitted)
				m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(partner("4242424242424241"), nil)
			},
			wantErr: ErrInvalidDestination,
		},
		{
			name: "Stripe payout advances and queues the transfer",
			req:  PayoutRequest{PartnerID: partnerID, AmountCents: 10000, Method: domain.MethodStripe},
			prepareMock: func(m *mocks) {
				m.limiter.EXPECT().Check(gomock.Any(), partnerID, payoutRule).Return(admitted)
				m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(partner("acct_123"), nil)
				m.payouts.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
				m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(), []domain.PayoutStatus{domain.PayoutPending}).
					DoAndReturn(applyUpdate(payout(domain.PayoutPending, domain.MethodStripe)))
				m.queue.EXPECT().AddTask(gomock.Any(), gomock.Any()).Return(nil)
				m.notifier.EXPECT().SendPayoutLifecycleNotice(gomock.Any(), gomock.Any()).
					Do(func(_ context.Context, n domain.LifecycleNotice) {
						assert.Equal(t, domain.PayoutProcessing, n.Status)
						assert.Equal(t, "acme@example.com", n.Partner.Email)
					})
			},
			wantStatus: domain.PayoutProcessing,
		},
		{
			name: "Manual payout waits for approval",
			req:  PayoutRequest{PartnerID: partnerID, AmountCents: 10000, Method: domain.MethodManual},
			prepareMock: func(m *mocks) {
				m.limiter.EXPECT().Check(gomock.Any(), partnerID, payoutRule).Return(admitted)
				m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(partner(""), nil)
				m.payouts.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
				m.notifier.EXPECT().SendPayoutLifecycleNotice(gomock.Any(), gomock.Any())
			},
			wantStatus: domain.PayoutPending,
		},
		{
			name: "Manual payout auto-processed when enabled",
			cfg:  func(c *Config) { c.AutoProcessManual = true },
			req:  PayoutRequest{PartnerID: partnerID, AmountCents: 10000, Method: domain.MethodCard},
			prepareMock: func(m *mocks) {
				m.limiter.EXPECT().Check(gomock.Any(), partnerID, payoutRule).Return(admitted)
				m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(partner("4242424242424242"), nil)
				m.payouts.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
				m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(), gomock.Any()).
					DoAndReturn(applyUpdate(payout(domain.PayoutPending, domain.MethodCard)))
				m.notifier.EXPECT().SendPayoutLifecycleNotice(gomock.Any(), gomock.Any())
			},
			wantStatus: domain.PayoutProcessing,
		},
		{
			name: "Advance failure leaves the payout pending",
			req:  PayoutRequest{PartnerID: partnerID, AmountCents: 10000, Method: domain.MethodStripe},
			prepareMock: func(m *mocks) {
				m.limiter.EXPECT().Check(gomock.Any(), partnerID, payoutRule).Return(admitted)
				m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(partner("acct_123"), nil)
				m.payouts.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
				m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(), gomock.Any()).
					Return(nil, errors.New("connection reset"))
				m.notifier.EXPECT().SendPayoutLifecycleNotice(gomock.Any(), gomock.Any())
			},
			wantStatus: domain.PayoutPending,
		},
		{
			name: "Insert fails",
			req:  PayoutRequest{PartnerID: partnerID, AmountCents: 10000, Method: domain.MethodManual},
			prepareMock: func(m *mocks) {
				m.limiter.EXPECT().Check(gomock.Any(), partnerID, payoutRule).Return(admitted)
				m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(partner(""), nil)
				m.payouts.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
			},
			wantErr: ErrPersistence,
		},
		{
			name: "Concurrent duplicate key resolves to the stored payout",
			req:  PayoutRequest{PartnerID: partnerID, AmountCents: 10000, Method: domain.MethodManual, IdempotencyKey: "key-1"},
			prepareMock: func(m *mocks) {
				gomock.InOrder(
					m.payouts.EXPECT().FindByIdempotencyKey(gomock.Any(), partnerID, "key-1").Return(nil, nil),
					m.payouts.EXPECT().FindByIdempotencyKey(gomock.Any(), partnerID, "key-1").
						Return(payout(domain.PayoutPending, domain.MethodManual), nil),
				)
				m.limiter.EXPECT().Check(gomock.Any(), partnerID, payoutRule).Return(admitted)
				m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(partner(""), nil)
				m.payouts.EXPECT().Create(gomock.Any(), gomock.Any()).Return(&pgconn.PgError{Code: "23505"})
			},
			wantStatus: domain.PayoutPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			svc, m := NewMock(t, cfg)
			if tt.prepareMock != nil {
				tt.prepareMock(m)
			}

			summary, err := svc.RequestPayout(context.Background(), tt.req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, summary)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, summary.Status)
			assert.Equal(t, payoutID, summary.ID)
		})
	}
}

func TestService_RequestPayout_FeeBreakdown(t *testing.T) {
	svc, m := NewMock(t, testConfig())

	var created *domain.Payout
	m.limiter.EXPECT().Check(gomock.Any(), partnerID, payoutRule).Return(admitted)
	m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(partner(""), nil)
	m.payouts.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p *domain.Payout) error {
			created = p
			return nil
		})
	m.notifier.EXPECT().SendPayoutLifecycleNotice(gomock.Any(), gomock.Any())

	summary, err := svc.RequestPayout(context.Background(),
		PayoutRequest{PartnerID: partnerID, AmountCents: 10000, Method: domain.MethodManual})
	require.NoError(t, err)

	assert.Equal(t, int64(10000), summary.GrossAmount)
	assert.Equal(t, int64(100), summary.PlatformFee)
	assert.Equal(t, int64(25), summary.GatewayFee)
	assert.Equal(t, int64(9875), summary.NetAmount)

	require.NotNil(t, created)
	assert.Equal(t, domain.PayoutPending, created.Status)
	assert.Equal(t, fixedNow, created.RequestedAt)
	assert.Nil(t, created.ExternalTransactionID)
	assert.Equal(t, created.GrossAmount, created.PlatformFee+created.GatewayFee+created.NetAmount)
}

func TestService_RequestPayout_NegativeNet(t *testing.T) {
	svc, m := NewMock(t, testConfig())
	ctrl := gomock.NewController(t)
	calc := NewMockFeeCalculator(ctrl)
	svc.fees = calc

	m.limiter.EXPECT().Check(gomock.Any(), partnerID, payoutRule).Return(admitted)
	m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(partner(""), nil)
	calc.EXPECT().Compute(int64(1000)).
		Return(domain.FeeBreakdown{GrossAmount: 1000, PlatformFee: 900, GatewayFee: 125, NetAmount: -25}, nil)

	_, err := svc.RequestPayout(context.Background(),
		PayoutRequest{PartnerID: partnerID, AmountCents: 1000, Method: domain.MethodManual})
	assert.ErrorIs(t, err, ErrBelowMinimum)
}

func TestService_RequestPayout_RateLimitError(t *testing.T) {
	svc, m := NewMock(t, testConfig())
	refused := ratelimit.Decision{Limit: 5, ResetAt: fixedNow.Add(time.Hour), RetryAfter: 90 * time.Minute}
	m.limiter.EXPECT().Check(gomock.Any(), partnerID, payoutRule).Return(refused)

	_, err := svc.RequestPayout(context.Background(),
		PayoutRequest{PartnerID: partnerID, AmountCents: 10000, Method: domain.MethodManual})

	var rlErr *RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, 5400, rlErr.Decision.RetryAfterSeconds())
	assert.Equal(t, "RATE_LIMITED", ErrorCode(err))
}

func TestService_RequestPayout_StripeDisabled(t *testing.T) {
	svc, _ := NewMock(t, testConfig())
	svc.gateway = nil

	_, err := svc.RequestPayout(context.Background(),
		PayoutRequest{PartnerID: partnerID, AmountCents: 10000, Method: domain.MethodStripe})
	assert.ErrorIs(t, err, ErrInvalidMethod)
}

// Six requests inside one day against a budget of five: the sixth is refused.
func TestService_RequestPayout_DailyBudget(t *testing.T) {
	svc, m := NewMock(t, testConfig())
	clock := fixedNow
	svc.limiter = ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.WithClock(func() time.Time { return clock }))

	m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(partner(""), nil).Times(5)
	m.payouts.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil).Times(5)
	m.notifier.EXPECT().SendPayoutLifecycleNotice(gomock.Any(), gomock.Any()).Times(5)

	req := PayoutRequest{PartnerID: partnerID, AmountCents: 10000, Method: domain.MethodManual}
	for i := 0; i < 5; i++ {
		clock = clock.Add(time.Hour)
		_, err := svc.RequestPayout(context.Background(), req)
		require.NoError(t, err, "request %d", i+1)
	}

	clock = clock.Add(time.Hour)
	_, err := svc.RequestPayout(context.Background(), req)

	var rlErr *RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, "RATE_LIMITED", ErrorCode(err))
	assert.Positive(t, rlErr.Decision.RetryAfterSeconds())
}

func TestService_CompletePayout(t *testing.T) {
	tests := []struct {
		name        string
		txnID       string
		prepareMock func(m *mocks)
		wantErr     error
		wantOutcome Outcome
	}{
		{
			name:  "Processing payout completes",
			txnID: "po_123",
			prepareMock: func(m *mocks) {
				current := payout(domain.PayoutProcessing, domain.MethodStripe)
				m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(current, nil)
				m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(), []domain.PayoutStatus{domain.PayoutProcessing}).
					DoAndReturn(func(ctx context.Context, id string, upd domain.PayoutUpdate, from []domain.PayoutStatus) (*domain.Payout, error) {
						assert.Equal(t, "po_123", *upd.ExternalTransactionID)
						assert.Equal(t, fixedNow, *upd.CompletedAt)
						return applyUpdate(current)(ctx, id, upd, from)
					})
				m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(partner("acct_123"), nil)
				m.notifier.EXPECT().SendPayoutLifecycleNotice(gomock.Any(), gomock.Any()).
					Do(func(_ context.Context, n domain.LifecycleNotice) {
						assert.Equal(t, domain.PayoutCompleted, n.Status)
						assert.Equal(t, "po_123", *n.Payout.ExternalTransactionID)
					})
			},
			wantOutcome: OutcomeApplied,
		},
		{
			name:  "Pending payout cannot skip processing",
			txnID: "po_123",
			prepareMock: func(m *mocks) {
				m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(payout(domain.PayoutPending, domain.MethodManual), nil)
			},
			wantErr: ErrInvalidStateTransition,
		},
		{
			name:  "Second completion is a no-op",
			txnID: "po_123",
			prepareMock: func(m *mocks) {
				done := payout(domain.PayoutCompleted, domain.MethodStripe)
				txn := "po_123"
				done.ExternalTransactionID = &txn
				m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(done, nil)
			},
			wantOutcome: OutcomeAlreadyTerminal,
		},
		{
			name:  "Failed payout is terminal",
			txnID: "po_123",
			prepareMock: func(m *mocks) {
				m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(payout(domain.PayoutFailed, domain.MethodStripe), nil)
			},
			wantOutcome: OutcomeAlreadyTerminal,
		},
		{
			name:    "Missing transaction id",
			txnID:   "  ",
			wantErr: ErrInvalidTransactionID,
		},
		{
			name:  "Unknown payout",
			txnID: "po_123",
			prepareMock: func(m *mocks) {
				m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(nil, nil)
			},
			wantErr: ErrPayoutNotFound,
		},
		{
			name:  "Lost race to a webhook",
			txnID: "po_123",
			prepareMock: func(m *mocks) {
				gomock.InOrder(
					m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(payout(domain.PayoutProcessing, domain.MethodStripe), nil),
					m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(), gomock.Any()).Return(nil, nil),
					m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(payout(domain.PayoutCompleted, domain.MethodStripe), nil),
				)
			},
			wantOutcome: OutcomeAlreadyTerminal,
		},
		{
			name:  "Update fails",
			txnID: "po_123",
			prepareMock: func(m *mocks) {
				m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(payout(domain.PayoutProcessing, domain.MethodStripe), nil)
				m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))
			},
			wantErr: ErrPersistence,
		},
		{
			name:  "Notice lookup failure does not undo completion",
			txnID: "po_123",
			prepareMock: func(m *mocks) {
				current := payout(domain.PayoutProcessing, domain.MethodStripe)
				m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(current, nil)
				m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(), gomock.Any()).DoAndReturn(applyUpdate(current))
				m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(nil, errors.New("timeout"))
			},
			wantOutcome: OutcomeApplied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := NewMock(t, testConfig())
			if tt.prepareMock != nil {
				tt.prepareMock(m)
			}

			res, err := svc.CompletePayout(context.Background(), payoutID, tt.txnID)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, res.Outcome)
		})
	}
}

func TestService_FailPayout(t *testing.T) {
	tests := []struct {
		name        string
		current     *domain.Payout
		prepareMock func(m *mocks, current *domain.Payout)
		wantOutcome Outcome
	}{
		{
			name:    "Processing payout fails with reason",
			current: payout(domain.PayoutProcessing, domain.MethodStripe),
			prepareMock: func(m *mocks, current *domain.Payout) {
				m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(),
					[]domain.PayoutStatus{domain.PayoutPending, domain.PayoutProcessing}).
					DoAndReturn(applyUpdate(current))
				m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(partner("acct_123"), nil)
				m.notifier.EXPECT().SendPayoutLifecycleNotice(gomock.Any(), gomock.Any()).
					Do(func(_ context.Context, n domain.LifecycleNotice) {
						assert.Equal(t, domain.PayoutFailed, n.Status)
						assert.Equal(t, "insufficient_funds", n.Extra["reason"])
					})
			},
			wantOutcome: OutcomeApplied,
		},
		{
			name:    "Pending payout fails",
			current: payout(domain.PayoutPending, domain.MethodManual),
			prepareMock: func(m *mocks, current *domain.Payout) {
				m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(), gomock.Any()).DoAndReturn(applyUpdate(current))
				m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(partner(""), nil)
				m.notifier.EXPECT().SendPayoutLifecycleNotice(gomock.Any(), gomock.Any())
			},
			wantOutcome: OutcomeApplied,
		},
		{
			name:        "Completed payout is left alone",
			current:     payout(domain.PayoutCompleted, domain.MethodStripe),
			wantOutcome: OutcomeAlreadyTerminal,
		},
		{
			name:        "Duplicate failure is a no-op",
			current:     payout(domain.PayoutFailed, domain.MethodStripe),
			wantOutcome: OutcomeAlreadyTerminal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := NewMock(t, testConfig())
			m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(tt.current, nil)
			if tt.prepareMock != nil {
				tt.prepareMock(m, tt.current)
			}

			res, err := svc.FailPayout(context.Background(), payoutID, "insufficient_funds")
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, res.Outcome)
			if tt.wantOutcome == OutcomeAlreadyTerminal {
				assert.Equal(t, tt.current.Status, res.Payout.Status)
			} else {
				assert.Equal(t, domain.PayoutFailed, res.Payout.Status)
				assert.Equal(t, "insufficient_funds", *res.Payout.FailureReason)
			}
		})
	}
}

func TestService_CancelPayout(t *testing.T) {
	svc, m := NewMock(t, testConfig())
	current := payout(domain.PayoutPending, domain.MethodManual)

	m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(current, nil)
	m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(), gomock.Any()).DoAndReturn(applyUpdate(current))
	m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(partner(""), nil)
	m.notifier.EXPECT().SendPayoutLifecycleNotice(gomock.Any(), gomock.Any())

	res, err := svc.CancelPayout(context.Background(), payoutID, "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, domain.PayoutCancelled, res.Payout.Status)
	assert.Equal(t, "unspecified", *res.Payout.FailureReason)
}

func TestService_ApprovePayout(t *testing.T) {
	t.Run("Pending gateway payout is approved and queued", func(t *testing.T) {
		svc, m := NewMock(t, testConfig())
		current := payout(domain.PayoutPending, domain.MethodStripe)

		m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(current, nil)
		m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(), []domain.PayoutStatus{domain.PayoutPending}).
			DoAndReturn(applyUpdate(current))
		m.queue.EXPECT().AddTask(gomock.Any(), gomock.Any()).Return(nil)
		m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(partner("acct_123"), nil)
		m.notifier.EXPECT().SendPayoutLifecycleNotice(gomock.Any(), gomock.Any())

		res, err := svc.ApprovePayout(context.Background(), payoutID)
		require.NoError(t, err)
		assert.Equal(t, domain.PayoutProcessing, res.Payout.Status)
		assert.Equal(t, fixedNow, *res.Payout.ProcessedAt)
	})

	t.Run("Processing payout cannot be approved again", func(t *testing.T) {
		svc, m := NewMock(t, testConfig())
		m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(payout(domain.PayoutProcessing, domain.MethodManual), nil)

		_, err := svc.ApprovePayout(context.Background(), payoutID)
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})

	t.Run("Malformed id", func(t *testing.T) {
		svc, _ := NewMock(t, testConfig())
		_, err := svc.ApprovePayout(context.Background(), "not-a-uuid")
		assert.ErrorIs(t, err, ErrPayoutNotFound)
	})
}

func TestService_InitiateTransfer(t *testing.T) {
	arrival := fixedNow.Add(48 * time.Hour)

	t.Run("Records gateway references", func(t *testing.T) {
		svc, m := NewMock(t, testConfig())
		current := payout(domain.PayoutProcessing, domain.MethodStripe)

		m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(current, nil)
		m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(partner("acct_123"), nil)
		m.gateway.EXPECT().CreateTransfer(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req gateway.TransferRequest) (*gateway.Transfer, error) {
				assert.Equal(t, "acct_123", req.Destination)
				assert.Equal(t, int64(9875), req.AmountCents)
				assert.Equal(t, "transfer-"+payoutID, req.IdempotencyKey)
				assert.Equal(t, payoutID, req.Metadata[gateway.MetadataPayoutIDKey])
				return &gateway.Transfer{ID: "tr_1"}, nil
			})
		gomock.InOrder(
			m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(), []domain.PayoutStatus{domain.PayoutProcessing}).
				DoAndReturn(func(ctx context.Context, id string, upd domain.PayoutUpdate, from []domain.PayoutStatus) (*domain.Payout, error) {
					assert.Nil(t, upd.Status)
					assert.Equal(t, "tr_1", *upd.GatewayTransferID)
					assert.Nil(t, upd.GatewayPayoutID)
					return applyUpdate(current)(ctx, id, upd, from)
				}),
			m.gateway.EXPECT().CreatePayout(gomock.Any(), gomock.Any()).
				Return(&gateway.PayoutReceipt{ID: "po_1", ArrivalDate: &arrival}, nil),
			m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(),
				[]domain.PayoutStatus{domain.PayoutProcessing, domain.PayoutCompleted}).
				DoAndReturn(func(ctx context.Context, id string, upd domain.PayoutUpdate, from []domain.PayoutStatus) (*domain.Payout, error) {
					assert.Nil(t, upd.Status)
					assert.Nil(t, upd.ExternalTransactionID)
					assert.Equal(t, "po_1", *upd.GatewayPayoutID)
					assert.Equal(t, arrival, *upd.EstimatedArrival)
					return applyUpdate(current)(ctx, id, upd, from)
				}),
		)

		require.NoError(t, svc.InitiateTransfer(context.Background(), payoutID))
	})

	t.Run("Payout step failure reverses the transfer", func(t *testing.T) {
		svc, m := NewMock(t, testConfig())
		current := payout(domain.PayoutProcessing, domain.MethodStripe)
		var stored *domain.Payout

		m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(current, nil)
		m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(partner("acct_123"), nil).Times(2)
		m.gateway.EXPECT().CreateTransfer(gomock.Any(), gomock.Any()).Return(&gateway.Transfer{ID: "tr_1"}, nil)
		gomock.InOrder(
			m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(), []domain.PayoutStatus{domain.PayoutProcessing}).
				DoAndReturn(func(ctx context.Context, id string, upd domain.PayoutUpdate, from []domain.PayoutStatus) (*domain.Payout, error) {
					p, err := applyUpdate(current)(ctx, id, upd, from)
					stored = p
					return p, err
				}),
			m.gateway.EXPECT().CreatePayout(gomock.Any(), gomock.Any()).
				Return(nil, &gateway.Error{Op: "payout", Reason: "account_closed", Err: errors.New("closed")}),
			m.gateway.EXPECT().ReverseTransfer(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, req gateway.ReversalRequest) error {
					assert.Equal(t, "tr_1", req.TransferID)
					assert.Equal(t, "reversal-"+payoutID, req.IdempotencyKey)
					return nil
				}),
			m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).
				DoAndReturn(func(context.Context, string) (*domain.Payout, error) { return stored, nil }),
			m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(), gomock.Any()).
				DoAndReturn(func(ctx context.Context, id string, upd domain.PayoutUpdate, from []domain.PayoutStatus) (*domain.Payout, error) {
					assert.Equal(t, domain.PayoutFailed, *upd.Status)
					assert.Equal(t, "account_closed", *upd.FailureReason)
					failed, err := applyUpdate(stored)(ctx, id, upd, from)
					require.NotNil(t, failed)
					assert.Equal(t, "tr_1", *failed.GatewayTransferID)
					return failed, err
				}),
		)
		m.notifier.EXPECT().SendPayoutLifecycleNotice(gomock.Any(), gomock.Any())

		err := svc.InitiateTransfer(context.Background(), payoutID)
		assert.ErrorIs(t, err, ErrGateway)
	})

	t.Run("Failed reversal keeps the payout processing", func(t *testing.T) {
		svc, m := NewMock(t, testConfig())
		current := payout(domain.PayoutProcessing, domain.MethodStripe)

		m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(current, nil)
		m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(partner("acct_123"), nil)
		m.gateway.EXPECT().CreateTransfer(gomock.Any(), gomock.Any()).Return(&gateway.Transfer{ID: "tr_1"}, nil)
		m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(), []domain.PayoutStatus{domain.PayoutProcessing}).
			DoAndReturn(applyUpdate(current))
		m.gateway.EXPECT().CreatePayout(gomock.Any(), gomock.Any()).
			Return(nil, &gateway.Error{Op: "payout", Reason: "api_error", Err: errors.New("timeout")})
		m.gateway.EXPECT().ReverseTransfer(gomock.Any(), gomock.Any()).
			Return(&gateway.Error{Op: "reversal", Reason: "api_error", Err: errors.New("timeout")})

		err := svc.InitiateTransfer(context.Background(), payoutID)
		assert.ErrorIs(t, err, ErrGateway)
	})

	t.Run("Recorded transfer is not repeated", func(t *testing.T) {
		svc, m := NewMock(t, testConfig())
		current := payout(domain.PayoutProcessing, domain.MethodStripe)
		tr := "tr_1"
		current.GatewayTransferID = &tr

		m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(current, nil)
		m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(partner("acct_123"), nil)
		m.gateway.EXPECT().CreatePayout(gomock.Any(), gomock.Any()).Return(&gateway.PayoutReceipt{ID: "po_1"}, nil)
		m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(),
			[]domain.PayoutStatus{domain.PayoutProcessing, domain.PayoutCompleted}).
			DoAndReturn(applyUpdate(current))

		require.NoError(t, svc.InitiateTransfer(context.Background(), payoutID))
	})

	t.Run("Transfer for a closed payout is reversed", func(t *testing.T) {
		svc, m := NewMock(t, testConfig())
		current := payout(domain.PayoutProcessing, domain.MethodStripe)

		m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(current, nil)
		m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(partner("acct_123"), nil)
		m.gateway.EXPECT().CreateTransfer(gomock.Any(), gomock.Any()).Return(&gateway.Transfer{ID: "tr_1"}, nil)
		m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(), []domain.PayoutStatus{domain.PayoutProcessing}).
			Return(nil, nil)
		m.gateway.EXPECT().ReverseTransfer(gomock.Any(), gomock.Any()).Return(nil)

		require.NoError(t, svc.InitiateTransfer(context.Background(), payoutID))
	})

	t.Run("References survive an early paid webhook", func(t *testing.T) {
		svc, m := NewMock(t, testConfig())
		current := payout(domain.PayoutProcessing, domain.MethodStripe)
		completed := payout(domain.PayoutCompleted, domain.MethodStripe)

		m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(current, nil)
		m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(partner("acct_123"), nil)
		m.gateway.EXPECT().CreateTransfer(gomock.Any(), gomock.Any()).Return(&gateway.Transfer{ID: "tr_1"}, nil)
		gomock.InOrder(
			m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(), []domain.PayoutStatus{domain.PayoutProcessing}).
				DoAndReturn(applyUpdate(current)),
			m.gateway.EXPECT().CreatePayout(gomock.Any(), gomock.Any()).
				Return(&gateway.PayoutReceipt{ID: "po_1", ArrivalDate: &arrival}, nil),
			m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(),
				[]domain.PayoutStatus{domain.PayoutProcessing, domain.PayoutCompleted}).
				DoAndReturn(func(ctx context.Context, id string, upd domain.PayoutUpdate, from []domain.PayoutStatus) (*domain.Payout, error) {
					p, err := applyUpdate(completed)(ctx, id, upd, from)
					require.NotNil(t, p)
					assert.Equal(t, domain.PayoutCompleted, p.Status)
					assert.Equal(t, "po_1", *p.GatewayPayoutID)
					return p, err
				}),
		)

		require.NoError(t, svc.InitiateTransfer(context.Background(), payoutID))
	})

	t.Run("Gateway refusal fails the payout", func(t *testing.T) {
		svc, m := NewMock(t, testConfig())
		current := payout(domain.PayoutProcessing, domain.MethodStripe)

		m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(current, nil).Times(2)
		m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(partner("acct_123"), nil).Times(2)
		m.gateway.EXPECT().CreateTransfer(gomock.Any(), gomock.Any()).
			Return(nil, &gateway.Error{Op: "transfer", Reason: "balance_insufficient", Err: errors.New("no funds")})
		m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, id string, upd domain.PayoutUpdate, from []domain.PayoutStatus) (*domain.Payout, error) {
				assert.Equal(t, domain.PayoutFailed, *upd.Status)
				assert.Equal(t, "balance_insufficient", *upd.FailureReason)
				return applyUpdate(current)(ctx, id, upd, from)
			})
		m.notifier.EXPECT().SendPayoutLifecycleNotice(gomock.Any(), gomock.Any())

		err := svc.InitiateTransfer(context.Background(), payoutID)
		assert.ErrorIs(t, err, ErrGateway)
		assert.Equal(t, "GATEWAY_ERROR", ErrorCode(err))
	})

	t.Run("Nothing to do for settled transfers", func(t *testing.T) {
		svc, m := NewMock(t, testConfig())
		done := payout(domain.PayoutProcessing, domain.MethodStripe)
		po := "po_1"
		done.GatewayPayoutID = &po
		m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(done, nil)

		require.NoError(t, svc.InitiateTransfer(context.Background(), payoutID))
	})

	t.Run("Manual payouts never reach the gateway", func(t *testing.T) {
		svc, m := NewMock(t, testConfig())
		m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(payout(domain.PayoutProcessing, domain.MethodManual), nil)

		require.NoError(t, svc.InitiateTransfer(context.Background(), payoutID))
	})
}

func TestService_ResumePayout(t *testing.T) {
	svc, m := NewMock(t, testConfig())
	pending := payout(domain.PayoutPending, domain.MethodStripe)
	processing := payout(domain.PayoutProcessing, domain.MethodStripe)

	gomock.InOrder(
		m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(pending, nil),
		m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(), []domain.PayoutStatus{domain.PayoutPending}).
			DoAndReturn(applyUpdate(pending)),
		m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(processing, nil),
		m.gateway.EXPECT().CreateTransfer(gomock.Any(), gomock.Any()).Return(&gateway.Transfer{ID: "tr_1"}, nil),
		m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(), []domain.PayoutStatus{domain.PayoutProcessing}).
			DoAndReturn(applyUpdate(processing)),
		m.gateway.EXPECT().CreatePayout(gomock.Any(), gomock.Any()).Return(&gateway.PayoutReceipt{ID: "po_1"}, nil),
		m.payouts.EXPECT().Update(gomock.Any(), payoutID, gomock.Any(),
			[]domain.PayoutStatus{domain.PayoutProcessing, domain.PayoutCompleted}).
			DoAndReturn(applyUpdate(processing)),
	)
	m.partners.EXPECT().FindByID(gomock.Any(), partnerID).Return(partner("acct_123"), nil).Times(2)
	m.notifier.EXPECT().SendPayoutLifecycleNotice(gomock.Any(), gomock.Any())

	require.NoError(t, svc.ResumePayout(context.Background(), payoutID))
}

func TestService_Queries(t *testing.T) {
	t.Run("Stats", func(t *testing.T) {
		svc, m := NewMock(t, testConfig())
		m.payouts.EXPECT().StatsByPartnerID(gomock.Any(), partnerID).
			Return(&domain.PayoutStats{TotalPaid: 9875, PayoutCount: 1}, nil)

		stats, err := svc.GetPartnerPayoutStats(context.Background(), partnerID)
		require.NoError(t, err)
		assert.Equal(t, int64(9875), stats.TotalPaid)
	})

	t.Run("List applies default page size", func(t *testing.T) {
		svc, m := NewMock(t, testConfig())
		m.payouts.EXPECT().FindByPartnerID(gomock.Any(), partnerID, domain.PayoutFilter{Limit: 50}).
			Return([]domain.Payout{*payout(domain.PayoutPending, domain.MethodManual)}, nil)

		list, err := svc.ListPayouts(context.Background(), partnerID, domain.PayoutFilter{Offset: -3})
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("List caps page size", func(t *testing.T) {
		svc, m := NewMock(t, testConfig())
		m.payouts.EXPECT().FindByPartnerID(gomock.Any(), partnerID, domain.PayoutFilter{Limit: 200}).Return(nil, nil)

		_, err := svc.ListPayouts(context.Background(), partnerID, domain.PayoutFilter{Limit: 5000})
		require.NoError(t, err)
	})

	t.Run("Foreign payout is not found", func(t *testing.T) {
		svc, m := NewMock(t, testConfig())
		foreign := payout(domain.PayoutPending, domain.MethodManual)
		foreign.PartnerID = "7d9f1c2e-0000-4000-8000-000000000099"
		m.payouts.EXPECT().FindByID(gomock.Any(), payoutID).Return(foreign, nil)

		_, err := svc.GetPayout(context.Background(), partnerID, payoutID)
		assert.ErrorIs(t, err, ErrPayoutNotFound)
	})

	t.Run("Stale payouts only cover gateway methods", func(t *testing.T) {
		svc, m := NewMock(t, testConfig())
		cutoff := fixedNow.Add(-5 * time.Minute)
		m.payouts.EXPECT().FindStale(gomock.Any(), cutoff, []domain.PaymentMethod{domain.MethodStripe}, 100).Return(nil, nil)

		_, err := svc.StalePayouts(context.Background(), cutoff, 100)
		require.NoError(t, err)
	})
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", ErrorCode(nil))
	assert.Equal(t, "BELOW_MINIMUM", ErrorCode(ErrBelowMinimum))
	assert.Equal(t, "INVALID_STATE_TRANSITION", ErrorCode(ErrInvalidStateTransition))
	assert.Equal(t, "PERSISTENCE_ERROR", ErrorCode(persistenceError(errors.New("x"))))
	assert.Equal(t, "RATE_LIMITED", ErrorCode(&RateLimitError{}))
	assert.Equal(t, "INTERNAL_ERROR", ErrorCode(errors.New("boom")))
}
