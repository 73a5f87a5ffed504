package payoutservice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GlebRadaev/partnerpay/internal/domain"
	"github.com/GlebRadaev/partnerpay/internal/gateway"
	"github.com/GlebRadaev/partnerpay/internal/metrics"
	"github.com/GlebRadaev/partnerpay/internal/pg"
	"github.com/GlebRadaev/partnerpay/internal/ratelimit"
	"github.com/GlebRadaev/partnerpay/pkg/validate"
)

type PartnerRepo interface {
	FindByID(ctx context.Context, id string) (*domain.Partner, error)
}

type PayoutRepo interface {
	Create(ctx context.Context, p *domain.Payout) error
	Update(ctx context.Context, id string, upd domain.PayoutUpdate, allowedFrom []domain.PayoutStatus) (*domain.Payout, error)
	FindByID(ctx context.Context, id string) (*domain.Payout, error)
	FindByIdempotencyKey(ctx context.Context, partnerID, key string) (*domain.Payout, error)
	FindByPartnerID(ctx context.Context, partnerID string, filter domain.PayoutFilter) ([]domain.Payout, error)
	StatsByPartnerID(ctx context.Context, partnerID string) (*domain.PayoutStats, error)
	FindStale(ctx context.Context, olderThan time.Time, methods []domain.PaymentMethod, limit int) ([]domain.Payout, error)
}

type Limiter interface {
	Check(ctx context.Context, identifier string, rule ratelimit.Rule) ratelimit.Decision
}

type Gateway interface {
	CreateTransfer(ctx context.Context, req gateway.TransferRequest) (*gateway.Transfer, error)
	CreatePayout(ctx context.Context, req gateway.PayoutRequest) (*gateway.PayoutReceipt, error)
	ReverseTransfer(ctx context.Context, req gateway.ReversalRequest) error
}

// Notifier must return promptly; delivery happens elsewhere.
type Notifier interface {
	SendPayoutLifecycleNotice(ctx context.Context, notice domain.LifecycleNotice)
}

type TaskQueue interface {
	AddTask(ctx context.Context, task func() error) error
}

type FeeCalculator interface {
	Compute(grossCents int64) (domain.FeeBreakdown, error)
}

const (
	defaultListLimit       = 50
	maxListLimit           = 200
	defaultTransferTimeout = 30 * time.Second
)

type Config struct {
	MinPayoutCents int64
	Currency       string
	// AutoProcessManual moves manual and card payouts to PROCESSING on
	// request. When false they wait in PENDING for ApprovePayout.
	AutoProcessManual bool
	PayoutRule        ratelimit.Rule
	TransferTimeout   time.Duration
}

// Deps are the collaborators of Service. Gateway and Queue may be nil:
// without a gateway the stripe method is refused, without a queue
// transfers run inline.
type Deps struct {
	Partners  PartnerRepo
	Payouts   PayoutRepo
	TxManager pg.TXManager
	Limiter   Limiter
	Fees      FeeCalculator
	Gateway   Gateway
	Notifier  Notifier
	Queue     TaskQueue
}

type Service struct {
	cfg       Config
	partners  PartnerRepo
	payouts   PayoutRepo
	txManager pg.TXManager
	limiter   Limiter
	fees      FeeCalculator
	gateway   Gateway
	notifier  Notifier
	queue     TaskQueue
	now       func() time.Time
	newID     func() string
}

func New(cfg Config, deps Deps) *Service {
	if cfg.TransferTimeout <= 0 {
		cfg.TransferTimeout = defaultTransferTimeout
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &Service{
		cfg:       cfg,
		partners:  deps.Partners,
		payouts:   deps.Payouts,
		txManager: deps.TxManager,
		limiter:   deps.Limiter,
		fees:      deps.Fees,
		gateway:   deps.Gateway,
		notifier:  deps.Notifier,
		queue:     deps.Queue,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

type PayoutRequest struct {
	PartnerID      string
	AmountCents    int64
	Method         domain.PaymentMethod
	IdempotencyKey string
}

type PayoutSummary struct {
	ID               string
	PartnerID        string
	GrossAmount      int64
	PlatformFee      int64
	GatewayFee       int64
	NetAmount        int64
	Currency         string
	Method           domain.PaymentMethod
	Status           domain.PayoutStatus
	RequestedAt      time.Time
	EstimatedArrival *time.Time
}

func summarize(p *domain.Payout) *PayoutSummary {
	return &PayoutSummary{
		ID:               p.ID,
		PartnerID:        p.PartnerID,
		GrossAmount:      p.GrossAmount,
		PlatformFee:      p.PlatformFee,
		GatewayFee:       p.GatewayFee,
		NetAmount:        p.NetAmount,
		Currency:         p.Currency,
		Method:           p.PaymentMethod,
		Status:           p.Status,
		RequestedAt:      p.RequestedAt,
		EstimatedArrival: p.EstimatedArrival,
	}
}

type Outcome string

const (
	OutcomeApplied         Outcome = "APPLIED"
	OutcomeAlreadyTerminal Outcome = "ALREADY_TERMINAL"
)

type TransitionResult struct {
	Outcome Outcome
	Payout  *domain.Payout
}

// RequestPayout validates, throttles, prices and records a payout, then
// advances it according to its method.
func (s *Service) RequestPayout(ctx context.Context, req PayoutRequest) (*PayoutSummary, error) {
	start := time.Now()
	summary, err := s.requestPayout(ctx, req)

	result := "ok"
	if err != nil {
		result = ErrorCode(err)
	}
	metrics.ObservePayoutRequest(result, time.Since(start))
	return summary, err
}

func (s *Service) requestPayout(ctx context.Context, req PayoutRequest) (*PayoutSummary, error) {
	if req.AmountCents <= 0 || req.AmountCents < s.cfg.MinPayoutCents {
		return nil, fmt.Errorf("%w: %d < %d", ErrBelowMinimum, req.AmountCents, s.cfg.MinPayoutCents)
	}
	if !req.Method.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, req.Method)
	}
	if req.Method.UsesGateway() && s.gateway == nil {
		return nil, fmt.Errorf("%w: %s payouts are not configured", ErrInvalidMethod, req.Method)
	}
	if _, err := uuid.Parse(req.PartnerID); err != nil {
		return nil, ErrPartnerNotFound
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" {
		existing, err := s.payouts.FindByIdempotencyKey(ctx, req.PartnerID, key)
		if err != nil {
			return nil, persistenceError(err)
		}
		if existing != nil {
			zap.L().Info("payout request replayed", zap.String("payoutID", existing.ID), zap.String("partnerID", req.PartnerID))
			return summarize(existing), nil
		}
	}

	decision := s.limiter.Check(ctx, req.PartnerID, s.cfg.PayoutRule)
	if !decision.Admitted {
		zap.L().Info("payout request rate limited",
			zap.String("partnerID", req.PartnerID),
			zap.Int("retryAfter", decision.RetryAfterSeconds()),
		)
		return nil, &RateLimitError{Decision: decision}
	}

	partner, err := s.partners.FindByID(ctx, req.PartnerID)
	if err != nil {
		return nil, persistenceError(err)
	}
	if partner == nil {
		return nil, ErrPartnerNotFound
	}
	if !validate.Destination(req.Method, partner.PayoutDestination) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDestination, req.Method)
	}

	fees, err := s.fees.Compute(req.AmountCents)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBelowMinimum, err)
	}
	if fees.NetAmount < 0 {
		return nil, fmt.Errorf("%w: fees exceed the amount", ErrBelowMinimum)
	}

	now := s.now().UTC()
	payout := &domain.Payout{
		ID:            s.newID(),
		PartnerID:     partner.ID,
		Status:        domain.PayoutPending,
		GrossAmount:   fees.GrossAmount,
		PlatformFee:   fees.PlatformFee,
		GatewayFee:    fees.GatewayFee,
		NetAmount:     fees.NetAmount,
		Currency:      s.cfg.Currency,
		PaymentMethod: req.Method,
		RequestedAt:   now,
		UpdatedAt:     now,
	}
	if key != "" {
		payout.IdempotencyKey = &key
	}

	_, err = pg.WithTransaction(ctx, s.txManager, func(ctx context.Context) (*domain.Payout, error) {
		if err := s.payouts.Create(ctx, payout); err != nil {
			return nil, err
		}
		return payout, nil
	})
	if err != nil {
		if key != "" && pg.IsUniqueViolation(err) {
			existing, ferr := s.payouts.FindByIdempotencyKey(ctx, req.PartnerID, key)
			if ferr == nil && existing != nil {
				return summarize(existing), nil
			}
		}
		zap.L().Error("failed to create payout", zap.String("partnerID", partner.ID), zap.Error(err))
		return nil, persistenceError(err)
	}
	metrics.IncPayoutTransition(string(domain.PayoutPending))
	zap.L().Info("payout created",
		zap.String("payoutID", payout.ID),
		zap.String("partnerID", partner.ID),
		zap.Int64("gross", payout.GrossAmount),
		zap.Int64("net", payout.NetAmount),
		zap.String("method", string(payout.PaymentMethod)),
	)

	if req.Method.UsesGateway() || s.cfg.AutoProcessManual {
		processing, err := s.markProcessing(ctx, payout.ID)
		switch {
		case err != nil:
			// The sweep or an operator moves it on later.
			zap.L().Error("failed to advance payout to processing", zap.String("payoutID", payout.ID), zap.Error(err))
		case processing != nil:
			payout = processing
			if payout.PaymentMethod.UsesGateway() {
				s.scheduleTransfer(ctx, payout.ID)
			}
		}
	}

	s.notify(ctx, partner, payout, nil)
	return summarize(payout), nil
}

// ApprovePayout moves a payout left in PENDING to PROCESSING.
func (s *Service) ApprovePayout(ctx context.Context, id string) (*TransitionResult, error) {
	now := s.now().UTC()
	processing := domain.PayoutProcessing
	res, err := s.apply(ctx, id, domain.PayoutUpdate{Status: &processing, ProcessedAt: &now}, domain.PayoutPending)
	if err != nil || res.Outcome != OutcomeApplied {
		return res, err
	}

	if res.Payout.PaymentMethod.UsesGateway() {
		s.scheduleTransfer(ctx, id)
	}
	s.notify(ctx, nil, res.Payout, nil)
	return res, nil
}

// CompletePayout records settlement of a PROCESSING payout. Repeating it on
// a terminal payout is a no-op reported as ALREADY_TERMINAL.
func (s *Service) CompletePayout(ctx context.Context, id, externalTransactionID string) (*TransitionResult, error) {
	externalTransactionID = strings.TrimSpace(externalTransactionID)
	if externalTransactionID == "" {
		return nil, ErrInvalidTransactionID
	}

	now := s.now().UTC()
	completed := domain.PayoutCompleted
	res, err := s.apply(ctx, id, domain.PayoutUpdate{
		Status:                &completed,
		ExternalTransactionID: &externalTransactionID,
		CompletedAt:           &now,
	}, domain.PayoutProcessing)
	if err != nil || res.Outcome != OutcomeApplied {
		return res, err
	}

	s.notify(ctx, nil, res.Payout, map[string]string{"external_transaction_id": externalTransactionID})
	return res, nil
}

func (s *Service) FailPayout(ctx context.Context, id, reason string) (*TransitionResult, error) {
	return s.closeOpen(ctx, id, domain.PayoutFailed, reason)
}

func (s *Service) CancelPayout(ctx context.Context, id, reason string) (*TransitionResult, error) {
	return s.closeOpen(ctx, id, domain.PayoutCancelled, reason)
}

func (s *Service) closeOpen(ctx context.Context, id string, to domain.PayoutStatus, reason string) (*TransitionResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unspecified"
	}

	res, err := s.apply(ctx, id, domain.PayoutUpdate{Status: &to, FailureReason: &reason},
		domain.PayoutPending, domain.PayoutProcessing)
	if err != nil || res.Outcome != OutcomeApplied {
		return res, err
	}

	s.notify(ctx, nil, res.Payout, map[string]string{"reason": reason})
	return res, nil
}

// apply performs a compare-and-set transition from one of from. A terminal
// payout yields ALREADY_TERMINAL without touching the row.
func (s *Service) apply(ctx context.Context, id string, upd domain.PayoutUpdate, from ...domain.PayoutStatus) (*TransitionResult, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		zap.L().Info("payout already terminal",
			zap.String("payoutID", id),
			zap.String("status", string(current.Status)),
			zap.String("requested", string(*upd.Status)),
		)
		return &TransitionResult{Outcome: OutcomeAlreadyTerminal, Payout: current}, nil
	}
	if !statusIn(current.Status, from) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, current.Status, *upd.Status)
	}

	updated, err := pg.WithTransaction(ctx, s.txManager, func(ctx context.Context) (*domain.Payout, error) {
		return s.payouts.Update(ctx, id, upd, from)
	})
	if err != nil {
		zap.L().Error("failed to update payout", zap.String("payoutID", id), zap.Error(err))
		return nil, persistenceError(err)
	}
	if updated == nil {
		// Lost a race with another transition; report what won.
		latest, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if latest.Status.IsTerminal() {
			return &TransitionResult{Outcome: OutcomeAlreadyTerminal, Payout: latest}, nil
		}
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, latest.Status, *upd.Status)
	}

	metrics.IncPayoutTransition(string(updated.Status))
	zap.L().Info("payout transitioned",
		zap.String("payoutID", id),
		zap.String("from", string(current.Status)),
		zap.String("to", string(updated.Status)),
	)
	return &TransitionResult{Outcome: OutcomeApplied, Payout: updated}, nil
}

// markProcessing returns nil when the payout has already left PENDING.
func (s *Service) markProcessing(ctx context.Context, id string) (*domain.Payout, error) {
	now := s.now().UTC()
	processing := domain.PayoutProcessing
	updated, err := pg.WithTransaction(ctx, s.txManager, func(ctx context.Context) (*domain.Payout, error) {
		return s.payouts.Update(ctx, id, domain.PayoutUpdate{Status: &processing, ProcessedAt: &now},
			[]domain.PayoutStatus{domain.PayoutPending})
	})
	if err != nil {
		return nil, persistenceError(err)
	}
	if updated != nil {
		metrics.IncPayoutTransition(string(domain.PayoutProcessing))
	}
	return updated, nil
}

func (s *Service) load(ctx context.Context, id string) (*domain.Payout, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrPayoutNotFound
	}
	p, err := s.payouts.FindByID(ctx, id)
	if err != nil {
		return nil, persistenceError(err)
	}
	if p == nil {
		return nil, ErrPayoutNotFound
	}
	return p, nil
}

func statusIn(s domain.PayoutStatus, set []domain.PayoutStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// notify hands the notice to the notifier. Lookup failures are logged and
// never reach the caller.
func (s *Service) notify(ctx context.Context, partner *domain.Partner, p *domain.Payout, extra map[string]string) {
	if s.notifier == nil {
		return
	}
	if partner == nil {
		found, err := s.partners.FindByID(ctx, p.PartnerID)
		if err != nil || found == nil {
			zap.L().Error("skipping payout notice, partner lookup failed",
				zap.String("payoutID", p.ID),
				zap.String("partnerID", p.PartnerID),
				zap.Error(err),
			)
			return
		}
		partner = found
	}

	s.notifier.SendPayoutLifecycleNotice(ctx, domain.LifecycleNotice{
		Partner: *partner,
		Payout:  *p,
		Status:  p.Status,
		Extra:   extra,
	})
}

func (s *Service) GetPartnerPayoutStats(ctx context.Context, partnerID string) (*domain.PayoutStats, error) {
	if _, err := uuid.Parse(partnerID); err != nil {
		return nil, ErrPartnerNotFound
	}
	stats, err := s.payouts.StatsByPartnerID(ctx, partnerID)
	if err != nil {
		return nil, persistenceError(err)
	}
	return stats, nil
}

func (s *Service) ListPayouts(ctx context.Context, partnerID string, filter domain.PayoutFilter) ([]domain.Payout, error) {
	if _, err := uuid.Parse(partnerID); err != nil {
		return nil, ErrPartnerNotFound
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	payouts, err := s.payouts.FindByPartnerID(ctx, partnerID, filter)
	if err != nil {
		return nil, persistenceError(err)
	}
	return payouts, nil
}

// GetPayout hides payouts owned by other partners behind ErrPayoutNotFound.
func (s *Service) GetPayout(ctx context.Context, partnerID, id string) (*domain.Payout, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.PartnerID != partnerID {
		return nil, ErrPayoutNotFound
	}
	return p, nil
}
