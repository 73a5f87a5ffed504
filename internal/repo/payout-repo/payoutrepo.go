package payoutrepo

import (
	"context"
	"errors"
	"time"

	"github.com/GlebRadaev/partnerpay/internal/domain"
	"github.com/GlebRadaev/partnerpay/internal/pg"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type Repository struct {
	db pg.Database
}

func New(db pg.Database) *Repository {
	return &Repository{db: db}
}

const payoutColumns = `id, partner_id, status, gross_amount, platform_fee, gateway_fee, net_amount, currency,
	payment_method, idempotency_key, external_transaction_id, gateway_transfer_id, gateway_payout_id,
	estimated_arrival, failure_reason, requested_at, processed_at, completed_at, updated_at`

const (
	createQuery = `
	INSERT INTO payouts (` + payoutColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
`
	// updateQuery is a compare-and-set: the row only changes while its
	// status is one of $10.
	updateQuery = `
	UPDATE payouts SET
		status = COALESCE($2, status),
		external_transaction_id = COALESCE($3, external_transaction_id),
		gateway_transfer_id = COALESCE($4, gateway_transfer_id),
		gateway_payout_id = COALESCE($5, gateway_payout_id),
		estimated_arrival = COALESCE($6, estimated_arrival),
		failure_reason = COALESCE($7, failure_reason),
		processed_at = COALESCE($8, processed_at),
		completed_at = COALESCE($9, completed_at),
		updated_at = now()
	WHERE id = $1 AND status = ANY($10)
	RETURNING ` + payoutColumns
	findByIDQuery = `
	SELECT ` + payoutColumns + `
	FROM payouts
	WHERE id = $1
`
	findByIdempotencyKeyQuery = `
	SELECT ` + payoutColumns + `
	FROM payouts
	WHERE partner_id = $1 AND idempotency_key = $2
`
	findByPartnerIDQuery = `
	SELECT ` + payoutColumns + `
	FROM payouts
	WHERE partner_id = $1 AND ($2::text IS NULL OR status = $2)
	ORDER BY requested_at DESC
	LIMIT $3 OFFSET $4
`
	statsQuery = `
	SELECT
		COALESCE(SUM(net_amount) FILTER (WHERE status = 'COMPLETED'), 0),
		COALESCE(SUM(net_amount) FILTER (WHERE status = 'PENDING'), 0),
		COALESCE(SUM(net_amount) FILTER (WHERE status = 'PROCESSING'), 0),
		COUNT(*),
		MAX(completed_at)
	FROM payouts
	WHERE partner_id = $1
`
	// findStaleQuery matches open payouts the gateway steps never finished.
	findStaleQuery = `
	SELECT ` + payoutColumns + `
	FROM payouts
	WHERE status IN ('PENDING', 'PROCESSING')
		AND gateway_payout_id IS NULL
		AND payment_method = ANY($2)
		AND requested_at < $1
	ORDER BY requested_at ASC
	LIMIT $3
`
)

func scanPayout(row pgx.Row) (*domain.Payout, error) {
	var (
		p      domain.Payout
		status string
		method string
	)
	err := row.Scan(
		&p.ID, &p.PartnerID, &status, &p.GrossAmount, &p.PlatformFee, &p.GatewayFee, &p.NetAmount, &p.Currency,
		&method, &p.IdempotencyKey, &p.ExternalTransactionID, &p.GatewayTransferID, &p.GatewayPayoutID,
		&p.EstimatedArrival, &p.FailureReason, &p.RequestedAt, &p.ProcessedAt, &p.CompletedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = domain.PayoutStatus(status)
	p.PaymentMethod = domain.PaymentMethod(method)
	return &p, nil
}

func (r *Repository) queryPayouts(ctx context.Context, query string, args ...any) ([]domain.Payout, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payouts []domain.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, *p)
	}
	return payouts, rows.Err()
}

func (r *Repository) Create(ctx context.Context, p *domain.Payout) error {
	_, err := r.db.Exec(ctx, createQuery,
		p.ID, p.PartnerID, string(p.Status), p.GrossAmount, p.PlatformFee, p.GatewayFee, p.NetAmount, p.Currency,
		string(p.PaymentMethod), p.IdempotencyKey, p.ExternalTransactionID, p.GatewayTransferID, p.GatewayPayoutID,
		p.EstimatedArrival, p.FailureReason, p.RequestedAt, p.ProcessedAt, p.CompletedAt, p.UpdatedAt,
	)
	if err != nil {
		zap.L().Error("can't create payout", zap.String("payoutID", p.ID), zap.Error(err))
		return err
	}
	return nil
}

// Update applies upd to the payout if its current status is in allowedFrom.
// It returns nil without error when no row matched.
func (r *Repository) Update(ctx context.Context, id string, upd domain.PayoutUpdate, allowedFrom []domain.PayoutStatus) (*domain.Payout, error) {
	var status *string
	if upd.Status != nil {
		s := string(*upd.Status)
		status = &s
	}
	from := make([]string, 0, len(allowedFrom))
	for _, s := range allowedFrom {
		from = append(from, string(s))
	}

	p, err := scanPayout(r.db.QueryRow(ctx, updateQuery,
		id, status, upd.ExternalTransactionID, upd.GatewayTransferID, upd.GatewayPayoutID,
		upd.EstimatedArrival, upd.FailureReason, upd.ProcessedAt, upd.CompletedAt, from,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		zap.L().Error("can't update payout", zap.String("payoutID", id), zap.Error(err))
		return nil, err
	}
	return p, nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (*domain.Payout, error) {
	p, err := scanPayout(r.db.QueryRow(ctx, findByIDQuery, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		zap.L().Error("can't find payout", zap.String("payoutID", id), zap.Error(err))
		return nil, err
	}
	return p, nil
}

func (r *Repository) FindByIdempotencyKey(ctx context.Context, partnerID, key string) (*domain.Payout, error) {
	p, err := scanPayout(r.db.QueryRow(ctx, findByIdempotencyKeyQuery, partnerID, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		zap.L().Error("can't find payout by idempotency key", zap.String("partnerID", partnerID), zap.Error(err))
		return nil, err
	}
	return p, nil
}

func (r *Repository) FindByPartnerID(ctx context.Context, partnerID string, filter domain.PayoutFilter) ([]domain.Payout, error) {
	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}
	payouts, err := r.queryPayouts(ctx, findByPartnerIDQuery, partnerID, status, filter.Limit, filter.Offset)
	if err != nil {
		zap.L().Error("can't get partner payouts", zap.String("partnerID", partnerID), zap.Error(err))
		return nil, err
	}
	return payouts, nil
}

func (r *Repository) StatsByPartnerID(ctx context.Context, partnerID string) (*domain.PayoutStats, error) {
	var stats domain.PayoutStats
	err := r.db.QueryRow(ctx, statsQuery, partnerID).
		Scan(&stats.TotalPaid, &stats.TotalPending, &stats.TotalProcessing, &stats.PayoutCount, &stats.LastPayoutDate)
	if err != nil {
		zap.L().Error("can't get partner payout stats", zap.String("partnerID", partnerID), zap.Error(err))
		return nil, err
	}
	return &stats, nil
}

// FindStale returns open payouts of the given methods requested before
// olderThan that still have no gateway payout, oldest first.
func (r *Repository) FindStale(ctx context.Context, olderThan time.Time, methods []domain.PaymentMethod, limit int) ([]domain.Payout, error) {
	ms := make([]string, 0, len(methods))
	for _, m := range methods {
		ms = append(ms, string(m))
	}
	payouts, err := r.queryPayouts(ctx, findStaleQuery, olderThan, ms, limit)
	if err != nil {
		zap.L().Error("can't get stale payouts", zap.Error(err))
		return nil, err
	}
	return payouts, nil
}
