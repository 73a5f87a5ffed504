package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type TransactionalFn func(ctx context.Context) error

type TXManager interface {
	Begin(ctx context.Context, fn TransactionalFn) error
}

type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Options struct {
	MaxRetries int
	// MaxWait bounds acquiring a connection and opening the transaction.
	MaxWait time.Duration
	// Timeout bounds the unit of work and its commit.
	Timeout   time.Duration
	BaseDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxRetries: 3,
		MaxWait:    5 * time.Second,
		Timeout:    10 * time.Second,
		BaseDelay:  100 * time.Millisecond,
	}
}

type txManager struct {
	db   beginner
	opts Options
}

func NewTXManager(db beginner, opts Options) TXManager {
	def := DefaultOptions()
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = def.MaxRetries
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = def.MaxWait
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = def.BaseDelay
	}
	return &txManager{db: db, opts: opts}
}

// Begin runs fn in a transaction, retrying the whole unit of work on
// contention. A Begin nested in another joins the outer transaction.
func (m *txManager) Begin(ctx context.Context, fn TransactionalFn) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	return Retry(ctx, m.opts.MaxRetries, m.opts.BaseDelay, func(ctx context.Context) error {
		return m.run(ctx, fn)
	})
}

func (m *txManager) run(ctx context.Context, fn TransactionalFn) error {
	acquireCtx, cancelAcquire := context.WithTimeout(ctx, m.opts.MaxWait)
	defer cancelAcquire()

	tx, err := m.db.Begin(acquireCtx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txCtx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	if err := fn(withTx(txCtx, tx)); err != nil {
		if rbErr := tx.Rollback(context.Background()); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			zap.L().Error("failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(txCtx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
