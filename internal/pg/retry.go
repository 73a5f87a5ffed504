package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/GlebRadaev/partnerpay/internal/metrics"
)

const (
	codeDeadlockDetected     = "40P01"
	codeSerializationFailure = "40001"
	codeUniqueViolation      = "23505"
)

// TxError is returned by Retry when the unit of work did not commit.
type TxError struct {
	Attempts  int
	Exhausted bool
	Err       error
}

func (e *TxError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("transaction failed after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("transaction failed: %v", e.Err)
}

func (e *TxError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err signals transient lock contention.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeDeadlockDetected || pgErr.Code == codeSerializationFailure
	}
	return strings.Contains(strings.ToLower(err.Error()), "deadlock")
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// Backoff returns the pause after the given 1-based failed attempt: 2^attempt * base.
func Backoff(attempt int, base time.Duration) time.Duration {
	return time.Duration(1<<uint(attempt)) * base
}

// Retry runs fn up to maxRetries times, pausing with Backoff between
// attempts that failed with a retryable error. Any other error stops the loop.
func Retry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(ctx context.Context) error) error {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			metrics.IncTxFailure("error")
			return &TxError{Attempts: attempt, Err: err}
		}
		if attempt == maxRetries {
			break
		}

		delay := Backoff(attempt, baseDelay)
		zap.L().Warn("transaction contention, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		metrics.IncTxRetry()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &TxError{Attempts: attempt, Err: ctx.Err()}
		case <-timer.C:
		}
	}

	metrics.IncTxFailure("exhausted")
	return &TxError{Attempts: maxRetries, Exhausted: true, Err: err}
}

// WithTransaction runs fn through m and returns its value once committed.
func WithTransaction[T any](ctx context.Context, m TXManager, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := m.Begin(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
