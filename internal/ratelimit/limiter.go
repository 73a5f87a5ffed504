package ratelimit

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/GlebRadaev/partnerpay/internal/metrics"
)

const (
	ClassAPI           = "api"
	ClassAuth          = "auth"
	ClassPayoutRequest = "payout_request"
	ClassExport        = "export"
)

type Rule struct {
	Class    string
	Requests int
	Window   time.Duration
}

type Rules map[string]Rule

func DefaultRules() Rules {
	return Rules{
		ClassAPI:           {Class: ClassAPI, Requests: 100, Window: time.Minute},
		ClassAuth:          {Class: ClassAuth, Requests: 5, Window: time.Minute},
		ClassPayoutRequest: {Class: ClassPayoutRequest, Requests: 5, Window: 24 * time.Hour},
		ClassExport:        {Class: ClassExport, Requests: 10, Window: time.Hour},
	}
}

// Get falls back to the api class for unknown names.
func (r Rules) Get(class string) Rule {
	if rule, ok := r[class]; ok {
		return rule
	}
	return r[ClassAPI]
}

// Window is the state of one fixed window after a hit.
type Window struct {
	Count    int
	ResetAt  time.Time
	Admitted bool
}

// QuotaStore counts hits per key. Hit must compare and increment atomically:
// a hit on a full window is refused without being counted, and a hit at or
// after ResetAt opens a new window with a count of one.
type QuotaStore interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Window, error)
}

type Decision struct {
	Admitted   bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
	// Degraded is set when the store failed and the request was let through.
	Degraded bool
}

// RetryAfterSeconds is ceil(RetryAfter) in whole seconds, at least one for a refusal.
func (d Decision) RetryAfterSeconds() int {
	if d.Admitted {
		return 0
	}
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func Key(class, identifier string) string {
	return "ratelimit:" + class + ":" + identifier
}

type Limiter struct {
	store QuotaStore
	now   func() time.Time
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

func New(store QuotaStore, opts ...Option) *Limiter {
	l := &Limiter{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records a hit for identifier under rule's class. Store failures admit the request.
func (l *Limiter) Check(ctx context.Context, identifier string, rule Rule) Decision {
	now := l.now()

	w, err := l.store.Hit(ctx, Key(rule.Class, identifier), rule.Requests, rule.Window, now)
	if err != nil {
		zap.L().Warn("quota store unavailable, admitting request",
			zap.String("class", rule.Class),
			zap.String("identifier", identifier),
			zap.Error(err),
		)
		metrics.IncRateLimitStoreError(rule.Class)
		return Decision{
			Admitted:  true,
			Limit:     rule.Requests,
			Remaining: max(rule.Requests-1, 0),
			ResetAt:   now.Add(rule.Window),
			Degraded:  true,
		}
	}

	metrics.IncRateLimitDecision(rule.Class, w.Admitted)

	d := Decision{
		Admitted:  w.Admitted,
		Limit:     rule.Requests,
		Remaining: max(rule.Requests-w.Count, 0),
		ResetAt:   w.ResetAt,
	}
	if !w.Admitted {
		d.Remaining = 0
		d.RetryAfter = w.ResetAt.Sub(now)
	}
	return d
}
