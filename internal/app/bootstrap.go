package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/GlebRadaev/partnerpay/internal/config"
	"github.com/GlebRadaev/partnerpay/internal/dispatch"
	"github.com/GlebRadaev/partnerpay/internal/gateway"
	"github.com/GlebRadaev/partnerpay/internal/metrics"
	"github.com/GlebRadaev/partnerpay/internal/notify"
	"github.com/GlebRadaev/partnerpay/internal/pg"
	"github.com/GlebRadaev/partnerpay/internal/ratelimit"
	"github.com/GlebRadaev/partnerpay/internal/repo"
	"github.com/GlebRadaev/partnerpay/internal/service"
	"github.com/GlebRadaev/partnerpay/internal/service/payoutservice"
	"github.com/GlebRadaev/partnerpay/pkg/fees"
)

const (
	notifyTimeout   = 10 * time.Second
	janitorInterval = time.Minute
)

// Core is everything a process needs to run settlement operations: the
// HTTP server and payoutctl both build one.
type Core struct {
	Pool     *pgxpool.Pool
	Repos    *repo.Repositories
	Services *service.Services
	Limiter  *ratelimit.Limiter
	Rules    ratelimit.Rules
	Queue    *dispatch.WorkerPool

	closers []func()
}

// Build connects to Postgres, applies migrations and wires the engine.
// Optional integrations are skipped when their settings are empty.
func Build(ctx context.Context, cfg *config.Config) (*Core, error) {
	metrics.Init()

	rules, err := loadRules(cfg)
	if err != nil {
		return nil, err
	}
	calculator, err := fees.NewCalculator(cfg.PlatformFeeRate, cfg.GatewayFeeCents)
	if err != nil {
		return nil, fmt.Errorf("can't build fee calculator: %w", err)
	}

	pool, err := getPgxpool(ctx, cfg)
	if err != nil {
		zap.L().Error("build pgx pool failed: ", zap.Error(err))
		return nil, fmt.Errorf("can't build pgx pool: %w", err)
	}
	c := &Core{Pool: pool, Rules: rules}
	c.closers = append(c.closers, pool.Close)

	if err := pg.RunMigrations(ctx, pool); err != nil {
		zap.L().Error("migrations failed: ", zap.Error(err))
		c.Close()
		return nil, fmt.Errorf("can't run migrations: %w", err)
	}

	store, closeStore := newQuotaStore(ctx, cfg)
	c.closers = append(c.closers, closeStore)
	c.Limiter = ratelimit.New(store)

	channels, closeChannels, err := notifyChannels(cfg)
	if err != nil {
		c.Close()
		return nil, err
	}
	notifier := notify.NewDispatcher(cfg.NotifyWorkers, cfg.NotifyQueueSize, notifyTimeout, channels...)
	// Closers run in reverse: the notifier drains before its channels close.
	c.closers = append(c.closers, closeChannels, notifier.Close)

	c.Queue = dispatch.NewWorkerPool(cfg.TransferWorkers)
	c.closers = append(c.closers, c.Queue.Close)

	txManager := pg.NewTXManager(pool, pg.Options{
		MaxRetries: cfg.TxMaxRetries,
		MaxWait:    cfg.TxMaxWait,
		Timeout:    cfg.TxTimeout,
		BaseDelay:  cfg.TxBaseDelay,
	})
	c.Repos = repo.New(pg.New(pool))

	deps := payoutservice.Deps{
		TxManager: txManager,
		Limiter:   c.Limiter,
		Fees:      calculator,
		Notifier:  notifier,
		Queue:     c.Queue,
	}
	if cfg.StripeSecretKey != "" {
		deps.Gateway = gateway.NewStripe(cfg.StripeSecretKey)
	} else {
		zap.L().Warn("STRIPE_SECRET_KEY is empty, stripe payouts are disabled")
	}

	c.Services = service.New(payoutservice.Config{
		MinPayoutCents:    cfg.MinPayoutCents,
		Currency:          cfg.Currency,
		AutoProcessManual: cfg.AutoProcessManual,
		PayoutRule:        rules.Get(ratelimit.ClassPayoutRequest),
	}, c.Repos, deps)

	return c, nil
}

// Close releases resources in reverse order of acquisition. In-flight
// transfers and queued notices are drained first.
func (c *Core) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func getPgxpool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	cfgpool, err := pgxpool.ParseConfig(cfg.Database)
	if err != nil {
		return nil, err
	}
	dbpool, err := pgxpool.NewWithConfig(ctx, cfgpool)
	if err != nil {
		return nil, err
	}
	if err = dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, err
	}
	return dbpool, nil
}

func loadRules(cfg *config.Config) (ratelimit.Rules, error) {
	if cfg.RateLimitsFile == "" {
		return ratelimit.DefaultRules(), nil
	}
	rules, err := ratelimit.LoadRules(cfg.RateLimitsFile, ratelimit.DefaultRules())
	if err != nil {
		return nil, fmt.Errorf("can't load rate limits: %w", err)
	}
	return rules, nil
}

// newQuotaStore prefers Redis so that instances share windows. An
// unreachable Redis falls back to the in-process store.
func newQuotaStore(ctx context.Context, cfg *config.Config) (ratelimit.QuotaStore, func()) {
	if cfg.RedisAddress != "" {
		store, err := ratelimit.NewRedisStore(ctx, ratelimit.RedisConfig{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err == nil {
			zap.L().Info("rate limits stored in redis", zap.String("address", cfg.RedisAddress))
			return store, func() {
				if err := store.Close(); err != nil {
					zap.L().Warn("failed to close redis client", zap.Error(err))
				}
			}
		}
		zap.L().Warn("redis unavailable, rate limits are per instance", zap.Error(err))
	}

	store := ratelimit.NewMemoryStore()
	janitorCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	go store.RunJanitor(janitorCtx, janitorInterval)
	return store, cancel
}

func notifyChannels(cfg *config.Config) ([]notify.Channel, func(), error) {
	channels := []notify.Channel{notify.LogChannel{}}
	closeAll := func() {}

	if cfg.SendgridAPIKey != "" {
		channels = append(channels, notify.NewEmailChannel(cfg.SendgridAPIKey, cfg.SendgridFromEmail, cfg.SendgridFromName))
	}

	if cfg.NatsURL != "" {
		nc, err := notify.DialNATS(cfg.NatsURL)
		if err != nil {
			return nil, nil, fmt.Errorf("can't connect to nats: %w", err)
		}
		channels = append(channels, notify.NewEventChannel(nc, cfg.NatsSubject))
		closeAll = func() {
			if err := nc.Drain(); err != nil {
				zap.L().Warn("failed to drain nats connection", zap.Error(err))
			}
		}
	}

	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, ch.Name())
	}
	zap.L().Info("notification channels", zap.Strings("channels", names))

	return channels, closeAll, nil
}

// Migrate applies pending migrations and exits.
func Migrate(ctx context.Context, cfg *config.Config) error {
	pool, err := getPgxpool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("can't build pgx pool: %w", err)
	}
	defer pool.Close()

	if err := pg.RunMigrations(ctx, pool); err != nil {
		return fmt.Errorf("can't run migrations: %w", err)
	}
	return nil
}
