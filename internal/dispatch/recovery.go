package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GlebRadaev/partnerpay/internal/domain"
)

const defaultBatch = 100

type Engine interface {
	StalePayouts(ctx context.Context, olderThan time.Time, limit int) ([]domain.Payout, error)
	ResumePayout(ctx context.Context, id string) error
}

type WorkerPoolI interface {
	AddTask(ctx context.Context, task Task) error
	Close()
}

type Config struct {
	Interval   time.Duration
	StaleAfter time.Duration
	Batch      int
}

// Service periodically resumes gateway payouts whose transfer was lost to a
// crash or a full queue.
type Service struct {
	engine     Engine
	workerPool WorkerPoolI
	interval   time.Duration
	staleAfter time.Duration
	limit      int
	now        func() time.Time
	inFlight   sync.Map
}

func New(engine Engine, workerPool WorkerPoolI, cfg Config) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Minute
	}
	if cfg.Batch <= 0 {
		cfg.Batch = defaultBatch
	}
	return &Service{
		engine:     engine,
		workerPool: workerPool,
		interval:   cfg.Interval,
		staleAfter: cfg.StaleAfter,
		limit:      cfg.Batch,
		now:        time.Now,
	}
}

func (s *Service) Start(ctx context.Context) {
	zap.L().Info("Recovery sweep started", zap.Duration("interval", s.interval), zap.Duration("staleAfter", s.staleAfter))
	go s.run(ctx)
}

func (s *Service) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("Context canceled, stopping recovery sweep")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	payouts, err := s.engine.StalePayouts(ctx, s.now().Add(-s.staleAfter), s.limit)
	if err != nil {
		zap.L().Error("Failed to fetch stale payouts", zap.Error(err))
		return
	}
	if len(payouts) == 0 {
		return
	}
	zap.L().Info("Resuming stale payouts", zap.Int("count", len(payouts)))

	var g errgroup.Group
	for _, p := range payouts {
		id := p.ID

		if _, loaded := s.inFlight.LoadOrStore(id, struct{}{}); loaded {
			continue
		}

		g.Go(func() error {
			err := s.workerPool.AddTask(ctx, func() error {
				defer s.inFlight.Delete(id)
				return s.engine.ResumePayout(ctx, id)
			})
			if err != nil {
				s.inFlight.Delete(id)
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		zap.L().Error("Error queueing stale payouts", zap.Error(err))
	}
}
