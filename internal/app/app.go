package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/GlebRadaev/partnerpay/internal/config"
	"github.com/GlebRadaev/partnerpay/internal/dispatch"
	"github.com/GlebRadaev/partnerpay/internal/handlers"
	"github.com/GlebRadaev/partnerpay/pkg/auth"
	"github.com/GlebRadaev/partnerpay/pkg/logger"
)

type ApplicationI interface {
	Start(ctx context.Context) error
	Wait(ctx context.Context, cancel context.CancelFunc) error
}

type Application struct {
	cfg      *config.Config
	core     *Core
	api      *handlers.Handlers
	recovery *dispatch.Service

	errCh chan error
	wg    sync.WaitGroup
	ready bool
}

func New() *Application {
	return &Application{
		errCh: make(chan error),
	}
}

func (a *Application) Start(ctx context.Context) error {
	cfg := config.New()

	err := logger.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("can't init logger: %w", err)
	}

	core, err := Build(ctx, cfg)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.core = core
	a.api = handlers.New(core.Services, auth.NewJWTService(cfg.JWTSecret), core.Limiter, core.Rules, cfg.StripeWebhookSecret)
	a.recovery = dispatch.New(core.Services.Engine, core.Queue, dispatch.Config{
		Interval:   cfg.RecoveryInterval,
		StaleAfter: cfg.RecoveryStaleAfter,
	})

	if err = a.startHTTPServer(ctx); err != nil {
		return fmt.Errorf("can't start http server: %w", err)
	}

	a.startRecovery(ctx)

	a.ready = true
	zap.L().Info("all systems started successfully")
	return nil
}

func (a *Application) startHTTPServer(ctx context.Context) error {
	router := chi.NewRouter()
	a.api.InitRoutes(router)
	server := http.Server{
		Addr:              a.cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-ctx.Done()

		sCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(sCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		zap.L().Info("starting http server on port", zap.String("port", a.cfg.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.errCh <- fmt.Errorf("http server exited with error: %w", err)
		}
	}()

	return nil
}

func (a *Application) startRecovery(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.recovery.Start(ctx)
	}()
}

func (a *Application) Wait(ctx context.Context, cancel context.CancelFunc) error {
	var appErr error

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		for err := range a.errCh {
			cancel()
			zap.L().Error(err.Error())
			appErr = err
		}
	}()

	<-ctx.Done()
	a.wg.Wait()
	close(a.errCh)
	wg.Wait()

	if a.core != nil {
		a.core.Close()
	}

	return appErr
}
