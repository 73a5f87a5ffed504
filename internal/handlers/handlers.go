package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	operatorhandlers "github.com/GlebRadaev/partnerpay/internal/handlers/operator"
	payoutshandlers "github.com/GlebRadaev/partnerpay/internal/handlers/payouts"
	webhookshandlers "github.com/GlebRadaev/partnerpay/internal/handlers/webhooks"
	"github.com/GlebRadaev/partnerpay/internal/ratelimit"
	"github.com/GlebRadaev/partnerpay/internal/service"
	"github.com/GlebRadaev/partnerpay/pkg/auth"
)

type PayoutHandler interface {
	RequestPayout(w http.ResponseWriter, r *http.Request)
	ListPayouts(w http.ResponseWriter, r *http.Request)
	GetStats(w http.ResponseWriter, r *http.Request)
	GetPayout(w http.ResponseWriter, r *http.Request)
}

type OperatorHandler interface {
	Approve(w http.ResponseWriter, r *http.Request)
	Complete(w http.ResponseWriter, r *http.Request)
	Fail(w http.ResponseWriter, r *http.Request)
	Cancel(w http.ResponseWriter, r *http.Request)
}

type WebhookHandler interface {
	Stripe(w http.ResponseWriter, r *http.Request)
}

type Handlers struct {
	PayoutHandler   PayoutHandler
	OperatorHandler OperatorHandler
	WebhookHandler  WebhookHandler

	tokens  auth.TokenValidator
	limiter *ratelimit.Limiter
	rules   ratelimit.Rules
}

// New builds the route handlers. A nil limiter turns rate limiting off.
func New(s *service.Services, tokens auth.TokenValidator, limiter *ratelimit.Limiter, rules ratelimit.Rules, webhookSecret string) *Handlers {
	if rules == nil {
		rules = ratelimit.DefaultRules()
	}
	return &Handlers{
		PayoutHandler:   payoutshandlers.New(s.Payouts),
		OperatorHandler: operatorhandlers.New(s.Operator),
		WebhookHandler:  webhookshandlers.New(s.Webhooks, webhookSecret),
		tokens:          tokens,
		limiter:         limiter,
		rules:           rules,
	}
}

func (h *Handlers) InitRoutes(r chi.Router) chi.Router {
	r.Use(
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
	)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/webhooks", func(r chi.Router) {
			r.Use(ratelimit.Middleware(h.limiter, h.rules.Get(ratelimit.ClassAuth)))
			r.Post("/stripe", h.WebhookHandler.Stripe)
		})

		r.Group(func(r chi.Router) {
			r.Use(ratelimit.Middleware(h.limiter, h.rules.Get(ratelimit.ClassAPI)))
			r.Use(auth.AuthMiddleware(h.tokens))

			r.Route("/partner/payouts", func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RolePartner))
				r.Post("/", h.PayoutHandler.RequestPayout)
				r.Get("/", h.PayoutHandler.ListPayouts)
				r.Get("/stats", h.PayoutHandler.GetStats)
				r.Get("/{id}", h.PayoutHandler.GetPayout)
			})

			r.Route("/operator/payouts/{id}", func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RoleOperator))
				r.Post("/approve", h.OperatorHandler.Approve)
				r.Post("/complete", h.OperatorHandler.Complete)
				r.Post("/fail", h.OperatorHandler.Fail)
				r.Post("/cancel", h.OperatorHandler.Cancel)
			})
		})
	})

	return r
}
