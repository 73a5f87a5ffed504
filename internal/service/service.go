package service

import (
	"github.com/GlebRadaev/partnerpay/internal/handlers/operator"
	"github.com/GlebRadaev/partnerpay/internal/handlers/payouts"
	"github.com/GlebRadaev/partnerpay/internal/handlers/webhooks"
	"github.com/GlebRadaev/partnerpay/internal/repo"
	"github.com/GlebRadaev/partnerpay/internal/service/payoutservice"
)

type Services struct {
	Payouts  payouts.Service
	Operator operator.Service
	Webhooks webhooks.Service
	// Engine is the settlement engine behind all three, used directly by
	// the recovery sweep.
	Engine *payoutservice.Service
}

// New binds the repositories into deps and builds the settlement engine.
func New(cfg payoutservice.Config, repos *repo.Repositories, deps payoutservice.Deps) *Services {
	deps.Partners = repos.PartnerRepo
	deps.Payouts = repos.PayoutRepo
	engine := payoutservice.New(cfg, deps)

	return &Services{
		Payouts:  engine,
		Operator: engine,
		Webhooks: engine,
		Engine:   engine,
	}
}
