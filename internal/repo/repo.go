package repo

import (
	"github.com/GlebRadaev/partnerpay/internal/pg"
	partnerrepo "github.com/GlebRadaev/partnerpay/internal/repo/partner-repo"
	payoutrepo "github.com/GlebRadaev/partnerpay/internal/repo/payout-repo"
	"github.com/GlebRadaev/partnerpay/internal/service/payoutservice"
)

type Repositories struct {
	PartnerRepo payoutservice.PartnerRepo
	PayoutRepo  payoutservice.PayoutRepo
}

func New(conn pg.Database) *Repositories {
	return &Repositories{
		PartnerRepo: partnerrepo.New(conn),
		PayoutRepo:  payoutrepo.New(conn),
	}
}
