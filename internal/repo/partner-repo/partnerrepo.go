package partnerrepo

import (
	"context"
	"errors"

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

const findByIDQuery = `
	SELECT id, name, email, payout_destination, created_at
	FROM partners
	WHERE id = $1
`

func (r *Repository) FindByID(ctx context.Context, id string) (*domain.Partner, error) {
	var partner domain.Partner
	err := r.db.QueryRow(ctx, findByIDQuery, id).
		Scan(&partner.ID, &partner.Name, &partner.Email, &partner.PayoutDestination, &partner.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		zap.L().Error("can't find partner", zap.String("partnerID", id), zap.Error(err))
		return nil, err
	}
	return &partner, nil
}
