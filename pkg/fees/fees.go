package fees

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/partnerpay/internal/domain"
)

var (
	ErrInvalidAmount = errors.New("gross amount must be positive")
	ErrInvalidRate   = errors.New("platform fee rate must be between 0 and 1")
)

// Calculator splits a gross payout into platform fee, gateway fee and net amount.
// All amounts are integer cents.
type Calculator struct {
	platformRate decimal.Decimal
	gatewayFee   int64
}

func NewCalculator(platformRate string, gatewayFeeCents int64) (*Calculator, error) {
	rate, err := decimal.NewFromString(platformRate)
	if err != nil {
		return nil, fmt.Errorf("parse platform fee rate %q: %w", platformRate, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, ErrInvalidRate
	}
	if gatewayFeeCents < 0 {
		return nil, fmt.Errorf("gateway fee must not be negative: %d", gatewayFeeCents)
	}
	return &Calculator{platformRate: rate, gatewayFee: gatewayFeeCents}, nil
}

// Compute rounds the platform fee half-up to whole cents; the net amount is
// the exact remainder and may be negative for very small amounts.
func (c *Calculator) Compute(grossCents int64) (domain.FeeBreakdown, error) {
	if grossCents <= 0 {
		return domain.FeeBreakdown{}, ErrInvalidAmount
	}

	platformFee := decimal.NewFromInt(grossCents).Mul(c.platformRate).Round(0).IntPart()

	return domain.FeeBreakdown{
		GrossAmount: grossCents,
		PlatformFee: platformFee,
		GatewayFee:  c.gatewayFee,
		NetAmount:   grossCents - platformFee - c.gatewayFee,
	}, nil
}
