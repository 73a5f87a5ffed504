package payoutservice

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GlebRadaev/partnerpay/internal/domain"
	"github.com/GlebRadaev/partnerpay/internal/gateway"
	"github.com/GlebRadaev/partnerpay/internal/pg"
)

// scheduleTransfer runs InitiateTransfer detached from the request context.
func (s *Service) scheduleTransfer(ctx context.Context, id string) {
	base := context.WithoutCancel(ctx)
	task := func() error {
		tctx, cancel := context.WithTimeout(base, s.cfg.TransferTimeout)
		defer cancel()
		return s.InitiateTransfer(tctx, id)
	}

	if s.queue == nil {
		if err := task(); err != nil {
			zap.L().Error("transfer failed", zap.String("payoutID", id), zap.Error(err))
		}
		return
	}
	if err := s.queue.AddTask(ctx, task); err != nil {
		zap.L().Warn("transfer not queued, recovery sweep will retry", zap.String("payoutID", id), zap.Error(err))
	}
}

// InitiateTransfer moves the net amount of a PROCESSING gateway payout to the
// partner and records the gateway references. The transfer id is stored as
// soon as the transfer exists, so a retry never transfers twice. When the
// payout step fails the transfer is reversed and the payout fails with the
// gateway's reason; if the reversal fails too the payout stays PROCESSING
// for the recovery sweep.
func (s *Service) InitiateTransfer(ctx context.Context, id string) error {
	if s.gateway == nil {
		return fmt.Errorf("%w: no gateway configured", ErrGateway)
	}

	p, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if p.Status != domain.PayoutProcessing || !p.PaymentMethod.UsesGateway() || p.GatewayPayoutID != nil {
		zap.L().Debug("transfer not needed",
			zap.String("payoutID", id),
			zap.String("status", string(p.Status)),
			zap.String("method", string(p.PaymentMethod)),
		)
		return nil
	}

	partner, err := s.partners.FindByID(ctx, p.PartnerID)
	if err != nil {
		return persistenceError(err)
	}
	if partner == nil {
		return ErrPartnerNotFound
	}

	metadata := map[string]string{
		gateway.MetadataPayoutIDKey:  p.ID,
		gateway.MetadataPartnerIDKey: p.PartnerID,
	}

	var transferID string
	if p.GatewayTransferID != nil {
		transferID = *p.GatewayTransferID
	} else {
		transfer, err := s.gateway.CreateTransfer(ctx, gateway.TransferRequest{
			Destination:    partner.PayoutDestination,
			AmountCents:    p.NetAmount,
			Currency:       p.Currency,
			IdempotencyKey: "transfer-" + p.ID,
			Metadata:       metadata,
		})
		if err != nil {
			return s.failFromGateway(ctx, p.ID, err)
		}
		transferID = transfer.ID

		recorded, err := s.recordReferences(ctx, p.ID, domain.PayoutUpdate{GatewayTransferID: &transferID},
			domain.PayoutProcessing)
		if err != nil {
			// The next attempt reuses the idempotency key and gets the same transfer back.
			zap.L().Error("failed to record transfer",
				zap.String("payoutID", p.ID),
				zap.String("transferID", transferID),
				zap.Error(err),
			)
			return persistenceError(err)
		}
		if recorded == nil {
			zap.L().Warn("payout left PROCESSING during transfer, reversing",
				zap.String("payoutID", p.ID),
				zap.String("transferID", transferID),
			)
			return s.reverseTransfer(ctx, p.ID, transferID, metadata)
		}
	}

	receipt, err := s.gateway.CreatePayout(ctx, gateway.PayoutRequest{
		Destination:    partner.PayoutDestination,
		AmountCents:    p.NetAmount,
		Currency:       p.Currency,
		IdempotencyKey: "payout-" + p.ID,
		Metadata:       metadata,
	})
	if err != nil {
		if revErr := s.reverseTransfer(ctx, p.ID, transferID, metadata); revErr != nil {
			zap.L().Error("payout kept PROCESSING, recovery sweep will retry",
				zap.String("payoutID", p.ID),
				zap.String("transferID", transferID),
				zap.Error(err),
			)
			return fmt.Errorf("%w: %w", revErr, err)
		}
		return s.failFromGateway(ctx, p.ID, err)
	}

	// A payout.paid webhook may complete the payout before we get here.
	updated, err := s.recordReferences(ctx, p.ID, domain.PayoutUpdate{
		GatewayPayoutID:  &receipt.ID,
		EstimatedArrival: receipt.ArrivalDate,
	}, domain.PayoutProcessing, domain.PayoutCompleted)
	if err != nil {
		zap.L().Error("failed to record gateway references",
			zap.String("payoutID", p.ID),
			zap.String("transferID", transferID),
			zap.String("gatewayPayoutID", receipt.ID),
			zap.Error(err),
		)
		return persistenceError(err)
	}
	if updated == nil {
		zap.L().Warn("payout closed during transfer", zap.String("payoutID", p.ID))
		return nil
	}

	zap.L().Info("transfer initiated",
		zap.String("payoutID", p.ID),
		zap.String("transferID", transferID),
		zap.String("gatewayPayoutID", receipt.ID),
	)
	return nil
}

func (s *Service) recordReferences(ctx context.Context, id string, upd domain.PayoutUpdate,
	allowedFrom ...domain.PayoutStatus) (*domain.Payout, error) {
	return pg.WithTransaction(ctx, s.txManager, func(ctx context.Context) (*domain.Payout, error) {
		return s.payouts.Update(ctx, id, upd, allowedFrom)
	})
}

func (s *Service) reverseTransfer(ctx context.Context, id, transferID string, metadata map[string]string) error {
	err := s.gateway.ReverseTransfer(ctx, gateway.ReversalRequest{
		TransferID:     transferID,
		IdempotencyKey: "reversal-" + id,
		Metadata:       metadata,
	})
	if err != nil {
		zap.L().Error("transfer reversal failed",
			zap.String("payoutID", id),
			zap.String("transferID", transferID),
			zap.String("reason", gateway.Reason(err)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", ErrGateway, err)
	}
	zap.L().Info("transfer reversed", zap.String("payoutID", id), zap.String("transferID", transferID))
	return nil
}

func (s *Service) failFromGateway(ctx context.Context, id string, gwErr error) error {
	reason := gateway.Reason(gwErr)
	zap.L().Error("gateway call failed", zap.String("payoutID", id), zap.String("reason", reason), zap.Error(gwErr))

	if _, err := s.FailPayout(ctx, id, reason); err != nil {
		zap.L().Error("failed to mark payout failed after gateway error", zap.String("payoutID", id), zap.Error(err))
	}
	return fmt.Errorf("%w: %w", ErrGateway, gwErr)
}

// StalePayouts lists PROCESSING or PENDING gateway payouts requested before
// olderThan that have no gateway payout yet.
func (s *Service) StalePayouts(ctx context.Context, olderThan time.Time, limit int) ([]domain.Payout, error) {
	payouts, err := s.payouts.FindStale(ctx, olderThan, []domain.PaymentMethod{domain.MethodStripe}, limit)
	if err != nil {
		return nil, persistenceError(err)
	}
	return payouts, nil
}

// ResumePayout picks up a gateway payout where a crash or a full queue left
// it: PENDING is advanced, a missing transfer or payout step is retried.
func (s *Service) ResumePayout(ctx context.Context, id string) error {
	p, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !p.PaymentMethod.UsesGateway() {
		return nil
	}

	if p.Status == domain.PayoutPending {
		processing, err := s.markProcessing(ctx, id)
		if err != nil {
			return err
		}
		if processing == nil {
			return nil
		}
		zap.L().Info("resumed pending payout", zap.String("payoutID", id))
		s.notify(ctx, nil, processing, nil)
		p = processing
	}

	if p.Status == domain.PayoutProcessing && p.GatewayPayoutID == nil {
		return s.InitiateTransfer(ctx, id)
	}
	return nil
}
