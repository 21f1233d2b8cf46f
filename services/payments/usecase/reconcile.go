package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/piresc/topup/internal/pkg/logger"
	"github.com/piresc/topup/internal/pkg/models"
	"github.com/piresc/topup/services/payments"
)

const defaultReconcileBatch = 100

// ReconcileStale resolves transactions left pending, typically because the
// gateway was unreachable during initiation or the user never came back.
// Rows the gateway still cannot settle are expired once they are older than
// the stale window.
func (uc *paymentUC) ReconcileStale(ctx context.Context, now time.Time) (*models.ReconcileReport, error) {
	batch := uc.cfg.Payments.ReconcileBatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	candidatesBefore := now.Add(-uc.cfg.Payments.ReconcileAfter)
	expireBefore := now.Add(-uc.cfg.Payments.StaleAfter)

	candidates, err := uc.txRepo.ListStalePending(ctx, candidatesBefore, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale transactions: %w", err)
	}

	report := &models.ReconcileReport{Scanned: len(candidates)}
	for _, tx := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		uc.reconcileOne(ctx, tx, expireBefore, report)
	}

	logger.InfoCtx(ctx, "Reconciliation sweep finished",
		logger.Int("scanned", report.Scanned),
		logger.Int("succeeded", report.Succeeded),
		logger.Int("failed", report.Failed),
		logger.Int("expired", report.Expired),
		logger.Int("still_pending", report.StillPending),
		logger.Int("errors", report.Errors))

	return report, nil
}

func (uc *paymentUC) reconcileOne(ctx context.Context, tx *models.Transaction, expireBefore time.Time, report *models.ReconcileReport) {
	result, err := uc.Verify(ctx, tx.Reference, models.VerifySourceReconciler)
	switch {
	case err == nil && result.Outcome != models.VerifyOutcomePending:
		countOutcome(report, result.Outcome)
		return
	case err != nil && !errors.Is(err, payments.ErrGatewayRejected):
		report.Errors++
		logger.WarnCtx(ctx, "Skipping transaction during reconciliation",
			logger.Reference(tx.Reference),
			logger.Err(err))
		return
	}

	// The gateway reports the charge as unsettled or does not know it.
	if !tx.CreatedAt.Before(expireBefore) {
		report.StillPending++
		return
	}

	expired, err := uc.finalize(ctx, tx, models.TransactionStatusFailed, reasonPayload("expired", ""))
	if err != nil {
		report.Errors++
		logger.ErrorCtx(ctx, "Failed to expire stale transaction",
			logger.Reference(tx.Reference),
			logger.Err(err))
		return
	}
	if expired.AlreadyFinalized {
		countOutcome(report, expired.Outcome)
		return
	}

	report.Expired++
	logger.InfoCtx(ctx, "Stale transaction expired",
		logger.Reference(tx.Reference),
		logger.String("created_at", models.FormatTime(tx.CreatedAt)))
}

func countOutcome(report *models.ReconcileReport, outcome models.VerifyOutcome) {
	switch outcome {
	case models.VerifyOutcomeCredited:
		report.Succeeded++
	case models.VerifyOutcomeFailed:
		report.Failed++
	}
}
