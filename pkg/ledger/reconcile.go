package ledger

import (
	"context"
	"fmt"
	"time"
)

// Reconcile asks the settlement leg about transfers pending for longer than olderThan
// and completes or releases those with a definite answer. Unknown answers stay pending.
func (service *Service) Reconcile(ctx context.Context, olderThan time.Duration, limit int) (ReconcileReport, error) {
	startedAt := time.Now()
	report, err := service.reconcile(ctx, olderThan, limit)
	service.logOperation(ctx, OperationLog{
		Operation: operationReconcile,
		Code:      fmt.Sprintf("examined=%d completed=%d failed=%d unknown=%d errors=%d", report.Examined, report.Completed, report.Failed, report.Unknown, report.Errors),
		Duration:  time.Since(startedAt),
		Error:     err,
	})
	return report, err
}

func (service *Service) reconcile(ctx context.Context, olderThan time.Duration, limit int) (ReconcileReport, error) {
	if olderThan < 0 {
		return ReconcileReport{}, fmt.Errorf("%w: negative age", ErrInvalidServiceConfig)
	}
	if limit <= 0 {
		return ReconcileReport{}, fmt.Errorf("%w: limit must be positive", ErrInvalidServiceConfig)
	}
	cutoff := service.nowFn() - int64(olderThan/time.Second)
	pending, err := service.store.ListPendingTransactions(ctx, cutoff, limit)
	if err != nil {
		return ReconcileReport{}, err
	}
	report := ReconcileReport{}
	for _, transaction := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Examined++
		response, err := service.settlementStatus(ctx, transaction)
		if err != nil {
			report.Unknown++
			continue
		}
		result, err := service.applySettlement(ctx, transaction, response, ActorReconciler)
		if err != nil {
			report.Errors++
			continue
		}
		switch result.(type) {
		case TransferCompleted:
			report.Completed++
		case TransferFailed:
			report.Failed++
		default:
			report.Unknown++
		}
	}
	return report, nil
}

func (service *Service) settlementStatus(ctx context.Context, transaction Transaction) (SettlementResponse, error) {
	if transaction.Recipient.Internal() {
		return SettlementResponse{Outcome: SettlementSucceeded}, nil
	}
	statusCtx, cancel := context.WithTimeout(ctx, service.settlementTimeout)
	defer cancel()
	return service.settlement.Status(statusCtx, transaction.TenantID, transaction.ID)
}
