package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Release compensates a transfer whose settlement failed.
//
// A pending transfer is released only after the settlement leg reports a definite failure;
// its reservation goes back to the available balance and it is marked failed. Any other
// answer leaves it pending and returns ErrSettlementUnconfirmed.
// A completed transfer gets a linked reversal record that credits balance and available balance
// back, and is marked failed. A failed or already reversed transfer is left untouched, so
// repeated calls are no-ops.
func (service *Service) Release(ctx context.Context, tenantID TenantID, transactionID TransactionID, reason string, actor string) (ReleaseOutcome, error) {
	original, err := service.store.GetTransaction(ctx, tenantID, transactionID)
	if err != nil {
		return "", err
	}
	if original.Kind == TransactionKindTransfer && original.Status == TransactionStatusPending {
		if err := service.confirmSettlementFailure(ctx, original); err != nil {
			return "", err
		}
	}
	_, outcome, err := service.release(ctx, tenantID, transactionID, reason, actor)
	return outcome, err
}

// confirmSettlementFailure asks the leg about a pending transfer before its funds are returned.
func (service *Service) confirmSettlementFailure(ctx context.Context, transaction Transaction) error {
	response, err := service.settlementStatus(ctx, transaction)
	if err != nil {
		return fmt.Errorf("%w: %s: status query: %v", ErrSettlementUnconfirmed, transaction.ID.String(), err)
	}
	if response.Outcome != SettlementFailed {
		outcome := response.Outcome
		if outcome == "" {
			outcome = SettlementUnknown
		}
		return fmt.Errorf("%w: %s: leg reports %s", ErrSettlementUnconfirmed, transaction.ID.String(), outcome)
	}
	return nil
}

func (service *Service) release(ctx context.Context, tenantID TenantID, transactionID TransactionID, reason string, actor string) (Transaction, ReleaseOutcome, error) {
	startedAt := time.Now()
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "released"
	}
	if strings.TrimSpace(actor) == "" {
		actor = ActorOperator
	}
	original, err := service.store.GetTransaction(ctx, tenantID, transactionID)
	if err != nil {
		return Transaction{}, "", err
	}
	if original.Kind != TransactionKindTransfer {
		return Transaction{}, "", fmt.Errorf("%w: %s is a %s", ErrInvalidTransactionKind, transactionID.String(), original.Kind)
	}

	var updated Transaction
	var reversal Transaction
	var outcome ReleaseOutcome
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		wallet, err := txStore.GetWalletForUpdate(ctx, tenantID, original.WalletID)
		if err != nil {
			return err
		}
		current, err := txStore.GetTransaction(ctx, tenantID, transactionID)
		if err != nil {
			return err
		}
		updated = current
		nowUnixUTC := service.nowFn()
		switch current.Status {
		case TransactionStatusFailed:
			outcome = ReleaseOutcomeAlreadySettled
			return nil
		case TransactionStatusPending:
			wallet.AvailableBalance += current.Total()
			outcome = ReleaseOutcomeReleased
		case TransactionStatusCompleted:
			if current.Recipient.Internal() {
				return fmt.Errorf("%w: %s", ErrReversalUnsupported, current.ID.String())
			}
			if _, err := txStore.FindReversal(ctx, tenantID, current.ID); err == nil {
				outcome = ReleaseOutcomeAlreadySettled
				return nil
			} else if !errors.Is(err, ErrTransactionNotFound) {
				return err
			}
			wallet.Balance += current.Total()
			wallet.AvailableBalance += current.Total()
			reversal, err = service.newReversal(current, reason, actor, nowUnixUTC)
			if err != nil {
				return err
			}
			outcome = ReleaseOutcomeReversed
		default:
			return invariantError("transaction", "transaction %s has unknown status %q", current.ID.String(), current.Status)
		}
		wallet.UpdatedUnixUTC = nowUnixUTC
		if err := wallet.checkInvariant(); err != nil {
			return err
		}
		if err := txStore.UpdateWalletBalances(ctx, wallet); err != nil {
			return err
		}
		if outcome == ReleaseOutcomeReversed {
			if err := txStore.InsertTransaction(ctx, reversal); err != nil {
				return err
			}
		}
		entry := StatusLogEntry{
			Status:    TransactionStatusFailed,
			Actor:     actor,
			Message:   reason,
			AtUnixUTC: nowUnixUTC,
		}
		if err := txStore.UpdateTransactionStatus(ctx, StatusUpdate{
			TenantID:      tenantID,
			TransactionID: current.ID,
			From:          current.Status,
			To:            TransactionStatusFailed,
			FailureReason: reason,
			Entry:         entry,
		}); err != nil {
			return err
		}
		updated.Status = TransactionStatusFailed
		updated.FailureReason = reason
		updated.UpdatedUnixUTC = nowUnixUTC
		updated.Log = append(updated.Log, entry)
		return nil
	})
	if operationError == nil && outcome == ReleaseOutcomeAlreadySettled {
		return updated, outcome, nil
	}
	service.logOperation(ctx, OperationLog{
		Operation:     operationReleaseTransfer,
		TenantID:      tenantID,
		UserID:        original.UserID,
		WalletID:      original.WalletID,
		TransactionID: transactionID,
		Reference:     original.Reference,
		Amount:        original.Amount,
		Fee:           original.Fee,
		Code:          string(outcome),
		Duration:      time.Since(startedAt),
		Error:         operationError,
	})
	if operationError != nil {
		return Transaction{}, "", operationError
	}
	service.publish(EventTransferFailed, updated)
	if outcome == ReleaseOutcomeReversed {
		service.publish(EventTransferReversed, reversal)
	}
	return updated, outcome, nil
}

func (service *Service) newReversal(original Transaction, reason string, actor string, nowUnixUTC int64) (Transaction, error) {
	reversalID, err := NewTransactionID(service.newID())
	if err != nil {
		return Transaction{}, err
	}
	reference, err := deriveReference(original.Reference, referenceSuffixReversal)
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{
		ID:               reversalID,
		TenantID:         original.TenantID,
		Reference:        reference,
		SessionID:        original.SessionID,
		WalletID:         original.WalletID,
		UserID:           original.UserID,
		Kind:             TransactionKindReversal,
		Recipient:        original.Recipient,
		Amount:           original.Amount,
		Fee:              original.Fee,
		Currency:         original.Currency,
		Narration:        truncateRunes("Reversal: "+original.Narration, maxNarrationLength),
		Status:           TransactionStatusCompleted,
		FailureReason:    reason,
		ReversalOf:       original.ID,
		CreatedUnixUTC:   nowUnixUTC,
		UpdatedUnixUTC:   nowUnixUTC,
		CompletedUnixUTC: nowUnixUTC,
		Log: []StatusLogEntry{{
			Status:    TransactionStatusCompleted,
			Actor:     actor,
			Message:   reason,
			AtUnixUTC: nowUnixUTC,
		}},
	}, nil
}
