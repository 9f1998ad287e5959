package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// FundRequest credits a wallet from outside the ledger, for example a card top-up or
// an inbound bank transfer confirmed by the operator. Reference makes the credit idempotent.
type FundRequest struct {
	TenantID  TenantID
	WalletID  WalletID
	Reference Reference
	Amount    Amount
	Currency  Currency
	Narration string
	Source    string
}

// FundingResult is a committed funding record. Replayed reports a repeated reference.
type FundingResult struct {
	Transaction Transaction
	Wallet      Wallet
	Replayed    bool
}

// FundWallet credits balance and available balance and records a completed funding transaction.
// A repeated reference for the same wallet and amount returns the original record; any other
// reuse of the reference fails with ErrDuplicateReference.
func (service *Service) FundWallet(ctx context.Context, request FundRequest) (FundingResult, error) {
	startedAt := time.Now()
	result, err := service.fundWallet(ctx, request)
	entry := OperationLog{
		Operation:     operationFundWallet,
		TenantID:      request.TenantID,
		WalletID:      request.WalletID,
		TransactionID: result.Transaction.ID,
		Reference:     request.Reference,
		Amount:        request.Amount,
		UserID:        result.Wallet.UserID,
		Duration:      time.Since(startedAt),
		Error:         err,
	}
	if result.Replayed {
		entry.Code = CodeDuplicateRequest
	}
	service.logOperation(ctx, entry)
	return result, err
}

func (service *Service) fundWallet(ctx context.Context, request FundRequest) (FundingResult, error) {
	if request.TenantID.IsZero() {
		return FundingResult{}, fmt.Errorf("%w: empty value", ErrInvalidTenantID)
	}
	if request.WalletID.IsZero() {
		return FundingResult{}, fmt.Errorf("%w: empty value", ErrInvalidWalletID)
	}
	if request.Reference.IsZero() {
		return FundingResult{}, fmt.Errorf("%w: funding requires a reference", ErrInvalidReference)
	}
	if request.Amount <= 0 {
		return FundingResult{}, fmt.Errorf("%w: funding amount must be positive", ErrInvalidAmount)
	}

	existing, err := service.store.GetTransactionByReference(ctx, request.TenantID, request.Reference)
	switch {
	case err == nil:
		return service.replayFunding(ctx, request, existing)
	case !errors.Is(err, ErrTransactionNotFound):
		return FundingResult{}, err
	}

	var result FundingResult
	err = service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		wallet, err := txStore.GetWalletForUpdate(ctx, request.TenantID, request.WalletID)
		if err != nil {
			return err
		}
		if wallet.Status != WalletStatusActive {
			return fmt.Errorf("%w: wallet %s is %s", ErrInvalidWalletStatus, wallet.ID.String(), wallet.Status)
		}
		if !request.Currency.IsZero() && request.Currency != wallet.Currency {
			return fmt.Errorf("%w: wallet holds %s", ErrInvalidCurrency, wallet.Currency)
		}
		transactionID, err := NewTransactionID(service.newID())
		if err != nil {
			return err
		}
		nowUnixUTC := service.nowFn()
		wallet.Balance += request.Amount
		wallet.AvailableBalance += request.Amount
		wallet.UpdatedUnixUTC = nowUnixUTC
		if err := wallet.checkInvariant(); err != nil {
			return err
		}
		if err := txStore.UpdateWalletBalances(ctx, wallet); err != nil {
			return err
		}
		message := "wallet funded"
		if source := strings.TrimSpace(request.Source); source != "" {
			message = "wallet funded via " + source
		}
		transaction := Transaction{
			ID:               transactionID,
			TenantID:         request.TenantID,
			Reference:        request.Reference,
			WalletID:         wallet.ID,
			UserID:           wallet.UserID,
			Kind:             TransactionKindFunding,
			Amount:           request.Amount,
			Currency:         wallet.Currency,
			Narration:        truncateRunes(strings.TrimSpace(request.Narration), maxNarrationLength),
			Status:           TransactionStatusCompleted,
			CreatedUnixUTC:   nowUnixUTC,
			UpdatedUnixUTC:   nowUnixUTC,
			CompletedUnixUTC: nowUnixUTC,
			Log: []StatusLogEntry{{
				Status:    TransactionStatusCompleted,
				Actor:     ActorOperator,
				Message:   message,
				AtUnixUTC: nowUnixUTC,
			}},
		}
		if err := txStore.InsertTransaction(ctx, transaction); err != nil {
			return err
		}
		result = FundingResult{Transaction: transaction, Wallet: wallet}
		return nil
	})
	if errors.Is(err, ErrDuplicateReference) {
		existing, lookupErr := service.store.GetTransactionByReference(ctx, request.TenantID, request.Reference)
		if lookupErr != nil {
			return FundingResult{}, lookupErr
		}
		return service.replayFunding(ctx, request, existing)
	}
	if err != nil {
		return FundingResult{}, err
	}
	service.publish(EventWalletFunded, result.Transaction)
	return result, nil
}

func (service *Service) replayFunding(ctx context.Context, request FundRequest, existing Transaction) (FundingResult, error) {
	if existing.Kind != TransactionKindFunding || existing.WalletID != request.WalletID || existing.Amount != request.Amount {
		return FundingResult{}, fmt.Errorf("%w: reference %s belongs to another transaction", ErrDuplicateReference, request.Reference.String())
	}
	wallet, err := service.store.GetWallet(ctx, request.TenantID, request.WalletID)
	if err != nil {
		return FundingResult{}, err
	}
	return FundingResult{Transaction: existing, Wallet: wallet, Replayed: true}, nil
}
