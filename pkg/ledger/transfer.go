package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// TransferRequest asks to move Amount from WalletID to Recipient.
// A zero Reference is replaced by an engine-generated one; a zero Currency means the wallet currency.
type TransferRequest struct {
	TenantID  TenantID
	UserID    UserID
	WalletID  WalletID
	Reference Reference
	SessionID string
	Recipient Recipient
	Amount    Amount
	Currency  Currency
	Narration string
	Secret    string
}

// InitiateTransfer validates, authorizes, reserves and settles a transfer.
// Caller-facing outcomes are reported as a TransferResult; the error is reserved for
// store failures and invariant violations.
func (service *Service) InitiateTransfer(ctx context.Context, request TransferRequest) (TransferResult, error) {
	startedAt := time.Now()
	result, err := service.initiateTransfer(ctx, &request)
	entry := OperationLog{
		Operation: operationInitiateTransfer,
		TenantID:  request.TenantID,
		UserID:    request.UserID,
		WalletID:  request.WalletID,
		Reference: request.Reference,
		Amount:    request.Amount,
		Error:     err,
	}
	if result != nil {
		entry.Code = result.Code()
		if transaction, ok := resultTransaction(result); ok {
			entry.TransactionID = transaction.ID
			entry.Fee = transaction.Fee
		} else if err == nil {
			entry.Status = operationStatusRejected
		}
	}
	entry.Duration = time.Since(startedAt)
	service.logOperation(ctx, entry)
	return result, err
}

func (service *Service) initiateTransfer(ctx context.Context, request *TransferRequest) (TransferResult, error) {
	if invalid, ok := service.validateRequest(request); !ok {
		return invalid, nil
	}
	if request.Reference.IsZero() {
		reference, err := NewReference(service.newReference())
		if err != nil {
			return nil, err
		}
		request.Reference = reference
	}

	existing, err := service.store.GetTransactionByReference(ctx, request.TenantID, request.Reference)
	switch {
	case err == nil:
		return replayResult(request, existing), nil
	case !errors.Is(err, ErrTransactionNotFound):
		return nil, err
	}

	wallet, err := service.store.GetWallet(ctx, request.TenantID, request.WalletID)
	switch {
	case errors.Is(err, ErrWalletNotFound):
		return TransferWalletNotFound{WalletID: request.WalletID}, nil
	case err != nil:
		return nil, err
	}
	if wallet.UserID != request.UserID {
		return TransferWalletNotFound{WalletID: request.WalletID}, nil
	}
	if wallet.Status != WalletStatusActive {
		return TransferWalletInactive{WalletID: wallet.ID, Status: wallet.Status}, nil
	}
	if request.Currency.IsZero() {
		request.Currency = wallet.Currency
	} else if request.Currency != wallet.Currency {
		return TransferInvalid{ErrorCode: CodeInvalidRequest, Err: fmt.Errorf("%w: wallet holds %s", ErrInvalidCurrency, wallet.Currency)}, nil
	}
	if request.Recipient.Internal() {
		if invalid, ok := service.checkInternalRecipient(ctx, request); !ok {
			return invalid, nil
		}
	}

	unauthorized, err := service.authorize(ctx, request)
	if err != nil || unauthorized != nil {
		return unauthorized, err
	}

	fee, err := service.fees.Fee(request.Recipient, request.Amount)
	if err != nil {
		return nil, err
	}
	transaction, rejection, err := service.reserve(ctx, request, fee)
	if err != nil || rejection != nil {
		return rejection, err
	}
	service.publish(EventTransferInitiated, transaction)
	return service.settle(ctx, transaction)
}

func (service *Service) validateRequest(request *TransferRequest) (TransferInvalid, bool) {
	invalid := func(code string, err error) (TransferInvalid, bool) {
		return TransferInvalid{ErrorCode: code, Err: err}, false
	}
	switch {
	case request.TenantID.IsZero():
		return invalid(CodeInvalidRequest, fmt.Errorf("%w: empty value", ErrInvalidTenantID))
	case request.UserID.IsZero():
		return invalid(CodeInvalidRequest, fmt.Errorf("%w: empty value", ErrInvalidUserID))
	case request.WalletID.IsZero():
		return invalid(CodeInvalidRequest, fmt.Errorf("%w: empty value", ErrInvalidWalletID))
	}
	if err := request.Recipient.Validate(); err != nil {
		return invalid(CodeInvalidRecipient, err)
	}
	if request.Recipient.WalletID == request.WalletID {
		return invalid(CodeInvalidRecipient, fmt.Errorf("%w: cannot transfer to the sending wallet", ErrInvalidRecipient))
	}
	if request.Amount < service.minAmount || request.Amount > service.maxAmount {
		return invalid(CodeInvalidAmount, fmt.Errorf("%w: must be between %s and %s", ErrInvalidAmount, service.minAmount, service.maxAmount))
	}
	if err := ValidateSecret(request.Secret); err != nil {
		return invalid(CodeInvalidRequest, err)
	}
	request.Narration = truncateRunes(strings.TrimSpace(request.Narration), maxNarrationLength)
	return TransferInvalid{}, true
}

func (service *Service) checkInternalRecipient(ctx context.Context, request *TransferRequest) (TransferInvalid, bool) {
	recipientWallet, err := service.store.GetWallet(ctx, request.TenantID, request.Recipient.WalletID)
	if err != nil {
		return TransferInvalid{ErrorCode: CodeInvalidRecipient, Err: fmt.Errorf("%w: %v", ErrInvalidRecipient, err)}, false
	}
	if recipientWallet.Status != WalletStatusActive {
		return TransferInvalid{ErrorCode: CodeInvalidRecipient, Err: fmt.Errorf("%w: recipient wallet is %s", ErrInvalidRecipient, recipientWallet.Status)}, false
	}
	if recipientWallet.Currency != request.Currency {
		return TransferInvalid{ErrorCode: CodeInvalidRecipient, Err: fmt.Errorf("%w: recipient wallet holds %s", ErrInvalidRecipient, recipientWallet.Currency)}, false
	}
	return TransferInvalid{}, true
}

// authorize returns a non-nil result when the secret is rejected. Failed attempts are persisted
// before returning and reaching the policy threshold locks the user.
func (service *Service) authorize(ctx context.Context, request *TransferRequest) (TransferResult, error) {
	credential, err := service.secrets.GetCredential(ctx, request.TenantID, request.UserID)
	switch {
	case errors.Is(err, ErrCredentialNotFound):
		return TransferUnauthorized{}, nil
	case err != nil:
		return nil, err
	}
	nowUnixUTC := service.nowFn()
	if credential.Locked(nowUnixUTC) {
		return TransferUnauthorized{LockedUntilUnixUTC: credential.LockedUntilUnixUTC}, nil
	}
	if !service.guard.Verify(request.Secret, credential.SecretHash) {
		lockUntil := nowUnixUTC + int64(service.secretPolicy.LockDuration/time.Second)
		updated, err := service.secrets.RecordFailedAttempt(ctx, request.TenantID, request.UserID, service.secretPolicy.MaxAttempts, lockUntil)
		if err != nil {
			return nil, err
		}
		return TransferUnauthorized{
			AttemptsRemaining:  max(service.secretPolicy.MaxAttempts-updated.FailedAttempts, 0),
			LockedUntilUnixUTC: updated.LockedUntilUnixUTC,
		}, nil
	}
	if credential.FailedAttempts > 0 || credential.LockedUntilUnixUTC != 0 {
		if err := service.secrets.ResetFailedAttempts(ctx, request.TenantID, request.UserID); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// reserve runs the balance check, the limit check, the hold and the pending insert as one unit
// under the wallet row lock.
func (service *Service) reserve(ctx context.Context, request *TransferRequest, fee Amount) (Transaction, TransferResult, error) {
	var transaction Transaction
	var rejection TransferResult
	err := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		rejection = nil
		wallet, err := txStore.GetWalletForUpdate(ctx, request.TenantID, request.WalletID)
		if err != nil {
			return err
		}
		if wallet.Status != WalletStatusActive {
			rejection = TransferWalletInactive{WalletID: wallet.ID, Status: wallet.Status}
			return nil
		}
		total := request.Amount + fee
		if wallet.AvailableBalance < total {
			rejection = TransferInsufficientFunds{Available: wallet.AvailableBalance, Required: total}
			return nil
		}
		nowUnixUTC := service.nowFn()
		decision, err := service.limits.Evaluate(ctx, txStore, wallet, request.Amount, nowUnixUTC)
		if err != nil {
			return err
		}
		if !decision.Allowed {
			rejection = TransferLimitExceeded{Decision: decision}
			return nil
		}
		wallet.AvailableBalance -= total
		wallet.UpdatedUnixUTC = nowUnixUTC
		if err := wallet.checkInvariant(); err != nil {
			return err
		}
		if err := txStore.UpdateWalletBalances(ctx, wallet); err != nil {
			return err
		}
		transactionID, err := NewTransactionID(service.newID())
		if err != nil {
			return err
		}
		transaction = Transaction{
			ID:             transactionID,
			TenantID:       request.TenantID,
			Reference:      request.Reference,
			SessionID:      request.SessionID,
			WalletID:       request.WalletID,
			UserID:         request.UserID,
			Kind:           TransactionKindTransfer,
			Recipient:      request.Recipient,
			Amount:         request.Amount,
			Fee:            fee,
			Currency:       request.Currency,
			Narration:      request.Narration,
			Status:         TransactionStatusPending,
			CreatedUnixUTC: nowUnixUTC,
			UpdatedUnixUTC: nowUnixUTC,
			Log: []StatusLogEntry{{
				Status:    TransactionStatusPending,
				Actor:     ActorEngine,
				Message:   "funds reserved",
				AtUnixUTC: nowUnixUTC,
			}},
		}
		return txStore.InsertTransaction(ctx, transaction)
	})
	if errors.Is(err, ErrDuplicateReference) {
		existing, lookupErr := service.store.GetTransactionByReference(ctx, request.TenantID, request.Reference)
		if lookupErr != nil {
			return Transaction{}, nil, lookupErr
		}
		return Transaction{}, replayResult(request, existing), nil
	}
	if err != nil {
		return Transaction{}, nil, err
	}
	return transaction, rejection, nil
}

// settle calls the external leg under a bounded context detached from caller cancellation.
// Internal recipients settle inside the ledger.
func (service *Service) settle(ctx context.Context, transaction Transaction) (TransferResult, error) {
	if transaction.Recipient.Internal() {
		return service.applySettlement(ctx, transaction, SettlementResponse{Outcome: SettlementSucceeded}, ActorEngine)
	}
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), service.settlementTimeout)
	defer cancel()
	response, err := service.settlement.Submit(settleCtx, SettlementRequest{
		TenantID:      transaction.TenantID,
		TransactionID: transaction.ID,
		Reference:     transaction.Reference,
		SessionID:     transaction.SessionID,
		Recipient:     transaction.Recipient,
		Amount:        transaction.Amount,
		Currency:      transaction.Currency,
		Narration:     transaction.Narration,
	})
	if err != nil {
		response = SettlementResponse{Outcome: SettlementUnknown, Message: err.Error()}
	}
	return service.applySettlement(ctx, transaction, response, ActorSettlement)
}

// applySettlement finalizes, compensates, or leaves the transaction pending.
// Anything other than an explicit success or failure keeps the reservation.
func (service *Service) applySettlement(ctx context.Context, transaction Transaction, response SettlementResponse, actor string) (TransferResult, error) {
	ctx = context.WithoutCancel(ctx)
	switch response.Outcome {
	case SettlementSucceeded:
		completed, err := service.complete(ctx, transaction, response, actor)
		if err != nil {
			return nil, err
		}
		return resultForTransaction(completed), nil
	case SettlementFailed:
		reason := failureReason(response)
		released, _, err := service.release(ctx, transaction.TenantID, transaction.ID, reason, actor)
		if err != nil {
			return nil, err
		}
		return resultForTransaction(released), nil
	default:
		return TransferPending{Transaction: transaction}, nil
	}
}

// complete confirms the reservation against balance. A completed transaction is returned
// unchanged; a released one cannot be completed and is reported as an invariant violation.
func (service *Service) complete(ctx context.Context, transaction Transaction, response SettlementResponse, actor string) (Transaction, error) {
	startedAt := time.Now()
	var completed Transaction
	changed := false
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		changed = false
		wallets, err := lockWallets(ctx, txStore, transaction.TenantID, transaction.WalletID, transaction.Recipient.WalletID)
		if err != nil {
			return err
		}
		current, err := txStore.GetTransaction(ctx, transaction.TenantID, transaction.ID)
		if err != nil {
			return err
		}
		completed = current
		switch current.Status {
		case TransactionStatusCompleted:
			return nil
		case TransactionStatusFailed:
			return invariantError("transaction", "settlement confirmed %s after its funds were released", current.ID.String())
		}
		nowUnixUTC := service.nowFn()
		sender := wallets[current.WalletID]
		sender.Balance -= current.Total()
		sender.UpdatedUnixUTC = nowUnixUTC
		if err := sender.checkInvariant(); err != nil {
			return err
		}
		if err := txStore.UpdateWalletBalances(ctx, sender); err != nil {
			return err
		}
		if current.Recipient.Internal() {
			recipient := wallets[current.Recipient.WalletID]
			recipient.Balance += current.Amount
			recipient.AvailableBalance += current.Amount
			recipient.UpdatedUnixUTC = nowUnixUTC
			if err := recipient.checkInvariant(); err != nil {
				return err
			}
			if err := txStore.UpdateWalletBalances(ctx, recipient); err != nil {
				return err
			}
		}
		entry := StatusLogEntry{
			Status:    TransactionStatusCompleted,
			Actor:     actor,
			Message:   completionMessage(response),
			AtUnixUTC: nowUnixUTC,
		}
		if err := txStore.UpdateTransactionStatus(ctx, StatusUpdate{
			TenantID:          current.TenantID,
			TransactionID:     current.ID,
			From:              TransactionStatusPending,
			To:                TransactionStatusCompleted,
			ProviderReference: response.ProviderReference,
			CompletedUnixUTC:  nowUnixUTC,
			Entry:             entry,
		}); err != nil {
			return err
		}
		completed.Status = TransactionStatusCompleted
		completed.ProviderReference = response.ProviderReference
		completed.UpdatedUnixUTC = nowUnixUTC
		completed.CompletedUnixUTC = nowUnixUTC
		completed.Log = append(completed.Log, entry)
		changed = true
		return nil
	})
	if operationError == nil && !changed {
		return completed, nil
	}
	service.logOperation(ctx, OperationLog{
		Operation:     operationCompleteTransfer,
		TenantID:      transaction.TenantID,
		UserID:        transaction.UserID,
		WalletID:      transaction.WalletID,
		TransactionID: transaction.ID,
		Reference:     transaction.Reference,
		Amount:        transaction.Amount,
		Fee:           transaction.Fee,
		Duration:      time.Since(startedAt),
		Error:         operationError,
	})
	if operationError != nil {
		return Transaction{}, operationError
	}
	service.publish(EventTransferCompleted, completed)
	return completed, nil
}

// lockWallets takes row locks in id order so transfers between the same pair of wallets cannot deadlock.
func lockWallets(ctx context.Context, txStore Store, tenantID TenantID, walletIDs ...WalletID) (map[WalletID]Wallet, error) {
	ordered := make([]WalletID, 0, len(walletIDs))
	for _, walletID := range walletIDs {
		if !walletID.IsZero() {
			ordered = append(ordered, walletID)
		}
	}
	sort.Slice(ordered, func(left, right int) bool {
		return ordered[left].String() < ordered[right].String()
	})
	wallets := make(map[WalletID]Wallet, len(ordered))
	for _, walletID := range ordered {
		if _, seen := wallets[walletID]; seen {
			continue
		}
		wallet, err := txStore.GetWalletForUpdate(ctx, tenantID, walletID)
		if err != nil {
			return nil, err
		}
		wallets[walletID] = wallet
	}
	return wallets, nil
}

func replayResult(request *TransferRequest, existing Transaction) TransferResult {
	if existing.Kind != TransactionKindTransfer ||
		existing.WalletID != request.WalletID ||
		existing.UserID != request.UserID ||
		existing.Amount != request.Amount ||
		existing.Recipient != request.Recipient {
		return TransferInvalid{
			ErrorCode: CodeIdempotencyConflict,
			Err:       fmt.Errorf("%w: %s was used for a different transfer", ErrDuplicateReference, request.Reference.String()),
		}
	}
	return TransferReplayed{Transaction: existing}
}

func resultForTransaction(transaction Transaction) TransferResult {
	switch transaction.Status {
	case TransactionStatusCompleted:
		return TransferCompleted{Transaction: transaction}
	case TransactionStatusFailed:
		return TransferFailed{Transaction: transaction, Reason: transaction.FailureReason}
	default:
		return TransferPending{Transaction: transaction}
	}
}

func resultTransaction(result TransferResult) (Transaction, bool) {
	switch typed := result.(type) {
	case TransferCompleted:
		return typed.Transaction, true
	case TransferFailed:
		return typed.Transaction, true
	case TransferPending:
		return typed.Transaction, true
	case TransferReplayed:
		return typed.Transaction, true
	default:
		return Transaction{}, false
	}
}

func failureReason(response SettlementResponse) string {
	message := strings.TrimSpace(response.Message)
	switch {
	case message != "" && response.Code != "":
		return response.Code + ": " + message
	case message != "":
		return message
	case response.Code != "":
		return "settlement rejected with code " + response.Code
	default:
		return "settlement rejected"
	}
}

func completionMessage(response SettlementResponse) string {
	if response.ProviderReference == "" {
		return "settled"
	}
	return "settled as " + response.ProviderReference
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	return string([]rune(value)[:limit])
}
