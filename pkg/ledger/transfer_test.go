package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestInitiateTransferCompletesAndReplays(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedWallet(test, store, walletIDValue, "100000", func(wallet *Wallet) {
		wallet.DailyLimit = mustAmountPointer(test, "500000")
		wallet.MonthlyLimit = mustAmountPointer(test, "5000000")
	})
	seedSecret(test, store, secretValue)
	settlement := successfulSettlement()
	walletID := mustWalletID(test, walletIDValue)
	var reservedAvailable, reservedBalance Amount
	var reservedStatus TransactionStatus
	settlement.onSubmit = func(ctx context.Context, request SettlementRequest) {
		wallet := store.mustWallet(test, walletID)
		reservedAvailable = wallet.AvailableBalance
		reservedBalance = wallet.Balance
		transaction, err := store.GetTransaction(ctx, request.TenantID, request.TransactionID)
		if err != nil {
			test.Errorf("transaction during settlement: %v", err)
			return
		}
		reservedStatus = transaction.Status
	}
	publisher := &recordingPublisher{}
	service := mustNewService(test, store, settlement, WithEventPublisher(publisher))
	request := transferRequest(test, "ref-e2e", "20000")

	result, err := service.InitiateTransfer(context.Background(), request)
	if err != nil {
		test.Fatalf("initiate: %v", err)
	}
	completed, ok := result.(TransferCompleted)
	if !ok {
		test.Fatalf("expected TransferCompleted, got %T (%s)", result, result.Code())
	}
	if reservedAvailable != mustAmount(test, "80000") || reservedBalance != mustAmount(test, "100000") {
		test.Fatalf("expected reservation 80000/100000, got %s/%s", reservedAvailable, reservedBalance)
	}
	if reservedStatus != TransactionStatusPending {
		test.Fatalf("expected pending during settlement, got %s", reservedStatus)
	}
	wallet := store.mustWallet(test, walletID)
	if wallet.Balance != mustAmount(test, "80000") || wallet.AvailableBalance != mustAmount(test, "80000") {
		test.Fatalf("expected balance 80000/80000, got %s/%s", wallet.Balance, wallet.AvailableBalance)
	}
	if completed.Transaction.Status != TransactionStatusCompleted || completed.Transaction.ProviderReference != "NIP-000001" {
		test.Fatalf("unexpected completed transaction: %+v", completed.Transaction)
	}

	replay, err := service.InitiateTransfer(context.Background(), request)
	if err != nil {
		test.Fatalf("replay: %v", err)
	}
	replayed, ok := replay.(TransferReplayed)
	if !ok {
		test.Fatalf("expected TransferReplayed, got %T", replay)
	}
	if replayed.Code() != CodeDuplicateRequest {
		test.Fatalf("expected %s, got %s", CodeDuplicateRequest, replayed.Code())
	}
	if replayed.Transaction.ID != completed.Transaction.ID || replayed.Transaction.Status != TransactionStatusCompleted {
		test.Fatalf("replay returned %+v", replayed.Transaction)
	}
	if settlement.submissions() != 1 {
		test.Fatalf("expected one settlement submission, got %d", settlement.submissions())
	}
	if store.mustWallet(test, walletID).Balance != mustAmount(test, "80000") {
		test.Fatalf("replay debited twice")
	}

	status, err := service.TransferStatus(context.Background(), request.TenantID, request.Reference)
	if err != nil {
		test.Fatalf("status: %v", err)
	}
	if status.Transaction.ID != completed.Transaction.ID || status.Transaction.Status != TransactionStatusCompleted {
		test.Fatalf("unexpected status: %+v", status.Transaction)
	}
	expectedEvents := []EventType{EventTransferInitiated, EventTransferCompleted}
	if fmt.Sprint(publisher.types()) != fmt.Sprint(expectedEvents) {
		test.Fatalf("expected events %v, got %v", expectedEvents, publisher.types())
	}
}

func TestInitiateTransferDeniesDailyLimit(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	wallet := seedWallet(test, store, walletIDValue, "1000000", func(wallet *Wallet) {
		wallet.DailyLimit = mustAmountPointer(test, "500000")
		wallet.MonthlyLimit = mustAmountPointer(test, "5000000")
	})
	seedSecret(test, store, secretValue)
	store.seedTransaction(test, Transaction{
		ID:             mustTransactionID(test, "earlier"),
		TenantID:       wallet.TenantID,
		Reference:      mustReference(test, "earlier-ref"),
		WalletID:       wallet.ID,
		UserID:         wallet.UserID,
		Kind:           TransactionKindTransfer,
		Recipient:      mustExternalRecipient(test),
		Amount:         mustAmount(test, "480000"),
		Currency:       DefaultCurrency(),
		Status:         TransactionStatusCompleted,
		CreatedUnixUTC: fixedNowUnixUTC - 3600,
	})
	settlement := successfulSettlement()
	service := mustNewService(test, store, settlement)

	result, err := service.InitiateTransfer(context.Background(), transferRequest(test, "ref-limit", "30000"))
	if err != nil {
		test.Fatalf("initiate: %v", err)
	}
	exceeded, ok := result.(TransferLimitExceeded)
	if !ok {
		test.Fatalf("expected TransferLimitExceeded, got %T", result)
	}
	if exceeded.Code() != CodeLimitExceeded || exceeded.Decision.Window != LimitWindowDaily {
		test.Fatalf("expected daily %s, got %s/%s", CodeLimitExceeded, exceeded.Code(), exceeded.Decision.Window)
	}
	if exceeded.Decision.Remaining() != mustAmount(test, "20000") {
		test.Fatalf("expected remaining 20000, got %s", exceeded.Decision.Remaining())
	}
	if available := store.mustWallet(test, wallet.ID).AvailableBalance; available != wallet.AvailableBalance {
		test.Fatalf("available changed from %s to %s", wallet.AvailableBalance, available)
	}
	if store.transactionCount() != 1 || settlement.submissions() != 0 {
		test.Fatalf("limit denial must not insert or settle")
	}
}

func TestInitiateTransferRejectsInsufficientFunds(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedWallet(test, store, walletIDValue, "5000", nil)
	seedSecret(test, store, secretValue)
	service := mustNewService(test, store, successfulSettlement())

	result, err := service.InitiateTransfer(context.Background(), transferRequest(test, "ref-low", "5001"))
	if err != nil {
		test.Fatalf("initiate: %v", err)
	}
	insufficient, ok := result.(TransferInsufficientFunds)
	if !ok {
		test.Fatalf("expected TransferInsufficientFunds, got %T", result)
	}
	if insufficient.Available != mustAmount(test, "5000") || insufficient.Required != mustAmount(test, "5001") {
		test.Fatalf("unexpected amounts: %+v", insufficient)
	}
	if store.transactionCount() != 0 {
		test.Fatalf("expected no transaction rows, got %d", store.transactionCount())
	}
}

func TestInitiateTransferIncludesFeeInReservation(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedWallet(test, store, walletIDValue, "1000", nil)
	seedSecret(test, store, secretValue)
	service := mustNewService(test, store, successfulSettlement(), WithFeeSchedule(NIPFlatFee()))

	result, err := service.InitiateTransfer(context.Background(), transferRequest(test, "ref-fee-low", "1000"))
	if err != nil {
		test.Fatalf("initiate: %v", err)
	}
	if _, ok := result.(TransferInsufficientFunds); !ok {
		test.Fatalf("expected fee to push the total over available, got %T", result)
	}

	result, err = service.InitiateTransfer(context.Background(), transferRequest(test, "ref-fee", "900"))
	if err != nil {
		test.Fatalf("initiate: %v", err)
	}
	completed, ok := result.(TransferCompleted)
	if !ok {
		test.Fatalf("expected TransferCompleted, got %T", result)
	}
	if completed.Transaction.Fee != mustAmount(test, "52.50") {
		test.Fatalf("expected fee 52.50, got %s", completed.Transaction.Fee)
	}
	if balance := store.mustWallet(test, mustWalletID(test, walletIDValue)).Balance; balance != mustAmount(test, "47.50") {
		test.Fatalf("expected balance 47.50, got %s", balance)
	}
}

func TestSettlementFailureReleasesReservationOnce(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedWallet(test, store, walletIDValue, "50000", nil)
	seedSecret(test, store, secretValue)
	settlement := &stubSettlement{response: SettlementResponse{Outcome: SettlementFailed, Code: "51", Message: "no sufficient funds at beneficiary bank"}}
	publisher := &recordingPublisher{}
	service := mustNewService(test, store, settlement, WithEventPublisher(publisher))
	walletID := mustWalletID(test, walletIDValue)

	result, err := service.InitiateTransfer(context.Background(), transferRequest(test, "ref-fail", "10000"))
	if err != nil {
		test.Fatalf("initiate: %v", err)
	}
	failed, ok := result.(TransferFailed)
	if !ok {
		test.Fatalf("expected TransferFailed, got %T", result)
	}
	if failed.Code() != CodeSettlementFailed || failed.Transaction.Status != TransactionStatusFailed {
		test.Fatalf("unexpected failure result: %+v", failed)
	}
	wallet := store.mustWallet(test, walletID)
	if wallet.AvailableBalance != mustAmount(test, "50000") || wallet.Balance != mustAmount(test, "50000") {
		test.Fatalf("expected funds restored, got %s/%s", wallet.Balance, wallet.AvailableBalance)
	}

	for attempt := 0; attempt < 2; attempt++ {
		outcome, err := service.Release(context.Background(), failed.Transaction.TenantID, failed.Transaction.ID, "retry", ActorOperator)
		if err != nil {
			test.Fatalf("release %d: %v", attempt, err)
		}
		if outcome != ReleaseOutcomeAlreadySettled {
			test.Fatalf("expected %s, got %s", ReleaseOutcomeAlreadySettled, outcome)
		}
	}
	if available := store.mustWallet(test, walletID).AvailableBalance; available != mustAmount(test, "50000") {
		test.Fatalf("repeated release changed available to %s", available)
	}
	expectedEvents := []EventType{EventTransferInitiated, EventTransferFailed}
	if fmt.Sprint(publisher.types()) != fmt.Sprint(expectedEvents) {
		test.Fatalf("expected events %v, got %v", expectedEvents, publisher.types())
	}
}

func TestSettlementUncertaintyKeepsReservation(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name       string
		settlement *stubSettlement
	}{
		{
			name:       "transport error",
			settlement: &stubSettlement{err: context.DeadlineExceeded},
		},
		{
			name:       "unknown outcome",
			settlement: &stubSettlement{response: SettlementResponse{Outcome: SettlementUnknown, Code: "09"}},
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			store := newStubStore()
			seedWallet(test, store, walletIDValue, "50000", nil)
			seedSecret(test, store, secretValue)
			service := mustNewService(test, store, testCase.settlement)

			result, err := service.InitiateTransfer(context.Background(), transferRequest(test, "ref-unknown", "10000"))
			if err != nil {
				test.Fatalf("initiate: %v", err)
			}
			pending, ok := result.(TransferPending)
			if !ok {
				test.Fatalf("expected TransferPending, got %T", result)
			}
			if pending.Code() != CodeSettlementPending {
				test.Fatalf("expected %s, got %s", CodeSettlementPending, pending.Code())
			}
			wallet := store.mustWallet(test, mustWalletID(test, walletIDValue))
			if wallet.AvailableBalance != mustAmount(test, "40000") || wallet.Balance != mustAmount(test, "50000") {
				test.Fatalf("expected reservation held, got %s/%s", wallet.Balance, wallet.AvailableBalance)
			}
			stored, err := store.GetTransaction(context.Background(), pending.Transaction.TenantID, pending.Transaction.ID)
			if err != nil || stored.Status != TransactionStatusPending {
				test.Fatalf("expected pending row, got %+v (%v)", stored, err)
			}
		})
	}
}

func TestCallerCancellationDoesNotAbandonReservation(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedWallet(test, store, walletIDValue, "50000", nil)
	seedSecret(test, store, secretValue)
	ctx, cancel := context.WithCancel(context.Background())
	settlement := successfulSettlement()
	settlement.onSubmit = func(settleCtx context.Context, _ SettlementRequest) {
		cancel()
		if settleCtx.Err() != nil {
			test.Errorf("settlement context cancelled with caller")
		}
	}
	service := mustNewService(test, store, settlement)

	result, err := service.InitiateTransfer(ctx, transferRequest(test, "ref-cancel", "10000"))
	if err != nil {
		test.Fatalf("initiate: %v", err)
	}
	if _, ok := result.(TransferCompleted); !ok {
		test.Fatalf("expected TransferCompleted, got %T", result)
	}
	if balance := store.mustWallet(test, mustWalletID(test, walletIDValue)).Balance; balance != mustAmount(test, "40000") {
		test.Fatalf("expected balance 40000, got %s", balance)
	}
}

func TestInitiateTransferRejectsInvalidRequests(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name     string
		mutate   func(test *testing.T, request *TransferRequest)
		wantCode string
		wantErr  error
	}{
		{
			name: "malformed account number",
			mutate: func(test *testing.T, request *TransferRequest) {
				request.Recipient.AccountNumber = "12345"
			},
			wantCode: CodeInvalidRecipient,
			wantErr:  ErrInvalidRecipient,
		},
		{
			name: "short recipient name",
			mutate: func(test *testing.T, request *TransferRequest) {
				request.Recipient.Name = "A"
			},
			wantCode: CodeInvalidRecipient,
			wantErr:  ErrInvalidRecipient,
		},
		{
			name: "transfer to self",
			mutate: func(test *testing.T, request *TransferRequest) {
				request.Recipient = Recipient{WalletID: request.WalletID, Name: recipientName}
			},
			wantCode: CodeInvalidRecipient,
			wantErr:  ErrInvalidRecipient,
		},
		{
			name: "below minimum",
			mutate: func(test *testing.T, request *TransferRequest) {
				request.Amount = mustAmount(test, "99.99")
			},
			wantCode: CodeInvalidAmount,
			wantErr:  ErrInvalidAmount,
		},
		{
			name: "above maximum",
			mutate: func(test *testing.T, request *TransferRequest) {
				request.Amount = mustAmount(test, "1000000.01")
			},
			wantCode: CodeInvalidAmount,
			wantErr:  ErrInvalidAmount,
		},
		{
			name: "malformed secret",
			mutate: func(test *testing.T, request *TransferRequest) {
				request.Secret = "12a4"
			},
			wantCode: CodeInvalidRequest,
			wantErr:  ErrInvalidSecret,
		},
		{
			name: "missing wallet",
			mutate: func(test *testing.T, request *TransferRequest) {
				request.WalletID = WalletID{}
			},
			wantCode: CodeInvalidRequest,
			wantErr:  ErrInvalidWalletID,
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			store := newStubStore()
			seedWallet(test, store, walletIDValue, "50000", nil)
			seedSecret(test, store, secretValue)
			service := mustNewService(test, store, successfulSettlement())
			request := transferRequest(test, "ref-invalid", "1000")
			testCase.mutate(test, &request)

			result, err := service.InitiateTransfer(context.Background(), request)
			if err != nil {
				test.Fatalf("initiate: %v", err)
			}
			invalid, ok := result.(TransferInvalid)
			if !ok {
				test.Fatalf("expected TransferInvalid, got %T", result)
			}
			if invalid.Code() != testCase.wantCode || !errors.Is(invalid.Err, testCase.wantErr) {
				test.Fatalf("expected %s/%v, got %s/%v", testCase.wantCode, testCase.wantErr, invalid.Code(), invalid.Err)
			}
			if store.transactionCount() != 0 {
				test.Fatalf("invalid request created a transaction")
			}
		})
	}
}

func TestInitiateTransferWalletChecks(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name      string
		configure func(wallet *Wallet)
		wantCode  string
	}{
		{
			name: "owned by another user",
			configure: func(wallet *Wallet) {
				wallet.UserID = UserID{value: "someone-else"}
			},
			wantCode: CodeWalletNotFound,
		},
		{
			name: "suspended",
			configure: func(wallet *Wallet) {
				wallet.Status = WalletStatusSuspended
			},
			wantCode: CodeWalletInactive,
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			store := newStubStore()
			seedWallet(test, store, walletIDValue, "50000", testCase.configure)
			seedSecret(test, store, secretValue)
			service := mustNewService(test, store, successfulSettlement())

			result, err := service.InitiateTransfer(context.Background(), transferRequest(test, "ref-wallet", "1000"))
			if err != nil {
				test.Fatalf("initiate: %v", err)
			}
			if result.Code() != testCase.wantCode {
				test.Fatalf("expected %s, got %s", testCase.wantCode, result.Code())
			}
		})
	}

	store := newStubStore()
	seedSecret(test, store, secretValue)
	service := mustNewService(test, store, successfulSettlement())
	result, err := service.InitiateTransfer(context.Background(), transferRequest(test, "ref-missing", "1000"))
	if err != nil {
		test.Fatalf("initiate: %v", err)
	}
	if _, ok := result.(TransferWalletNotFound); !ok {
		test.Fatalf("expected TransferWalletNotFound, got %T", result)
	}
}

func TestInitiateTransferLocksAfterRepeatedSecretFailures(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedWallet(test, store, walletIDValue, "50000", nil)
	seedSecret(test, store, secretValue)
	service := mustNewService(test, store, successfulSettlement(), WithSecretPolicy(SecretPolicy{MaxAttempts: 3, LockDuration: DefaultSecretPolicy().LockDuration}))

	for attempt := 1; attempt <= 3; attempt++ {
		request := transferRequest(test, fmt.Sprintf("ref-wrong-%d", attempt), "1000")
		request.Secret = "9999"
		result, err := service.InitiateTransfer(context.Background(), request)
		if err != nil {
			test.Fatalf("attempt %d: %v", attempt, err)
		}
		unauthorized, ok := result.(TransferUnauthorized)
		if !ok {
			test.Fatalf("expected TransferUnauthorized, got %T", result)
		}
		if unauthorized.AttemptsRemaining != 3-attempt {
			test.Fatalf("attempt %d: expected %d remaining, got %d", attempt, 3-attempt, unauthorized.AttemptsRemaining)
		}
	}

	result, err := service.InitiateTransfer(context.Background(), transferRequest(test, "ref-after-lock", "1000"))
	if err != nil {
		test.Fatalf("locked attempt: %v", err)
	}
	unauthorized, ok := result.(TransferUnauthorized)
	if !ok {
		test.Fatalf("expected locked user to be unauthorized, got %T", result)
	}
	if unauthorized.LockedUntilUnixUTC <= fixedNowUnixUTC {
		test.Fatalf("expected lock in the future, got %d", unauthorized.LockedUntilUnixUTC)
	}
	if store.transactionCount() != 0 {
		test.Fatalf("unauthorized requests created transactions")
	}
}

func TestInitiateTransferResetsAttemptsOnSuccess(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedWallet(test, store, walletIDValue, "50000", nil)
	seedSecret(test, store, secretValue)
	service := mustNewService(test, store, successfulSettlement())
	wrong := transferRequest(test, "ref-wrong", "1000")
	wrong.Secret = "0000"
	if _, err := service.InitiateTransfer(context.Background(), wrong); err != nil {
		test.Fatalf("wrong secret: %v", err)
	}
	if _, err := service.InitiateTransfer(context.Background(), transferRequest(test, "ref-right", "1000")); err != nil {
		test.Fatalf("right secret: %v", err)
	}
	credential, err := store.GetCredential(context.Background(), mustTenantID(test, tenantIDValue), mustUserID(test, userIDValue))
	if err != nil {
		test.Fatalf("credential: %v", err)
	}
	if credential.FailedAttempts != 0 {
		test.Fatalf("expected counter reset, got %d", credential.FailedAttempts)
	}
}

func TestInitiateTransferReferenceConflict(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedWallet(test, store, walletIDValue, "50000", nil)
	seedSecret(test, store, secretValue)
	service := mustNewService(test, store, successfulSettlement())
	if _, err := service.InitiateTransfer(context.Background(), transferRequest(test, "ref-shared", "1000")); err != nil {
		test.Fatalf("first transfer: %v", err)
	}

	result, err := service.InitiateTransfer(context.Background(), transferRequest(test, "ref-shared", "2000"))
	if err != nil {
		test.Fatalf("second transfer: %v", err)
	}
	invalid, ok := result.(TransferInvalid)
	if !ok || invalid.Code() != CodeIdempotencyConflict {
		test.Fatalf("expected %s, got %T", CodeIdempotencyConflict, result)
	}
	if !errors.Is(invalid.Err, ErrDuplicateReference) {
		test.Fatalf(errorMismatchMessage, ErrDuplicateReference, invalid.Err)
	}
}

func TestInitiateTransferGeneratesReference(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedWallet(test, store, walletIDValue, "50000", nil)
	seedSecret(test, store, secretValue)
	service := mustNewService(test, store, successfulSettlement(), WithReferenceGenerator(func() string { return "TRF_GENERATED" }))

	result, err := service.InitiateTransfer(context.Background(), transferRequest(test, "", "1000"))
	if err != nil {
		test.Fatalf("initiate: %v", err)
	}
	completed, ok := result.(TransferCompleted)
	if !ok {
		test.Fatalf("expected TransferCompleted, got %T", result)
	}
	if completed.Transaction.Reference.String() != "TRF_GENERATED" {
		test.Fatalf("expected generated reference, got %q", completed.Transaction.Reference.String())
	}
}

func TestDuplicateInsertCollapsesToReplay(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	wallet := seedWallet(test, store, walletIDValue, "50000", nil)
	seedSecret(test, store, secretValue)
	service := mustNewService(test, store, successfulSettlement())
	request := transferRequest(test, "ref-race", "1000")
	racing := Transaction{
		ID:             mustTransactionID(test, "racing"),
		TenantID:       wallet.TenantID,
		Reference:      request.Reference,
		WalletID:       wallet.ID,
		UserID:         wallet.UserID,
		Kind:           TransactionKindTransfer,
		Recipient:      request.Recipient,
		Amount:         request.Amount,
		Currency:       DefaultCurrency(),
		Status:         TransactionStatusPending,
		CreatedUnixUTC: fixedNowUnixUTC,
	}
	inserted := false
	settlement := successfulSettlement()
	service.settlement = settlement
	// The racing row lands between the idempotency lookup and the insert.
	service.fees = feeFunc(func(Recipient, Amount) (Amount, error) {
		if !inserted {
			inserted = true
			store.seedTransaction(test, racing)
		}
		return 0, nil
	})

	result, err := service.InitiateTransfer(context.Background(), request)
	if err != nil {
		test.Fatalf("initiate: %v", err)
	}
	replayed, ok := result.(TransferReplayed)
	if !ok {
		test.Fatalf("expected TransferReplayed, got %T", result)
	}
	if replayed.Transaction.ID != racing.ID {
		test.Fatalf("expected racing transaction, got %s", replayed.Transaction.ID.String())
	}
	if available := store.mustWallet(test, wallet.ID).AvailableBalance; available != wallet.AvailableBalance {
		test.Fatalf("rolled back reservation left available at %s", available)
	}
	if settlement.submissions() != 0 {
		test.Fatalf("duplicate insert must not settle")
	}
}

type feeFunc func(Recipient, Amount) (Amount, error)

func (fn feeFunc) Fee(recipient Recipient, amount Amount) (Amount, error) {
	return fn(recipient, amount)
}

func TestConcurrentTransfersNeverOverdraw(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedWallet(test, store, walletIDValue, "10000", nil)
	seedSecret(test, store, secretValue)
	settlement := &stubSettlement{response: SettlementResponse{Outcome: SettlementUnknown}}
	service := mustNewService(test, store, settlement)
	walletID := mustWalletID(test, walletIDValue)

	const workers = 25
	var waitGroup sync.WaitGroup
	results := make(chan TransferResult, workers)
	for worker := 0; worker < workers; worker++ {
		waitGroup.Add(1)
		go func(worker int) {
			defer waitGroup.Done()
			result, err := service.InitiateTransfer(context.Background(), transferRequest(test, fmt.Sprintf("ref-concurrent-%d", worker), "1000"))
			if err != nil {
				test.Errorf("worker %d: %v", worker, err)
				return
			}
			results <- result
		}(worker)
	}
	waitGroup.Wait()
	close(results)

	pending := 0
	insufficient := 0
	for result := range results {
		switch result.(type) {
		case TransferPending:
			pending++
		case TransferInsufficientFunds:
			insufficient++
		default:
			test.Fatalf("unexpected result %T", result)
		}
	}
	if pending != 10 || insufficient != workers-10 {
		test.Fatalf("expected 10 reservations and %d rejections, got %d and %d", workers-10, pending, insufficient)
	}
	wallet := store.mustWallet(test, walletID)
	if wallet.AvailableBalance != 0 || wallet.Balance != mustAmount(test, "10000") {
		test.Fatalf("expected fully reserved wallet, got %s/%s", wallet.Balance, wallet.AvailableBalance)
	}
	if wallet.Reserved() != Amount(pending)*mustAmount(test, "1000") {
		test.Fatalf("reserved %s does not match %d pending transfers", wallet.Reserved(), pending)
	}
}

func TestInternalTransferCreditsRecipientWallet(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedWallet(test, store, walletIDValue, "50000", nil)
	receiver := seedWallet(test, store, "wallet-2", "100", func(wallet *Wallet) {
		wallet.UserID = UserID{value: "user-2"}
	})
	seedSecret(test, store, secretValue)
	settlement := successfulSettlement()
	service := mustNewService(test, store, settlement, WithFeeSchedule(NIPFlatFee()))
	request := transferRequest(test, "ref-internal", "2500")
	request.Recipient = Recipient{WalletID: receiver.ID, Name: "Bola Ade"}

	result, err := service.InitiateTransfer(context.Background(), request)
	if err != nil {
		test.Fatalf("initiate: %v", err)
	}
	if _, ok := result.(TransferCompleted); !ok {
		test.Fatalf("expected TransferCompleted, got %T", result)
	}
	if settlement.submissions() != 0 {
		test.Fatalf("internal transfer reached the external leg")
	}
	sender := store.mustWallet(test, mustWalletID(test, walletIDValue))
	credited := store.mustWallet(test, receiver.ID)
	if sender.Balance != mustAmount(test, "47500") || credited.Balance != mustAmount(test, "2600") || credited.AvailableBalance != mustAmount(test, "2600") {
		test.Fatalf("unexpected balances sender=%s receiver=%s/%s", sender.Balance, credited.Balance, credited.AvailableBalance)
	}
}
