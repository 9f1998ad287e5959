package ledger

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestReconcileResolvesPendingTransfers(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name          string
		status        SettlementResponse
		statusErr     error
		wantReport    ReconcileReport
		wantStatus    TransactionStatus
		wantBalance   string
		wantAvailable string
	}{
		{
			name:          "provider confirms",
			status:        SettlementResponse{Outcome: SettlementSucceeded, ProviderReference: "NIP-42"},
			wantReport:    ReconcileReport{Examined: 1, Completed: 1},
			wantStatus:    TransactionStatusCompleted,
			wantBalance:   "40000",
			wantAvailable: "40000",
		},
		{
			name:          "provider rejects",
			status:        SettlementResponse{Outcome: SettlementFailed, Message: "account closed"},
			wantReport:    ReconcileReport{Examined: 1, Failed: 1},
			wantStatus:    TransactionStatusFailed,
			wantBalance:   "50000",
			wantAvailable: "50000",
		},
		{
			name:          "provider still unsure",
			status:        SettlementResponse{Outcome: SettlementUnknown},
			wantReport:    ReconcileReport{Examined: 1, Unknown: 1},
			wantStatus:    TransactionStatusPending,
			wantBalance:   "50000",
			wantAvailable: "40000",
		},
		{
			name:          "status query fails",
			statusErr:     errors.New("provider unreachable"),
			wantReport:    ReconcileReport{Examined: 1, Unknown: 1},
			wantStatus:    TransactionStatusPending,
			wantBalance:   "50000",
			wantAvailable: "40000",
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			store := newStubStore()
			seedWallet(test, store, walletIDValue, "50000", nil)
			seedSecret(test, store, secretValue)
			settlement := &stubSettlement{
				response:       SettlementResponse{Outcome: SettlementUnknown},
				statusResponse: testCase.status,
				statusErr:      testCase.statusErr,
			}
			service := mustNewService(test, store, settlement)
			result, err := service.InitiateTransfer(context.Background(), transferRequest(test, "ref-reconcile", "10000"))
			if err != nil {
				test.Fatalf("initiate: %v", err)
			}
			pending, ok := result.(TransferPending)
			if !ok {
				test.Fatalf("expected TransferPending, got %T", result)
			}

			report, err := service.Reconcile(context.Background(), 0, 10)
			if err != nil {
				test.Fatalf("reconcile: %v", err)
			}
			if report != testCase.wantReport {
				test.Fatalf("expected report %+v, got %+v", testCase.wantReport, report)
			}
			stored, err := store.GetTransaction(context.Background(), pending.Transaction.TenantID, pending.Transaction.ID)
			if err != nil {
				test.Fatalf("transaction: %v", err)
			}
			if stored.Status != testCase.wantStatus {
				test.Fatalf("expected %s, got %s", testCase.wantStatus, stored.Status)
			}
			wallet := store.mustWallet(test, mustWalletID(test, walletIDValue))
			if wallet.Balance != mustAmount(test, testCase.wantBalance) || wallet.AvailableBalance != mustAmount(test, testCase.wantAvailable) {
				test.Fatalf("expected %s/%s, got %s/%s", testCase.wantBalance, testCase.wantAvailable, wallet.Balance, wallet.AvailableBalance)
			}
		})
	}
}

func TestReconcileSkipsRecentTransfers(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedWallet(test, store, walletIDValue, "50000", nil)
	seedSecret(test, store, secretValue)
	settlement := &stubSettlement{
		response:       SettlementResponse{Outcome: SettlementUnknown},
		statusResponse: SettlementResponse{Outcome: SettlementSucceeded},
	}
	service := mustNewService(test, store, settlement)
	if _, err := service.InitiateTransfer(context.Background(), transferRequest(test, "ref-fresh", "10000")); err != nil {
		test.Fatalf("initiate: %v", err)
	}

	report, err := service.Reconcile(context.Background(), 5*time.Minute, 10)
	if err != nil {
		test.Fatalf("reconcile: %v", err)
	}
	if report.Examined != 0 {
		test.Fatalf("expected fresh transfer to be skipped, got %+v", report)
	}
}

func TestReconcileValidatesArguments(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore(), successfulSettlement())
	if _, err := service.Reconcile(context.Background(), time.Minute, 0); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf(errorMismatchMessage, ErrInvalidServiceConfig, err)
	}
	if _, err := service.Reconcile(context.Background(), -time.Minute, 10); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf(errorMismatchMessage, ErrInvalidServiceConfig, err)
	}
}
