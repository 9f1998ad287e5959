package gormstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/walletledger/pkg/ledger"
)

const testSecret = "1234"

type approvingLeg struct{}

func (approvingLeg) Submit(context.Context, ledger.SettlementRequest) (ledger.SettlementResponse, error) {
	return ledger.SettlementResponse{Outcome: ledger.SettlementSucceeded, Code: "00"}, nil
}

func (approvingLeg) Status(context.Context, ledger.TenantID, ledger.TransactionID) (ledger.SettlementResponse, error) {
	return ledger.SettlementResponse{Outcome: ledger.SettlementSucceeded, Code: "00"}, nil
}

func newConcurrentService(test *testing.T, store *Store) *ledger.Service {
	test.Helper()
	guard, err := ledger.NewGuard(4)
	if err != nil {
		test.Fatalf("guard: %v", err)
	}
	service, err := ledger.NewService(store, store, func() int64 { return time.Now().UTC().Unix() },
		ledger.WithSettlementLeg(approvingLeg{}),
		ledger.WithGuard(guard),
	)
	if err != nil {
		test.Fatalf("service: %v", err)
	}
	if err := service.SetSecret(context.Background(), mustTenant(test), mustUser(test), testSecret); err != nil {
		test.Fatalf("secret: %v", err)
	}
	return service
}

func TestConcurrentTransfersRespectBalanceAndDailyLimit(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name          string
		balance       string
		dailyLimit    string
		transfers     int
		amount        string
		wantCompleted int
		wantRejection string
	}{
		{name: "balance bound", balance: "12000", dailyLimit: "100000", transfers: 10, amount: "5000", wantCompleted: 2, wantRejection: ledger.CodeInsufficientFunds},
		{name: "daily limit bound", balance: "100000", dailyLimit: "30000", transfers: 12, amount: "5000", wantCompleted: 6, wantRejection: ledger.CodeLimitExceeded},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			store := newTestStore(test)
			service := newConcurrentService(test, store)
			ctx := context.Background()
			dailyLimit := ledger.MustParseAmount(testCase.dailyLimit)
			wallet, err := service.OpenWallet(ctx, ledger.OpenWalletRequest{
				TenantID:       mustTenant(test),
				UserID:         mustUser(test),
				WalletID:       mustWalletID(test, testWallet),
				OpeningBalance: ledger.MustParseAmount(testCase.balance),
				KYCTier:        3,
				DailyLimit:     &dailyLimit,
			})
			if err != nil {
				test.Fatalf("open wallet: %v", err)
			}
			recipient, err := ledger.NewExternalRecipient(testAccount, testBankCode, testRecipient)
			if err != nil {
				test.Fatalf("recipient: %v", err)
			}

			codes := make([]string, testCase.transfers)
			errs := make([]error, testCase.transfers)
			var wg sync.WaitGroup
			for index := 0; index < testCase.transfers; index++ {
				wg.Add(1)
				go func(index int) {
					defer wg.Done()
					reference, _ := ledger.NewReference(fmt.Sprintf("concurrent-%d", index))
					result, err := service.InitiateTransfer(ctx, ledger.TransferRequest{
						TenantID:  wallet.TenantID,
						UserID:    wallet.UserID,
						WalletID:  wallet.ID,
						Reference: reference,
						Recipient: recipient,
						Amount:    ledger.MustParseAmount(testCase.amount),
						Secret:    testSecret,
					})
					errs[index] = err
					if result != nil {
						codes[index] = result.Code()
					}
				}(index)
			}
			wg.Wait()

			completed := 0
			for index, code := range codes {
				if errs[index] != nil {
					test.Fatalf("transfer %d: %v", index, errs[index])
				}
				switch code {
				case ledger.CodeCompleted:
					completed++
				case testCase.wantRejection:
				default:
					test.Fatalf("transfer %d: unexpected code %s", index, code)
				}
			}
			if completed != testCase.wantCompleted {
				test.Fatalf("expected %d completed transfers, got %d", testCase.wantCompleted, completed)
			}

			stored, err := store.GetWallet(ctx, wallet.TenantID, wallet.ID)
			if err != nil {
				test.Fatalf("wallet: %v", err)
			}
			spent := ledger.MustParseAmount(testCase.amount) * ledger.Amount(completed)
			expected := ledger.MustParseAmount(testCase.balance) - spent
			if stored.AvailableBalance < 0 || stored.AvailableBalance != expected || stored.Balance != expected {
				test.Fatalf("expected balances %s, got %s/%s", expected, stored.Balance, stored.AvailableBalance)
			}
			snapshot, err := service.Limits(ctx, wallet.TenantID, wallet.ID)
			if err != nil {
				test.Fatalf("limits: %v", err)
			}
			if snapshot.DailySpent > dailyLimit || snapshot.DailySpent != spent {
				test.Fatalf("expected daily spend %s within %s, got %s", spent, dailyLimit, snapshot.DailySpent)
			}
		})
	}
}
