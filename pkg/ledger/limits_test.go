package ledger

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fixedSpend map[int64]Amount

// SumSpend returns the spend recorded for the window start.
func (spend fixedSpend) SumSpend(_ context.Context, _ TenantID, _ WalletID, fromUnixUTC int64, _ int64) (Amount, error) {
	return spend[fromUnixUTC], nil
}

func TestLimitEvaluatorUsesTierDefaultsAndOverrides(test *testing.T) {
	test.Parallel()
	evaluator, err := NewLimitEvaluator(DefaultTierTable(), time.UTC)
	if err != nil {
		test.Fatalf("evaluator: %v", err)
	}
	testCases := []struct {
		name        string
		wallet      Wallet
		wantDaily   Amount
		wantMonthly Amount
	}{
		{name: "tier one", wallet: Wallet{KYCTier: 1}, wantDaily: mustAmount(test, "50000"), wantMonthly: mustAmount(test, "200000")},
		{name: "tier two", wallet: Wallet{KYCTier: 2}, wantDaily: mustAmount(test, "100000"), wantMonthly: mustAmount(test, "500000")},
		{name: "tier three", wallet: Wallet{KYCTier: 3}, wantDaily: mustAmount(test, "500000"), wantMonthly: mustAmount(test, "5000000")},
		{name: "unknown tier falls back to lowest", wallet: Wallet{KYCTier: 9}, wantDaily: mustAmount(test, "50000"), wantMonthly: mustAmount(test, "200000")},
		{
			name:        "explicit daily override",
			wallet:      Wallet{KYCTier: 1, DailyLimit: mustAmountPointer(test, "75000")},
			wantDaily:   mustAmount(test, "75000"),
			wantMonthly: mustAmount(test, "200000"),
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			limits := evaluator.EffectiveLimits(testCase.wallet)
			if limits.Daily != testCase.wantDaily || limits.Monthly != testCase.wantMonthly {
				test.Fatalf("expected %s/%s, got %s/%s", testCase.wantDaily, testCase.wantMonthly, limits.Daily, limits.Monthly)
			}
		})
	}
}

func TestLimitEvaluatorWindows(test *testing.T) {
	test.Parallel()
	lagos, err := time.LoadLocation("Africa/Lagos")
	if err != nil {
		lagos = time.FixedZone("WAT", 3600)
	}
	evaluator, err := NewLimitEvaluator(DefaultTierTable(), lagos)
	if err != nil {
		test.Fatalf("evaluator: %v", err)
	}
	asOf := time.Date(2026, time.March, 15, 0, 30, 0, 0, lagos)
	startOfDay := time.Date(2026, time.March, 15, 0, 0, 0, 0, lagos).Unix()
	startOfMonth := time.Date(2026, time.March, 1, 0, 0, 0, 0, lagos).Unix()
	wallet := Wallet{KYCTier: 2}

	testCases := []struct {
		name       string
		spend      fixedSpend
		requested  Amount
		wantAllow  bool
		wantWindow LimitWindow
	}{
		{
			name:      "within both windows",
			spend:     fixedSpend{startOfDay: mustAmount(test, "40000"), startOfMonth: mustAmount(test, "100000")},
			requested: mustAmount(test, "60000"),
			wantAllow: true,
		},
		{
			name:       "daily exceeded",
			spend:      fixedSpend{startOfDay: mustAmount(test, "40000"), startOfMonth: mustAmount(test, "100000")},
			requested:  mustAmount(test, "60000.01"),
			wantWindow: LimitWindowDaily,
		},
		{
			name:       "monthly exceeded",
			spend:      fixedSpend{startOfDay: 0, startOfMonth: mustAmount(test, "450000")},
			requested:  mustAmount(test, "50000.01"),
			wantWindow: LimitWindowMonthly,
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			decision, err := evaluator.Evaluate(context.Background(), testCase.spend, wallet, testCase.requested, asOf.Unix())
			if err != nil {
				test.Fatalf("evaluate: %v", err)
			}
			if decision.Allowed != testCase.wantAllow || decision.Window != testCase.wantWindow {
				test.Fatalf("expected allowed=%v window=%q, got %v %q", testCase.wantAllow, testCase.wantWindow, decision.Allowed, decision.Window)
			}
			if !decision.Allowed && decision.Reason == "" {
				test.Fatalf("expected denial reason")
			}
		})
	}
}

func TestLimitEvaluatorExcludesEarlierDays(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	wallet := seedWallet(test, store, walletIDValue, "1000000", func(wallet *Wallet) {
		wallet.KYCTier = 1
	})
	for index, createdAt := range []int64{fixedNowUnixUTC - 2*24*3600, fixedNowUnixUTC - 60} {
		store.seedTransaction(test, Transaction{
			ID:             mustTransactionID(test, []string{"old", "new"}[index]),
			TenantID:       wallet.TenantID,
			Reference:      mustReference(test, []string{"old-ref", "new-ref"}[index]),
			WalletID:       wallet.ID,
			UserID:         wallet.UserID,
			Kind:           TransactionKindTransfer,
			Amount:         mustAmount(test, "10000"),
			Status:         TransactionStatusCompleted,
			CreatedUnixUTC: createdAt,
		})
	}
	store.seedTransaction(test, Transaction{
		ID:             mustTransactionID(test, "failed"),
		TenantID:       wallet.TenantID,
		Reference:      mustReference(test, "failed-ref"),
		WalletID:       wallet.ID,
		UserID:         wallet.UserID,
		Kind:           TransactionKindTransfer,
		Amount:         mustAmount(test, "30000"),
		Status:         TransactionStatusFailed,
		CreatedUnixUTC: fixedNowUnixUTC - 60,
	})
	service := mustNewService(test, store, successfulSettlement())

	snapshot, err := service.Limits(context.Background(), wallet.TenantID, wallet.ID)
	if err != nil {
		test.Fatalf("limits: %v", err)
	}
	if snapshot.DailySpent != mustAmount(test, "10000") || snapshot.MonthlySpent != mustAmount(test, "20000") {
		test.Fatalf("expected spent 10000/20000, got %s/%s", snapshot.DailySpent, snapshot.MonthlySpent)
	}
	if snapshot.DailyRemaining != mustAmount(test, "40000") || snapshot.MonthlyRemaining != mustAmount(test, "180000") {
		test.Fatalf("expected remaining 40000/180000, got %s/%s", snapshot.DailyRemaining, snapshot.MonthlyRemaining)
	}
}

func TestTierTableValidation(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name  string
		table TierTable
	}{
		{name: "empty", table: TierTable{}},
		{name: "daily above monthly", table: TierTable{1: {Daily: 500, Monthly: 100}}},
		{name: "decreasing", table: TierTable{1: {Daily: 500, Monthly: 1000}, 2: {Daily: 400, Monthly: 1000}}},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			if err := testCase.table.Validate(); !errors.Is(err, ErrInvalidServiceConfig) {
				test.Fatalf(errorMismatchMessage, ErrInvalidServiceConfig, err)
			}
		})
	}
	if err := DefaultTierTable().Validate(); err != nil {
		test.Fatalf("default table: %v", err)
	}
}

func TestSetWalletLimitsRejectsDailyAboveMonthly(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	wallet := seedWallet(test, store, walletIDValue, "1000", func(wallet *Wallet) {
		wallet.KYCTier = 1
	})
	service := mustNewService(test, store, successfulSettlement())

	err := service.SetWalletLimits(context.Background(), wallet.TenantID, wallet.ID, mustAmountPointer(test, "300000"), nil)
	if !errors.Is(err, ErrInvalidLimits) {
		test.Fatalf(errorMismatchMessage, ErrInvalidLimits, err)
	}
	if err := service.SetWalletLimits(context.Background(), wallet.TenantID, wallet.ID, mustAmountPointer(test, "150000"), nil); err != nil {
		test.Fatalf("set limits: %v", err)
	}
	updated := store.mustWallet(test, wallet.ID)
	if updated.DailyLimit == nil || *updated.DailyLimit != mustAmount(test, "150000") || updated.MonthlyLimit != nil {
		test.Fatalf("unexpected limits: %+v", updated)
	}
}
