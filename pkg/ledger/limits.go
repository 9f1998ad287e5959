package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// LimitWindow names a spend-limit accounting period.
type LimitWindow string

const (
	LimitWindowDaily   LimitWindow = "daily"
	LimitWindowMonthly LimitWindow = "monthly"
)

// TierLimits are the default ceilings for one KYC tier.
type TierLimits struct {
	Daily   Amount
	Monthly Amount
}

// TierTable maps KYC tier to default ceilings.
type TierTable map[int]TierLimits

// DefaultTierTable returns the naira ceilings per verification tier.
func DefaultTierTable() TierTable {
	return TierTable{
		1: {Daily: MustParseAmount("50000"), Monthly: MustParseAmount("200000")},
		2: {Daily: MustParseAmount("100000"), Monthly: MustParseAmount("500000")},
		3: {Daily: MustParseAmount("500000"), Monthly: MustParseAmount("5000000")},
	}
}

// Validate requires ceilings to grow with the tier and daily never to exceed monthly.
func (table TierTable) Validate() error {
	if len(table) == 0 {
		return fmt.Errorf("%w: tier table is empty", ErrInvalidServiceConfig)
	}
	tiers := table.sortedTiers()
	previous := TierLimits{}
	for _, tier := range tiers {
		limits := table[tier]
		if limits.Daily <= 0 || limits.Monthly <= 0 || limits.Daily > limits.Monthly {
			return fmt.Errorf("%w: tier %d limits are inconsistent", ErrInvalidServiceConfig, tier)
		}
		if limits.Daily < previous.Daily || limits.Monthly < previous.Monthly {
			return fmt.Errorf("%w: tier %d limits decrease", ErrInvalidServiceConfig, tier)
		}
		previous = limits
	}
	return nil
}

// lookup returns the ceilings for tier, falling back to the lowest tier.
func (table TierTable) lookup(tier int) TierLimits {
	if limits, ok := table[tier]; ok {
		return limits
	}
	return table[table.sortedTiers()[0]]
}

func (table TierTable) sortedTiers() []int {
	tiers := make([]int, 0, len(table))
	for tier := range table {
		tiers = append(tiers, tier)
	}
	sort.Ints(tiers)
	return tiers
}

// SpendReader aggregates spend for a wallet. Store satisfies it.
type SpendReader interface {
	SumSpend(ctx context.Context, tenantID TenantID, walletID WalletID, fromUnixUTC int64, toUnixUTC int64) (Amount, error)
}

// LimitSnapshot is the state of both windows for a wallet at an instant.
type LimitSnapshot struct {
	WalletID         WalletID
	Currency         Currency
	DailyLimit       Amount
	MonthlyLimit     Amount
	DailySpent       Amount
	MonthlySpent     Amount
	DailyRemaining   Amount
	MonthlyRemaining Amount
	AsOfUnixUTC      int64
}

// LimitDecision is the outcome of evaluating a requested amount.
type LimitDecision struct {
	LimitSnapshot
	Requested Amount
	Allowed   bool
	Window    LimitWindow
	Reason    string
}

// Limit returns the ceiling of the window that denied the request.
func (decision LimitDecision) Limit() Amount {
	if decision.Window == LimitWindowMonthly {
		return decision.MonthlyLimit
	}
	return decision.DailyLimit
}

// Spent returns the consumed amount of the window that denied the request.
func (decision LimitDecision) Spent() Amount {
	if decision.Window == LimitWindowMonthly {
		return decision.MonthlySpent
	}
	return decision.DailySpent
}

// Remaining returns what is left in the window that denied the request.
func (decision LimitDecision) Remaining() Amount {
	if decision.Window == LimitWindowMonthly {
		return decision.MonthlyRemaining
	}
	return decision.DailyRemaining
}

// LimitEvaluator computes daily and monthly spend against effective ceilings.
type LimitEvaluator struct {
	tiers    TierTable
	location *time.Location
}

// NewLimitEvaluator builds an evaluator. Day and month boundaries are computed in location.
func NewLimitEvaluator(tiers TierTable, location *time.Location) (*LimitEvaluator, error) {
	if err := tiers.Validate(); err != nil {
		return nil, err
	}
	if location == nil {
		return nil, fmt.Errorf("%w: location is nil", ErrInvalidServiceConfig)
	}
	return &LimitEvaluator{tiers: tiers, location: location}, nil
}

// EffectiveLimits returns the wallet's explicit limits where configured, else its tier defaults.
func (evaluator *LimitEvaluator) EffectiveLimits(wallet Wallet) TierLimits {
	limits := evaluator.tiers.lookup(wallet.KYCTier)
	if wallet.DailyLimit != nil {
		limits.Daily = *wallet.DailyLimit
	}
	if wallet.MonthlyLimit != nil {
		limits.Monthly = *wallet.MonthlyLimit
	}
	return limits
}

// Snapshot aggregates pending and completed transfers in [startOfDay, asOf] and [startOfMonth, asOf].
func (evaluator *LimitEvaluator) Snapshot(ctx context.Context, reader SpendReader, wallet Wallet, asOfUnixUTC int64) (LimitSnapshot, error) {
	asOf := time.Unix(asOfUnixUTC, 0).In(evaluator.location)
	startOfDay := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, evaluator.location)
	startOfMonth := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, evaluator.location)
	dailySpent, err := reader.SumSpend(ctx, wallet.TenantID, wallet.ID, startOfDay.Unix(), asOfUnixUTC)
	if err != nil {
		return LimitSnapshot{}, err
	}
	monthlySpent, err := reader.SumSpend(ctx, wallet.TenantID, wallet.ID, startOfMonth.Unix(), asOfUnixUTC)
	if err != nil {
		return LimitSnapshot{}, err
	}
	limits := evaluator.EffectiveLimits(wallet)
	return LimitSnapshot{
		WalletID:         wallet.ID,
		Currency:         wallet.Currency,
		DailyLimit:       limits.Daily,
		MonthlyLimit:     limits.Monthly,
		DailySpent:       dailySpent,
		MonthlySpent:     monthlySpent,
		DailyRemaining:   remaining(limits.Daily, dailySpent),
		MonthlyRemaining: remaining(limits.Monthly, monthlySpent),
		AsOfUnixUTC:      asOfUnixUTC,
	}, nil
}

// Evaluate decides whether requested fits both windows. The daily window is reported first when both fail.
// Callers reserving funds must evaluate inside the same transaction that holds the wallet row lock.
func (evaluator *LimitEvaluator) Evaluate(ctx context.Context, reader SpendReader, wallet Wallet, requested Amount, asOfUnixUTC int64) (LimitDecision, error) {
	snapshot, err := evaluator.Snapshot(ctx, reader, wallet, asOfUnixUTC)
	if err != nil {
		return LimitDecision{}, err
	}
	decision := LimitDecision{LimitSnapshot: snapshot, Requested: requested, Allowed: true}
	switch {
	case snapshot.DailySpent+requested > snapshot.DailyLimit:
		decision.Allowed = false
		decision.Window = LimitWindowDaily
	case snapshot.MonthlySpent+requested > snapshot.MonthlyLimit:
		decision.Allowed = false
		decision.Window = LimitWindowMonthly
	}
	if !decision.Allowed {
		decision.Reason = fmt.Sprintf("%s limit of %s exceeded: spent %s, requested %s, remaining %s",
			decision.Window, decision.Limit(), decision.Spent(), requested, decision.Remaining())
	}
	return decision, nil
}

func remaining(limit Amount, spent Amount) Amount {
	if spent >= limit {
		return 0
	}
	return limit - spent
}
