package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FeeSchedule prices a transfer. Fees are reserved and debited together with the amount.
type FeeSchedule interface {
	Fee(recipient Recipient, amount Amount) (Amount, error)
}

// NoFees charges nothing.
type NoFees struct{}

// Fee always returns zero.
func (NoFees) Fee(Recipient, Amount) (Amount, error) {
	return 0, nil
}

// FlatFeeSchedule charges a fixed fee per external transfer with optional per-bank overrides.
type FlatFeeSchedule struct {
	External      Amount
	Internal      Amount
	BankOverrides map[string]Amount
}

// NIPFlatFee returns the interbank flat fee of 52.50 for external transfers.
func NIPFlatFee() FlatFeeSchedule {
	return FlatFeeSchedule{External: MustParseAmount("52.50")}
}

// Fee returns the configured flat fee.
func (schedule FlatFeeSchedule) Fee(recipient Recipient, _ Amount) (Amount, error) {
	if recipient.Internal() {
		return NewAmount(schedule.Internal.Int64())
	}
	if override, ok := schedule.BankOverrides[recipient.BankCode]; ok {
		return NewAmount(override.Int64())
	}
	return NewAmount(schedule.External.Int64())
}

// RateFeeSchedule charges a percentage of the amount, clamped to [Minimum, Cap], rounded half up to the minor unit.
// Internal transfers are free.
type RateFeeSchedule struct {
	RatePercent decimal.Decimal
	Minimum     Amount
	Cap         Amount
}

// Fee returns the clamped percentage fee.
func (schedule RateFeeSchedule) Fee(recipient Recipient, amount Amount) (Amount, error) {
	if schedule.RatePercent.IsNegative() {
		return 0, fmt.Errorf("%w: negative fee rate", ErrInvalidServiceConfig)
	}
	if recipient.Internal() {
		return 0, nil
	}
	minor := decimal.NewFromInt(amount.Int64()).Mul(schedule.RatePercent).Div(decimal.NewFromInt(100)).Round(0)
	fee := Amount(minor.IntPart())
	if fee < schedule.Minimum {
		fee = schedule.Minimum
	}
	if schedule.Cap > 0 && fee > schedule.Cap {
		fee = schedule.Cap
	}
	return NewAmount(fee.Int64())
}
