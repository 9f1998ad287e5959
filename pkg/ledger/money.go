package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const minorUnitExponent = 2

// Amount is an exact currency value in minor units (kobo for NGN).
type Amount int64

// Currency is an ISO 4217 alphabetic code.
type Currency struct {
	value string
}

// NewAmount validates a non-negative amount in minor units.
func NewAmount(raw int64) (Amount, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidAmount)
	}
	return Amount(raw), nil
}

// NewPositiveAmount validates an amount in minor units and requires it to be greater than zero.
func NewPositiveAmount(raw int64) (Amount, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return Amount(raw), nil
}

// ParseAmount parses a major-unit decimal string such as "20000" or "52.50".
// Values with more than two fractional digits are rejected rather than rounded.
func ParseAmount(raw string) (Amount, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	parsed, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if parsed.IsNegative() {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidAmount)
	}
	if !parsed.Equal(parsed.Truncate(minorUnitExponent)) {
		return 0, fmt.Errorf("%w: at most %d fractional digits", ErrInvalidAmount, minorUnitExponent)
	}
	minor := parsed.Shift(minorUnitExponent)
	if !minor.IsInteger() || minor.GreaterThan(decimal.NewFromInt(maxAmountMinor)) {
		return 0, fmt.Errorf("%w: out of range", ErrInvalidAmount)
	}
	return Amount(minor.IntPart()), nil
}

// MustParseAmount is ParseAmount for constants known to be valid.
func MustParseAmount(raw string) Amount {
	amount, err := ParseAmount(raw)
	if err != nil {
		panic(err)
	}
	return amount
}

const maxAmountMinor = int64(1) << 53

// Int64 returns the amount in minor units.
func (amount Amount) Int64() int64 {
	return int64(amount)
}

// Decimal returns the amount in major units.
func (amount Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(amount), -minorUnitExponent)
}

// String formats the amount in major units with two fractional digits.
func (amount Amount) String() string {
	return amount.Decimal().StringFixed(minorUnitExponent)
}

// NewCurrency validates and normalizes a currency code.
func NewCurrency(raw string) (Currency, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if len(normalized) != 3 {
		return Currency{}, fmt.Errorf("%w: must be a three-letter code", ErrInvalidCurrency)
	}
	for _, character := range normalized {
		if character < 'A' || character > 'Z' {
			return Currency{}, fmt.Errorf("%w: must be a three-letter code", ErrInvalidCurrency)
		}
	}
	return Currency{value: normalized}, nil
}

// DefaultCurrency returns the naira currency used when none is configured.
func DefaultCurrency() Currency {
	return Currency{value: defaultCurrencyCode}
}

// String returns the normalized code.
func (currency Currency) String() string {
	return currency.value
}

// IsZero reports whether no currency was set.
func (currency Currency) IsZero() bool {
	return currency.value == ""
}
