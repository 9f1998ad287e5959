package ledger

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Guard verifies transaction secrets against stored one-way hashes.
// It holds no attempt state; callers persist counters through a SecretStore.
type Guard struct {
	cost int
}

// NewGuard builds a Guard hashing with the given bcrypt cost (0 selects bcrypt.DefaultCost).
func NewGuard(cost int) (Guard, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return Guard{}, fmt.Errorf("%w: bcrypt cost %d out of range", ErrInvalidServiceConfig, cost)
	}
	return Guard{cost: cost}, nil
}

// Verify reports whether secretPlaintext matches storedHash. Any error,
// an empty hash, or an empty secret verifies as false.
func (guard Guard) Verify(secretPlaintext string, storedHash string) bool {
	if secretPlaintext == "" || strings.TrimSpace(storedHash) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(secretPlaintext)) == nil
}

// Hash validates the secret format and returns its bcrypt hash.
func (guard Guard) Hash(secretPlaintext string) (string, error) {
	if err := ValidateSecret(secretPlaintext); err != nil {
		return "", err
	}
	cost := guard.cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secretPlaintext), cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return string(hashed), nil
}

// ValidateSecret checks a transaction secret is 4 to 6 digits.
func ValidateSecret(secretPlaintext string) error {
	if len(secretPlaintext) < minSecretLength || len(secretPlaintext) > maxSecretLength || !allDigits(secretPlaintext) {
		return fmt.Errorf("%w: must be %d-%d digits", ErrInvalidSecret, minSecretLength, maxSecretLength)
	}
	return nil
}

// SecretPolicy configures lockout after repeated verification failures.
type SecretPolicy struct {
	MaxAttempts  int
	LockDuration time.Duration
}

// DefaultSecretPolicy locks a user for 30 minutes after 5 failed attempts.
func DefaultSecretPolicy() SecretPolicy {
	return SecretPolicy{MaxAttempts: defaultMaxAttempts, LockDuration: defaultLockDuration}
}

func (policy SecretPolicy) validate() error {
	if policy.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max attempts must be positive", ErrInvalidServiceConfig)
	}
	if policy.LockDuration <= 0 {
		return fmt.Errorf("%w: lock duration must be positive", ErrInvalidServiceConfig)
	}
	return nil
}
