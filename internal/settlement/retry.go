package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/walletledger/pkg/ledger"
	"go.uber.org/zap"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 200 * time.Millisecond
	maxRetryBackoff      = 5 * time.Second
)

// RetryConfig bounds the retries of a leg.
type RetryConfig struct {
	Attempts int
	Backoff  time.Duration
}

// Retrying retries transport errors of the wrapped leg with exponential backoff.
// Explicit outcomes, including SettlementUnknown, are returned as is.
type Retrying struct {
	leg      ledger.SettlementLeg
	attempts int
	backoff  time.Duration
	logger   *zap.Logger
	sleep    func(ctx context.Context, delay time.Duration) error
}

// NewRetrying wraps leg. Zero config values fall back to defaults.
func NewRetrying(leg ledger.SettlementLeg, config RetryConfig, logger *zap.Logger) (*Retrying, error) {
	if leg == nil {
		return nil, fmt.Errorf("%w: leg is required", ErrInvalidConfig)
	}
	if config.Attempts < 0 || config.Backoff < 0 {
		return nil, fmt.Errorf("%w: retry attempts and backoff must not be negative", ErrInvalidConfig)
	}
	attempts := config.Attempts
	if attempts == 0 {
		attempts = defaultRetryAttempts
	}
	backoff := config.Backoff
	if backoff == 0 {
		backoff = defaultRetryBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{leg: leg, attempts: attempts, backoff: backoff, logger: logger, sleep: sleepContext}, nil
}

func (retrying *Retrying) Submit(ctx context.Context, request ledger.SettlementRequest) (ledger.SettlementResponse, error) {
	return retrying.do(ctx, "submit", request.TransactionID, func(ctx context.Context) (ledger.SettlementResponse, error) {
		return retrying.leg.Submit(ctx, request)
	})
}

func (retrying *Retrying) Status(ctx context.Context, tenantID ledger.TenantID, transactionID ledger.TransactionID) (ledger.SettlementResponse, error) {
	return retrying.do(ctx, "status", transactionID, func(ctx context.Context) (ledger.SettlementResponse, error) {
		return retrying.leg.Status(ctx, tenantID, transactionID)
	})
}

func (retrying *Retrying) do(ctx context.Context, call string, transactionID ledger.TransactionID, fn func(ctx context.Context) (ledger.SettlementResponse, error)) (ledger.SettlementResponse, error) {
	delay := retrying.backoff
	var lastErr error
	for attempt := 1; attempt <= retrying.attempts; attempt++ {
		response, err := fn(ctx)
		if err == nil {
			return response, nil
		}
		lastErr = err
		retrying.logger.Warn("settlement call failed",
			zap.String("call", call),
			zap.String("transaction_id", transactionID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == retrying.attempts {
			break
		}
		if err := retrying.sleep(ctx, delay); err != nil {
			return ledger.SettlementResponse{}, fmt.Errorf("settlement: %s abandoned after %d attempts: %w", call, attempt, lastErr)
		}
		delay *= 2
		if delay > maxRetryBackoff {
			delay = maxRetryBackoff
		}
	}
	return ledger.SettlementResponse{}, fmt.Errorf("settlement: %s failed after %d attempts: %w", call, retrying.attempts, lastErr)
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
