package ledger

import (
	"context"
	"time"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing ledger operation.
type OperationLog struct {
	Operation     string
	TenantID      TenantID
	UserID        UserID
	WalletID      WalletID
	TransactionID TransactionID
	Reference     Reference
	Amount        Amount
	Fee           Amount
	Code          string
	Status        string
	Duration      time.Duration
	Error         error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithEventPublisher wires the outbound event channel.
func WithEventPublisher(publisher EventPublisher) ServiceOption {
	return func(service *Service) {
		if publisher != nil {
			service.events = publisher
		}
	}
}

// WithSettlementLeg wires the external settlement leg.
func WithSettlementLeg(leg SettlementLeg) ServiceOption {
	return func(service *Service) {
		service.settlement = leg
	}
}

// WithLimitEvaluator replaces the default tier table evaluator.
func WithLimitEvaluator(evaluator *LimitEvaluator) ServiceOption {
	return func(service *Service) {
		if evaluator != nil {
			service.limits = evaluator
		}
	}
}

// WithFeeSchedule sets how transfers are priced. The default charges nothing.
func WithFeeSchedule(schedule FeeSchedule) ServiceOption {
	return func(service *Service) {
		if schedule != nil {
			service.fees = schedule
		}
	}
}

// WithGuard replaces the default bcrypt guard.
func WithGuard(guard Guard) ServiceOption {
	return func(service *Service) {
		service.guard = guard
	}
}

// WithSecretPolicy sets lockout thresholds.
func WithSecretPolicy(policy SecretPolicy) ServiceOption {
	return func(service *Service) {
		service.secretPolicy = policy
	}
}

// WithSettlementTimeout bounds each settlement call.
func WithSettlementTimeout(timeout time.Duration) ServiceOption {
	return func(service *Service) {
		service.settlementTimeout = timeout
	}
}

// WithAmountBounds sets the inclusive range accepted for a single transfer.
func WithAmountBounds(minimum Amount, maximum Amount) ServiceOption {
	return func(service *Service) {
		service.minAmount = minimum
		service.maxAmount = maximum
	}
}

// WithIDGenerator overrides transaction id generation.
func WithIDGenerator(generate func() string) ServiceOption {
	return func(service *Service) {
		if generate != nil {
			service.newID = generate
		}
	}
}

// WithReferenceGenerator overrides generation of references for requests that carry none.
func WithReferenceGenerator(generate func() string) ServiceOption {
	return func(service *Service) {
		if generate != nil {
			service.newReference = generate
		}
	}
}
