package ledger

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the ledger service and its stores.
var (
	ErrWalletNotFound         = errors.New("wallet not found")
	ErrWalletExists           = errors.New("wallet already exists")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrCredentialNotFound     = errors.New("credential not found")
	ErrDuplicateReference     = errors.New("duplicate transaction reference")
	ErrReversalExists         = errors.New("reversal already recorded")
	ErrReversalUnsupported    = errors.New("completed internal transfers cannot be reversed")
	ErrTransactionClosed      = errors.New("transaction status changed concurrently")
	ErrSettlementUnconfirmed  = errors.New("settlement failure not confirmed by the leg")
	ErrAccountNotFound        = errors.New("bank account not found")
	ErrEnquiryUnavailable     = errors.New("name enquiry is not configured")
	ErrInvariantViolation     = errors.New("ledger invariant violated")
	ErrInvalidTenantID        = errors.New("invalid tenant id")
	ErrInvalidUserID          = errors.New("invalid user id")
	ErrInvalidWalletID        = errors.New("invalid wallet id")
	ErrInvalidTransactionID   = errors.New("invalid transaction id")
	ErrInvalidReference       = errors.New("invalid transaction reference")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidCurrency        = errors.New("invalid currency")
	ErrInvalidRecipient       = errors.New("invalid recipient")
	ErrInvalidSecret          = errors.New("invalid transaction secret")
	ErrInvalidLimits          = errors.New("invalid wallet limits")
	ErrInvalidWalletStatus    = errors.New("invalid wallet status")
	ErrInvalidTransactionKind = errors.New("invalid transaction kind")
	ErrInvalidStatus          = errors.New("invalid transaction status")
	ErrInvalidServiceConfig   = errors.New("invalid service config")
	ErrInvalidPage            = errors.New("invalid page")
)

// Stable machine-readable codes reported by TransferResult variants.
const (
	CodeCompleted           = "COMPLETED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInsufficientFunds   = "INSUFFICIENT_FUNDS"
	CodeLimitExceeded       = "LIMIT_EXCEEDED"
	CodeInvalidRecipient    = "INVALID_RECIPIENT"
	CodeInvalidAmount       = "INVALID_AMOUNT"
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
	CodeWalletNotFound      = "WALLET_NOT_FOUND"
	CodeWalletInactive      = "WALLET_INACTIVE"
	CodeDuplicateRequest    = "DUPLICATE_REQUEST"
	CodeSettlementFailed    = "SETTLEMENT_FAILED"
	CodeSettlementPending   = "SETTLEMENT_PENDING"
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}

func invariantError(subject string, format string, args ...any) error {
	return WrapError("service", subject, "invariant", fmt.Errorf("%w: "+format, append([]any{ErrInvariantViolation}, args...)...))
}
