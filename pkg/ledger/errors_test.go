package ledger

import (
	"errors"
	"fmt"
	"testing"
)

const (
	storeOperation     = "store"
	transactionSubject = "transaction"
	duplicateCode      = "duplicate"
)

func TestOperationErrorFormatting(test *testing.T) {
	test.Parallel()
	wrappedError := WrapError(storeOperation, transactionSubject, duplicateCode, ErrDuplicateReference)
	expected := "store.transaction.duplicate: duplicate transaction reference"
	if wrappedError == nil || wrappedError.Error() != expected {
		test.Fatalf("expected %q, got %v", expected, wrappedError)
	}
	var operationError OperationError
	if !errors.As(wrappedError, &operationError) {
		test.Fatalf("expected OperationError, got %T", wrappedError)
	}
	if operationError.Operation() != storeOperation || operationError.Subject() != transactionSubject || operationError.Code() != duplicateCode {
		test.Fatalf("unexpected segments: %s/%s/%s", operationError.Operation(), operationError.Subject(), operationError.Code())
	}
}

func TestWrapErrorNil(test *testing.T) {
	test.Parallel()
	if WrapError(storeOperation, transactionSubject, duplicateCode, nil) != nil {
		test.Fatalf("expected nil wrapped error")
	}
}

func TestDomainErrorsSurviveWrapping(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name     string
		sentinel error
		subject  string
	}{
		{name: "duplicate reference", sentinel: ErrDuplicateReference, subject: transactionSubject},
		{name: "reversal exists", sentinel: ErrReversalExists, subject: "reversal"},
		{name: "transaction closed", sentinel: ErrTransactionClosed, subject: transactionSubject},
		{name: "wallet missing", sentinel: ErrWalletNotFound, subject: "wallet"},
		{name: "settlement unconfirmed", sentinel: ErrSettlementUnconfirmed, subject: "settlement"},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			wrapped := fmt.Errorf("release tx-1: %w", WrapError(storeOperation, testCase.subject, "conflict", testCase.sentinel))
			if !errors.Is(wrapped, testCase.sentinel) {
				test.Fatalf(errorMismatchMessage, testCase.sentinel, wrapped)
			}
			if errors.Is(wrapped, ErrInvariantViolation) {
				test.Fatalf("%v must not read as an invariant violation", wrapped)
			}
		})
	}
}

func TestInvariantErrorWrapsSentinel(test *testing.T) {
	test.Parallel()
	err := invariantError("wallet", "available %s exceeds balance %s", "500.00", "400.00")
	if !errors.Is(err, ErrInvariantViolation) {
		test.Fatalf(errorMismatchMessage, ErrInvariantViolation, err)
	}
	var operationError OperationError
	if !errors.As(err, &operationError) {
		test.Fatalf("expected OperationError, got %T", err)
	}
	if operationError.Operation() != "service" || operationError.Subject() != "wallet" || operationError.Code() != "invariant" {
		test.Fatalf("unexpected segments: %s/%s/%s", operationError.Operation(), operationError.Subject(), operationError.Code())
	}
	expected := "service.wallet.invariant: ledger invariant violated: available 500.00 exceeds balance 400.00"
	if err.Error() != expected {
		test.Fatalf("expected %q, got %q", expected, err.Error())
	}
}
