package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// AccountIdentity is the registered holder of a bank account as reported by the payment network.
type AccountIdentity struct {
	AccountNumber          string
	BankCode               string
	AccountName            string
	BankVerificationNumber string
	KYCLevel               string
	SessionID              string
}

// NameEnquirer resolves a bank account to its registered holder before money is sent to it.
// Implementations return ErrAccountNotFound when the bank does not know the account.
type NameEnquirer interface {
	NameEnquiry(ctx context.Context, accountNumber string, bankCode string) (AccountIdentity, error)
}

// WithNameEnquirer wires recipient verification. Without it VerifyRecipient returns ErrEnquiryUnavailable.
func WithNameEnquirer(enquirer NameEnquirer) ServiceOption {
	return func(service *Service) {
		service.enquirer = enquirer
	}
}

// VerifyRecipient looks up the holder of an external account.
func (service *Service) VerifyRecipient(ctx context.Context, tenantID TenantID, accountNumber string, bankCode string) (AccountIdentity, error) {
	startedAt := time.Now()
	identity, err := service.verifyRecipient(ctx, tenantID, accountNumber, bankCode)
	service.logOperation(ctx, OperationLog{
		Operation: operationVerifyRecipient,
		TenantID:  tenantID,
		Duration:  time.Since(startedAt),
		Error:     err,
	})
	return identity, err
}

func (service *Service) verifyRecipient(ctx context.Context, tenantID TenantID, accountNumber string, bankCode string) (AccountIdentity, error) {
	if tenantID.IsZero() {
		return AccountIdentity{}, fmt.Errorf("%w: empty value", ErrInvalidTenantID)
	}
	if service.enquirer == nil {
		return AccountIdentity{}, ErrEnquiryUnavailable
	}
	// Only the account coordinates are checked; the holder name is what the enquiry returns.
	candidate := Recipient{AccountNumber: strings.TrimSpace(accountNumber), BankCode: strings.TrimSpace(bankCode), Name: "enquiry"}
	if err := candidate.Validate(); err != nil {
		return AccountIdentity{}, err
	}
	enquiryCtx, cancel := context.WithTimeout(ctx, service.settlementTimeout)
	defer cancel()
	identity, err := service.enquirer.NameEnquiry(enquiryCtx, candidate.AccountNumber, candidate.BankCode)
	if err != nil {
		return AccountIdentity{}, err
	}
	if strings.TrimSpace(identity.AccountName) == "" {
		return AccountIdentity{}, fmt.Errorf("%w: %s at %s returned no name", ErrAccountNotFound, candidate.AccountNumber, candidate.BankCode)
	}
	return identity, nil
}
