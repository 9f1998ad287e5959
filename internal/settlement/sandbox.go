package settlement

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/walletledger/pkg/ledger"
	"github.com/oklog/ulid/v2"
)

const (
	// SandboxFailAccountSuffix makes the sandbox decline a transfer.
	SandboxFailAccountSuffix = "99"
	// SandboxPendingAccountSuffix makes the sandbox leave a transfer inconclusive until it is queried.
	SandboxPendingAccountSuffix = "98"
	sandboxProviderPrefix       = "SBX"
)

// Sandbox is an in-memory leg for development and demos.
// Outcomes are picked by the recipient account number suffix.
type Sandbox struct {
	latency time.Duration

	mu        sync.Mutex
	transfers map[string]ledger.SettlementResponse
}

// NewSandbox returns a sandbox leg that waits latency before answering.
func NewSandbox(latency time.Duration) *Sandbox {
	return &Sandbox{latency: latency, transfers: make(map[string]ledger.SettlementResponse)}
}

func (sandbox *Sandbox) Submit(ctx context.Context, request ledger.SettlementRequest) (ledger.SettlementResponse, error) {
	if err := sleepContext(ctx, sandbox.latency); err != nil {
		return ledger.SettlementResponse{}, err
	}
	sandbox.mu.Lock()
	defer sandbox.mu.Unlock()
	key := sandboxKey(request.TenantID, request.TransactionID)
	if existing, ok := sandbox.transfers[key]; ok {
		return existing, nil
	}
	response := ledger.SettlementResponse{
		ProviderReference: sandboxProviderPrefix + ulid.Make().String(),
	}
	switch {
	case strings.HasSuffix(request.Recipient.AccountNumber, SandboxFailAccountSuffix):
		response.Outcome = ledger.SettlementFailed
		response.Code = "07"
		response.Message = "invalid account"
	case strings.HasSuffix(request.Recipient.AccountNumber, SandboxPendingAccountSuffix):
		response.Outcome = ledger.SettlementUnknown
		response.Code = "09"
		response.Message = "transaction in progress"
	default:
		response.Outcome = ledger.SettlementSucceeded
		response.Code = nipSuccessCode
	}
	sandbox.transfers[key] = response
	return response, nil
}

// Status settles inconclusive sandbox transfers as successful on the first query.
func (sandbox *Sandbox) Status(_ context.Context, tenantID ledger.TenantID, transactionID ledger.TransactionID) (ledger.SettlementResponse, error) {
	sandbox.mu.Lock()
	defer sandbox.mu.Unlock()
	key := sandboxKey(tenantID, transactionID)
	response, ok := sandbox.transfers[key]
	if !ok {
		return ledger.SettlementResponse{Outcome: ledger.SettlementFailed, Code: "25", Message: "unknown transaction"}, nil
	}
	if response.Outcome == ledger.SettlementUnknown {
		response.Outcome = ledger.SettlementSucceeded
		response.Code = nipSuccessCode
		response.Message = ""
		sandbox.transfers[key] = response
	}
	return response, nil
}

// NameEnquiry answers for any account except those ending in SandboxFailAccountSuffix.
func (sandbox *Sandbox) NameEnquiry(ctx context.Context, accountNumber string, bankCode string) (ledger.AccountIdentity, error) {
	if err := sleepContext(ctx, sandbox.latency); err != nil {
		return ledger.AccountIdentity{}, err
	}
	if strings.HasSuffix(accountNumber, SandboxFailAccountSuffix) {
		return ledger.AccountIdentity{}, fmt.Errorf("%w: %s at %s", ledger.ErrAccountNotFound, accountNumber, bankCode)
	}
	suffix := accountNumber
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return ledger.AccountIdentity{
		AccountNumber: accountNumber,
		BankCode:      bankCode,
		AccountName:   "Sandbox Account " + suffix,
		KYCLevel:      "3",
		SessionID:     sandboxProviderPrefix + ulid.Make().String(),
	}, nil
}

func sandboxKey(tenantID ledger.TenantID, transactionID ledger.TransactionID) string {
	return tenantID.String() + "/" + transactionID.String()
}
