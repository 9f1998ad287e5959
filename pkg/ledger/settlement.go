package ledger

import "context"

// SettlementOutcome is the three-way result of the external leg.
type SettlementOutcome string

const (
	SettlementSucceeded SettlementOutcome = "success"
	SettlementFailed    SettlementOutcome = "failed"
	SettlementUnknown   SettlementOutcome = "unknown"
)

// SettlementRequest asks the external leg to move value to a recipient.
// TransactionID is the idempotency key the leg must honor.
type SettlementRequest struct {
	TenantID      TenantID
	TransactionID TransactionID
	Reference     Reference
	SessionID     string
	Recipient     Recipient
	Amount        Amount
	Currency      Currency
	Narration     string
}

// SettlementResponse reports what the leg knows about a transfer.
type SettlementResponse struct {
	Outcome           SettlementOutcome
	ProviderReference string
	Code              string
	Message           string
}

// SettlementLeg moves value outside the ledger.
// Errors are treated as an unknown outcome; only an explicit SettlementFailed releases funds.
type SettlementLeg interface {
	Submit(ctx context.Context, request SettlementRequest) (SettlementResponse, error)
	Status(ctx context.Context, tenantID TenantID, transactionID TransactionID) (SettlementResponse, error)
}
