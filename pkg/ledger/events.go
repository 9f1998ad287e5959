package ledger

// EventType names a transfer lifecycle event.
type EventType string

const (
	EventTransferInitiated EventType = "initiated"
	EventTransferCompleted EventType = "completed"
	EventTransferFailed    EventType = "failed"
	EventTransferReversed  EventType = "reversed"
	EventWalletFunded      EventType = "funded"
)

// Event is published after a transfer state change has committed.
type Event struct {
	Type            EventType         `json:"type"`
	TenantID        string            `json:"tenant_id"`
	UserID          string            `json:"user_id"`
	WalletID        string            `json:"wallet_id"`
	TransactionID   string            `json:"transaction_id"`
	Reference       string            `json:"reference"`
	Status          TransactionStatus `json:"status"`
	Amount          string            `json:"amount"`
	Fee             string            `json:"fee"`
	Currency        string            `json:"currency"`
	Reason          string            `json:"reason,omitempty"`
	Data            map[string]string `json:"data,omitempty"`
	OccurredUnixUTC int64             `json:"occurred_at"`
}

// EventPublisher accepts events without waiting for delivery.
// Publish must not block and must not report delivery failures to the caller.
type EventPublisher interface {
	Publish(event Event)
}

type discardPublisher struct{}

func (discardPublisher) Publish(Event) {}

func newEvent(eventType EventType, transaction Transaction, occurredUnixUTC int64) Event {
	event := Event{
		Type:            eventType,
		TenantID:        transaction.TenantID.String(),
		UserID:          transaction.UserID.String(),
		WalletID:        transaction.WalletID.String(),
		TransactionID:   transaction.ID.String(),
		Reference:       transaction.Reference.String(),
		Status:          transaction.Status,
		Amount:          transaction.Amount.String(),
		Fee:             transaction.Fee.String(),
		Currency:        transaction.Currency.String(),
		Reason:          transaction.FailureReason,
		OccurredUnixUTC: occurredUnixUTC,
		Data:            map[string]string{},
	}
	if transaction.Kind != TransactionKindFunding {
		event.Data["recipient_name"] = transaction.Recipient.Name
	}
	switch {
	case transaction.Kind == TransactionKindFunding:
	case transaction.Recipient.Internal():
		event.Data["recipient_wallet_id"] = transaction.Recipient.WalletID.String()
	default:
		event.Data["recipient_account"] = transaction.Recipient.AccountNumber
		event.Data["recipient_bank_code"] = transaction.Recipient.BankCode
	}
	if transaction.ProviderReference != "" {
		event.Data["provider_reference"] = transaction.ProviderReference
	}
	if !transaction.ReversalOf.IsZero() {
		event.Data["reversal_of"] = transaction.ReversalOf.String()
	}
	return event
}
