package ledger

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// TenantID identifies the bank or institution that owns a wallet.
type TenantID struct {
	value string
}

// UserID identifies a wallet owner within a tenant.
type UserID struct {
	value string
}

// WalletID identifies a stored-value account.
type WalletID struct {
	value string
}

// TransactionID identifies a transaction record.
type TransactionID struct {
	value string
}

// Reference is the idempotency reference of a transfer, unique per tenant.
type Reference struct {
	value string
}

// NewTenantID validates and normalizes a tenant id.
func NewTenantID(raw string) (TenantID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TenantID{}, fmt.Errorf("%w: empty value", ErrInvalidTenantID)
	}
	return TenantID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id TenantID) String() string {
	return id.value
}

// IsZero reports whether the identifier is unset.
func (id TenantID) IsZero() bool {
	return id.value == ""
}

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	return UserID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UserID) String() string {
	return id.value
}

// IsZero reports whether the identifier is unset.
func (id UserID) IsZero() bool {
	return id.value == ""
}

// NewWalletID validates and normalizes a wallet id.
func NewWalletID(raw string) (WalletID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return WalletID{}, fmt.Errorf("%w: empty value", ErrInvalidWalletID)
	}
	return WalletID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id WalletID) String() string {
	return id.value
}

// IsZero reports whether the identifier is unset.
func (id WalletID) IsZero() bool {
	return id.value == ""
}

// NewTransactionID validates and normalizes a transaction id.
func NewTransactionID(raw string) (TransactionID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TransactionID{}, fmt.Errorf("%w: empty value", ErrInvalidTransactionID)
	}
	return TransactionID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id TransactionID) String() string {
	return id.value
}

// IsZero reports whether the identifier is unset.
func (id TransactionID) IsZero() bool {
	return id.value == ""
}

// NewReference validates and normalizes an idempotency reference.
func NewReference(raw string) (Reference, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Reference{}, fmt.Errorf("%w: empty value", ErrInvalidReference)
	}
	if len(trimmed) > maxReferenceLength {
		return Reference{}, fmt.Errorf("%w: longer than %d characters", ErrInvalidReference, maxReferenceLength)
	}
	return Reference{value: trimmed}, nil
}

// String returns the normalized reference.
func (reference Reference) String() string {
	return reference.value
}

// IsZero reports whether the reference is unset.
func (reference Reference) IsZero() bool {
	return reference.value == ""
}

// WalletStatus defines the wallet lifecycle.
type WalletStatus string

const (
	WalletStatusActive    WalletStatus = "active"
	WalletStatusSuspended WalletStatus = "suspended"
	WalletStatusClosed    WalletStatus = "closed"
)

// ParseWalletStatus validates a stored wallet status.
func ParseWalletStatus(raw string) (WalletStatus, error) {
	switch status := WalletStatus(strings.TrimSpace(raw)); status {
	case WalletStatusActive, WalletStatusSuspended, WalletStatusClosed:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidWalletStatus, raw)
	}
}

// TransactionStatus defines the transaction lifecycle.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// ParseTransactionStatus validates a stored transaction status.
func ParseTransactionStatus(raw string) (TransactionStatus, error) {
	switch status := TransactionStatus(strings.TrimSpace(raw)); status {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusFailed:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// TransactionKind distinguishes outgoing transfers, compensating reversals and wallet top-ups.
type TransactionKind string

const (
	TransactionKindTransfer TransactionKind = "transfer"
	TransactionKindReversal TransactionKind = "reversal"
	TransactionKindFunding  TransactionKind = "funding"
)

// ParseTransactionKind validates a stored transaction kind.
func ParseTransactionKind(raw string) (TransactionKind, error) {
	switch kind := TransactionKind(strings.TrimSpace(raw)); kind {
	case TransactionKindTransfer, TransactionKindReversal, TransactionKindFunding:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTransactionKind, raw)
	}
}

// Wallet is a customer's stored-value account.
type Wallet struct {
	ID               WalletID
	TenantID         TenantID
	UserID           UserID
	Currency         Currency
	Balance          Amount
	AvailableBalance Amount
	Status           WalletStatus
	DailyLimit       *Amount
	MonthlyLimit     *Amount
	KYCTier          int
	UpdatedUnixUTC   int64
}

// Reserved returns the funds currently held by pending transfers.
func (wallet Wallet) Reserved() Amount {
	return wallet.Balance - wallet.AvailableBalance
}

func (wallet Wallet) checkInvariant() error {
	if wallet.AvailableBalance < 0 {
		return invariantError("wallet", "wallet %s available balance %s is negative", wallet.ID.String(), wallet.AvailableBalance)
	}
	if wallet.AvailableBalance > wallet.Balance {
		return invariantError("wallet", "wallet %s available balance %s exceeds balance %s", wallet.ID.String(), wallet.AvailableBalance, wallet.Balance)
	}
	return nil
}

// Recipient describes where a transfer is sent. A non-zero WalletID marks an
// internal transfer that settles inside the ledger.
type Recipient struct {
	AccountNumber string
	BankCode      string
	Name          string
	WalletID      WalletID
}

// NewExternalRecipient validates a bank account recipient.
func NewExternalRecipient(accountNumber string, bankCode string, name string) (Recipient, error) {
	recipient := Recipient{
		AccountNumber: strings.TrimSpace(accountNumber),
		BankCode:      strings.TrimSpace(bankCode),
		Name:          strings.TrimSpace(name),
	}
	if err := recipient.Validate(); err != nil {
		return Recipient{}, err
	}
	return recipient, nil
}

// NewInternalRecipient validates a recipient that is another wallet in the same tenant.
func NewInternalRecipient(walletID WalletID, name string) (Recipient, error) {
	recipient := Recipient{WalletID: walletID, Name: strings.TrimSpace(name)}
	if err := recipient.Validate(); err != nil {
		return Recipient{}, err
	}
	return recipient, nil
}

// Internal reports whether the recipient is a wallet in this ledger.
func (recipient Recipient) Internal() bool {
	return !recipient.WalletID.IsZero()
}

// Validate checks the recipient descriptor is well formed.
func (recipient Recipient) Validate() error {
	nameLength := utf8.RuneCountInString(recipient.Name)
	if nameLength < minRecipientNameLen || nameLength > maxRecipientNameLen {
		return fmt.Errorf("%w: name must be %d-%d characters", ErrInvalidRecipient, minRecipientNameLen, maxRecipientNameLen)
	}
	if recipient.Internal() {
		return nil
	}
	if len(recipient.AccountNumber) != accountNumberLength || !allDigits(recipient.AccountNumber) {
		return fmt.Errorf("%w: account number must be %d digits", ErrInvalidRecipient, accountNumberLength)
	}
	if len(recipient.BankCode) < minBankCodeLength || len(recipient.BankCode) > maxBankCodeLength || !allDigits(recipient.BankCode) {
		return fmt.Errorf("%w: bank code must be %d-%d digits", ErrInvalidRecipient, minBankCodeLength, maxBankCodeLength)
	}
	return nil
}

// StatusLogEntry records one status change of a transaction.
type StatusLogEntry struct {
	Status    TransactionStatus `json:"status"`
	Actor     string            `json:"actor"`
	Message   string            `json:"message,omitempty"`
	AtUnixUTC int64             `json:"at"`
}

// Transaction is a money movement out of (or back into) a wallet.
type Transaction struct {
	ID                TransactionID
	TenantID          TenantID
	Reference         Reference
	SessionID         string
	WalletID          WalletID
	UserID            UserID
	Kind              TransactionKind
	Recipient         Recipient
	Amount            Amount
	Fee               Amount
	Currency          Currency
	Narration         string
	Status            TransactionStatus
	FailureReason     string
	ProviderReference string
	ReversalOf        TransactionID
	CreatedUnixUTC    int64
	UpdatedUnixUTC    int64
	CompletedUnixUTC  int64
	Log               []StatusLogEntry
}

// Total returns amount plus fee, the sum reserved and debited for the transaction.
func (transaction Transaction) Total() Amount {
	return transaction.Amount + transaction.Fee
}

// Credential is the stored transaction secret of a user together with its attempt counter.
type Credential struct {
	TenantID           TenantID
	UserID             UserID
	SecretHash         string
	FailedAttempts     int
	LockedUntilUnixUTC int64
}

// Locked reports whether the credential is locked at the given instant.
func (credential Credential) Locked(nowUnixUTC int64) bool {
	return credential.LockedUntilUnixUTC > nowUnixUTC
}

// StatusUpdate is a compare-and-set transition of a transaction status.
type StatusUpdate struct {
	TenantID          TenantID
	TransactionID     TransactionID
	From              TransactionStatus
	To                TransactionStatus
	FailureReason     string
	ProviderReference string
	CompletedUnixUTC  int64
	Entry             StatusLogEntry
}

// Store is the persistence contract used by Service.
// Implementations must enforce uniqueness of (tenant, reference) and of reversal_of.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	CreateWallet(ctx context.Context, wallet Wallet) error
	GetWallet(ctx context.Context, tenantID TenantID, walletID WalletID) (Wallet, error)
	GetWalletForUpdate(ctx context.Context, tenantID TenantID, walletID WalletID) (Wallet, error)
	UpdateWalletBalances(ctx context.Context, wallet Wallet) error
	UpdateWalletLimits(ctx context.Context, tenantID TenantID, walletID WalletID, dailyLimit *Amount, monthlyLimit *Amount, atUnixUTC int64) error
	SumSpend(ctx context.Context, tenantID TenantID, walletID WalletID, fromUnixUTC int64, toUnixUTC int64) (Amount, error)
	InsertTransaction(ctx context.Context, transaction Transaction) error
	GetTransaction(ctx context.Context, tenantID TenantID, transactionID TransactionID) (Transaction, error)
	GetTransactionByReference(ctx context.Context, tenantID TenantID, reference Reference) (Transaction, error)
	FindReversal(ctx context.Context, tenantID TenantID, originalID TransactionID) (Transaction, error)
	UpdateTransactionStatus(ctx context.Context, update StatusUpdate) error
	ListPendingTransactions(ctx context.Context, createdBeforeUnixUTC int64, limit int) ([]Transaction, error)
	ListTransactions(ctx context.Context, tenantID TenantID, walletID WalletID, filter TransactionFilter) ([]Transaction, error)
}

// TransactionFilter selects one page of a wallet's history, newest first.
// Zero Kind and Status match every value.
type TransactionFilter struct {
	Kind   TransactionKind
	Status TransactionStatus
	Limit  int
	Offset int
}

// SecretStore persists transaction secret hashes and failed-attempt counters.
type SecretStore interface {
	SaveCredential(ctx context.Context, credential Credential) error
	GetCredential(ctx context.Context, tenantID TenantID, userID UserID) (Credential, error)
	RecordFailedAttempt(ctx context.Context, tenantID TenantID, userID UserID, maxAttempts int, lockUntilUnixUTC int64) (Credential, error)
	ResetFailedAttempts(ctx context.Context, tenantID TenantID, userID UserID) error
}

func allDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, character := range value {
		if character < '0' || character > '9' {
			return false
		}
	}
	return true
}
