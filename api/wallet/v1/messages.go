// Package walletv1 defines the wire contract of the wallet transfer service.
// Messages travel as JSON over gRPC using the codec registered by this package.
package walletv1

// Recipient identifies a bank account or, when WalletID is set, another wallet.
type Recipient struct {
	AccountNumber string `json:"account_number,omitempty"`
	BankCode      string `json:"bank_code,omitempty"`
	Name          string `json:"name"`
	WalletID      string `json:"wallet_id,omitempty"`
}

type StatusLogEntry struct {
	Status  string `json:"status"`
	Actor   string `json:"actor"`
	Message string `json:"message,omitempty"`
	At      int64  `json:"at"`
}

// Transaction mirrors a ledger transaction. Amounts are decimal strings in major units.
type Transaction struct {
	ID                string           `json:"id"`
	TenantID          string           `json:"tenant_id"`
	Reference         string           `json:"reference"`
	SessionID         string           `json:"session_id,omitempty"`
	WalletID          string           `json:"wallet_id"`
	UserID            string           `json:"user_id"`
	Kind              string           `json:"kind"`
	Recipient         Recipient        `json:"recipient"`
	Amount            string           `json:"amount"`
	Fee               string           `json:"fee"`
	Total             string           `json:"total"`
	Currency          string           `json:"currency"`
	Narration         string           `json:"narration,omitempty"`
	Status            string           `json:"status"`
	FailureReason     string           `json:"failure_reason,omitempty"`
	ProviderReference string           `json:"provider_reference,omitempty"`
	ReversalOf        string           `json:"reversal_of,omitempty"`
	CreatedAt         int64            `json:"created_at"`
	UpdatedAt         int64            `json:"updated_at"`
	CompletedAt       int64            `json:"completed_at,omitempty"`
	Log               []StatusLogEntry `json:"log,omitempty"`
}

type InitiateTransferRequest struct {
	TenantID  string    `json:"tenant_id"`
	UserID    string    `json:"user_id"`
	WalletID  string    `json:"wallet_id"`
	Reference string    `json:"reference,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Recipient Recipient `json:"recipient"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency,omitempty"`
	Narration string    `json:"narration,omitempty"`
	Secret    string    `json:"secret"`
}

// LimitWindow describes one spend window.
type LimitWindow struct {
	Limit     string `json:"limit"`
	Spent     string `json:"spent"`
	Remaining string `json:"remaining"`
}

// LimitBreach explains a LIMIT_EXCEEDED result.
type LimitBreach struct {
	Window    string `json:"window"`
	Limit     string `json:"limit"`
	Spent     string `json:"spent"`
	Remaining string `json:"remaining"`
	Requested string `json:"requested"`
}

// InitiateTransferResponse carries the result code and the fields relevant to it.
type InitiateTransferResponse struct {
	Code              string       `json:"code"`
	Message           string       `json:"message,omitempty"`
	Transaction       *Transaction `json:"transaction,omitempty"`
	AttemptsRemaining int          `json:"attempts_remaining,omitempty"`
	LockedUntil       int64        `json:"locked_until,omitempty"`
	Available         string       `json:"available,omitempty"`
	Required          string       `json:"required,omitempty"`
	Limit             *LimitBreach `json:"limit,omitempty"`
}

type GetTransferStatusRequest struct {
	TenantID  string `json:"tenant_id"`
	Reference string `json:"reference"`
}

type GetTransferStatusResponse struct {
	Transaction Transaction  `json:"transaction"`
	Reversal    *Transaction `json:"reversal,omitempty"`
}

type GetLimitsRequest struct {
	TenantID string `json:"tenant_id"`
	WalletID string `json:"wallet_id"`
}

type GetLimitsResponse struct {
	WalletID string      `json:"wallet_id"`
	Currency string      `json:"currency"`
	Daily    LimitWindow `json:"daily"`
	Monthly  LimitWindow `json:"monthly"`
	AsOf     int64       `json:"as_of"`
}

type GetWalletRequest struct {
	TenantID string `json:"tenant_id"`
	WalletID string `json:"wallet_id"`
}

type Wallet struct {
	ID               string `json:"id"`
	TenantID         string `json:"tenant_id"`
	UserID           string `json:"user_id"`
	Currency         string `json:"currency"`
	Balance          string `json:"balance"`
	AvailableBalance string `json:"available_balance"`
	Status           string `json:"status"`
	DailyLimit       string `json:"daily_limit,omitempty"`
	MonthlyLimit     string `json:"monthly_limit,omitempty"`
	KYCTier          int    `json:"kyc_tier"`
	UpdatedAt        int64  `json:"updated_at"`
}

type OpenWalletRequest struct {
	TenantID       string `json:"tenant_id"`
	UserID         string `json:"user_id"`
	WalletID       string `json:"wallet_id,omitempty"`
	Currency       string `json:"currency,omitempty"`
	OpeningBalance string `json:"opening_balance,omitempty"`
	KYCTier        int    `json:"kyc_tier,omitempty"`
	DailyLimit     string `json:"daily_limit,omitempty"`
	MonthlyLimit   string `json:"monthly_limit,omitempty"`
}

type SetSecretRequest struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Secret   string `json:"secret"`
}

// SetWalletLimitsRequest overrides the tier ceilings. Empty strings clear an override.
type SetWalletLimitsRequest struct {
	TenantID     string `json:"tenant_id"`
	WalletID     string `json:"wallet_id"`
	DailyLimit   string `json:"daily_limit,omitempty"`
	MonthlyLimit string `json:"monthly_limit,omitempty"`
}

type ReleaseTransferRequest struct {
	TenantID      string `json:"tenant_id"`
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason,omitempty"`
}

type ReleaseTransferResponse struct {
	Outcome string `json:"outcome"`
}

// FundWalletRequest credits a wallet from outside the ledger. Reference is required.
type FundWalletRequest struct {
	TenantID  string `json:"tenant_id"`
	WalletID  string `json:"wallet_id"`
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency,omitempty"`
	Narration string `json:"narration,omitempty"`
	Source    string `json:"source,omitempty"`
}

type FundWalletResponse struct {
	Transaction Transaction `json:"transaction"`
	Wallet      Wallet      `json:"wallet"`
	Replayed    bool        `json:"replayed,omitempty"`
}

// ListTransactionsRequest pages through a wallet's history, newest first.
type ListTransactionsRequest struct {
	TenantID string `json:"tenant_id"`
	WalletID string `json:"wallet_id"`
	Kind     string `json:"kind,omitempty"`
	Status   string `json:"status,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// ListTransactionsResponse sets NextOffset only when another page exists.
type ListTransactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
	Offset       int           `json:"offset"`
	Limit        int           `json:"limit"`
	NextOffset   int           `json:"next_offset,omitempty"`
}

type NameEnquiryRequest struct {
	TenantID      string `json:"tenant_id"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
}

type NameEnquiryResponse struct {
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	AccountName   string `json:"account_name"`
	KYCLevel      string `json:"kyc_level,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
}

type Empty struct{}
