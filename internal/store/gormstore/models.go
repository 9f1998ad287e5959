package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Wallet mirrors the wallets table.
type Wallet struct {
	TenantID              string    `gorm:"primaryKey"`
	WalletID              string    `gorm:"primaryKey"`
	UserID                string    `gorm:"not null;index"`
	Currency              string    `gorm:"size:3;not null"`
	BalanceMinor          int64     `gorm:"not null"`
	AvailableBalanceMinor int64     `gorm:"not null"`
	Status                string    `gorm:"not null"`
	DailyLimitMinor       *int64    `gorm:""`
	MonthlyLimitMinor     *int64    `gorm:""`
	KYCTier               int       `gorm:"not null;default:1"`
	CreatedAt             time.Time `gorm:"not null"`
	UpdatedAt             time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (Wallet) TableName() string { return "wallets" }

func (wallet *Wallet) BeforeCreate(tx *gorm.DB) error {
	if wallet.WalletID == "" {
		wallet.WalletID = uuid.NewString()
	}
	return nil
}

// Transaction mirrors the transactions table.
type Transaction struct {
	TransactionID     string         `gorm:"primaryKey"`
	TenantID          string         `gorm:"not null;uniqueIndex:uniq_transactions_tenant_reference,priority:1"`
	Reference         string         `gorm:"not null;uniqueIndex:uniq_transactions_tenant_reference,priority:2"`
	SessionID         string         `gorm:"not null;default:''"`
	WalletID          string         `gorm:"not null;index:idx_transactions_wallet_created,priority:1"`
	UserID            string         `gorm:"not null"`
	Kind              string         `gorm:"not null"`
	RecipientAccount  string         `gorm:"not null;default:''"`
	RecipientBankCode string         `gorm:"not null;default:''"`
	RecipientName     string         `gorm:"not null"`
	RecipientWalletID string         `gorm:"not null;default:''"`
	AmountMinor       int64          `gorm:"not null"`
	FeeMinor          int64          `gorm:"not null"`
	Currency          string         `gorm:"size:3;not null"`
	Narration         string         `gorm:"not null;default:''"`
	Status            string         `gorm:"not null;index:idx_transactions_status_created,priority:1"`
	FailureReason     string         `gorm:"not null;default:''"`
	ProviderReference string         `gorm:"not null;default:''"`
	ReversalOf        *string        `gorm:"uniqueIndex:uniq_transactions_reversal_of"`
	StatusLog         datatypes.JSON `gorm:"not null"`
	CreatedAt         time.Time      `gorm:"not null;index:idx_transactions_wallet_created,priority:2;index:idx_transactions_status_created,priority:2"`
	UpdatedAt         time.Time      `gorm:"not null;autoUpdateTime:false"`
	CompletedAt       *time.Time     `gorm:""`
}

func (Transaction) TableName() string { return "transactions" }

func (transaction *Transaction) BeforeCreate(tx *gorm.DB) error {
	if transaction.TransactionID == "" {
		transaction.TransactionID = uuid.NewString()
	}
	return nil
}

// Credential mirrors the transaction_secrets table.
type Credential struct {
	TenantID       string     `gorm:"primaryKey"`
	UserID         string     `gorm:"primaryKey"`
	SecretHash     string     `gorm:"not null"`
	FailedAttempts int        `gorm:"not null;default:0"`
	LockedUntil    *time.Time `gorm:""`
	UpdatedAt      time.Time  `gorm:"not null"`
}

func (Credential) TableName() string { return "transaction_secrets" }

// Migrate creates or updates the tables used by Store.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Wallet{}, &Transaction{}, &Credential{})
}
