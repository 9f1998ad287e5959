package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/walletledger/pkg/ledger"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	constraintTenantReference = "uniq_transactions_tenant_reference"
	constraintReversalOf      = "uniq_transactions_reversal_of"
	dialectSQLite             = "sqlite"
	pgUniqueViolationCode     = "23505"
	sqliteConstraintCode      = 19
	errorOperationStore       = "store"
	errorSubjectWallet        = "wallet"
	errorSubjectTransaction   = "transaction"
	errorSubjectCredential    = "credential"
	errorSubjectSpend         = "spend"
	errorCodeCreate           = "create"
	errorCodeDuplicate        = "duplicate"
	errorCodeGet              = "get"
	errorCodeInsert           = "insert"
	errorCodeInvalid          = "invalid"
	errorCodeList             = "list"
	errorCodeSum              = "sum"
	errorCodeUpdate           = "update"
	errorCodeUpdateStatus     = "update_status"
)

// Store implements ledger.Store and ledger.SecretStore using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) CreateWallet(ctx context.Context, wallet ledger.Wallet) error {
	updatedAt := time.Unix(wallet.UpdatedUnixUTC, 0).UTC()
	model := Wallet{
		TenantID:              wallet.TenantID.String(),
		WalletID:              wallet.ID.String(),
		UserID:                wallet.UserID.String(),
		Currency:              wallet.Currency.String(),
		BalanceMinor:          wallet.Balance.Int64(),
		AvailableBalanceMinor: wallet.AvailableBalance.Int64(),
		Status:                string(wallet.Status),
		DailyLimitMinor:       amountPointer(wallet.DailyLimit),
		MonthlyLimitMinor:     amountPointer(wallet.MonthlyLimit),
		KYCTier:               wallet.KYCTier,
		CreatedAt:             updatedAt,
		UpdatedAt:             updatedAt,
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectWallet, errorCodeDuplicate, ledger.ErrWalletExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectWallet, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetWallet(ctx context.Context, tenantID ledger.TenantID, walletID ledger.WalletID) (ledger.Wallet, error) {
	return store.getWallet(store.db.WithContext(ctx), tenantID, walletID)
}

// GetWalletForUpdate takes a row lock on postgres. SQLite serializes writers, so no clause is added there.
func (store *Store) GetWalletForUpdate(ctx context.Context, tenantID ledger.TenantID, walletID ledger.WalletID) (ledger.Wallet, error) {
	query := store.db.WithContext(ctx)
	if store.db.Dialector.Name() != dialectSQLite {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return store.getWallet(query, tenantID, walletID)
}

func (store *Store) getWallet(query *gorm.DB, tenantID ledger.TenantID, walletID ledger.WalletID) (ledger.Wallet, error) {
	var model Wallet
	err := query.
		Where("tenant_id = ? AND wallet_id = ?", tenantID.String(), walletID.String()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeGet, ledger.ErrWalletNotFound)
		}
		return ledger.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeGet, err)
	}
	wallet, err := mapWallet(model)
	if err != nil {
		return ledger.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeInvalid, err)
	}
	return wallet, nil
}

func (store *Store) UpdateWalletBalances(ctx context.Context, wallet ledger.Wallet) error {
	result := store.db.WithContext(ctx).
		Model(&Wallet{}).
		Where("tenant_id = ? AND wallet_id = ?", wallet.TenantID.String(), wallet.ID.String()).
		Updates(map[string]interface{}{
			"balance_minor":           wallet.Balance.Int64(),
			"available_balance_minor": wallet.AvailableBalance.Int64(),
			"updated_at":              time.Unix(wallet.UpdatedUnixUTC, 0).UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectWallet, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectWallet, errorCodeUpdate, ledger.ErrWalletNotFound)
	}
	return nil
}

func (store *Store) UpdateWalletLimits(ctx context.Context, tenantID ledger.TenantID, walletID ledger.WalletID, dailyLimit *ledger.Amount, monthlyLimit *ledger.Amount, atUnixUTC int64) error {
	result := store.db.WithContext(ctx).
		Model(&Wallet{}).
		Where("tenant_id = ? AND wallet_id = ?", tenantID.String(), walletID.String()).
		Updates(map[string]interface{}{
			"daily_limit_minor":   amountPointer(dailyLimit),
			"monthly_limit_minor": amountPointer(monthlyLimit),
			"updated_at":          time.Unix(atUnixUTC, 0).UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectWallet, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectWallet, errorCodeUpdate, ledger.ErrWalletNotFound)
	}
	return nil
}

func (store *Store) SumSpend(ctx context.Context, tenantID ledger.TenantID, walletID ledger.WalletID, fromUnixUTC int64, toUnixUTC int64) (ledger.Amount, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&Transaction{}).
		Select("coalesce(sum(amount_minor),0) as total").
		Where("tenant_id = ? AND wallet_id = ? AND kind = ?", tenantID.String(), walletID.String(), string(ledger.TransactionKindTransfer)).
		Where("status IN ?", []string{string(ledger.TransactionStatusPending), string(ledger.TransactionStatusCompleted)}).
		Where("created_at >= ? AND created_at <= ?", time.Unix(fromUnixUTC, 0).UTC(), time.Unix(toUnixUTC, 0).UTC()).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectSpend, errorCodeSum, err)
	}
	total, err := ledger.NewAmount(sum.Total)
	if err != nil {
		return 0, wrapStoreError(errorSubjectSpend, errorCodeInvalid, err)
	}
	return total, nil
}

func (store *Store) InsertTransaction(ctx context.Context, transaction ledger.Transaction) error {
	model, err := newTransactionModel(transaction)
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	err = store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		if model.ReversalOf != nil && mentionsConstraint(err, constraintReversalOf, "reversal_of") {
			return wrapStoreError(errorSubjectTransaction, errorCodeDuplicate, ledger.ErrReversalExists)
		}
		return wrapStoreError(errorSubjectTransaction, errorCodeDuplicate, ledger.ErrDuplicateReference)
	}
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetTransaction(ctx context.Context, tenantID ledger.TenantID, transactionID ledger.TransactionID) (ledger.Transaction, error) {
	return store.findTransaction(ctx, "tenant_id = ? AND transaction_id = ?", tenantID.String(), transactionID.String())
}

func (store *Store) GetTransactionByReference(ctx context.Context, tenantID ledger.TenantID, reference ledger.Reference) (ledger.Transaction, error) {
	return store.findTransaction(ctx, "tenant_id = ? AND reference = ?", tenantID.String(), reference.String())
}

func (store *Store) FindReversal(ctx context.Context, tenantID ledger.TenantID, originalID ledger.TransactionID) (ledger.Transaction, error) {
	return store.findTransaction(ctx, "tenant_id = ? AND reversal_of = ?", tenantID.String(), originalID.String())
}

func (store *Store) findTransaction(ctx context.Context, condition string, args ...interface{}) (ledger.Transaction, error) {
	var model Transaction
	err := store.db.WithContext(ctx).Where(condition, args...).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, ledger.ErrTransactionNotFound)
		}
		return ledger.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, err)
	}
	transaction, err := mapTransaction(model)
	if err != nil {
		return ledger.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	return transaction, nil
}

// UpdateTransactionStatus applies update only while the row still has update.From.
func (store *Store) UpdateTransactionStatus(ctx context.Context, update ledger.StatusUpdate) error {
	var model Transaction
	err := store.db.WithContext(ctx).
		Where("tenant_id = ? AND transaction_id = ?", update.TenantID.String(), update.TransactionID.String()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return wrapStoreError(errorSubjectTransaction, errorCodeUpdateStatus, ledger.ErrTransactionNotFound)
		}
		return wrapStoreError(errorSubjectTransaction, errorCodeUpdateStatus, err)
	}
	entries, err := decodeStatusLog(model.StatusLog)
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	statusLog, err := encodeStatusLog(append(entries, update.Entry))
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	assignments := map[string]interface{}{
		"status":     string(update.To),
		"status_log": statusLog,
		"updated_at": time.Unix(update.Entry.AtUnixUTC, 0).UTC(),
	}
	if update.FailureReason != "" {
		assignments["failure_reason"] = update.FailureReason
	}
	if update.ProviderReference != "" {
		assignments["provider_reference"] = update.ProviderReference
	}
	if update.CompletedUnixUTC != 0 {
		assignments["completed_at"] = time.Unix(update.CompletedUnixUTC, 0).UTC()
	}
	result := store.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("tenant_id = ? AND transaction_id = ? AND status = ?", update.TenantID.String(), update.TransactionID.String(), string(update.From)).
		Updates(assignments)
	if result.Error != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectTransaction, errorCodeUpdateStatus, ledger.ErrTransactionClosed)
	}
	return nil
}

func (store *Store) ListPendingTransactions(ctx context.Context, createdBeforeUnixUTC int64, limit int) ([]ledger.Transaction, error) {
	var rows []Transaction
	err := store.db.WithContext(ctx).
		Where("status = ? AND kind = ? AND created_at <= ?", string(ledger.TransactionStatusPending), string(ledger.TransactionKindTransfer), time.Unix(createdBeforeUnixUTC, 0).UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	transactions := make([]ledger.Transaction, 0, len(rows))
	for _, row := range rows {
		transaction, err := mapTransaction(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
		}
		transactions = append(transactions, transaction)
	}
	return transactions, nil
}

func (store *Store) ListTransactions(ctx context.Context, tenantID ledger.TenantID, walletID ledger.WalletID, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	query := store.db.WithContext(ctx).
		Where("tenant_id = ? AND wallet_id = ?", tenantID.String(), walletID.String())
	if filter.Kind != "" {
		query = query.Where("kind = ?", string(filter.Kind))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	var rows []Transaction
	err := query.
		Order("created_at DESC").
		Order("transaction_id DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	transactions := make([]ledger.Transaction, 0, len(rows))
	for _, row := range rows {
		transaction, err := mapTransaction(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
		}
		transactions = append(transactions, transaction)
	}
	return transactions, nil
}

func (store *Store) SaveCredential(ctx context.Context, credential ledger.Credential) error {
	model := Credential{
		TenantID:       credential.TenantID.String(),
		UserID:         credential.UserID.String(),
		SecretHash:     credential.SecretHash,
		FailedAttempts: credential.FailedAttempts,
		LockedUntil:    unixPointer(credential.LockedUntilUnixUTC),
		UpdatedAt:      time.Now().UTC(),
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"secret_hash", "failed_attempts", "locked_until", "updated_at"}),
		}).
		Create(&model).Error
	if err != nil {
		return wrapStoreError(errorSubjectCredential, errorCodeUpdate, err)
	}
	return nil
}

func (store *Store) GetCredential(ctx context.Context, tenantID ledger.TenantID, userID ledger.UserID) (ledger.Credential, error) {
	return store.getCredential(store.db.WithContext(ctx), tenantID, userID)
}

func (store *Store) getCredential(query *gorm.DB, tenantID ledger.TenantID, userID ledger.UserID) (ledger.Credential, error) {
	var model Credential
	err := query.Where("tenant_id = ? AND user_id = ?", tenantID.String(), userID.String()).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Credential{}, wrapStoreError(errorSubjectCredential, errorCodeGet, ledger.ErrCredentialNotFound)
		}
		return ledger.Credential{}, wrapStoreError(errorSubjectCredential, errorCodeGet, err)
	}
	return ledger.Credential{
		TenantID:           tenantID,
		UserID:             userID,
		SecretHash:         model.SecretHash,
		FailedAttempts:     model.FailedAttempts,
		LockedUntilUnixUTC: timeOrZero(model.LockedUntil),
	}, nil
}

// RecordFailedAttempt increments the counter atomically and sets the lock once maxAttempts is reached.
func (store *Store) RecordFailedAttempt(ctx context.Context, tenantID ledger.TenantID, userID ledger.UserID, maxAttempts int, lockUntilUnixUTC int64) (ledger.Credential, error) {
	var credential ledger.Credential
	err := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		result := transaction.Model(&Credential{}).
			Where("tenant_id = ? AND user_id = ?", tenantID.String(), userID.String()).
			Updates(map[string]interface{}{
				"failed_attempts": gorm.Expr("failed_attempts + 1"),
				"updated_at":      time.Now().UTC(),
			})
		if result.Error != nil {
			return wrapStoreError(errorSubjectCredential, errorCodeUpdate, result.Error)
		}
		if result.RowsAffected == 0 {
			return wrapStoreError(errorSubjectCredential, errorCodeUpdate, ledger.ErrCredentialNotFound)
		}
		current, err := store.getCredential(transaction, tenantID, userID)
		if err != nil {
			return err
		}
		if current.FailedAttempts >= maxAttempts {
			err := transaction.Model(&Credential{}).
				Where("tenant_id = ? AND user_id = ?", tenantID.String(), userID.String()).
				Update("locked_until", time.Unix(lockUntilUnixUTC, 0).UTC()).Error
			if err != nil {
				return wrapStoreError(errorSubjectCredential, errorCodeUpdate, err)
			}
			current.LockedUntilUnixUTC = lockUntilUnixUTC
		}
		credential = current
		return nil
	})
	if err != nil {
		return ledger.Credential{}, err
	}
	return credential, nil
}

func (store *Store) ResetFailedAttempts(ctx context.Context, tenantID ledger.TenantID, userID ledger.UserID) error {
	result := store.db.WithContext(ctx).
		Model(&Credential{}).
		Where("tenant_id = ? AND user_id = ?", tenantID.String(), userID.String()).
		Updates(map[string]interface{}{
			"failed_attempts": 0,
			"locked_until":    nil,
			"updated_at":      time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectCredential, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectCredential, errorCodeUpdate, ledger.ErrCredentialNotFound)
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

type sqlSum struct {
	Total int64
}

func newTransactionModel(transaction ledger.Transaction) (Transaction, error) {
	statusLog, err := encodeStatusLog(transaction.Log)
	if err != nil {
		return Transaction{}, err
	}
	var reversalOf *string
	if !transaction.ReversalOf.IsZero() {
		value := transaction.ReversalOf.String()
		reversalOf = &value
	}
	var completedAt *time.Time
	if transaction.CompletedUnixUTC != 0 {
		value := time.Unix(transaction.CompletedUnixUTC, 0).UTC()
		completedAt = &value
	}
	return Transaction{
		TransactionID:     transaction.ID.String(),
		TenantID:          transaction.TenantID.String(),
		Reference:         transaction.Reference.String(),
		SessionID:         transaction.SessionID,
		WalletID:          transaction.WalletID.String(),
		UserID:            transaction.UserID.String(),
		Kind:              string(transaction.Kind),
		RecipientAccount:  transaction.Recipient.AccountNumber,
		RecipientBankCode: transaction.Recipient.BankCode,
		RecipientName:     transaction.Recipient.Name,
		RecipientWalletID: transaction.Recipient.WalletID.String(),
		AmountMinor:       transaction.Amount.Int64(),
		FeeMinor:          transaction.Fee.Int64(),
		Currency:          transaction.Currency.String(),
		Narration:         transaction.Narration,
		Status:            string(transaction.Status),
		FailureReason:     transaction.FailureReason,
		ProviderReference: transaction.ProviderReference,
		ReversalOf:        reversalOf,
		StatusLog:         statusLog,
		CreatedAt:         time.Unix(transaction.CreatedUnixUTC, 0).UTC(),
		UpdatedAt:         time.Unix(transaction.UpdatedUnixUTC, 0).UTC(),
		CompletedAt:       completedAt,
	}, nil
}

func mapWallet(model Wallet) (ledger.Wallet, error) {
	tenantID, err := ledger.NewTenantID(model.TenantID)
	if err != nil {
		return ledger.Wallet{}, err
	}
	walletID, err := ledger.NewWalletID(model.WalletID)
	if err != nil {
		return ledger.Wallet{}, err
	}
	userID, err := ledger.NewUserID(model.UserID)
	if err != nil {
		return ledger.Wallet{}, err
	}
	currency, err := ledger.NewCurrency(model.Currency)
	if err != nil {
		return ledger.Wallet{}, err
	}
	status, err := ledger.ParseWalletStatus(model.Status)
	if err != nil {
		return ledger.Wallet{}, err
	}
	balance, err := ledger.NewAmount(model.BalanceMinor)
	if err != nil {
		return ledger.Wallet{}, err
	}
	available, err := ledger.NewAmount(model.AvailableBalanceMinor)
	if err != nil {
		return ledger.Wallet{}, err
	}
	dailyLimit, err := optionalAmount(model.DailyLimitMinor)
	if err != nil {
		return ledger.Wallet{}, err
	}
	monthlyLimit, err := optionalAmount(model.MonthlyLimitMinor)
	if err != nil {
		return ledger.Wallet{}, err
	}
	return ledger.Wallet{
		ID:               walletID,
		TenantID:         tenantID,
		UserID:           userID,
		Currency:         currency,
		Balance:          balance,
		AvailableBalance: available,
		Status:           status,
		DailyLimit:       dailyLimit,
		MonthlyLimit:     monthlyLimit,
		KYCTier:          model.KYCTier,
		UpdatedUnixUTC:   model.UpdatedAt.Unix(),
	}, nil
}

func mapTransaction(model Transaction) (ledger.Transaction, error) {
	transactionID, err := ledger.NewTransactionID(model.TransactionID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	tenantID, err := ledger.NewTenantID(model.TenantID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	reference, err := ledger.NewReference(model.Reference)
	if err != nil {
		return ledger.Transaction{}, err
	}
	walletID, err := ledger.NewWalletID(model.WalletID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	userID, err := ledger.NewUserID(model.UserID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	kind, err := ledger.ParseTransactionKind(model.Kind)
	if err != nil {
		return ledger.Transaction{}, err
	}
	status, err := ledger.ParseTransactionStatus(model.Status)
	if err != nil {
		return ledger.Transaction{}, err
	}
	currency, err := ledger.NewCurrency(model.Currency)
	if err != nil {
		return ledger.Transaction{}, err
	}
	amount, err := ledger.NewAmount(model.AmountMinor)
	if err != nil {
		return ledger.Transaction{}, err
	}
	fee, err := ledger.NewAmount(model.FeeMinor)
	if err != nil {
		return ledger.Transaction{}, err
	}
	recipient := ledger.Recipient{
		AccountNumber: model.RecipientAccount,
		BankCode:      model.RecipientBankCode,
		Name:          model.RecipientName,
	}
	if model.RecipientWalletID != "" {
		recipientWalletID, err := ledger.NewWalletID(model.RecipientWalletID)
		if err != nil {
			return ledger.Transaction{}, err
		}
		recipient.WalletID = recipientWalletID
	}
	var reversalOf ledger.TransactionID
	if model.ReversalOf != nil {
		reversalOf, err = ledger.NewTransactionID(*model.ReversalOf)
		if err != nil {
			return ledger.Transaction{}, err
		}
	}
	statusLog, err := decodeStatusLog(model.StatusLog)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return ledger.Transaction{
		ID:                transactionID,
		TenantID:          tenantID,
		Reference:         reference,
		SessionID:         model.SessionID,
		WalletID:          walletID,
		UserID:            userID,
		Kind:              kind,
		Recipient:         recipient,
		Amount:            amount,
		Fee:               fee,
		Currency:          currency,
		Narration:         model.Narration,
		Status:            status,
		FailureReason:     model.FailureReason,
		ProviderReference: model.ProviderReference,
		ReversalOf:        reversalOf,
		CreatedUnixUTC:    model.CreatedAt.Unix(),
		UpdatedUnixUTC:    model.UpdatedAt.Unix(),
		CompletedUnixUTC:  timeOrZero(model.CompletedAt),
		Log:               statusLog,
	}, nil
}

func encodeStatusLog(entries []ledger.StatusLogEntry) (datatypes.JSON, error) {
	if entries == nil {
		entries = []ledger.StatusLogEntry{}
	}
	encoded, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(encoded), nil
}

func decodeStatusLog(raw datatypes.JSON) ([]ledger.StatusLogEntry, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var entries []ledger.StatusLogEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func optionalAmount(value *int64) (*ledger.Amount, error) {
	if value == nil {
		return nil, nil
	}
	amount, err := ledger.NewAmount(*value)
	if err != nil {
		return nil, err
	}
	return &amount, nil
}

func amountPointer(amount *ledger.Amount) *int64 {
	if amount == nil {
		return nil
	}
	value := amount.Int64()
	return &value
}

func unixPointer(unixUTC int64) *time.Time {
	if unixUTC == 0 {
		return nil
	}
	value := time.Unix(unixUTC, 0).UTC()
	return &value
}

func timeOrZero(value *time.Time) int64 {
	if value == nil {
		return 0
	}
	return value.Unix()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}

func mentionsConstraint(err error, constraint string, column string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName == constraint
	}
	return strings.Contains(err.Error(), column)
}
