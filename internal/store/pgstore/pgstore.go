package pgstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/MarkoPoloResearchLab/walletledger/pkg/ledger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	constraintWalletPrimary   = "wallets_pkey"
	constraintTenantReference = "uniq_transactions_tenant_reference"
	constraintReversalOf      = "uniq_transactions_reversal_of"
	pgUniqueViolationCode     = "23505"
	errorOperationStore       = "store"
	errorSubjectCredential    = "credential"
	errorSubjectSchema        = "schema"
	errorSubjectSpend         = "spend"
	errorSubjectTransaction   = "transaction"
	errorSubjectWallet        = "wallet"
	errorCodeBegin            = "begin"
	errorCodeCommit           = "commit"
	errorCodeCreate           = "create"
	errorCodeDuplicate        = "duplicate"
	errorCodeGet              = "get"
	errorCodeInsert           = "insert"
	errorCodeInvalid          = "invalid"
	errorCodeList             = "list"
	errorCodeMigrate          = "migrate"
	errorCodeSum              = "sum"
	errorCodeUpdate           = "update"
	errorCodeUpdateStatus     = "update_status"

	walletColumns = `
		tenant_id, wallet_id, user_id, currency, balance_minor, available_balance_minor, status,
		daily_limit_minor, monthly_limit_minor, kyc_tier, extract(epoch from updated_at)::bigint
	`

	transactionColumns = `
		transaction_id, tenant_id, reference, session_id, wallet_id, user_id, kind,
		recipient_account, recipient_bank_code, recipient_name, recipient_wallet_id,
		amount_minor, fee_minor, currency, narration, status, failure_reason, provider_reference,
		coalesce(reversal_of,''), status_log::text,
		extract(epoch from created_at)::bigint,
		extract(epoch from updated_at)::bigint,
		coalesce(extract(epoch from completed_at)::bigint,0)
	`

	sqlInsertWallet = `
		insert into wallets(
			tenant_id, wallet_id, user_id, currency, balance_minor, available_balance_minor, status,
			daily_limit_minor, monthly_limit_minor, kyc_tier, created_at, updated_at
		)
		values($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, to_timestamp($11), to_timestamp($11))
	`

	sqlSelectWallet = `select ` + walletColumns + ` from wallets where tenant_id = $1 and wallet_id = $2`

	sqlSelectWalletForUpdate = sqlSelectWallet + ` for update`

	sqlUpdateWalletBalances = `
		update wallets
		set balance_minor = $3, available_balance_minor = $4, updated_at = to_timestamp($5)
		where tenant_id = $1 and wallet_id = $2
	`

	sqlUpdateWalletLimits = `
		update wallets
		set daily_limit_minor = $3, monthly_limit_minor = $4, updated_at = to_timestamp($5)
		where tenant_id = $1 and wallet_id = $2
	`

	sqlSumSpend = `
		select coalesce(sum(amount_minor),0) from transactions
		where tenant_id = $1 and wallet_id = $2 and kind = 'transfer'
		and status in ('pending','completed')
		and created_at >= to_timestamp($3) and created_at <= to_timestamp($4)
	`

	sqlInsertTransaction = `
		insert into transactions(
			transaction_id, tenant_id, reference, session_id, wallet_id, user_id, kind,
			recipient_account, recipient_bank_code, recipient_name, recipient_wallet_id,
			amount_minor, fee_minor, currency, narration, status, failure_reason, provider_reference,
			reversal_of, status_log, created_at, updated_at, completed_at
		)
		values(
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18,
			nullif($19,''), $20::jsonb, to_timestamp($21), to_timestamp($22), to_timestamp(nullif($23::bigint,0))
		)
	`

	sqlSelectTransactionByID = `select ` + transactionColumns + ` from transactions where tenant_id = $1 and transaction_id = $2`

	sqlSelectTransactionByReference = `select ` + transactionColumns + ` from transactions where tenant_id = $1 and reference = $2`

	sqlSelectReversal = `select ` + transactionColumns + ` from transactions where tenant_id = $1 and reversal_of = $2`

	sqlUpdateTransactionStatus = `
		update transactions
		set status = $4,
			failure_reason = coalesce(nullif($5,''), failure_reason),
			provider_reference = coalesce(nullif($6,''), provider_reference),
			completed_at = coalesce(to_timestamp(nullif($7::bigint,0)), completed_at),
			status_log = status_log || jsonb_build_array($8::jsonb),
			updated_at = to_timestamp($9)
		where tenant_id = $1 and transaction_id = $2 and status = $3
	`

	sqlTransactionExists = `select 1 from transactions where tenant_id = $1 and transaction_id = $2`

	sqlListPending = `
		select ` + transactionColumns + ` from transactions
		where status = 'pending' and kind = 'transfer' and created_at <= to_timestamp($1)
		order by created_at asc
		limit $2
	`

	sqlListTransactions = `
		select ` + transactionColumns + ` from transactions
		where tenant_id = $1 and wallet_id = $2
			and ($3 = '' or kind = $3)
			and ($4 = '' or status = $4)
		order by created_at desc, transaction_id desc
		limit $5 offset $6
	`

	sqlUpsertCredential = `
		insert into transaction_secrets(tenant_id, user_id, secret_hash, failed_attempts, locked_until, updated_at)
		values($1, $2, $3, $4, to_timestamp(nullif($5::bigint,0)), now())
		on conflict (tenant_id, user_id) do update
		set secret_hash = excluded.secret_hash,
			failed_attempts = excluded.failed_attempts,
			locked_until = excluded.locked_until,
			updated_at = excluded.updated_at
	`

	sqlSelectCredential = `
		select secret_hash, failed_attempts, coalesce(extract(epoch from locked_until)::bigint,0)
		from transaction_secrets
		where tenant_id = $1 and user_id = $2
	`

	sqlRecordFailedAttempt = `
		update transaction_secrets
		set failed_attempts = failed_attempts + 1,
			locked_until = case when failed_attempts + 1 >= $3 then to_timestamp($4) else locked_until end,
			updated_at = now()
		where tenant_id = $1 and user_id = $2
		returning secret_hash, failed_attempts, coalesce(extract(epoch from locked_until)::bigint,0)
	`

	sqlResetFailedAttempts = `
		update transaction_secrets
		set failed_attempts = 0, locked_until = null, updated_at = now()
		where tenant_id = $1 and user_id = $2
	`
)

// Schema creates the tables used by Store. Statements are idempotent.
const Schema = `
create table if not exists wallets (
	tenant_id text not null,
	wallet_id text not null,
	user_id text not null,
	currency char(3) not null,
	balance_minor bigint not null check (balance_minor >= 0),
	available_balance_minor bigint not null check (available_balance_minor >= 0 and available_balance_minor <= balance_minor),
	status text not null,
	daily_limit_minor bigint,
	monthly_limit_minor bigint,
	kyc_tier integer not null default 1,
	created_at timestamptz not null default now(),
	updated_at timestamptz not null default now(),
	constraint wallets_pkey primary key (tenant_id, wallet_id)
);

create index if not exists idx_wallets_user on wallets(tenant_id, user_id);

create table if not exists transactions (
	transaction_id text primary key,
	tenant_id text not null,
	reference text not null,
	session_id text not null default '',
	wallet_id text not null,
	user_id text not null,
	kind text not null,
	recipient_account text not null default '',
	recipient_bank_code text not null default '',
	recipient_name text not null,
	recipient_wallet_id text not null default '',
	amount_minor bigint not null check (amount_minor >= 0),
	fee_minor bigint not null default 0 check (fee_minor >= 0),
	currency char(3) not null,
	narration text not null default '',
	status text not null,
	failure_reason text not null default '',
	provider_reference text not null default '',
	reversal_of text,
	status_log jsonb not null default '[]'::jsonb,
	created_at timestamptz not null,
	updated_at timestamptz not null,
	completed_at timestamptz,
	constraint uniq_transactions_tenant_reference unique (tenant_id, reference),
	constraint uniq_transactions_reversal_of unique (reversal_of)
);

create index if not exists idx_transactions_wallet_created on transactions(wallet_id, created_at);
create index if not exists idx_transactions_status_created on transactions(status, created_at);

create table if not exists transaction_secrets (
	tenant_id text not null,
	user_id text not null,
	secret_hash text not null,
	failed_attempts integer not null default 0,
	locked_until timestamptz,
	updated_at timestamptz not null default now(),
	primary key (tenant_id, user_id)
);
`

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements ledger.Store and ledger.SecretStore using a pgx connection pool (autocommit).
type Store struct {
	pool *pgxpool.Pool
	queries
}

// TxStore implements ledger.Store for an active transaction.
type TxStore struct {
	tx pgx.Tx
	queries
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, queries: queries{db: pool}}
}

// EnsureSchema applies Schema to the pool's database.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return wrapStoreError(errorSubjectSchema, errorCodeMigrate, err)
	}
	return nil
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	transactionStore := &TxStore{tx: tx, queries: queries{db: tx}}
	if err := fn(ctx, transactionStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

func (store *TxStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return fn(ctx, store)
}

// Credential operations run on the pool; the transfer transaction never touches them.

func (store *Store) SaveCredential(ctx context.Context, credential ledger.Credential) error {
	_, err := store.pool.Exec(ctx, sqlUpsertCredential,
		credential.TenantID.String(),
		credential.UserID.String(),
		credential.SecretHash,
		credential.FailedAttempts,
		credential.LockedUntilUnixUTC,
	)
	if err != nil {
		return wrapStoreError(errorSubjectCredential, errorCodeUpdate, err)
	}
	return nil
}

func (store *Store) GetCredential(ctx context.Context, tenantID ledger.TenantID, userID ledger.UserID) (ledger.Credential, error) {
	credential := ledger.Credential{TenantID: tenantID, UserID: userID}
	err := store.pool.QueryRow(ctx, sqlSelectCredential, tenantID.String(), userID.String()).Scan(
		&credential.SecretHash,
		&credential.FailedAttempts,
		&credential.LockedUntilUnixUTC,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Credential{}, wrapStoreError(errorSubjectCredential, errorCodeGet, ledger.ErrCredentialNotFound)
		}
		return ledger.Credential{}, wrapStoreError(errorSubjectCredential, errorCodeGet, err)
	}
	return credential, nil
}

func (store *Store) RecordFailedAttempt(ctx context.Context, tenantID ledger.TenantID, userID ledger.UserID, maxAttempts int, lockUntilUnixUTC int64) (ledger.Credential, error) {
	credential := ledger.Credential{TenantID: tenantID, UserID: userID}
	err := store.pool.QueryRow(ctx, sqlRecordFailedAttempt, tenantID.String(), userID.String(), maxAttempts, lockUntilUnixUTC).Scan(
		&credential.SecretHash,
		&credential.FailedAttempts,
		&credential.LockedUntilUnixUTC,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Credential{}, wrapStoreError(errorSubjectCredential, errorCodeUpdate, ledger.ErrCredentialNotFound)
		}
		return ledger.Credential{}, wrapStoreError(errorSubjectCredential, errorCodeUpdate, err)
	}
	return credential, nil
}

func (store *Store) ResetFailedAttempts(ctx context.Context, tenantID ledger.TenantID, userID ledger.UserID) error {
	tag, err := store.pool.Exec(ctx, sqlResetFailedAttempts, tenantID.String(), userID.String())
	if err != nil {
		return wrapStoreError(errorSubjectCredential, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectCredential, errorCodeUpdate, ledger.ErrCredentialNotFound)
	}
	return nil
}

// queries holds the statements shared by Store and TxStore.
type queries struct {
	db querier
}

func (store queries) CreateWallet(ctx context.Context, wallet ledger.Wallet) error {
	_, err := store.db.Exec(ctx, sqlInsertWallet,
		wallet.TenantID.String(),
		wallet.ID.String(),
		wallet.UserID.String(),
		wallet.Currency.String(),
		wallet.Balance.Int64(),
		wallet.AvailableBalance.Int64(),
		string(wallet.Status),
		amountPointer(wallet.DailyLimit),
		amountPointer(wallet.MonthlyLimit),
		wallet.KYCTier,
		wallet.UpdatedUnixUTC,
	)
	if isUniqueViolation(err, constraintWalletPrimary) {
		return wrapStoreError(errorSubjectWallet, errorCodeDuplicate, ledger.ErrWalletExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectWallet, errorCodeCreate, err)
	}
	return nil
}

func (store queries) GetWallet(ctx context.Context, tenantID ledger.TenantID, walletID ledger.WalletID) (ledger.Wallet, error) {
	return store.selectWallet(ctx, sqlSelectWallet, tenantID, walletID)
}

func (store queries) GetWalletForUpdate(ctx context.Context, tenantID ledger.TenantID, walletID ledger.WalletID) (ledger.Wallet, error) {
	return store.selectWallet(ctx, sqlSelectWalletForUpdate, tenantID, walletID)
}

func (store queries) selectWallet(ctx context.Context, query string, tenantID ledger.TenantID, walletID ledger.WalletID) (ledger.Wallet, error) {
	wallet, err := scanWallet(store.db.QueryRow(ctx, query, tenantID.String(), walletID.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeGet, ledger.ErrWalletNotFound)
		}
		return ledger.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeGet, err)
	}
	return wallet, nil
}

func (store queries) UpdateWalletBalances(ctx context.Context, wallet ledger.Wallet) error {
	tag, err := store.db.Exec(ctx, sqlUpdateWalletBalances,
		wallet.TenantID.String(),
		wallet.ID.String(),
		wallet.Balance.Int64(),
		wallet.AvailableBalance.Int64(),
		wallet.UpdatedUnixUTC,
	)
	if err != nil {
		return wrapStoreError(errorSubjectWallet, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectWallet, errorCodeUpdate, ledger.ErrWalletNotFound)
	}
	return nil
}

func (store queries) UpdateWalletLimits(ctx context.Context, tenantID ledger.TenantID, walletID ledger.WalletID, dailyLimit *ledger.Amount, monthlyLimit *ledger.Amount, atUnixUTC int64) error {
	tag, err := store.db.Exec(ctx, sqlUpdateWalletLimits,
		tenantID.String(),
		walletID.String(),
		amountPointer(dailyLimit),
		amountPointer(monthlyLimit),
		atUnixUTC,
	)
	if err != nil {
		return wrapStoreError(errorSubjectWallet, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectWallet, errorCodeUpdate, ledger.ErrWalletNotFound)
	}
	return nil
}

func (store queries) SumSpend(ctx context.Context, tenantID ledger.TenantID, walletID ledger.WalletID, fromUnixUTC int64, toUnixUTC int64) (ledger.Amount, error) {
	var sum int64
	err := store.db.QueryRow(ctx, sqlSumSpend, tenantID.String(), walletID.String(), fromUnixUTC, toUnixUTC).Scan(&sum)
	if err != nil {
		return 0, wrapStoreError(errorSubjectSpend, errorCodeSum, err)
	}
	total, err := ledger.NewAmount(sum)
	if err != nil {
		return 0, wrapStoreError(errorSubjectSpend, errorCodeInvalid, err)
	}
	return total, nil
}

func (store queries) InsertTransaction(ctx context.Context, transaction ledger.Transaction) error {
	statusLog, err := json.Marshal(nonNilLog(transaction.Log))
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	_, err = store.db.Exec(ctx, sqlInsertTransaction,
		transaction.ID.String(),
		transaction.TenantID.String(),
		transaction.Reference.String(),
		transaction.SessionID,
		transaction.WalletID.String(),
		transaction.UserID.String(),
		string(transaction.Kind),
		transaction.Recipient.AccountNumber,
		transaction.Recipient.BankCode,
		transaction.Recipient.Name,
		transaction.Recipient.WalletID.String(),
		transaction.Amount.Int64(),
		transaction.Fee.Int64(),
		transaction.Currency.String(),
		transaction.Narration,
		string(transaction.Status),
		transaction.FailureReason,
		transaction.ProviderReference,
		transaction.ReversalOf.String(),
		string(statusLog),
		transaction.CreatedUnixUTC,
		transaction.UpdatedUnixUTC,
		transaction.CompletedUnixUTC,
	)
	if isUniqueViolation(err, constraintReversalOf) {
		return wrapStoreError(errorSubjectTransaction, errorCodeDuplicate, ledger.ErrReversalExists)
	}
	if isUniqueViolation(err, constraintTenantReference) {
		return wrapStoreError(errorSubjectTransaction, errorCodeDuplicate, ledger.ErrDuplicateReference)
	}
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	return nil
}

func (store queries) GetTransaction(ctx context.Context, tenantID ledger.TenantID, transactionID ledger.TransactionID) (ledger.Transaction, error) {
	return store.selectTransaction(ctx, sqlSelectTransactionByID, tenantID.String(), transactionID.String())
}

func (store queries) GetTransactionByReference(ctx context.Context, tenantID ledger.TenantID, reference ledger.Reference) (ledger.Transaction, error) {
	return store.selectTransaction(ctx, sqlSelectTransactionByReference, tenantID.String(), reference.String())
}

func (store queries) FindReversal(ctx context.Context, tenantID ledger.TenantID, originalID ledger.TransactionID) (ledger.Transaction, error) {
	return store.selectTransaction(ctx, sqlSelectReversal, tenantID.String(), originalID.String())
}

func (store queries) selectTransaction(ctx context.Context, query string, args ...any) (ledger.Transaction, error) {
	transaction, err := scanTransaction(store.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, ledger.ErrTransactionNotFound)
		}
		return ledger.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, err)
	}
	return transaction, nil
}

func (store queries) UpdateTransactionStatus(ctx context.Context, update ledger.StatusUpdate) error {
	entry, err := json.Marshal(update.Entry)
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	tag, err := store.db.Exec(ctx, sqlUpdateTransactionStatus,
		update.TenantID.String(),
		update.TransactionID.String(),
		string(update.From),
		string(update.To),
		update.FailureReason,
		update.ProviderReference,
		update.CompletedUnixUTC,
		string(entry),
		update.Entry.AtUnixUTC,
	)
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeUpdateStatus, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists int
	err = store.db.QueryRow(ctx, sqlTransactionExists, update.TenantID.String(), update.TransactionID.String()).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return wrapStoreError(errorSubjectTransaction, errorCodeUpdateStatus, ledger.ErrTransactionNotFound)
	}
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeUpdateStatus, err)
	}
	return wrapStoreError(errorSubjectTransaction, errorCodeUpdateStatus, ledger.ErrTransactionClosed)
}

func (store queries) ListPendingTransactions(ctx context.Context, createdBeforeUnixUTC int64, limit int) ([]ledger.Transaction, error) {
	rows, err := store.db.Query(ctx, sqlListPending, createdBeforeUnixUTC, limit)
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	defer rows.Close()
	var transactions []ledger.Transaction
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
		}
		transactions = append(transactions, transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	return transactions, nil
}

func (store queries) ListTransactions(ctx context.Context, tenantID ledger.TenantID, walletID ledger.WalletID, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	rows, err := store.db.Query(ctx, sqlListTransactions,
		tenantID.String(), walletID.String(), string(filter.Kind), string(filter.Status), filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	defer rows.Close()
	var transactions []ledger.Transaction
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
		}
		transactions = append(transactions, transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	return transactions, nil
}

func scanWallet(row pgx.Row) (ledger.Wallet, error) {
	var (
		tenantIDValue, walletIDValue, userIDValue, currencyValue, statusValue string
		balance, available                                                     int64
		dailyLimit, monthlyLimit                                               *int64
		kycTier                                                                int
		updatedUnix                                                            int64
	)
	if err := row.Scan(
		&tenantIDValue, &walletIDValue, &userIDValue, &currencyValue, &balance, &available, &statusValue,
		&dailyLimit, &monthlyLimit, &kycTier, &updatedUnix,
	); err != nil {
		return ledger.Wallet{}, err
	}
	tenantID, err := ledger.NewTenantID(tenantIDValue)
	if err != nil {
		return ledger.Wallet{}, err
	}
	walletID, err := ledger.NewWalletID(walletIDValue)
	if err != nil {
		return ledger.Wallet{}, err
	}
	userID, err := ledger.NewUserID(userIDValue)
	if err != nil {
		return ledger.Wallet{}, err
	}
	currency, err := ledger.NewCurrency(currencyValue)
	if err != nil {
		return ledger.Wallet{}, err
	}
	status, err := ledger.ParseWalletStatus(statusValue)
	if err != nil {
		return ledger.Wallet{}, err
	}
	balanceAmount, err := ledger.NewAmount(balance)
	if err != nil {
		return ledger.Wallet{}, err
	}
	availableAmount, err := ledger.NewAmount(available)
	if err != nil {
		return ledger.Wallet{}, err
	}
	dailyAmount, err := optionalAmount(dailyLimit)
	if err != nil {
		return ledger.Wallet{}, err
	}
	monthlyAmount, err := optionalAmount(monthlyLimit)
	if err != nil {
		return ledger.Wallet{}, err
	}
	return ledger.Wallet{
		ID:               walletID,
		TenantID:         tenantID,
		UserID:           userID,
		Currency:         currency,
		Balance:          balanceAmount,
		AvailableBalance: availableAmount,
		Status:           status,
		DailyLimit:       dailyAmount,
		MonthlyLimit:     monthlyAmount,
		KYCTier:          kycTier,
		UpdatedUnixUTC:   updatedUnix,
	}, nil
}

func scanTransaction(row pgx.Row) (ledger.Transaction, error) {
	var (
		transactionIDValue, tenantIDValue, referenceValue, sessionID, walletIDValue, userIDValue, kindValue string
		recipientAccount, recipientBankCode, recipientName, recipientWalletID                             string
		amount, fee                                                                                       int64
		currencyValue, narration, statusValue, failureReason, providerReference                          string
		reversalOfValue, statusLogValue                                                                   string
		createdUnix, updatedUnix, completedUnix                                                           int64
	)
	if err := row.Scan(
		&transactionIDValue, &tenantIDValue, &referenceValue, &sessionID, &walletIDValue, &userIDValue, &kindValue,
		&recipientAccount, &recipientBankCode, &recipientName, &recipientWalletID,
		&amount, &fee, &currencyValue, &narration, &statusValue, &failureReason, &providerReference,
		&reversalOfValue, &statusLogValue,
		&createdUnix, &updatedUnix, &completedUnix,
	); err != nil {
		return ledger.Transaction{}, err
	}
	transactionID, err := ledger.NewTransactionID(transactionIDValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	tenantID, err := ledger.NewTenantID(tenantIDValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	reference, err := ledger.NewReference(referenceValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	walletID, err := ledger.NewWalletID(walletIDValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	userID, err := ledger.NewUserID(userIDValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	kind, err := ledger.ParseTransactionKind(kindValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	status, err := ledger.ParseTransactionStatus(statusValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	currency, err := ledger.NewCurrency(currencyValue)
	if err != nil {
		return ledger.Transaction{}, err
	}
	amountValue, err := ledger.NewAmount(amount)
	if err != nil {
		return ledger.Transaction{}, err
	}
	feeValue, err := ledger.NewAmount(fee)
	if err != nil {
		return ledger.Transaction{}, err
	}
	recipient := ledger.Recipient{AccountNumber: recipientAccount, BankCode: recipientBankCode, Name: recipientName}
	if recipientWalletID != "" {
		recipient.WalletID, err = ledger.NewWalletID(recipientWalletID)
		if err != nil {
			return ledger.Transaction{}, err
		}
	}
	var reversalOf ledger.TransactionID
	if reversalOfValue != "" {
		reversalOf, err = ledger.NewTransactionID(reversalOfValue)
		if err != nil {
			return ledger.Transaction{}, err
		}
	}
	var statusLog []ledger.StatusLogEntry
	if err := json.Unmarshal([]byte(statusLogValue), &statusLog); err != nil {
		return ledger.Transaction{}, err
	}
	return ledger.Transaction{
		ID:                transactionID,
		TenantID:          tenantID,
		Reference:         reference,
		SessionID:         sessionID,
		WalletID:          walletID,
		UserID:            userID,
		Kind:              kind,
		Recipient:         recipient,
		Amount:            amountValue,
		Fee:               feeValue,
		Currency:          currency,
		Narration:         narration,
		Status:            status,
		FailureReason:     failureReason,
		ProviderReference: providerReference,
		ReversalOf:        reversalOf,
		CreatedUnixUTC:    createdUnix,
		UpdatedUnixUTC:    updatedUnix,
		CompletedUnixUTC:  completedUnix,
		Log:               statusLog,
	}, nil
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

func nonNilLog(entries []ledger.StatusLogEntry) []ledger.StatusLogEntry {
	if entries == nil {
		return []ledger.StatusLogEntry{}
	}
	return entries
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

func isUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraint
	}
	return false
}
