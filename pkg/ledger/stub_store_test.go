package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	tenantIDValue        = "tenant-1"
	userIDValue          = "user-1"
	walletIDValue        = "wallet-1"
	secretValue          = "1234"
	recipientAccount     = "0123456789"
	recipientBankCode    = "058"
	recipientName        = "Ada Obi"
	errorMismatchMessage = "expected %v, got %v"
)

var fixedNowUnixUTC = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC).Unix()

type stubStore struct {
	txMutex      sync.Mutex
	mutex        sync.Mutex
	wallets      map[string]Wallet
	transactions map[string]Transaction
	credentials  map[string]Credential

	getWalletError   error
	insertError      error
	sumSpendError    error
	updateStatusHook func(update StatusUpdate) error
}

type stubSnapshot struct {
	wallets      map[string]Wallet
	transactions map[string]Transaction
	credentials  map[string]Credential
}

func newStubStore() *stubStore {
	return &stubStore{
		wallets:      make(map[string]Wallet),
		transactions: make(map[string]Transaction),
		credentials:  make(map[string]Credential),
	}
}

func walletKey(tenantID TenantID, walletID WalletID) string {
	return tenantID.String() + "/" + walletID.String()
}

func credentialKey(tenantID TenantID, userID UserID) string {
	return tenantID.String() + "/" + userID.String()
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	store.txMutex.Lock()
	defer store.txMutex.Unlock()
	snapshot := store.snapshot()
	if err := fn(ctx, store); err != nil {
		store.restore(snapshot)
		return err
	}
	return nil
}

func (store *stubStore) snapshot() stubSnapshot {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	snapshot := stubSnapshot{
		wallets:      make(map[string]Wallet, len(store.wallets)),
		transactions: make(map[string]Transaction, len(store.transactions)),
		credentials:  make(map[string]Credential, len(store.credentials)),
	}
	for key, wallet := range store.wallets {
		snapshot.wallets[key] = wallet
	}
	for key, transaction := range store.transactions {
		snapshot.transactions[key] = copyTransaction(transaction)
	}
	for key, credential := range store.credentials {
		snapshot.credentials[key] = credential
	}
	return snapshot
}

func (store *stubStore) restore(snapshot stubSnapshot) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.wallets = snapshot.wallets
	store.transactions = snapshot.transactions
	store.credentials = snapshot.credentials
}

func (store *stubStore) CreateWallet(ctx context.Context, wallet Wallet) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	key := walletKey(wallet.TenantID, wallet.ID)
	if _, exists := store.wallets[key]; exists {
		return ErrWalletExists
	}
	store.wallets[key] = wallet
	return nil
}

func (store *stubStore) GetWallet(ctx context.Context, tenantID TenantID, walletID WalletID) (Wallet, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.getWalletError != nil {
		return Wallet{}, store.getWalletError
	}
	wallet, ok := store.wallets[walletKey(tenantID, walletID)]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return wallet, nil
}

func (store *stubStore) GetWalletForUpdate(ctx context.Context, tenantID TenantID, walletID WalletID) (Wallet, error) {
	return store.GetWallet(ctx, tenantID, walletID)
}

func (store *stubStore) UpdateWalletBalances(ctx context.Context, wallet Wallet) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	key := walletKey(wallet.TenantID, wallet.ID)
	current, ok := store.wallets[key]
	if !ok {
		return ErrWalletNotFound
	}
	current.Balance = wallet.Balance
	current.AvailableBalance = wallet.AvailableBalance
	current.UpdatedUnixUTC = wallet.UpdatedUnixUTC
	store.wallets[key] = current
	return nil
}

func (store *stubStore) UpdateWalletLimits(ctx context.Context, tenantID TenantID, walletID WalletID, dailyLimit *Amount, monthlyLimit *Amount, atUnixUTC int64) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	key := walletKey(tenantID, walletID)
	current, ok := store.wallets[key]
	if !ok {
		return ErrWalletNotFound
	}
	current.DailyLimit = dailyLimit
	current.MonthlyLimit = monthlyLimit
	current.UpdatedUnixUTC = atUnixUTC
	store.wallets[key] = current
	return nil
}

func (store *stubStore) SumSpend(ctx context.Context, tenantID TenantID, walletID WalletID, fromUnixUTC int64, toUnixUTC int64) (Amount, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.sumSpendError != nil {
		return 0, store.sumSpendError
	}
	var total Amount
	for _, transaction := range store.transactions {
		if transaction.TenantID != tenantID || transaction.WalletID != walletID || transaction.Kind != TransactionKindTransfer {
			continue
		}
		if transaction.Status == TransactionStatusFailed {
			continue
		}
		if transaction.CreatedUnixUTC < fromUnixUTC || transaction.CreatedUnixUTC > toUnixUTC {
			continue
		}
		total += transaction.Amount
	}
	return total, nil
}

func (store *stubStore) InsertTransaction(ctx context.Context, transaction Transaction) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.insertError != nil {
		return store.insertError
	}
	for _, existing := range store.transactions {
		if existing.TenantID == transaction.TenantID && existing.Reference == transaction.Reference {
			return WrapError("store", "transaction", "duplicate", ErrDuplicateReference)
		}
		if !transaction.ReversalOf.IsZero() && existing.ReversalOf == transaction.ReversalOf {
			return ErrReversalExists
		}
	}
	store.transactions[transaction.ID.String()] = copyTransaction(transaction)
	return nil
}

func (store *stubStore) GetTransaction(ctx context.Context, tenantID TenantID, transactionID TransactionID) (Transaction, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	transaction, ok := store.transactions[transactionID.String()]
	if !ok || transaction.TenantID != tenantID {
		return Transaction{}, ErrTransactionNotFound
	}
	return copyTransaction(transaction), nil
}

func (store *stubStore) GetTransactionByReference(ctx context.Context, tenantID TenantID, reference Reference) (Transaction, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	for _, transaction := range store.transactions {
		if transaction.TenantID == tenantID && transaction.Reference == reference {
			return copyTransaction(transaction), nil
		}
	}
	return Transaction{}, ErrTransactionNotFound
}

func (store *stubStore) FindReversal(ctx context.Context, tenantID TenantID, originalID TransactionID) (Transaction, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	for _, transaction := range store.transactions {
		if transaction.TenantID == tenantID && transaction.ReversalOf == originalID {
			return copyTransaction(transaction), nil
		}
	}
	return Transaction{}, ErrTransactionNotFound
}

func (store *stubStore) UpdateTransactionStatus(ctx context.Context, update StatusUpdate) error {
	if store.updateStatusHook != nil {
		if err := store.updateStatusHook(update); err != nil {
			return err
		}
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	transaction, ok := store.transactions[update.TransactionID.String()]
	if !ok || transaction.TenantID != update.TenantID {
		return ErrTransactionNotFound
	}
	if transaction.Status != update.From {
		return ErrTransactionClosed
	}
	transaction.Status = update.To
	if update.FailureReason != "" {
		transaction.FailureReason = update.FailureReason
	}
	if update.ProviderReference != "" {
		transaction.ProviderReference = update.ProviderReference
	}
	if update.CompletedUnixUTC != 0 {
		transaction.CompletedUnixUTC = update.CompletedUnixUTC
	}
	transaction.UpdatedUnixUTC = update.Entry.AtUnixUTC
	transaction.Log = append(transaction.Log, update.Entry)
	store.transactions[update.TransactionID.String()] = transaction
	return nil
}

func (store *stubStore) ListPendingTransactions(ctx context.Context, createdBeforeUnixUTC int64, limit int) ([]Transaction, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	var pending []Transaction
	for _, transaction := range store.transactions {
		if transaction.Status == TransactionStatusPending && transaction.Kind == TransactionKindTransfer && transaction.CreatedUnixUTC <= createdBeforeUnixUTC {
			pending = append(pending, copyTransaction(transaction))
		}
	}
	sort.Slice(pending, func(left, right int) bool {
		return pending[left].CreatedUnixUTC < pending[right].CreatedUnixUTC
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (store *stubStore) ListTransactions(ctx context.Context, tenantID TenantID, walletID WalletID, filter TransactionFilter) ([]Transaction, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	var matched []Transaction
	for _, transaction := range store.transactions {
		if transaction.TenantID != tenantID || transaction.WalletID != walletID {
			continue
		}
		if filter.Kind != "" && transaction.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && transaction.Status != filter.Status {
			continue
		}
		matched = append(matched, copyTransaction(transaction))
	}
	sort.Slice(matched, func(left, right int) bool {
		if matched[left].CreatedUnixUTC != matched[right].CreatedUnixUTC {
			return matched[left].CreatedUnixUTC > matched[right].CreatedUnixUTC
		}
		return matched[left].ID.String() > matched[right].ID.String()
	})
	if filter.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (store *stubStore) SaveCredential(ctx context.Context, credential Credential) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.credentials[credentialKey(credential.TenantID, credential.UserID)] = credential
	return nil
}

func (store *stubStore) GetCredential(ctx context.Context, tenantID TenantID, userID UserID) (Credential, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	credential, ok := store.credentials[credentialKey(tenantID, userID)]
	if !ok {
		return Credential{}, ErrCredentialNotFound
	}
	return credential, nil
}

func (store *stubStore) RecordFailedAttempt(ctx context.Context, tenantID TenantID, userID UserID, maxAttempts int, lockUntilUnixUTC int64) (Credential, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	key := credentialKey(tenantID, userID)
	credential, ok := store.credentials[key]
	if !ok {
		return Credential{}, ErrCredentialNotFound
	}
	credential.FailedAttempts++
	if credential.FailedAttempts >= maxAttempts {
		credential.LockedUntilUnixUTC = lockUntilUnixUTC
	}
	store.credentials[key] = credential
	return credential, nil
}

func (store *stubStore) ResetFailedAttempts(ctx context.Context, tenantID TenantID, userID UserID) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	key := credentialKey(tenantID, userID)
	credential, ok := store.credentials[key]
	if !ok {
		return ErrCredentialNotFound
	}
	credential.FailedAttempts = 0
	credential.LockedUntilUnixUTC = 0
	store.credentials[key] = credential
	return nil
}

func (store *stubStore) mustWallet(test *testing.T, walletID WalletID) Wallet {
	test.Helper()
	wallet, err := store.GetWallet(context.Background(), mustTenantID(test, tenantIDValue), walletID)
	if err != nil {
		test.Fatalf("wallet %s: %v", walletID.String(), err)
	}
	return wallet
}

func (store *stubStore) transactionCount() int {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return len(store.transactions)
}

func (store *stubStore) seedTransaction(test *testing.T, transaction Transaction) {
	test.Helper()
	if err := store.InsertTransaction(context.Background(), transaction); err != nil {
		test.Fatalf("seed transaction: %v", err)
	}
}

func copyTransaction(transaction Transaction) Transaction {
	transaction.Log = append([]StatusLogEntry(nil), transaction.Log...)
	return transaction
}

type stubSettlement struct {
	mutex          sync.Mutex
	response       SettlementResponse
	err            error
	statusResponse SettlementResponse
	statusErr      error
	onSubmit       func(ctx context.Context, request SettlementRequest)
	requests       []SettlementRequest
}

func (settlement *stubSettlement) Submit(ctx context.Context, request SettlementRequest) (SettlementResponse, error) {
	if settlement.onSubmit != nil {
		settlement.onSubmit(ctx, request)
	}
	settlement.mutex.Lock()
	defer settlement.mutex.Unlock()
	settlement.requests = append(settlement.requests, request)
	return settlement.response, settlement.err
}

func (settlement *stubSettlement) Status(ctx context.Context, tenantID TenantID, transactionID TransactionID) (SettlementResponse, error) {
	settlement.mutex.Lock()
	defer settlement.mutex.Unlock()
	return settlement.statusResponse, settlement.statusErr
}

func (settlement *stubSettlement) submissions() int {
	settlement.mutex.Lock()
	defer settlement.mutex.Unlock()
	return len(settlement.requests)
}

type recordingPublisher struct {
	mutex  sync.Mutex
	events []Event
}

func (publisher *recordingPublisher) Publish(event Event) {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	publisher.events = append(publisher.events, event)
}

func (publisher *recordingPublisher) types() []EventType {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	types := make([]EventType, 0, len(publisher.events))
	for _, event := range publisher.events {
		types = append(types, event.Type)
	}
	return types
}

type recorderLogger struct {
	mutex   sync.Mutex
	entries []OperationLog
}

func (logger *recorderLogger) LogOperation(_ context.Context, entry OperationLog) {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()
	logger.entries = append(logger.entries, entry)
}

func successfulSettlement() *stubSettlement {
	return &stubSettlement{response: SettlementResponse{Outcome: SettlementSucceeded, ProviderReference: "NIP-000001", Code: "00"}}
}

func sequentialIDs(prefix string) func() string {
	var counter atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, counter.Add(1))
	}
}

func mustNewService(test *testing.T, store *stubStore, settlement SettlementLeg, options ...ServiceOption) *Service {
	test.Helper()
	guard, err := NewGuard(bcrypt.MinCost)
	if err != nil {
		test.Fatalf("guard: %v", err)
	}
	base := []ServiceOption{
		WithSettlementLeg(settlement),
		WithGuard(guard),
		WithIDGenerator(sequentialIDs("txn")),
	}
	service, err := NewService(store, store, func() int64 { return fixedNowUnixUTC }, append(base, options...)...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func seedWallet(test *testing.T, store *stubStore, walletID string, balance string, configure func(wallet *Wallet)) Wallet {
	test.Helper()
	amount := mustAmount(test, balance)
	wallet := Wallet{
		ID:               mustWalletID(test, walletID),
		TenantID:         mustTenantID(test, tenantIDValue),
		UserID:           mustUserID(test, userIDValue),
		Currency:         DefaultCurrency(),
		Balance:          amount,
		AvailableBalance: amount,
		Status:           WalletStatusActive,
		KYCTier:          3,
	}
	if configure != nil {
		configure(&wallet)
	}
	if err := store.CreateWallet(context.Background(), wallet); err != nil {
		test.Fatalf("seed wallet: %v", err)
	}
	return wallet
}

func seedSecret(test *testing.T, store *stubStore, secret string) {
	test.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		test.Fatalf("hash secret: %v", err)
	}
	credential := Credential{
		TenantID:   mustTenantID(test, tenantIDValue),
		UserID:     mustUserID(test, userIDValue),
		SecretHash: string(hash),
	}
	if err := store.SaveCredential(context.Background(), credential); err != nil {
		test.Fatalf("seed secret: %v", err)
	}
}

func transferRequest(test *testing.T, reference string, amount string) TransferRequest {
	test.Helper()
	request := TransferRequest{
		TenantID:  mustTenantID(test, tenantIDValue),
		UserID:    mustUserID(test, userIDValue),
		WalletID:  mustWalletID(test, walletIDValue),
		Recipient: mustExternalRecipient(test),
		Amount:    mustAmount(test, amount),
		Narration: "rent",
		Secret:    secretValue,
	}
	if reference != "" {
		request.Reference = mustReference(test, reference)
	}
	return request
}

func mustTenantID(test *testing.T, raw string) TenantID {
	test.Helper()
	value, err := NewTenantID(raw)
	if err != nil {
		test.Fatalf("tenant id: %v", err)
	}
	return value
}

func mustUserID(test *testing.T, raw string) UserID {
	test.Helper()
	value, err := NewUserID(raw)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	return value
}

func mustWalletID(test *testing.T, raw string) WalletID {
	test.Helper()
	value, err := NewWalletID(raw)
	if err != nil {
		test.Fatalf("wallet id: %v", err)
	}
	return value
}

func mustTransactionID(test *testing.T, raw string) TransactionID {
	test.Helper()
	value, err := NewTransactionID(raw)
	if err != nil {
		test.Fatalf("transaction id: %v", err)
	}
	return value
}

func mustReference(test *testing.T, raw string) Reference {
	test.Helper()
	value, err := NewReference(raw)
	if err != nil {
		test.Fatalf("reference: %v", err)
	}
	return value
}

func mustAmount(test *testing.T, raw string) Amount {
	test.Helper()
	value, err := ParseAmount(raw)
	if err != nil {
		test.Fatalf("amount %q: %v", raw, err)
	}
	return value
}

func mustAmountPointer(test *testing.T, raw string) *Amount {
	test.Helper()
	value := mustAmount(test, raw)
	return &value
}

func mustExternalRecipient(test *testing.T) Recipient {
	test.Helper()
	recipient, err := NewExternalRecipient(recipientAccount, recipientBankCode, recipientName)
	if err != nil {
		test.Fatalf("recipient: %v", err)
	}
	return recipient
}
