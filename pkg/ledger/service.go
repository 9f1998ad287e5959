package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Service moves money out of wallets over a Store, a SecretStore and a SettlementLeg.
// Only Service writes wallet balances.
type Service struct {
	store             Store
	secrets           SecretStore
	settlement        SettlementLeg
	enquirer          NameEnquirer
	nowFn             func() int64
	logger            OperationLogger
	events            EventPublisher
	limits            *LimitEvaluator
	fees              FeeSchedule
	guard             Guard
	secretPolicy      SecretPolicy
	settlementTimeout time.Duration
	minAmount         Amount
	maxAmount         Amount
	newID             func() string
	newReference      func() string
}

// NewService wires a Service.
func NewService(store Store, secrets SecretStore, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if secrets == nil {
		return nil, fmt.Errorf("%w: secret store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	defaultLimits, err := NewLimitEvaluator(DefaultTierTable(), time.UTC)
	if err != nil {
		return nil, err
	}
	service := &Service{
		store:             store,
		secrets:           secrets,
		nowFn:             now,
		events:            discardPublisher{},
		limits:            defaultLimits,
		fees:              NoFees{},
		guard:             Guard{},
		secretPolicy:      DefaultSecretPolicy(),
		settlementTimeout: defaultSettleTimeout,
		minAmount:         MustParseAmount("100"),
		maxAmount:         MustParseAmount("1000000"),
		newID:             uuid.NewString,
		newReference:      func() string { return generatedReferencePrefix + ulid.Make().String() },
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	if service.settlement == nil {
		return nil, fmt.Errorf("%w: settlement leg is nil", ErrInvalidServiceConfig)
	}
	if err := service.secretPolicy.validate(); err != nil {
		return nil, err
	}
	if service.settlementTimeout <= 0 {
		return nil, fmt.Errorf("%w: settlement timeout must be positive", ErrInvalidServiceConfig)
	}
	if service.minAmount <= 0 || service.maxAmount < service.minAmount {
		return nil, fmt.Errorf("%w: amount bounds %s..%s", ErrInvalidServiceConfig, service.minAmount, service.maxAmount)
	}
	return service, nil
}

// TransferStatus returns the transaction stored under reference, with its reversal when one exists.
func (service *Service) TransferStatus(ctx context.Context, tenantID TenantID, reference Reference) (TransferStatus, error) {
	transaction, err := service.store.GetTransactionByReference(ctx, tenantID, reference)
	if err != nil {
		return TransferStatus{}, err
	}
	status := TransferStatus{Transaction: transaction}
	if transaction.Status != TransactionStatusFailed || transaction.Kind != TransactionKindTransfer {
		return status, nil
	}
	reversal, err := service.store.FindReversal(ctx, tenantID, transaction.ID)
	switch {
	case err == nil:
		status.Reversal = &reversal
	case !errors.Is(err, ErrTransactionNotFound):
		return TransferStatus{}, err
	}
	return status, nil
}

// Limits reports effective ceilings, consumed spend and remaining headroom for a wallet.
func (service *Service) Limits(ctx context.Context, tenantID TenantID, walletID WalletID) (LimitSnapshot, error) {
	wallet, err := service.store.GetWallet(ctx, tenantID, walletID)
	if err != nil {
		return LimitSnapshot{}, err
	}
	return service.limits.Snapshot(ctx, service.store, wallet, service.nowFn())
}

// Wallet returns a wallet snapshot.
func (service *Service) Wallet(ctx context.Context, tenantID TenantID, walletID WalletID) (Wallet, error) {
	return service.store.GetWallet(ctx, tenantID, walletID)
}

// OpenWalletRequest provisions a wallet, optionally with an opening balance.
type OpenWalletRequest struct {
	TenantID       TenantID
	UserID         UserID
	WalletID       WalletID
	Currency       Currency
	OpeningBalance Amount
	KYCTier        int
	DailyLimit     *Amount
	MonthlyLimit   *Amount
}

// OpenWallet creates an active wallet. A zero WalletID is generated.
func (service *Service) OpenWallet(ctx context.Context, request OpenWalletRequest) (Wallet, error) {
	wallet, err := service.openWallet(ctx, request)
	service.logOperation(ctx, OperationLog{
		Operation: operationOpenWallet,
		TenantID:  request.TenantID,
		UserID:    request.UserID,
		WalletID:  wallet.ID,
		Amount:    request.OpeningBalance,
		Error:     err,
	})
	return wallet, err
}

func (service *Service) openWallet(ctx context.Context, request OpenWalletRequest) (Wallet, error) {
	if request.TenantID.IsZero() {
		return Wallet{}, fmt.Errorf("%w: empty value", ErrInvalidTenantID)
	}
	if request.UserID.IsZero() {
		return Wallet{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	if request.OpeningBalance < 0 {
		return Wallet{}, fmt.Errorf("%w: opening balance must not be negative", ErrInvalidAmount)
	}
	if err := validateLimits(request.DailyLimit, request.MonthlyLimit); err != nil {
		return Wallet{}, err
	}
	walletID := request.WalletID
	if walletID.IsZero() {
		generated, err := NewWalletID(service.newID())
		if err != nil {
			return Wallet{}, err
		}
		walletID = generated
	}
	currency := request.Currency
	if currency.IsZero() {
		currency = DefaultCurrency()
	}
	wallet := Wallet{
		ID:               walletID,
		TenantID:         request.TenantID,
		UserID:           request.UserID,
		Currency:         currency,
		Balance:          request.OpeningBalance,
		AvailableBalance: request.OpeningBalance,
		Status:           WalletStatusActive,
		DailyLimit:       request.DailyLimit,
		MonthlyLimit:     request.MonthlyLimit,
		KYCTier:          request.KYCTier,
		UpdatedUnixUTC:   service.nowFn(),
	}
	if err := service.store.CreateWallet(ctx, wallet); err != nil {
		return Wallet{}, err
	}
	return wallet, nil
}

// SetWalletLimits replaces the explicit ceilings of a wallet. A nil limit falls back to the tier default.
// The resulting effective daily ceiling may not exceed the monthly one.
func (service *Service) SetWalletLimits(ctx context.Context, tenantID TenantID, walletID WalletID, dailyLimit *Amount, monthlyLimit *Amount) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		wallet, err := txStore.GetWalletForUpdate(ctx, tenantID, walletID)
		if err != nil {
			return err
		}
		wallet.DailyLimit = dailyLimit
		wallet.MonthlyLimit = monthlyLimit
		effective := service.limits.EffectiveLimits(wallet)
		if err := validateLimits(&effective.Daily, &effective.Monthly); err != nil {
			return err
		}
		return txStore.UpdateWalletLimits(ctx, tenantID, walletID, dailyLimit, monthlyLimit, service.nowFn())
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationSetLimits,
		TenantID:  tenantID,
		WalletID:  walletID,
		Error:     operationError,
	})
	return operationError
}

// SetSecret stores a new transaction secret for a user and clears any lockout.
func (service *Service) SetSecret(ctx context.Context, tenantID TenantID, userID UserID, secretPlaintext string) error {
	hash, err := service.guard.Hash(secretPlaintext)
	if err == nil {
		err = service.secrets.SaveCredential(ctx, Credential{TenantID: tenantID, UserID: userID, SecretHash: hash})
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationSetSecret,
		TenantID:  tenantID,
		UserID:    userID,
		Error:     err,
	})
	return err
}

func validateLimits(dailyLimit *Amount, monthlyLimit *Amount) error {
	if dailyLimit != nil && *dailyLimit <= 0 {
		return fmt.Errorf("%w: daily limit must be positive", ErrInvalidLimits)
	}
	if monthlyLimit != nil && *monthlyLimit <= 0 {
		return fmt.Errorf("%w: monthly limit must be positive", ErrInvalidLimits)
	}
	if dailyLimit != nil && monthlyLimit != nil && *dailyLimit > *monthlyLimit {
		return fmt.Errorf("%w: daily limit %s exceeds monthly limit %s", ErrInvalidLimits, *dailyLimit, *monthlyLimit)
	}
	return nil
}

func (service *Service) publish(eventType EventType, transaction Transaction) {
	service.events.Publish(newEvent(eventType, transaction, service.nowFn()))
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

func deriveReference(base Reference, suffix string) (Reference, error) {
	return NewReference(base.String() + referenceDelimiter + suffix)
}
