package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	walletv1 "github.com/MarkoPoloResearchLab/walletledger/api/wallet/v1"
	"github.com/MarkoPoloResearchLab/walletledger/pkg/ledger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	errorInvalidTenantID      = "invalid_tenant_id"
	errorInvalidUserID        = "invalid_user_id"
	errorInvalidWalletID      = "invalid_wallet_id"
	errorInvalidTransactionID = "invalid_transaction_id"
	errorInvalidReference     = "invalid_reference"
	errorInvalidAmount        = "invalid_amount"
	errorInvalidCurrency      = "invalid_currency"
	errorInvalidSecret        = "invalid_secret"
	errorInvalidLimits        = "invalid_limits"
	errorInvalidKind          = "invalid_transaction_kind"
	errorWalletNotFound       = "wallet_not_found"
	errorWalletExists         = "wallet_exists"
	errorTransferNotFound     = "transfer_not_found"
	errorReversalUnsupported  = "reversal_unsupported"
	errorReversalExists       = "reversal_exists"
	errorTransactionClosed    = "transaction_closed"
	errorSettlementPending    = "settlement_unconfirmed"
	errorInvalidStatus        = "invalid_transaction_status"
	errorInvalidRecipient     = "invalid_recipient"
	errorInvalidPage          = "invalid_page"
	errorWalletInactive       = "wallet_inactive"
	errorDuplicateReference   = "duplicate_reference"
	errorAccountNotFound      = "account_not_found"
	errorEnquiryUnavailable   = "name_enquiry_unavailable"

	messageUnauthorized = "transaction secret rejected"
	messageLocked       = "transaction secret locked"
	messageInsufficient = "insufficient available balance"
)

// TransferServiceServer exposes the wallet ledger over gRPC.
type TransferServiceServer struct {
	walletv1.UnimplementedTransferServiceServer
	walletService *ledger.Service
}

// NewTransferServiceServer constructs a gRPC server for the ledger service.
func NewTransferServiceServer(walletService *ledger.Service) *TransferServiceServer {
	return &TransferServiceServer{walletService: walletService}
}

// InitiateTransfer reports business outcomes in the response code. gRPC errors are reserved for
// infrastructure failures.
func (service *TransferServiceServer) InitiateTransfer(ctx context.Context, request *walletv1.InitiateTransferRequest) (*walletv1.InitiateTransferResponse, error) {
	transferRequest, invalid, ok := newTransferRequest(request)
	if !ok {
		return newTransferResponse(invalid), nil
	}
	result, err := service.walletService.InitiateTransfer(ctx, transferRequest)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	return newTransferResponse(result), nil
}

func (service *TransferServiceServer) GetTransferStatus(ctx context.Context, request *walletv1.GetTransferStatusRequest) (*walletv1.GetTransferStatusResponse, error) {
	tenantID, err := ledger.NewTenantID(request.TenantID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	reference, err := ledger.NewReference(request.Reference)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	transferStatus, operationError := service.walletService.TransferStatus(ctx, tenantID, reference)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	response := &walletv1.GetTransferStatusResponse{Transaction: newTransaction(transferStatus.Transaction)}
	if transferStatus.Reversal != nil {
		reversal := newTransaction(*transferStatus.Reversal)
		response.Reversal = &reversal
	}
	return response, nil
}

func (service *TransferServiceServer) GetLimits(ctx context.Context, request *walletv1.GetLimitsRequest) (*walletv1.GetLimitsResponse, error) {
	tenantID, walletID, err := parseWalletKey(request.TenantID, request.WalletID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	snapshot, operationError := service.walletService.Limits(ctx, tenantID, walletID)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return &walletv1.GetLimitsResponse{
		WalletID: snapshot.WalletID.String(),
		Currency: snapshot.Currency.String(),
		Daily: walletv1.LimitWindow{
			Limit:     snapshot.DailyLimit.String(),
			Spent:     snapshot.DailySpent.String(),
			Remaining: snapshot.DailyRemaining.String(),
		},
		Monthly: walletv1.LimitWindow{
			Limit:     snapshot.MonthlyLimit.String(),
			Spent:     snapshot.MonthlySpent.String(),
			Remaining: snapshot.MonthlyRemaining.String(),
		},
		AsOf: snapshot.AsOfUnixUTC,
	}, nil
}

func (service *TransferServiceServer) GetWallet(ctx context.Context, request *walletv1.GetWalletRequest) (*walletv1.Wallet, error) {
	tenantID, walletID, err := parseWalletKey(request.TenantID, request.WalletID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	wallet, operationError := service.walletService.Wallet(ctx, tenantID, walletID)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return newWallet(wallet), nil
}

func (service *TransferServiceServer) OpenWallet(ctx context.Context, request *walletv1.OpenWalletRequest) (*walletv1.Wallet, error) {
	tenantID, err := ledger.NewTenantID(request.TenantID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	userID, err := ledger.NewUserID(request.UserID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	openRequest := ledger.OpenWalletRequest{TenantID: tenantID, UserID: userID, KYCTier: request.KYCTier}
	if request.WalletID != "" {
		if openRequest.WalletID, err = ledger.NewWalletID(request.WalletID); err != nil {
			return nil, mapToGRPCError(err)
		}
	}
	if request.Currency != "" {
		if openRequest.Currency, err = ledger.NewCurrency(request.Currency); err != nil {
			return nil, mapToGRPCError(err)
		}
	}
	if request.OpeningBalance != "" {
		if openRequest.OpeningBalance, err = ledger.ParseAmount(request.OpeningBalance); err != nil {
			return nil, mapToGRPCError(err)
		}
	}
	if openRequest.DailyLimit, err = parseOptionalAmount(request.DailyLimit); err != nil {
		return nil, mapToGRPCError(err)
	}
	if openRequest.MonthlyLimit, err = parseOptionalAmount(request.MonthlyLimit); err != nil {
		return nil, mapToGRPCError(err)
	}
	wallet, operationError := service.walletService.OpenWallet(ctx, openRequest)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return newWallet(wallet), nil
}

func (service *TransferServiceServer) SetSecret(ctx context.Context, request *walletv1.SetSecretRequest) (*walletv1.Empty, error) {
	tenantID, err := ledger.NewTenantID(request.TenantID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	userID, err := ledger.NewUserID(request.UserID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	if operationError := service.walletService.SetSecret(ctx, tenantID, userID, request.Secret); operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return &walletv1.Empty{}, nil
}

func (service *TransferServiceServer) SetWalletLimits(ctx context.Context, request *walletv1.SetWalletLimitsRequest) (*walletv1.Wallet, error) {
	tenantID, walletID, err := parseWalletKey(request.TenantID, request.WalletID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	dailyLimit, err := parseOptionalAmount(request.DailyLimit)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	monthlyLimit, err := parseOptionalAmount(request.MonthlyLimit)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	if operationError := service.walletService.SetWalletLimits(ctx, tenantID, walletID, dailyLimit, monthlyLimit); operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	wallet, operationError := service.walletService.Wallet(ctx, tenantID, walletID)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return newWallet(wallet), nil
}

// ReleaseTransfer is the operator entry point to the compensator.
func (service *TransferServiceServer) ReleaseTransfer(ctx context.Context, request *walletv1.ReleaseTransferRequest) (*walletv1.ReleaseTransferResponse, error) {
	tenantID, err := ledger.NewTenantID(request.TenantID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	transactionID, err := ledger.NewTransactionID(request.TransactionID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	outcome, operationError := service.walletService.Release(ctx, tenantID, transactionID, request.Reason, ledger.ActorOperator)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return &walletv1.ReleaseTransferResponse{Outcome: string(outcome)}, nil
}

// FundWallet credits a wallet from an external source. Replays of the same reference are not errors.
func (service *TransferServiceServer) FundWallet(ctx context.Context, request *walletv1.FundWalletRequest) (*walletv1.FundWalletResponse, error) {
	tenantID, walletID, err := parseWalletKey(request.TenantID, request.WalletID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	reference, err := ledger.NewReference(request.Reference)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	amount, err := ledger.ParseAmount(request.Amount)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	fundRequest := ledger.FundRequest{
		TenantID:  tenantID,
		WalletID:  walletID,
		Reference: reference,
		Amount:    amount,
		Narration: request.Narration,
		Source:    request.Source,
	}
	if request.Currency != "" {
		if fundRequest.Currency, err = ledger.NewCurrency(request.Currency); err != nil {
			return nil, mapToGRPCError(err)
		}
	}
	result, operationError := service.walletService.FundWallet(ctx, fundRequest)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return &walletv1.FundWalletResponse{
		Transaction: newTransaction(result.Transaction),
		Wallet:      *newWallet(result.Wallet),
		Replayed:    result.Replayed,
	}, nil
}

func (service *TransferServiceServer) ListTransactions(ctx context.Context, request *walletv1.ListTransactionsRequest) (*walletv1.ListTransactionsResponse, error) {
	tenantID, walletID, err := parseWalletKey(request.TenantID, request.WalletID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	filter := ledger.TransactionFilter{
		Kind:   ledger.TransactionKind(strings.TrimSpace(request.Kind)),
		Status: ledger.TransactionStatus(strings.TrimSpace(request.Status)),
		Limit:  request.Limit,
		Offset: request.Offset,
	}
	page, operationError := service.walletService.ListTransactions(ctx, tenantID, walletID, filter)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	response := &walletv1.ListTransactionsResponse{
		Transactions: make([]walletv1.Transaction, 0, len(page.Transactions)),
		Offset:       page.Offset,
		Limit:        page.Limit,
		NextOffset:   page.NextOffset,
	}
	for _, transaction := range page.Transactions {
		response.Transactions = append(response.Transactions, newTransaction(transaction))
	}
	return response, nil
}

// NameEnquiry resolves the holder of an external account so clients can confirm the recipient.
func (service *TransferServiceServer) NameEnquiry(ctx context.Context, request *walletv1.NameEnquiryRequest) (*walletv1.NameEnquiryResponse, error) {
	tenantID, err := ledger.NewTenantID(request.TenantID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	identity, operationError := service.walletService.VerifyRecipient(ctx, tenantID, request.AccountNumber, request.BankCode)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return &walletv1.NameEnquiryResponse{
		AccountNumber: identity.AccountNumber,
		BankCode:      identity.BankCode,
		AccountName:   identity.AccountName,
		KYCLevel:      identity.KYCLevel,
		SessionID:     identity.SessionID,
	}, nil
}

func parseWalletKey(rawTenantID string, rawWalletID string) (ledger.TenantID, ledger.WalletID, error) {
	tenantID, err := ledger.NewTenantID(rawTenantID)
	if err != nil {
		return ledger.TenantID{}, ledger.WalletID{}, err
	}
	walletID, err := ledger.NewWalletID(rawWalletID)
	if err != nil {
		return ledger.TenantID{}, ledger.WalletID{}, err
	}
	return tenantID, walletID, nil
}

func parseOptionalAmount(raw string) (*ledger.Amount, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	amount, err := ledger.ParseAmount(raw)
	if err != nil {
		return nil, err
	}
	return &amount, nil
}

// newTransferRequest converts wire fields. Conversion failures are reported the same way the
// ledger reports validation failures.
func newTransferRequest(request *walletv1.InitiateTransferRequest) (ledger.TransferRequest, ledger.TransferInvalid, bool) {
	invalid := func(code string, err error) (ledger.TransferRequest, ledger.TransferInvalid, bool) {
		return ledger.TransferRequest{}, ledger.TransferInvalid{ErrorCode: code, Err: err}, false
	}
	tenantID, err := ledger.NewTenantID(request.TenantID)
	if err != nil {
		return invalid(ledger.CodeInvalidRequest, err)
	}
	userID, err := ledger.NewUserID(request.UserID)
	if err != nil {
		return invalid(ledger.CodeInvalidRequest, err)
	}
	walletID, err := ledger.NewWalletID(request.WalletID)
	if err != nil {
		return invalid(ledger.CodeInvalidRequest, err)
	}
	transferRequest := ledger.TransferRequest{
		TenantID:  tenantID,
		UserID:    userID,
		WalletID:  walletID,
		SessionID: request.SessionID,
		Narration: request.Narration,
		Secret:    request.Secret,
	}
	if request.Reference != "" {
		if transferRequest.Reference, err = ledger.NewReference(request.Reference); err != nil {
			return invalid(ledger.CodeInvalidRequest, err)
		}
	}
	if request.Currency != "" {
		if transferRequest.Currency, err = ledger.NewCurrency(request.Currency); err != nil {
			return invalid(ledger.CodeInvalidRequest, err)
		}
	}
	if transferRequest.Amount, err = ledger.ParseAmount(request.Amount); err != nil {
		return invalid(ledger.CodeInvalidAmount, err)
	}
	if transferRequest.Recipient, err = newRecipient(request.Recipient); err != nil {
		return invalid(ledger.CodeInvalidRecipient, err)
	}
	return transferRequest, ledger.TransferInvalid{}, true
}

func newRecipient(recipient walletv1.Recipient) (ledger.Recipient, error) {
	if recipient.WalletID == "" {
		return ledger.NewExternalRecipient(recipient.AccountNumber, recipient.BankCode, recipient.Name)
	}
	walletID, err := ledger.NewWalletID(recipient.WalletID)
	if err != nil {
		return ledger.Recipient{}, fmt.Errorf("%w: %v", ledger.ErrInvalidRecipient, err)
	}
	return ledger.NewInternalRecipient(walletID, recipient.Name)
}

func newTransferResponse(result ledger.TransferResult) *walletv1.InitiateTransferResponse {
	response := &walletv1.InitiateTransferResponse{Code: result.Code()}
	withTransaction := func(transaction ledger.Transaction) {
		converted := newTransaction(transaction)
		response.Transaction = &converted
	}
	switch typed := result.(type) {
	case ledger.TransferCompleted:
		withTransaction(typed.Transaction)
	case ledger.TransferPending:
		withTransaction(typed.Transaction)
	case ledger.TransferReplayed:
		withTransaction(typed.Transaction)
	case ledger.TransferFailed:
		withTransaction(typed.Transaction)
		response.Message = typed.Reason
	case ledger.TransferUnauthorized:
		response.Message = messageUnauthorized
		response.AttemptsRemaining = typed.AttemptsRemaining
		response.LockedUntil = typed.LockedUntilUnixUTC
		if typed.LockedUntilUnixUTC > 0 {
			response.Message = messageLocked
		}
	case ledger.TransferInsufficientFunds:
		response.Message = messageInsufficient
		response.Available = typed.Available.String()
		response.Required = typed.Required.String()
	case ledger.TransferLimitExceeded:
		response.Message = typed.Decision.Reason
		response.Limit = &walletv1.LimitBreach{
			Window:    string(typed.Decision.Window),
			Limit:     typed.Decision.Limit().String(),
			Spent:     typed.Decision.Spent().String(),
			Remaining: typed.Decision.Remaining().String(),
			Requested: typed.Decision.Requested.String(),
		}
	case ledger.TransferInvalid:
		response.Message = typed.Error()
	case ledger.TransferWalletNotFound:
		response.Message = fmt.Sprintf("wallet %s not found", typed.WalletID)
	case ledger.TransferWalletInactive:
		response.Message = fmt.Sprintf("wallet %s is %s", typed.WalletID, typed.Status)
	}
	return response
}

func newTransaction(transaction ledger.Transaction) walletv1.Transaction {
	converted := walletv1.Transaction{
		ID:        transaction.ID.String(),
		TenantID:  transaction.TenantID.String(),
		Reference: transaction.Reference.String(),
		SessionID: transaction.SessionID,
		WalletID:  transaction.WalletID.String(),
		UserID:    transaction.UserID.String(),
		Kind:      string(transaction.Kind),
		Recipient: walletv1.Recipient{
			AccountNumber: transaction.Recipient.AccountNumber,
			BankCode:      transaction.Recipient.BankCode,
			Name:          transaction.Recipient.Name,
			WalletID:      transaction.Recipient.WalletID.String(),
		},
		Amount:            transaction.Amount.String(),
		Fee:               transaction.Fee.String(),
		Total:             transaction.Total().String(),
		Currency:          transaction.Currency.String(),
		Narration:         transaction.Narration,
		Status:            string(transaction.Status),
		FailureReason:     transaction.FailureReason,
		ProviderReference: transaction.ProviderReference,
		ReversalOf:        transaction.ReversalOf.String(),
		CreatedAt:         transaction.CreatedUnixUTC,
		UpdatedAt:         transaction.UpdatedUnixUTC,
		CompletedAt:       transaction.CompletedUnixUTC,
		Log:               make([]walletv1.StatusLogEntry, 0, len(transaction.Log)),
	}
	for _, entry := range transaction.Log {
		converted.Log = append(converted.Log, walletv1.StatusLogEntry{
			Status:  string(entry.Status),
			Actor:   entry.Actor,
			Message: entry.Message,
			At:      entry.AtUnixUTC,
		})
	}
	return converted
}

func newWallet(wallet ledger.Wallet) *walletv1.Wallet {
	converted := &walletv1.Wallet{
		ID:               wallet.ID.String(),
		TenantID:         wallet.TenantID.String(),
		UserID:           wallet.UserID.String(),
		Currency:         wallet.Currency.String(),
		Balance:          wallet.Balance.String(),
		AvailableBalance: wallet.AvailableBalance.String(),
		Status:           string(wallet.Status),
		KYCTier:          wallet.KYCTier,
		UpdatedAt:        wallet.UpdatedUnixUTC,
	}
	if wallet.DailyLimit != nil {
		converted.DailyLimit = wallet.DailyLimit.String()
	}
	if wallet.MonthlyLimit != nil {
		converted.MonthlyLimit = wallet.MonthlyLimit.String()
	}
	return converted
}

func mapToGRPCError(source error) error {
	if errors.Is(source, ledger.ErrInvalidTenantID) {
		return status.Error(codes.InvalidArgument, errorInvalidTenantID)
	}
	if errors.Is(source, ledger.ErrInvalidUserID) {
		return status.Error(codes.InvalidArgument, errorInvalidUserID)
	}
	if errors.Is(source, ledger.ErrInvalidWalletID) {
		return status.Error(codes.InvalidArgument, errorInvalidWalletID)
	}
	if errors.Is(source, ledger.ErrInvalidTransactionID) {
		return status.Error(codes.InvalidArgument, errorInvalidTransactionID)
	}
	if errors.Is(source, ledger.ErrInvalidReference) {
		return status.Error(codes.InvalidArgument, errorInvalidReference)
	}
	if errors.Is(source, ledger.ErrInvalidAmount) {
		return status.Error(codes.InvalidArgument, errorInvalidAmount)
	}
	if errors.Is(source, ledger.ErrInvalidCurrency) {
		return status.Error(codes.InvalidArgument, errorInvalidCurrency)
	}
	if errors.Is(source, ledger.ErrInvalidSecret) {
		return status.Error(codes.InvalidArgument, errorInvalidSecret)
	}
	if errors.Is(source, ledger.ErrInvalidLimits) {
		return status.Error(codes.InvalidArgument, errorInvalidLimits)
	}
	if errors.Is(source, ledger.ErrInvalidTransactionKind) {
		return status.Error(codes.InvalidArgument, errorInvalidKind)
	}
	if errors.Is(source, ledger.ErrInvalidStatus) {
		return status.Error(codes.InvalidArgument, errorInvalidStatus)
	}
	if errors.Is(source, ledger.ErrInvalidRecipient) {
		return status.Error(codes.InvalidArgument, errorInvalidRecipient)
	}
	if errors.Is(source, ledger.ErrInvalidPage) {
		return status.Error(codes.InvalidArgument, errorInvalidPage)
	}
	if errors.Is(source, ledger.ErrWalletNotFound) {
		return status.Error(codes.NotFound, errorWalletNotFound)
	}
	if errors.Is(source, ledger.ErrTransactionNotFound) {
		return status.Error(codes.NotFound, errorTransferNotFound)
	}
	if errors.Is(source, ledger.ErrAccountNotFound) {
		return status.Error(codes.NotFound, errorAccountNotFound)
	}
	if errors.Is(source, ledger.ErrWalletExists) {
		return status.Error(codes.AlreadyExists, errorWalletExists)
	}
	if errors.Is(source, ledger.ErrReversalExists) {
		return status.Error(codes.AlreadyExists, errorReversalExists)
	}
	if errors.Is(source, ledger.ErrDuplicateReference) {
		return status.Error(codes.AlreadyExists, errorDuplicateReference)
	}
	if errors.Is(source, ledger.ErrInvalidWalletStatus) {
		return status.Error(codes.FailedPrecondition, errorWalletInactive)
	}
	if errors.Is(source, ledger.ErrEnquiryUnavailable) {
		return status.Error(codes.Unimplemented, errorEnquiryUnavailable)
	}
	if errors.Is(source, ledger.ErrReversalUnsupported) {
		return status.Error(codes.FailedPrecondition, errorReversalUnsupported)
	}
	if errors.Is(source, ledger.ErrTransactionClosed) {
		return status.Error(codes.Aborted, errorTransactionClosed)
	}
	if errors.Is(source, ledger.ErrSettlementUnconfirmed) {
		return status.Error(codes.FailedPrecondition, errorSettlementPending)
	}
	return status.Error(codes.Internal, source.Error())
}
