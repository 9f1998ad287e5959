package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"

	walletv1 "github.com/MarkoPoloResearchLab/walletledger/api/wallet/v1"
	"github.com/MarkoPoloResearchLab/walletledger/pkg/ledger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	errorWalletNotFound    = "wallet_not_found"
	errorTransferNotFound  = "transfer_not_found"
	messageExpectedJSON    = "expected JSON body"
	messageWalletNotFound  = "wallet not found"
	messageTransferMissing = "transfer not found"
	messageInvalidQuery    = "invalid query parameters"
)

type httpHandler struct {
	logger       *zap.Logger
	ledgerClient walletv1.TransferServiceClient
	cfg          Config
}

type transferRequest struct {
	WalletID  string             `json:"wallet_id" binding:"required"`
	Reference string             `json:"reference"`
	SessionID string             `json:"session_id"`
	Recipient walletv1.Recipient `json:"recipient"`
	Amount    string             `json:"amount" binding:"required"`
	Currency  string             `json:"currency"`
	Narration string             `json:"narration"`
	Secret    string             `json:"secret" binding:"required"`
}

type secretRequest struct {
	Secret string `json:"secret" binding:"required"`
}

type openWalletRequest struct {
	UserID         string `json:"user_id" binding:"required"`
	WalletID       string `json:"wallet_id"`
	Currency       string `json:"currency"`
	OpeningBalance string `json:"opening_balance"`
	KYCTier        int    `json:"kyc_tier"`
	DailyLimit     string `json:"daily_limit"`
	MonthlyLimit   string `json:"monthly_limit"`
}

type limitsRequest struct {
	DailyLimit   string `json:"daily_limit"`
	MonthlyLimit string `json:"monthly_limit"`
}

type releaseRequest struct {
	Reason string `json:"reason"`
}

type fundRequest struct {
	Reference string `json:"reference" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	Currency  string `json:"currency"`
	Narration string `json:"narration"`
	Source    string `json:"source"`
}

type historyQuery struct {
	Kind   string `form:"kind"`
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

type enquiryRequest struct {
	AccountNumber string `json:"account_number" binding:"required"`
	BankCode      string `json:"bank_code" binding:"required"`
}

func (handler *httpHandler) ledgerContext(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), handler.cfg.LedgerTimeout)
}

func (handler *httpHandler) handleInitiateTransfer(ctx *gin.Context) {
	claims := getClaims(ctx)
	var request transferRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidPayload, messageExpectedJSON))
		return
	}
	requestCtx, cancel := handler.ledgerContext(ctx)
	defer cancel()

	response, err := handler.ledgerClient.InitiateTransfer(requestCtx, &walletv1.InitiateTransferRequest{
		TenantID:  claims.TenantID,
		UserID:    claims.UserID(),
		WalletID:  request.WalletID,
		Reference: request.Reference,
		SessionID: request.SessionID,
		Recipient: request.Recipient,
		Amount:    request.Amount,
		Currency:  request.Currency,
		Narration: request.Narration,
		Secret:    request.Secret,
	})
	if err != nil {
		handler.respondGRPCError(ctx, "initiate transfer", err)
		return
	}
	httpStatus := transferHTTPStatus(response.Code)
	if httpStatus < http.StatusBadRequest {
		ctx.JSON(httpStatus, response)
		return
	}
	body := errorResponse(response.Code, response.Message)
	body["details"] = response
	ctx.JSON(httpStatus, body)
}

// transferHTTPStatus maps a transfer result code. Outcomes that carry a transaction are successes at the HTTP level.
func transferHTTPStatus(code string) int {
	switch code {
	case ledger.CodeCompleted, ledger.CodeDuplicateRequest, ledger.CodeSettlementFailed:
		return http.StatusOK
	case ledger.CodeSettlementPending:
		return http.StatusAccepted
	case ledger.CodeUnauthorized:
		return http.StatusForbidden
	case ledger.CodeInsufficientFunds, ledger.CodeLimitExceeded:
		return http.StatusUnprocessableEntity
	case ledger.CodeWalletNotFound:
		return http.StatusNotFound
	case ledger.CodeWalletInactive, ledger.CodeIdempotencyConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func (handler *httpHandler) handleTransferStatus(ctx *gin.Context) {
	claims := getClaims(ctx)
	requestCtx, cancel := handler.ledgerContext(ctx)
	defer cancel()

	response, err := handler.ledgerClient.GetTransferStatus(requestCtx, &walletv1.GetTransferStatusRequest{
		TenantID:  claims.TenantID,
		Reference: ctx.Param("reference"),
	})
	if err != nil {
		handler.respondGRPCError(ctx, "transfer status", err)
		return
	}
	if response.Transaction.UserID != claims.UserID() && !claims.HasRole(roleOperator) {
		ctx.JSON(http.StatusNotFound, errorResponse(errorTransferNotFound, messageTransferMissing))
		return
	}
	ctx.JSON(http.StatusOK, response)
}

func (handler *httpHandler) handleWallet(ctx *gin.Context) {
	wallet, ok := handler.ownedWallet(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"wallet": wallet})
}

func (handler *httpHandler) handleLimits(ctx *gin.Context) {
	wallet, ok := handler.ownedWallet(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := handler.ledgerContext(ctx)
	defer cancel()
	limits, err := handler.ledgerClient.GetLimits(requestCtx, &walletv1.GetLimitsRequest{TenantID: wallet.TenantID, WalletID: wallet.ID})
	if err != nil {
		handler.respondGRPCError(ctx, "limits", err)
		return
	}
	ctx.JSON(http.StatusOK, limits)
}

// ownedWallet loads the path wallet and hides wallets owned by someone else.
func (handler *httpHandler) ownedWallet(ctx *gin.Context) (*walletv1.Wallet, bool) {
	claims := getClaims(ctx)
	requestCtx, cancel := handler.ledgerContext(ctx)
	defer cancel()
	wallet, err := handler.ledgerClient.GetWallet(requestCtx, &walletv1.GetWalletRequest{TenantID: claims.TenantID, WalletID: ctx.Param("walletId")})
	if err != nil {
		handler.respondGRPCError(ctx, "wallet", err)
		return nil, false
	}
	if wallet.UserID != claims.UserID() && !claims.HasRole(roleOperator) {
		ctx.JSON(http.StatusNotFound, errorResponse(errorWalletNotFound, messageWalletNotFound))
		return nil, false
	}
	return wallet, true
}

func (handler *httpHandler) handleHistory(ctx *gin.Context) {
	var query historyQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidPayload, messageInvalidQuery))
		return
	}
	wallet, ok := handler.ownedWallet(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := handler.ledgerContext(ctx)
	defer cancel()
	page, err := handler.ledgerClient.ListTransactions(requestCtx, &walletv1.ListTransactionsRequest{
		TenantID: wallet.TenantID,
		WalletID: wallet.ID,
		Kind:     query.Kind,
		Status:   query.Status,
		Limit:    query.Limit,
		Offset:   query.Offset,
	})
	if err != nil {
		handler.respondGRPCError(ctx, "transaction history", err)
		return
	}
	ctx.JSON(http.StatusOK, page)
}

func (handler *httpHandler) handleNameEnquiry(ctx *gin.Context) {
	claims := getClaims(ctx)
	var request enquiryRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidPayload, messageExpectedJSON))
		return
	}
	requestCtx, cancel := handler.ledgerContext(ctx)
	defer cancel()
	identity, err := handler.ledgerClient.NameEnquiry(requestCtx, &walletv1.NameEnquiryRequest{
		TenantID:      claims.TenantID,
		AccountNumber: request.AccountNumber,
		BankCode:      request.BankCode,
	})
	if err != nil {
		handler.respondGRPCError(ctx, "name enquiry", err)
		return
	}
	ctx.JSON(http.StatusOK, identity)
}

func (handler *httpHandler) handleSetSecret(ctx *gin.Context) {
	claims := getClaims(ctx)
	var request secretRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidPayload, messageExpectedJSON))
		return
	}
	requestCtx, cancel := handler.ledgerContext(ctx)
	defer cancel()
	if _, err := handler.ledgerClient.SetSecret(requestCtx, &walletv1.SetSecretRequest{TenantID: claims.TenantID, UserID: claims.UserID(), Secret: request.Secret}); err != nil {
		handler.respondGRPCError(ctx, "set secret", err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (handler *httpHandler) handleOpenWallet(ctx *gin.Context) {
	claims := getClaims(ctx)
	var request openWalletRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidPayload, messageExpectedJSON))
		return
	}
	requestCtx, cancel := handler.ledgerContext(ctx)
	defer cancel()
	wallet, err := handler.ledgerClient.OpenWallet(requestCtx, &walletv1.OpenWalletRequest{
		TenantID:       claims.TenantID,
		UserID:         request.UserID,
		WalletID:       request.WalletID,
		Currency:       request.Currency,
		OpeningBalance: request.OpeningBalance,
		KYCTier:        request.KYCTier,
		DailyLimit:     request.DailyLimit,
		MonthlyLimit:   request.MonthlyLimit,
	})
	if err != nil {
		handler.respondGRPCError(ctx, "open wallet", err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"wallet": wallet})
}

func (handler *httpHandler) handleSetLimits(ctx *gin.Context) {
	claims := getClaims(ctx)
	var request limitsRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidPayload, messageExpectedJSON))
		return
	}
	requestCtx, cancel := handler.ledgerContext(ctx)
	defer cancel()
	wallet, err := handler.ledgerClient.SetWalletLimits(requestCtx, &walletv1.SetWalletLimitsRequest{
		TenantID:     claims.TenantID,
		WalletID:     ctx.Param("walletId"),
		DailyLimit:   request.DailyLimit,
		MonthlyLimit: request.MonthlyLimit,
	})
	if err != nil {
		handler.respondGRPCError(ctx, "set limits", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"wallet": wallet})
}

func (handler *httpHandler) handleRelease(ctx *gin.Context) {
	claims := getClaims(ctx)
	var request releaseRequest
	if err := ctx.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidPayload, messageExpectedJSON))
		return
	}
	requestCtx, cancel := handler.ledgerContext(ctx)
	defer cancel()
	response, err := handler.ledgerClient.ReleaseTransfer(requestCtx, &walletv1.ReleaseTransferRequest{
		TenantID:      claims.TenantID,
		TransactionID: ctx.Param("transactionId"),
		Reason:        request.Reason,
	})
	if err != nil {
		handler.respondGRPCError(ctx, "release", err)
		return
	}
	ctx.JSON(http.StatusOK, response)
}

func (handler *httpHandler) handleFund(ctx *gin.Context) {
	claims := getClaims(ctx)
	var request fundRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidPayload, messageExpectedJSON))
		return
	}
	requestCtx, cancel := handler.ledgerContext(ctx)
	defer cancel()
	response, err := handler.ledgerClient.FundWallet(requestCtx, &walletv1.FundWalletRequest{
		TenantID:  claims.TenantID,
		WalletID:  ctx.Param("walletId"),
		Reference: request.Reference,
		Amount:    request.Amount,
		Currency:  request.Currency,
		Narration: request.Narration,
		Source:    request.Source,
	})
	if err != nil {
		handler.respondGRPCError(ctx, "fund wallet", err)
		return
	}
	httpStatus := http.StatusCreated
	if response.Replayed {
		httpStatus = http.StatusOK
	}
	ctx.JSON(httpStatus, response)
}
