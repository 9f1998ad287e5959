package ledger

import "time"

const (
	operationInitiateTransfer = "initiate_transfer"
	operationCompleteTransfer = "complete_transfer"
	operationReleaseTransfer  = "release_transfer"
	operationReconcile        = "reconcile"
	operationOpenWallet       = "open_wallet"
	operationSetLimits        = "set_limits"
	operationSetSecret        = "set_secret"
	operationFundWallet       = "fund_wallet"
	operationVerifyRecipient  = "verify_recipient"

	operationStatusOK       = "ok"
	operationStatusRejected = "rejected"
	operationStatusError    = "error"

	referenceDelimiter       = ":"
	referenceSuffixReversal  = "reversal"
	generatedReferencePrefix = "TRF_"
	maxReferenceLength       = 128

	// ActorEngine marks status changes made by the orchestrator itself.
	ActorEngine = "engine"
	// ActorSettlement marks status changes driven by a settlement response.
	ActorSettlement = "settlement"
	// ActorReconciler marks status changes made by a reconciliation pass.
	ActorReconciler = "reconciler"
	// ActorOperator marks manual releases requested through the operator API.
	ActorOperator = "operator"

	maxNarrationLength   = 100
	minRecipientNameLen  = 2
	maxRecipientNameLen  = 100
	accountNumberLength  = 10
	minBankCodeLength    = 3
	maxBankCodeLength    = 6
	minSecretLength      = 4
	maxSecretLength      = 6
	defaultCurrencyCode  = "NGN"
	defaultMaxAttempts   = 5
	defaultLockDuration  = 30 * time.Minute
	defaultSettleTimeout = 30 * time.Second
	defaultPageSize      = 20
	maxPageSize          = 100
)
