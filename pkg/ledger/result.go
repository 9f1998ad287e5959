package ledger

// TransferResult is the closed set of outcomes of InitiateTransfer.
// Callers switch on the concrete type; Code gives the stable wire code.
type TransferResult interface {
	Code() string
	transferResult()
}

// TransferCompleted means the settlement leg confirmed the transfer and the debit is final.
type TransferCompleted struct {
	Transaction Transaction
}

// TransferFailed means the leg rejected the transfer and the reservation was released.
type TransferFailed struct {
	Transaction Transaction
	Reason      string
}

// TransferPending means the outcome is unknown; funds stay reserved until reconciliation.
type TransferPending struct {
	Transaction Transaction
}

// TransferReplayed means the reference was already processed; Transaction is its current state.
type TransferReplayed struct {
	Transaction Transaction
}

// TransferUnauthorized means the transaction secret did not verify or the user is locked.
type TransferUnauthorized struct {
	AttemptsRemaining  int
	LockedUntilUnixUTC int64
}

// TransferInsufficientFunds means the available balance cannot cover amount plus fee.
type TransferInsufficientFunds struct {
	Available Amount
	Required  Amount
}

// TransferLimitExceeded means a spend-limit window would be exceeded.
type TransferLimitExceeded struct {
	Decision LimitDecision
}

// TransferInvalid means the request was malformed.
type TransferInvalid struct {
	ErrorCode string
	Err       error
}

// TransferWalletNotFound means the wallet does not exist for the tenant and user.
type TransferWalletNotFound struct {
	WalletID WalletID
}

// TransferWalletInactive means the wallet is suspended or closed.
type TransferWalletInactive struct {
	WalletID WalletID
	Status   WalletStatus
}

func (TransferCompleted) Code() string         { return CodeCompleted }
func (TransferFailed) Code() string            { return CodeSettlementFailed }
func (TransferPending) Code() string           { return CodeSettlementPending }
func (TransferReplayed) Code() string          { return CodeDuplicateRequest }
func (TransferUnauthorized) Code() string      { return CodeUnauthorized }
func (TransferInsufficientFunds) Code() string { return CodeInsufficientFunds }
func (TransferLimitExceeded) Code() string     { return CodeLimitExceeded }
func (TransferWalletNotFound) Code() string    { return CodeWalletNotFound }
func (TransferWalletInactive) Code() string    { return CodeWalletInactive }

// Code returns the specific validation code.
func (result TransferInvalid) Code() string {
	if result.ErrorCode == "" {
		return CodeInvalidRequest
	}
	return result.ErrorCode
}

// Error returns the validation message.
func (result TransferInvalid) Error() string {
	if result.Err == nil {
		return result.Code()
	}
	return result.Err.Error()
}

func (TransferCompleted) transferResult()         {}
func (TransferFailed) transferResult()            {}
func (TransferPending) transferResult()           {}
func (TransferReplayed) transferResult()          {}
func (TransferUnauthorized) transferResult()      {}
func (TransferInsufficientFunds) transferResult() {}
func (TransferLimitExceeded) transferResult()     {}
func (TransferInvalid) transferResult()           {}
func (TransferWalletNotFound) transferResult()    {}
func (TransferWalletInactive) transferResult()    {}

// TransferStatus is the view returned for a status query.
type TransferStatus struct {
	Transaction Transaction
	Reversal    *Transaction
}

// ReleaseOutcome reports what Release changed.
type ReleaseOutcome string

const (
	ReleaseOutcomeReleased       ReleaseOutcome = "released"
	ReleaseOutcomeReversed       ReleaseOutcome = "reversed"
	ReleaseOutcomeAlreadySettled ReleaseOutcome = "already_settled"
)

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Examined  int
	Completed int
	Failed    int
	Unknown   int
	Errors    int
}
