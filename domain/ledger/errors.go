package ledger

import "errors"

// Code is a machine-readable error code
type Code string

const (
	CodeUnknown           Code = "UNKNOWN"
	CodeInsufficientStake Code = "INSUFFICIENT_STAKE"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeTransferFailed    Code = "TRANSFER_FAILED"
	CodeNoEntrants        Code = "NO_ENTRANTS"
	CodePoolOverflow      Code = "POOL_OVERFLOW"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeAccountNotFound   Code = "ACCOUNT_NOT_FOUND"
	CodeLedgerNotDeployed Code = "LEDGER_NOT_DEPLOYED"
	CodeOperatorMismatch  Code = "OPERATOR_MISMATCH"
	CodeDrawNotFound      Code = "DRAW_NOT_FOUND"
	CodeInvalidAmount     Code = "INVALID_AMOUNT"
)

var (
	// ErrInsufficientStake is returned when an entry carries less than the minimum stake
	ErrInsufficientStake = errors.New("stake is below the minimum")

	// ErrUnauthorized is returned when a non-operator calls an operator-only operation
	ErrUnauthorized = errors.New("caller is not the operator")

	// ErrTransferFailed is returned when the payout could not be delivered.
	// The round is left untouched.
	ErrTransferFailed = errors.New("payout transfer failed")

	// ErrNoEntrants is returned when a draw is requested for an empty round
	ErrNoEntrants = errors.New("round has no entrants")

	// ErrPoolOverflow is returned when a stake would overflow the pooled balance
	ErrPoolOverflow = errors.New("stake would overflow the pooled balance")

	// ErrInsufficientFunds is returned when the caller's account cannot cover the stake
	ErrInsufficientFunds = errors.New("account balance cannot cover the stake")

	// ErrAccountNotFound is returned when an account does not exist
	ErrAccountNotFound = errors.New("account not found")

	// ErrNotDeployed is returned when no ledger has been created yet
	ErrNotDeployed = errors.New("ledger has not been deployed")

	// ErrOperatorMismatch is returned when redeploying with a different operator
	ErrOperatorMismatch = errors.New("ledger is already deployed with a different operator")

	// ErrDrawNotFound is returned when a round has no recorded draw
	ErrDrawNotFound = errors.New("draw not found")

	// ErrInvalidAmount is returned for a zero deposit or one that would overflow a balance
	ErrInvalidAmount = errors.New("invalid amount")
)

var codes = []struct {
	err  error
	code Code
}{
	{ErrInsufficientStake, CodeInsufficientStake},
	{ErrUnauthorized, CodeUnauthorized},
	{ErrTransferFailed, CodeTransferFailed},
	{ErrNoEntrants, CodeNoEntrants},
	{ErrPoolOverflow, CodePoolOverflow},
	{ErrInsufficientFunds, CodeInsufficientFunds},
	{ErrAccountNotFound, CodeAccountNotFound},
	{ErrNotDeployed, CodeLedgerNotDeployed},
	{ErrOperatorMismatch, CodeOperatorMismatch},
	{ErrDrawNotFound, CodeDrawNotFound},
	{ErrInvalidAmount, CodeInvalidAmount},
}

// CodeOf returns the code of the first ledger error found in err's chain
func CodeOf(err error) Code {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeUnknown
}
