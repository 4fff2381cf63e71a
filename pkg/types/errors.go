package types

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the settlement engine. Match with errors.Is.
var (
	ErrInvalidParameter        = errors.New("invalid parameter")
	ErrInvalidChoice           = errors.New("invalid choice")
	ErrStakeOutOfRange         = errors.New("stake out of range")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrInsufficientAllowance   = errors.New("insufficient allowance")
	ErrInsufficientReserve     = errors.New("insufficient reserve")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrUnknownWager            = errors.New("unknown wager")
	ErrConflictingPendingWager = errors.New("conflicting pending wager")
	ErrAlreadySettled          = errors.New("already settled")
	ErrDuplicateWager          = errors.New("duplicate wager identity")
	ErrPayoutOverflow          = errors.New("payout overflow")
)

// Error codes exposed to API clients.
const (
	CodeInvalidParameter        = "INVALID_PARAMETER"
	CodeInvalidChoice           = "INVALID_CHOICE"
	CodeStakeOutOfRange         = "STAKE_OUT_OF_RANGE"
	CodeInsufficientFunds       = "INSUFFICIENT_FUNDS"
	CodeInsufficientAllowance   = "INSUFFICIENT_ALLOWANCE"
	CodeInsufficientReserve     = "INSUFFICIENT_RESERVE"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeUnknownWager            = "UNKNOWN_WAGER"
	CodeConflictingPendingWager = "CONFLICTING_PENDING_WAGER"
	CodeAlreadySettled          = "ALREADY_SETTLED"
	CodeDuplicateWager          = "DUPLICATE_WAGER"
	CodePayoutOverflow          = "PAYOUT_OVERFLOW"
	CodeInternal                = "INTERNAL"
)

//nolint:gochecknoglobals // lookup table
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidParameter, CodeInvalidParameter},
	{ErrInvalidChoice, CodeInvalidChoice},
	{ErrStakeOutOfRange, CodeStakeOutOfRange},
	{ErrInsufficientFunds, CodeInsufficientFunds},
	{ErrInsufficientAllowance, CodeInsufficientAllowance},
	{ErrInsufficientReserve, CodeInsufficientReserve},
	{ErrUnauthorized, CodeUnauthorized},
	{ErrUnknownWager, CodeUnknownWager},
	{ErrConflictingPendingWager, CodeConflictingPendingWager},
	{ErrAlreadySettled, CodeAlreadySettled},
	{ErrDuplicateWager, CodeDuplicateWager},
	{ErrPayoutOverflow, CodePayoutOverflow},
}

// SettlementError represents a rejected engine operation.
type SettlementError struct {
	Op      string // operation name, e.g. "place-wager"
	WagerID string // wager identity if known
	Err     error  // one of the sentinel errors above
	Detail  string // human-readable context
}

func (e *SettlementError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Err)
	if e.WagerID != "" {
		msg = fmt.Sprintf("%s (wager %s)", msg, e.WagerID)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	return msg
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}

// Reject builds a SettlementError for op.
func Reject(op string, err error, detail string) *SettlementError {
	return &SettlementError{Op: op, Err: err, Detail: detail}
}

// CodeOf maps an error chain to its API code. Unknown errors map to CodeInternal.
func CodeOf(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}
