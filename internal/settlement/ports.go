package settlement

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/coinflip/internal/access"
	"github.com/mselser95/coinflip/pkg/types"
)

// Ledger moves value between players and the house reserve.
type Ledger interface {
	// TransferIn collects amount from a player into the reserve.
	// Fails with ErrInsufficientFunds or ErrInsufficientAllowance.
	TransferIn(ctx context.Context, from common.Address, amount uint64) error

	// TransferOut pays amount from the reserve. Fails with ErrInsufficientReserve.
	TransferOut(ctx context.Context, to common.Address, amount uint64) error

	// BalanceOf returns the balance held by account.
	BalanceOf(ctx context.Context, account common.Address) (uint64, error)
}

// Oracle resolves a binary outcome from per-wager entropy.
type Oracle interface {
	Resolve(ctx context.Context, entropy []byte) (types.Choice, error)
}

// Authorizer decides whether caller may perform op.
type Authorizer interface {
	Authorize(op access.Operation, caller common.Address) error
}

// Notifier receives engine events after they are committed. Implementations
// must not block for long and must not fail the operation.
type Notifier interface {
	WagerSettled(ctx context.Context, ev types.WagerSettled)
	ParametersChanged(ctx context.Context, ev types.ParametersChanged)
	ReserveWithdrawn(ctx context.Context, ev types.ReserveWithdrawn)
}

type nopNotifier struct{}

func (nopNotifier) WagerSettled(context.Context, types.WagerSettled)           {}
func (nopNotifier) ParametersChanged(context.Context, types.ParametersChanged) {}
func (nopNotifier) ReserveWithdrawn(context.Context, types.ReserveWithdrawn)   {}
