package settlement

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/coinflip/internal/access"
	"github.com/mselser95/coinflip/internal/gameledger"
	"github.com/mselser95/coinflip/pkg/types"
)

// syncEngine resolves each wager inside PlaceWager. Identities are the placement sequence.
type syncEngine struct {
	*core
}

// PlaceWager validates, collects the stake, resolves and pays out in one step.
func (e *syncEngine) PlaceWager(ctx context.Context, caller common.Address, req PlaceRequest) (w *types.Wager, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer observe(opPlaceWager, time.Now())

	if req.ID != "" {
		return nil, e.reject(opPlaceWager, req.ID, types.ErrInvalidParameter,
			"wager identities are assigned by the engine in sync mode")
	}

	err = e.authorize(opPlaceWager, access.OpPlaceWager, caller)
	if err != nil {
		return nil, err
	}

	coefficient, payout, err := e.quote(ctx, caller, req)
	if err != nil {
		return nil, err
	}

	err = e.collect(ctx, caller, req)
	if err != nil {
		return nil, err
	}

	w = e.newWager(caller, req, coefficient, payout)
	w.Sequence = e.games.NextSequence()
	w.ID = strconv.FormatUint(w.Sequence, 10)
	WagersPlacedTotal.WithLabelValues(string(e.mode)).Inc()

	outcome, err := e.resolve(ctx, w)
	if err != nil {
		return nil, e.refund(ctx, caller, req.Stake, err)
	}
	gameledger.Resolve(w, outcome, e.now())

	err = e.games.Create(ctx, w)
	if err != nil {
		return nil, e.refund(ctx, caller, req.Stake, fmt.Errorf("record wager: %w", err))
	}

	// A failed payout still returns the recorded wager.
	return w, e.finish(ctx, w)
}

// Confirm has nothing to settle in sync mode.
func (e *syncEngine) Confirm(ctx context.Context, caller common.Address, id string) (*types.Wager, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.authorize(opConfirm, access.OpConfirm, caller)
	if err != nil {
		return nil, err
	}
	return nil, e.reject(opConfirm, id, types.ErrUnknownWager, "no pending wagers in sync mode")
}

// PendingWager never finds anything in sync mode.
func (e *syncEngine) PendingWager(ctx context.Context, player common.Address) (*types.Wager, error) {
	return nil, e.reject(opQuery, "", types.ErrUnknownWager, "no pending wagers in sync mode")
}
