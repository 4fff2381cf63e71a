package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/coinflip/internal/access"
	"github.com/mselser95/coinflip/pkg/types"
	"go.uber.org/zap"
)

// deferredEngine records wagers as pending and settles them on Confirm.
// A player holds at most one pending wager.
type deferredEngine struct {
	*core
}

// PlaceWager validates, collects the stake and records a pending wager whose
// potential payout stays encumbered until confirmation.
func (e *deferredEngine) PlaceWager(ctx context.Context, caller common.Address, req PlaceRequest) (w *types.Wager, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer observe(opPlaceWager, time.Now())

	err = e.authorize(opPlaceWager, access.OpPlaceWager, caller)
	if err != nil {
		return nil, err
	}

	coefficient, payout, err := e.quote(ctx, caller, req)
	if err != nil {
		return nil, err
	}

	if existing, ok := e.games.PendingFor(caller); ok {
		return nil, e.reject(opPlaceWager, req.ID, types.ErrConflictingPendingWager,
			fmt.Sprintf("player %s already holds pending wager %s", caller.Hex(), existing.ID))
	}

	if req.ID == "" {
		req.ID = e.newID()
	}
	_, err = e.games.Get(ctx, req.ID)
	switch {
	case err == nil:
		return nil, e.reject(opPlaceWager, req.ID, types.ErrDuplicateWager, "identity already used")
	case !errors.Is(err, types.ErrUnknownWager):
		return nil, err
	}

	err = e.collect(ctx, caller, req)
	if err != nil {
		return nil, err
	}

	w = e.newWager(caller, req, coefficient, payout)
	w.ID = req.ID
	w.Sequence = e.games.NextSequence()

	err = e.games.Create(ctx, w)
	if err != nil {
		return nil, e.refund(ctx, caller, req.Stake, fmt.Errorf("record wager: %w", err))
	}

	WagersPlacedTotal.WithLabelValues(string(e.mode)).Inc()
	e.logger.Info("wager-placed",
		zap.String("wager-id", w.ID),
		zap.String("player", caller.Hex()),
		zap.Uint64("stake", w.Stake),
		zap.Stringer("choice", w.Choice),
		zap.Uint64("coefficient", w.Coefficient),
		zap.Uint64("potential-payout", w.PotentialPayout))

	return w, nil
}

// Confirm resolves a pending wager with its placement-time coefficient.
// A terminal wager is never paid twice.
func (e *deferredEngine) Confirm(ctx context.Context, caller common.Address, id string) (w *types.Wager, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer observe(opConfirm, time.Now())

	err = e.authorize(opConfirm, access.OpConfirm, caller)
	if err != nil {
		return nil, err
	}

	pending, ok := e.games.Pending(id)
	if !ok {
		_, err = e.games.Get(ctx, id)
		switch {
		case err == nil:
			return nil, e.reject(opConfirm, id, types.ErrAlreadySettled, "")
		case errors.Is(err, types.ErrUnknownWager):
			return nil, e.reject(opConfirm, id, types.ErrUnknownWager, "")
		default:
			return nil, err
		}
	}

	outcome, err := e.resolve(ctx, pending)
	if err != nil {
		return nil, err
	}

	w, err = e.games.Settle(ctx, id, outcome, e.now())
	if err != nil {
		return nil, err
	}

	// A failed payout still returns the recorded wager.
	return w, e.finish(ctx, w)
}

// PendingWager returns the player's outstanding wager.
func (e *deferredEngine) PendingWager(ctx context.Context, player common.Address) (*types.Wager, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	w, ok := e.games.PendingFor(player)
	if !ok {
		return nil, e.reject(opQuery, "", types.ErrUnknownWager,
			fmt.Sprintf("no pending wager for %s", player.Hex()))
	}
	return w, nil
}
