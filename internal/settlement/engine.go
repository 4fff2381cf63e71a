// Package settlement implements the wager settlement state machine in two modes:
// sync resolves a wager inside the call that places it, deferred records it
// pending until a resolver confirms it.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/mselser95/coinflip/internal/access"
	"github.com/mselser95/coinflip/internal/gameledger"
	"github.com/mselser95/coinflip/internal/oracle"
	"github.com/mselser95/coinflip/internal/params"
	"github.com/mselser95/coinflip/pkg/types"
	"go.uber.org/zap"
)

// Operation names used in errors, logs and metrics.
const (
	opPlaceWager     = "place-wager"
	opConfirm        = "confirm"
	opWithdraw       = "withdraw"
	opSetCoefficient = "set-coefficient"
	opSetStakeBounds = "set-stake-bounds"
	opQuery          = "query"
)

// PlaceRequest is a player's wager. ID is honoured in deferred mode only;
// when empty a UUID is generated.
type PlaceRequest struct {
	Stake  uint64       `json:"stake"`
	Choice types.Choice `json:"choice"`
	ID     string       `json:"id,omitempty"`
}

// ReserveStatus describes the house reserve at one instant.
type ReserveStatus struct {
	Balance    uint64 `json:"balance"`
	Encumbered uint64 `json:"encumbered"`
	Available  uint64 `json:"available"`
	Pending    int    `json:"pending"`
}

// Engine is the settlement surface. Every method is atomic with respect to the others.
type Engine interface {
	Mode() types.Mode

	PlaceWager(ctx context.Context, caller common.Address, req PlaceRequest) (*types.Wager, error)
	Confirm(ctx context.Context, caller common.Address, id string) (*types.Wager, error)
	Withdraw(ctx context.Context, caller common.Address, amount uint64) error

	SetCoefficient(ctx context.Context, caller common.Address, value uint64) (params.Snapshot, error)
	SetStakeBounds(ctx context.Context, caller common.Address, minStake uint64, maxStake uint64) (params.Snapshot, error)

	Parameters() params.Snapshot
	Wager(ctx context.Context, id string) (*types.Wager, error)
	PendingWager(ctx context.Context, player common.Address) (*types.Wager, error)
	Reserve(ctx context.Context) (ReserveStatus, error)
}

// Config holds engine dependencies.
type Config struct {
	Mode     types.Mode
	House    common.Address
	Params   *params.Store
	Games    *gameledger.Ledger
	Ledger   Ledger
	Oracle   Oracle
	Access   Authorizer
	Notifier Notifier // optional
	Logger   *zap.Logger

	Now   func() time.Time // optional, defaults to time.Now
	NewID func() string    // optional, defaults to uuid.NewString
}

// New builds the engine implementation selected by cfg.Mode.
func New(cfg *Config) (Engine, error) {
	c, err := newCore(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case types.ModeSync:
		return &syncEngine{core: c}, nil
	case types.ModeDeferred:
		return &deferredEngine{core: c}, nil
	default:
		return nil, fmt.Errorf("unknown settlement mode %q", cfg.Mode)
	}
}

// core holds state and behaviour shared by both modes. mu is held for the
// whole of every public operation.
type core struct {
	mu       sync.Mutex
	mode     types.Mode
	house    common.Address
	params   *params.Store
	games    *gameledger.Ledger
	ledger   Ledger
	oracle   Oracle
	access   Authorizer
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

func newCore(cfg *Config) (*core, error) {
	if cfg.Params == nil {
		return nil, errors.New("params cannot be nil")
	}
	if cfg.Games == nil {
		return nil, errors.New("game ledger cannot be nil")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("ledger cannot be nil")
	}
	if cfg.Oracle == nil {
		return nil, errors.New("oracle cannot be nil")
	}
	if cfg.Access == nil {
		return nil, errors.New("access control cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.House == (common.Address{}) {
		return nil, errors.New("house address cannot be zero")
	}

	c := &core{
		mode:     cfg.Mode,
		house:    cfg.House,
		params:   cfg.Params,
		games:    cfg.Games,
		ledger:   cfg.Ledger,
		oracle:   cfg.Oracle,
		access:   cfg.Access,
		notifier: cfg.Notifier,
		logger:   cfg.Logger.With(zap.String("mode", string(cfg.Mode))),
		now:      cfg.Now,
		newID:    cfg.NewID,
	}
	if c.notifier == nil {
		c.notifier = nopNotifier{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	return c, nil
}

func (c *core) Mode() types.Mode {
	return c.mode
}

// reject builds a SettlementError and records the rejection.
func (c *core) reject(op string, wagerID string, err error, detail string) error {
	RejectionsTotal.WithLabelValues(op, types.CodeOf(err)).Inc()
	c.logger.Debug("operation-rejected",
		zap.String("op", op),
		zap.String("wager-id", wagerID),
		zap.Error(err),
		zap.String("detail", detail))
	rejection := types.Reject(op, err, detail)
	rejection.WagerID = wagerID
	return rejection
}

// authorize runs the role check that starts every privileged operation.
func (c *core) authorize(op string, kind access.Operation, caller common.Address) error {
	err := c.access.Authorize(kind, caller)
	if err != nil {
		return c.reject(op, "", types.ErrUnauthorized, err.Error())
	}
	return nil
}

// quote validates a placement against parameters, the player's balance and the
// reserve. It returns the coefficient snapshot and the potential payout.
func (c *core) quote(ctx context.Context, player common.Address, req PlaceRequest) (coefficient uint64, payout uint64, err error) {
	if !req.Choice.Valid() {
		return 0, 0, c.reject(opPlaceWager, req.ID, types.ErrInvalidChoice,
			fmt.Sprintf("choice %d", uint8(req.Choice)))
	}

	snap := c.params.Snapshot()
	err = snap.CheckStake(req.Stake)
	if err != nil {
		return 0, 0, c.reject(opPlaceWager, req.ID, types.ErrStakeOutOfRange, err.Error())
	}

	balance, err := c.ledger.BalanceOf(ctx, player)
	if err != nil {
		return 0, 0, fmt.Errorf("read player balance: %w", err)
	}
	if balance < req.Stake {
		return 0, 0, c.reject(opPlaceWager, req.ID, types.ErrInsufficientFunds,
			fmt.Sprintf("balance %d below stake %d", balance, req.Stake))
	}

	payout, err = types.Payout(req.Stake, snap.Coefficient)
	if err != nil {
		return 0, 0, c.reject(opPlaceWager, req.ID, types.ErrPayoutOverflow, err.Error())
	}

	reserve, err := c.ledger.BalanceOf(ctx, c.house)
	if err != nil {
		return 0, 0, fmt.Errorf("read reserve balance: %w", err)
	}
	if !covers(reserve, req.Stake, c.games.Encumbered(), payout) {
		return 0, 0, c.reject(opPlaceWager, req.ID, types.ErrInsufficientReserve,
			fmt.Sprintf("reserve %d cannot cover payout %d", reserve, payout))
	}

	return snap.Coefficient, payout, nil
}

// covers reports whether reserve+stake-encumbered >= payout without overflowing.
func covers(reserve uint64, stake uint64, encumbered uint64, payout uint64) bool {
	if reserve >= encumbered {
		free := reserve - encumbered
		return free >= payout || stake >= payout-free
	}
	deficit := encumbered - reserve
	return stake >= deficit && stake-deficit >= payout
}

// collect pulls the stake from the player into the reserve.
func (c *core) collect(ctx context.Context, player common.Address, req PlaceRequest) error {
	err := c.ledger.TransferIn(ctx, player, req.Stake)
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{types.ErrInsufficientAllowance, types.ErrInsufficientFunds} {
		if errors.Is(err, sentinel) {
			return c.reject(opPlaceWager, req.ID, sentinel, err.Error())
		}
	}
	return fmt.Errorf("collect stake: %w", err)
}

// refund returns a collected stake when the wager could not be recorded.
func (c *core) refund(ctx context.Context, player common.Address, stake uint64, cause error) error {
	refundErr := c.ledger.TransferOut(ctx, player, stake)
	if refundErr != nil {
		c.logger.Error("stake-refund-failed",
			zap.String("player", player.Hex()),
			zap.Uint64("stake", stake),
			zap.Error(refundErr))
		return errors.Join(cause, fmt.Errorf("refund stake: %w", refundErr))
	}
	c.logger.Warn("stake-refunded",
		zap.String("player", player.Hex()),
		zap.Uint64("stake", stake),
		zap.Error(cause))
	return cause
}

// resolve asks the oracle for the outcome of w.
func (c *core) resolve(ctx context.Context, w *types.Wager) (types.Choice, error) {
	outcome, err := c.oracle.Resolve(ctx, oracle.Entropy(w.ID, w.Player, w.Sequence))
	if err != nil {
		return 0, fmt.Errorf("resolve outcome: %w", err)
	}
	if !outcome.Valid() {
		return 0, fmt.Errorf("oracle returned %s: %w", outcome, types.ErrInvalidChoice)
	}
	return outcome, nil
}

// finish pays a won wager and emits the settlement event.
func (c *core) finish(ctx context.Context, w *types.Wager) error {
	if w.Status == types.StatusWon && w.Payout > 0 {
		err := c.ledger.TransferOut(ctx, w.Player, w.Payout)
		if err != nil {
			PayoutFailuresTotal.Inc()
			c.logger.Error("wager-payout-failed",
				zap.String("wager-id", w.ID),
				zap.String("player", w.Player.Hex()),
				zap.Uint64("payout", w.Payout),
				zap.Error(err))
			return fmt.Errorf("pay wager %s: %w", w.ID, err)
		}
		PayoutVolumeTotal.Add(float64(w.Payout))
	}

	WagersSettledTotal.WithLabelValues(string(c.mode), w.Status.String()).Inc()
	c.logger.Info("wager-settled",
		zap.String("wager-id", w.ID),
		zap.String("player", w.Player.Hex()),
		zap.Uint64("stake", w.Stake),
		zap.Stringer("choice", w.Choice),
		zap.Stringer("outcome", w.Outcome),
		zap.Stringer("status", w.Status),
		zap.Uint64("payout", w.Payout))

	c.notifier.WagerSettled(ctx, types.NewWagerSettled(w))
	return nil
}

func (c *core) newWager(player common.Address, req PlaceRequest, coefficient uint64, payout uint64) *types.Wager {
	return &types.Wager{
		Mode:            c.mode,
		Player:          player,
		Stake:           req.Stake,
		Choice:          req.Choice,
		Coefficient:     coefficient,
		PotentialPayout: payout,
		Status:          types.StatusPending,
		CreatedAt:       c.now(),
	}
}

// Withdraw pays amount of unencumbered reserve to the calling administrator.
func (c *core) Withdraw(ctx context.Context, caller common.Address, amount uint64) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer observe(opWithdraw, time.Now())

	err = c.authorize(opWithdraw, access.OpWithdraw, caller)
	if err != nil {
		return err
	}
	if amount == 0 {
		return c.reject(opWithdraw, "", types.ErrInvalidParameter, "amount must be positive")
	}

	status, err := c.reserveLocked(ctx)
	if err != nil {
		return err
	}
	if amount > status.Available {
		return c.reject(opWithdraw, "", types.ErrInsufficientReserve,
			fmt.Sprintf("amount %d exceeds available %d (encumbered %d)", amount, status.Available, status.Encumbered))
	}

	err = c.ledger.TransferOut(ctx, caller, amount)
	if err != nil {
		return fmt.Errorf("withdraw reserve: %w", err)
	}

	c.logger.Info("reserve-withdrawn",
		zap.String("to", caller.Hex()),
		zap.Uint64("amount", amount),
		zap.Uint64("available-before", status.Available))
	c.notifier.ReserveWithdrawn(ctx, types.ReserveWithdrawn{To: caller, Amount: amount, WithdrawnAt: c.now()})
	return nil
}

// SetCoefficient replaces the payout coefficient.
func (c *core) SetCoefficient(ctx context.Context, caller common.Address, value uint64) (params.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.authorize(opSetCoefficient, access.OpSetCoefficient, caller)
	if err != nil {
		return c.params.Snapshot(), err
	}

	snap, err := c.params.SetCoefficient(value)
	if err != nil {
		return snap, c.reject(opSetCoefficient, "", types.ErrInvalidParameter, err.Error())
	}

	c.parametersChanged(ctx, caller, snap)
	return snap, nil
}

// SetStakeBounds replaces the stake bounds as one pair.
func (c *core) SetStakeBounds(ctx context.Context, caller common.Address, minStake uint64, maxStake uint64) (params.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.authorize(opSetStakeBounds, access.OpSetStakeBounds, caller)
	if err != nil {
		return c.params.Snapshot(), err
	}

	snap, err := c.params.SetStakeBounds(minStake, maxStake)
	if err != nil {
		return snap, c.reject(opSetStakeBounds, "", types.ErrInvalidParameter, err.Error())
	}

	c.parametersChanged(ctx, caller, snap)
	return snap, nil
}

func (c *core) parametersChanged(ctx context.Context, caller common.Address, snap params.Snapshot) {
	c.notifier.ParametersChanged(ctx, types.ParametersChanged{
		Coefficient: snap.Coefficient,
		MinStake:    snap.MinStake,
		MaxStake:    snap.MaxStake,
		ChangedBy:   caller,
		ChangedAt:   c.now(),
	})
}

// Parameters returns the current configuration.
func (c *core) Parameters() params.Snapshot {
	return c.params.Snapshot()
}

// Wager looks up a wager by identity.
func (c *core) Wager(ctx context.Context, id string) (*types.Wager, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, err := c.games.Get(ctx, id)
	if errors.Is(err, types.ErrUnknownWager) {
		return nil, c.reject(opQuery, id, types.ErrUnknownWager, "")
	}
	return w, err
}

// Reserve reports the reserve balance and how much of it is free.
func (c *core) Reserve(ctx context.Context) (ReserveStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reserveLocked(ctx)
}

func (c *core) reserveLocked(ctx context.Context) (ReserveStatus, error) {
	balance, err := c.ledger.BalanceOf(ctx, c.house)
	if err != nil {
		return ReserveStatus{}, fmt.Errorf("read reserve balance: %w", err)
	}

	status := ReserveStatus{
		Balance:    balance,
		Encumbered: c.games.Encumbered(),
		Pending:    c.games.PendingCount(),
	}
	if balance > status.Encumbered {
		status.Available = balance - status.Encumbered
	}
	return status, nil
}

func observe(op string, start time.Time) {
	OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
