// Package gameledger tracks wager records and the payout encumbrance of pending wagers.
package gameledger

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/coinflip/internal/storage"
	"github.com/mselser95/coinflip/pkg/cache"
	"github.com/mselser95/coinflip/pkg/types"
	"go.uber.org/zap"
)

// Ledger is the authoritative set of wagers. Pending wagers live in memory; every
// record is persisted through the store before it becomes visible.
type Ledger struct {
	mu         sync.RWMutex
	store      storage.Store
	settled    cache.Cache
	pending    map[string]*types.Wager
	byPlayer   map[common.Address]string
	encumbered uint64
	sequence   uint64
	logger     *zap.Logger
}

// Config holds ledger dependencies. Cache is optional.
type Config struct {
	Store  storage.Store
	Cache  cache.Cache
	Logger *zap.Logger
}

// New creates an empty ledger. Call Restore to reload persisted pending wagers.
func New(cfg *Config) (*Ledger, error) {
	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Ledger{
		store:    cfg.Store,
		settled:  cfg.Cache,
		pending:  make(map[string]*types.Wager),
		byPlayer: make(map[common.Address]string),
		logger:   cfg.Logger,
	}, nil
}

// Restore rebuilds the pending set, encumbrance and sequence counter from the store.
func (l *Ledger) Restore(ctx context.Context) error {
	seq, err := l.store.MaxSequence(ctx)
	if err != nil {
		return fmt.Errorf("load max sequence: %w", err)
	}

	pending, err := l.store.LoadPending(ctx)
	if err != nil {
		return fmt.Errorf("load pending wagers: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = make(map[string]*types.Wager, len(pending))
	l.byPlayer = make(map[common.Address]string, len(pending))
	l.encumbered = 0
	l.sequence = seq

	for _, w := range pending {
		total, carry := bits.Add64(l.encumbered, w.PotentialPayout, 0)
		if carry != 0 {
			return fmt.Errorf("restore wager %s: %w", w.ID, types.ErrPayoutOverflow)
		}
		l.encumbered = total
		l.pending[w.ID] = w
		l.byPlayer[w.Player] = w.ID
	}

	l.updateGauges()
	l.logger.Info("game-ledger-restored",
		zap.Uint64("sequence", l.sequence),
		zap.Int("pending", len(l.pending)),
		zap.Uint64("encumbered", l.encumbered))

	return nil
}

// NextSequence reserves the next placement sequence number.
func (l *Ledger) NextSequence() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sequence++
	return l.sequence
}

// Create records a new wager. A pending wager encumbers its potential payout
// until settled; a terminal wager is stored as-is.
func (l *Ledger) Create(ctx context.Context, w *types.Wager) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.pending[w.ID]; ok {
		return fmt.Errorf("wager %s: %w", w.ID, types.ErrDuplicateWager)
	}
	_, err := l.lookupLocked(ctx, w.ID)
	switch {
	case err == nil:
		return fmt.Errorf("wager %s: %w", w.ID, types.ErrDuplicateWager)
	case !errors.Is(err, types.ErrUnknownWager):
		return err
	}

	var total uint64
	if w.Status == types.StatusPending {
		if existing, ok := l.byPlayer[w.Player]; ok {
			return fmt.Errorf("player %s holds wager %s: %w", w.Player.Hex(), existing, types.ErrConflictingPendingWager)
		}
		var carry uint64
		total, carry = bits.Add64(l.encumbered, w.PotentialPayout, 0)
		if carry != 0 {
			return fmt.Errorf("encumbrance: %w", types.ErrPayoutOverflow)
		}
	}

	record := w.Clone()
	err = l.store.SaveWager(ctx, record)
	if err != nil {
		return fmt.Errorf("persist wager %s: %w", w.ID, err)
	}

	if record.Status == types.StatusPending {
		l.pending[record.ID] = record
		l.byPlayer[record.Player] = record.ID
		l.encumbered = total
		l.updateGauges()
	} else {
		l.cacheSettled(record)
	}

	WagersRecordedTotal.WithLabelValues(string(record.Mode)).Inc()
	l.logger.Debug("wager-recorded",
		zap.String("wager-id", record.ID),
		zap.Stringer("status", record.Status),
		zap.Uint64("encumbered", l.encumbered))

	return nil
}

// Settle moves a pending wager to Won or Lost according to outcome and releases
// its encumbrance. The terminal record is persisted before any in-memory change.
func (l *Ledger) Settle(ctx context.Context, id string, outcome types.Choice, at time.Time) (*types.Wager, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.pending[id]
	if !ok {
		_, err := l.lookupLocked(ctx, id)
		if err == nil {
			return nil, fmt.Errorf("wager %s: %w", id, types.ErrAlreadySettled)
		}
		return nil, err
	}

	next := current.Clone()
	Resolve(next, outcome, at)

	err := l.store.SaveWager(ctx, next)
	if err != nil {
		return nil, fmt.Errorf("persist settlement %s: %w", id, err)
	}

	delete(l.pending, id)
	delete(l.byPlayer, next.Player)
	l.encumbered -= next.PotentialPayout
	l.updateGauges()
	l.cacheSettled(next)

	return next.Clone(), nil
}

// Get returns a copy of the wager at id or ErrUnknownWager.
func (l *Ledger) Get(ctx context.Context, id string) (*types.Wager, error) {
	l.mu.RLock()
	if w, ok := l.pending[id]; ok {
		l.mu.RUnlock()
		return w.Clone(), nil
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lookupLocked(ctx, id)
}

// Pending returns a copy of the pending wager at id, if any.
func (l *Ledger) Pending(id string) (*types.Wager, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	w, ok := l.pending[id]
	if !ok {
		return nil, false
	}
	return w.Clone(), true
}

// PendingFor returns the player's pending wager, if any.
func (l *Ledger) PendingFor(player common.Address) (*types.Wager, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	id, ok := l.byPlayer[player]
	if !ok {
		return nil, false
	}
	return l.pending[id].Clone(), true
}

// PendingCount returns the number of pending wagers.
func (l *Ledger) PendingCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.pending)
}

// Encumbered is the sum of potential payouts of all pending wagers.
func (l *Ledger) Encumbered() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.encumbered
}

// Resolve applies outcome to w: Won with the snapshotted payout on a match, Lost otherwise.
func Resolve(w *types.Wager, outcome types.Choice, at time.Time) {
	w.Outcome = outcome
	if outcome == w.Choice {
		w.Status = types.StatusWon
		w.Payout = w.PotentialPayout
	} else {
		w.Status = types.StatusLost
		w.Payout = 0
	}
	settled := at
	w.SettledAt = &settled
}

// lookupLocked finds a non-pending wager via cache then store. Caller holds l.mu.
func (l *Ledger) lookupLocked(ctx context.Context, id string) (*types.Wager, error) {
	if l.settled != nil {
		if v, ok := l.settled.Get(id); ok {
			if w, ok := v.(*types.Wager); ok {
				return w.Clone(), nil
			}
		}
	}

	w, err := l.store.GetWager(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("wager %s: %w", id, types.ErrUnknownWager)
	}
	if err != nil {
		return nil, fmt.Errorf("load wager %s: %w", id, err)
	}

	if w.Status.Terminal() {
		l.cacheSettled(w)
	}
	return w.Clone(), nil
}

func (l *Ledger) cacheSettled(w *types.Wager) {
	if l.settled == nil {
		return
	}
	l.settled.Set(w.ID, w.Clone())
}

func (l *Ledger) updateGauges() {
	PendingWagersGauge.Set(float64(len(l.pending)))
	EncumberedGauge.Set(float64(l.encumbered))
}
