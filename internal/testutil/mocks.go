package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/coinflip/pkg/types"
)

// LedgerPort is the ledger surface wrapped by FlakyLedger.
type LedgerPort interface {
	TransferIn(ctx context.Context, from common.Address, amount uint64) error
	TransferOut(ctx context.Context, to common.Address, amount uint64) error
	BalanceOf(ctx context.Context, account common.Address) (uint64, error)
}

// ErrInjected is returned by FlakyLedger when a failure is armed.
var ErrInjected = errors.New("injected ledger failure")

// FlakyLedger wraps a ledger and fails selected calls on demand.
type FlakyLedger struct {
	LedgerPort

	mu           sync.Mutex
	FailIn       bool
	FailOut      bool
	TransfersIn  int
	TransfersOut int
}

// NewFlakyLedger wraps inner.
func NewFlakyLedger(inner LedgerPort) *FlakyLedger {
	return &FlakyLedger{LedgerPort: inner}
}

// TransferIn delegates unless FailIn is set.
func (f *FlakyLedger) TransferIn(ctx context.Context, from common.Address, amount uint64) error {
	f.mu.Lock()
	fail := f.FailIn
	f.TransfersIn++
	f.mu.Unlock()

	if fail {
		return ErrInjected
	}
	return f.LedgerPort.TransferIn(ctx, from, amount)
}

// TransferOut delegates unless FailOut is set.
func (f *FlakyLedger) TransferOut(ctx context.Context, to common.Address, amount uint64) error {
	f.mu.Lock()
	fail := f.FailOut
	f.TransfersOut++
	f.mu.Unlock()

	if fail {
		return ErrInjected
	}
	return f.LedgerPort.TransferOut(ctx, to, amount)
}

// ScriptedOracle returns queued outcomes in order, then Fallback.
type ScriptedOracle struct {
	mu       sync.Mutex
	queue    []types.Choice
	Fallback types.Choice
	Err      error
	Calls    int
}

// NewScriptedOracle queues outcomes.
func NewScriptedOracle(outcomes ...types.Choice) *ScriptedOracle {
	return &ScriptedOracle{queue: outcomes}
}

// Resolve pops the next outcome.
func (o *ScriptedOracle) Resolve(ctx context.Context, entropy []byte) (types.Choice, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.Calls++
	if o.Err != nil {
		return 0, o.Err
	}
	if len(o.queue) == 0 {
		return o.Fallback, nil
	}
	next := o.queue[0]
	o.queue = o.queue[1:]
	return next, nil
}

// RecordingNotifier captures every event it receives.
type RecordingNotifier struct {
	mu         sync.Mutex
	Settled    []types.WagerSettled
	Changes    []types.ParametersChanged
	Withdrawal []types.ReserveWithdrawn
}

func (r *RecordingNotifier) WagerSettled(_ context.Context, ev types.WagerSettled) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Settled = append(r.Settled, ev)
}

func (r *RecordingNotifier) ParametersChanged(_ context.Context, ev types.ParametersChanged) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Changes = append(r.Changes, ev)
}

func (r *RecordingNotifier) ReserveWithdrawn(_ context.Context, ev types.ReserveWithdrawn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Withdrawal = append(r.Withdrawal, ev)
}

// SettledCount returns the number of settlement events seen.
func (r *RecordingNotifier) SettledCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Settled)
}
