package token

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/coinflip/pkg/types"
	"go.uber.org/zap"
)

// Token is an in-process fungible token with balances and spending allowances.
type Token struct {
	mu         sync.RWMutex
	balances   map[common.Address]uint64
	allowances map[common.Address]map[common.Address]uint64 // owner -> spender -> amount
	supply     uint64
	logger     *zap.Logger
}

// New creates an empty token.
func New(logger *zap.Logger) *Token {
	return &Token{
		balances:   make(map[common.Address]uint64),
		allowances: make(map[common.Address]map[common.Address]uint64),
		logger:     logger,
	}
}

// Mint credits amount to account.
func (t *Token) Mint(account common.Address, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.supply > math.MaxUint64-amount {
		return fmt.Errorf("mint %d: supply overflow", amount)
	}
	t.supply += amount
	t.balances[account] += amount

	t.logger.Debug("token-minted",
		zap.String("account", account.Hex()),
		zap.Uint64("amount", amount))
	return nil
}

// Burn removes amount from account.
func (t *Token) Burn(account common.Address, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.balances[account] < amount {
		return fmt.Errorf("burn %d from %s: %w", amount, account.Hex(), types.ErrInsufficientFunds)
	}
	t.balances[account] -= amount
	t.supply -= amount
	return nil
}

// Approve sets the amount spender may move out of owner's balance.
func (t *Token) Approve(owner common.Address, spender common.Address, amount uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]uint64)
	}
	t.allowances[owner][spender] = amount
}

// Transfer moves amount from one account to another.
func (t *Token) Transfer(from common.Address, to common.Address, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.balances[from] < amount {
		return fmt.Errorf("transfer %d from %s: %w", amount, from.Hex(), types.ErrInsufficientFunds)
	}
	t.move(from, to, amount)
	return nil
}

// TransferFrom moves amount from owner to recipient, spending spender's allowance.
// Balance is checked before allowance.
func (t *Token) TransferFrom(spender common.Address, owner common.Address, to common.Address, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.balances[owner] < amount {
		return fmt.Errorf("transfer %d from %s: %w", amount, owner.Hex(), types.ErrInsufficientFunds)
	}
	allowance := t.allowances[owner][spender]
	if allowance < amount {
		return fmt.Errorf("transfer %d from %s, allowance %d: %w",
			amount, owner.Hex(), allowance, types.ErrInsufficientAllowance)
	}
	if amount == 0 {
		return nil
	}
	t.allowances[owner][spender] = allowance - amount
	t.move(owner, to, amount)
	return nil
}

// BalanceOf returns the balance of account.
func (t *Token) BalanceOf(account common.Address) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balances[account]
}

// Allowance returns how much spender may move from owner.
func (t *Token) Allowance(owner common.Address, spender common.Address) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allowances[owner][spender]
}

// TotalSupply returns the amount minted minus the amount burned.
func (t *Token) TotalSupply() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.supply
}

// move assumes the lock is held and from has enough balance.
func (t *Token) move(from common.Address, to common.Address, amount uint64) {
	t.balances[from] -= amount
	t.balances[to] += amount
}

// Ledger exposes a Token as the engine's ledger, with house as the reserve account.
type Ledger struct {
	token *Token
	house common.Address
}

// NewLedger binds tok to the house account.
func NewLedger(tok *Token, house common.Address) *Ledger {
	return &Ledger{token: tok, house: house}
}

// TransferIn collects amount from payer into the house reserve using the house allowance.
func (l *Ledger) TransferIn(ctx context.Context, from common.Address, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.token.TransferFrom(l.house, from, l.house, amount)
}

// TransferOut pays amount from the house reserve to payee.
func (l *Ledger) TransferOut(ctx context.Context, to common.Address, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := l.token.Transfer(l.house, to, amount)
	if err != nil {
		return fmt.Errorf("pay %d to %s: %w", amount, to.Hex(), types.ErrInsufficientReserve)
	}
	return nil
}

// BalanceOf returns the token balance of account.
func (l *Ledger) BalanceOf(ctx context.Context, account common.Address) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return l.token.BalanceOf(account), nil
}

// Token returns the underlying token.
func (l *Ledger) Token() *Token {
	return l.token
}
