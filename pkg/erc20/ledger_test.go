package erc20

import (
	"context"
	"errors"
	"math"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mselser95/coinflip/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

var (
	token  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	player = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

// fakeChain is an in-memory token contract behind the ChainClient surface.
type fakeChain struct {
	t       *testing.T
	abi     abi.ABI
	chainID *big.Int

	mu         sync.Mutex
	balances   map[common.Address]*big.Int
	allowances map[[2]common.Address]*big.Int
	nonce      uint64
	sent       []*ethtypes.Transaction
	receipts   map[common.Hash]*ethtypes.Receipt
	revert     bool
	sendErr    error
	signers    []common.Address
}

func newFakeChain(t *testing.T) *fakeChain {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(TokenABI))
	require.NoError(t, err)
	return &fakeChain{
		t:          t,
		abi:        parsed,
		chainID:    big.NewInt(1337),
		balances:   map[common.Address]*big.Int{},
		allowances: map[[2]common.Address]*big.Int{},
		receipts:   map[common.Hash]*ethtypes.Receipt{},
	}
}

func (f *fakeChain) setBalance(account common.Address, v uint64) {
	f.balances[account] = new(big.Int).SetUint64(v)
}

func (f *fakeChain) balance(account common.Address) *big.Int {
	if b, ok := f.balances[account]; ok {
		return b
	}
	return big.NewInt(0)
}

func (f *fakeChain) allowance(owner common.Address, spender common.Address) *big.Int {
	if a, ok := f.allowances[[2]common.Address{owner, spender}]; ok {
		return a
	}
	return big.NewInt(0)
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	method, err := f.abi.MethodById(msg.Data[:4])
	require.NoError(f.t, err)
	args, err := method.Inputs.Unpack(msg.Data[4:])
	require.NoError(f.t, err)

	var v *big.Int
	switch method.Name {
	case "balanceOf":
		v = f.balance(args[0].(common.Address))
	case "allowance":
		v = f.allowance(args[0].(common.Address), args[1].(common.Address))
	default:
		f.t.Fatalf("unexpected call %s", method.Name)
	}
	return common.LeftPadBytes(v.Bytes(), 32), nil
}

func (f *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) {
	return f.chainID, nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return f.sendErr
	}

	from, err := ethtypes.Sender(ethtypes.NewEIP155Signer(f.chainID), tx)
	require.NoError(f.t, err)
	f.signers = append(f.signers, from)
	f.sent = append(f.sent, tx)
	f.nonce++

	receipt := &ethtypes.Receipt{TxHash: tx.Hash(), GasUsed: 21000, Status: ethtypes.ReceiptStatusFailed}
	f.receipts[tx.Hash()] = receipt
	if f.revert {
		return nil
	}

	method, err := f.abi.MethodById(tx.Data()[:4])
	require.NoError(f.t, err)
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(f.t, err)

	switch method.Name {
	case "transfer":
		to, amount := args[0].(common.Address), args[1].(*big.Int)
		f.balances[from] = new(big.Int).Sub(f.balance(from), amount)
		f.balances[to] = new(big.Int).Add(f.balance(to), amount)
	case "transferFrom":
		owner, to, amount := args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int)
		key := [2]common.Address{owner, from}
		f.allowances[key] = new(big.Int).Sub(f.allowance(owner, from), amount)
		f.balances[owner] = new(big.Int).Sub(f.balance(owner), amount)
		f.balances[to] = new(big.Int).Add(f.balance(to), amount)
	default:
		f.t.Fatalf("unexpected transaction %s", method.Name)
	}
	receipt.Status = ethtypes.ReceiptStatusSuccessful
	return nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func newTestLedger(t *testing.T, chain *fakeChain) *Ledger {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	l, err := New(&Config{
		Client:         chain,
		Token:          token,
		PrivateKeyHex:  common.Bytes2Hex(crypto.FromECDSA(key)),
		ReceiptPoll:    time.Millisecond,
		ReceiptTimeout: time.Second,
		Logger:         zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return l
}

func TestNew(t *testing.T) {
	chain := newFakeChain(t)

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{
			name:    "nil-client",
			cfg:     &Config{Token: token, Logger: zap.NewNop()},
			wantErr: "chain client cannot be nil",
		},
		{
			name:    "nil-logger",
			cfg:     &Config{Client: chain, Token: token},
			wantErr: "logger cannot be nil",
		},
		{
			name:    "zero-token",
			cfg:     &Config{Client: chain, Logger: zap.NewNop()},
			wantErr: "token address cannot be zero",
		},
		{
			name:    "bad-key",
			cfg:     &Config{Client: chain, Token: token, PrivateKeyHex: "0xnothex", Logger: zap.NewNop()},
			wantErr: "parse private key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLedger_House(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	l, err := New(&Config{
		Client:        newFakeChain(t),
		Token:         token,
		PrivateKeyHex: "0x" + common.Bytes2Hex(crypto.FromECDSA(key)),
		Logger:        zap.NewNop(),
	})
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), l.House())
}

func TestLedger_BalanceOf(t *testing.T) {
	chain := newFakeChain(t)
	l := newTestLedger(t, chain)

	chain.setBalance(player, 1234)
	got, err := l.BalanceOf(context.Background(), player)
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), got)

	chain.balances[player] = new(big.Int).Lsh(big.NewInt(1), 100)
	got, err = l.BalanceOf(context.Background(), player)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), got, "oversized balances saturate")
}

func TestLedger_TransferIn(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		chain := newFakeChain(t)
		l := newTestLedger(t, chain)
		chain.setBalance(player, 1000)
		chain.allowances[[2]common.Address{player, l.House()}] = big.NewInt(600)

		require.NoError(t, l.TransferIn(context.Background(), player, 500))

		assert.Equal(t, int64(500), chain.balance(player).Int64())
		assert.Equal(t, int64(500), chain.balance(l.House()).Int64())
		assert.Equal(t, int64(100), chain.allowance(player, l.House()).Int64())
		require.Len(t, chain.sent, 1)
		assert.Equal(t, token, *chain.sent[0].To())
		assert.Equal(t, l.House(), chain.signers[0])
	})

	t.Run("insufficient-funds-sends-nothing", func(t *testing.T) {
		chain := newFakeChain(t)
		l := newTestLedger(t, chain)
		chain.setBalance(player, 100)
		chain.allowances[[2]common.Address{player, l.House()}] = big.NewInt(1000)

		err := l.TransferIn(context.Background(), player, 500)
		require.ErrorIs(t, err, types.ErrInsufficientFunds)
		assert.Empty(t, chain.sent)
	})

	t.Run("insufficient-allowance-sends-nothing", func(t *testing.T) {
		chain := newFakeChain(t)
		l := newTestLedger(t, chain)
		chain.setBalance(player, 1000)

		err := l.TransferIn(context.Background(), player, 500)
		require.ErrorIs(t, err, types.ErrInsufficientAllowance)
		assert.Empty(t, chain.sent)
	})

	t.Run("reverted", func(t *testing.T) {
		chain := newFakeChain(t)
		l := newTestLedger(t, chain)
		chain.setBalance(player, 1000)
		chain.allowances[[2]common.Address{player, l.House()}] = big.NewInt(1000)
		chain.revert = true

		err := l.TransferIn(context.Background(), player, 500)
		require.ErrorIs(t, err, ErrReverted)
		assert.Equal(t, int64(1000), chain.balance(player).Int64())
	})

	t.Run("send-error", func(t *testing.T) {
		chain := newFakeChain(t)
		l := newTestLedger(t, chain)
		chain.setBalance(player, 1000)
		chain.allowances[[2]common.Address{player, l.House()}] = big.NewInt(1000)
		chain.sendErr = errors.New("nonce too low")

		err := l.TransferIn(context.Background(), player, 500)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nonce too low")
	})
}

func TestLedger_TransferOut(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		chain := newFakeChain(t)
		l := newTestLedger(t, chain)
		chain.setBalance(l.House(), 2000)

		require.NoError(t, l.TransferOut(context.Background(), player, 975))
		assert.Equal(t, int64(1025), chain.balance(l.House()).Int64())
		assert.Equal(t, int64(975), chain.balance(player).Int64())
	})

	t.Run("insufficient-reserve", func(t *testing.T) {
		chain := newFakeChain(t)
		l := newTestLedger(t, chain)
		chain.setBalance(l.House(), 10)

		err := l.TransferOut(context.Background(), player, 975)
		require.ErrorIs(t, err, types.ErrInsufficientReserve)
		assert.Empty(t, chain.sent)
	})

	t.Run("nonces-advance", func(t *testing.T) {
		chain := newFakeChain(t)
		l := newTestLedger(t, chain)
		chain.setBalance(l.House(), 100)

		require.NoError(t, l.TransferOut(context.Background(), player, 10))
		require.NoError(t, l.TransferOut(context.Background(), player, 10))
		require.Len(t, chain.sent, 2)
		assert.Equal(t, uint64(0), chain.sent[0].Nonce())
		assert.Equal(t, uint64(1), chain.sent[1].Nonce())
	})
}

func TestLedger_WaitForReceiptTimeout(t *testing.T) {
	chain := newFakeChain(t)
	l := newTestLedger(t, chain)
	l.timeout = 20 * time.Millisecond

	_, err := l.waitForReceipt(context.Background(), common.HexToHash("0x01"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
