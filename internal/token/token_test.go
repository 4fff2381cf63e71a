package token

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/coinflip/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	house  = common.HexToAddress("0x000000000000000000000000000000000000c0de")
	player = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	other  = common.HexToAddress("0x00000000000000000000000000000000000000c2")
)

func TestToken_MintBurn(t *testing.T) {
	tok := New(zap.NewNop())

	require.NoError(t, tok.Mint(house, 1_000_000))
	assert.Equal(t, uint64(1_000_000), tok.BalanceOf(house))
	assert.Equal(t, uint64(1_000_000), tok.TotalSupply())

	require.NoError(t, tok.Burn(house, 1_000_000))
	assert.Zero(t, tok.BalanceOf(house))

	err := tok.Burn(house, 1)
	require.ErrorIs(t, err, types.ErrInsufficientFunds)
}

func TestToken_TransferFrom(t *testing.T) {
	tests := []struct {
		name      string
		balance   uint64
		allowance uint64
		amount    uint64
		wantErr   error
	}{
		{name: "ok", balance: 1000, allowance: 1000, amount: 500},
		{name: "not-enough-funds", balance: 100, allowance: 10000, amount: 10000, wantErr: types.ErrInsufficientFunds},
		{name: "not-enough-allowance", balance: 10000, allowance: 500, amount: 1000, wantErr: types.ErrInsufficientAllowance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := New(zap.NewNop())
			require.NoError(t, tok.Mint(player, tt.balance))
			tok.Approve(player, house, tt.allowance)

			err := tok.TransferFrom(house, player, house, tt.amount)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.balance, tok.BalanceOf(player))
				assert.Equal(t, tt.allowance, tok.Allowance(player, house))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.balance-tt.amount, tok.BalanceOf(player))
			assert.Equal(t, tt.amount, tok.BalanceOf(house))
			assert.Equal(t, tt.allowance-tt.amount, tok.Allowance(player, house))
		})
	}
}

func TestToken_TransferFromZeroWithoutApproval(t *testing.T) {
	tok := New(zap.NewNop())

	require.NoError(t, tok.TransferFrom(house, player, house, 0))
	assert.Zero(t, tok.BalanceOf(house))
	assert.Zero(t, tok.Allowance(player, house))
}

func TestLedger(t *testing.T) {
	ctx := context.Background()
	tok := New(zap.NewNop())
	ledger := NewLedger(tok, house)

	require.NoError(t, tok.Mint(house, 1000))
	require.NoError(t, tok.Mint(player, 500))
	tok.Approve(player, house, 500)

	require.NoError(t, ledger.TransferIn(ctx, player, 500))

	balance, err := ledger.BalanceOf(ctx, house)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), balance)

	require.NoError(t, ledger.TransferOut(ctx, other, 975))
	assert.Equal(t, uint64(975), tok.BalanceOf(other))
	assert.Equal(t, uint64(525), tok.BalanceOf(house))

	err = ledger.TransferOut(ctx, other, 10_000)
	require.ErrorIs(t, err, types.ErrInsufficientReserve)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.ErrorIs(t, ledger.TransferIn(cancelled, player, 1), context.Canceled)
}
