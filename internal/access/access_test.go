package access

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/coinflip/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	resolver = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	player   = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

func TestControl_Authorize(t *testing.T) {
	control := New([]common.Address{admin}, []common.Address{resolver})

	tests := []struct {
		name    string
		op      Operation
		caller  common.Address
		allowed bool
	}{
		{name: "player-places-wager", op: OpPlaceWager, caller: player, allowed: true},
		{name: "admin-places-wager", op: OpPlaceWager, caller: admin, allowed: true},
		{name: "resolver-confirms", op: OpConfirm, caller: resolver, allowed: true},
		{name: "admin-cannot-confirm", op: OpConfirm, caller: admin, allowed: false},
		{name: "player-cannot-confirm", op: OpConfirm, caller: player, allowed: false},
		{name: "admin-withdraws", op: OpWithdraw, caller: admin, allowed: true},
		{name: "resolver-cannot-withdraw", op: OpWithdraw, caller: resolver, allowed: false},
		{name: "admin-sets-coefficient", op: OpSetCoefficient, caller: admin, allowed: true},
		{name: "player-cannot-set-coefficient", op: OpSetCoefficient, caller: player, allowed: false},
		{name: "player-cannot-set-bounds", op: OpSetStakeBounds, caller: player, allowed: false},
		{name: "player-cannot-mint", op: OpMint, caller: player, allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := control.Authorize(tt.op, tt.caller)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, types.ErrUnauthorized)
		})
	}
}

func TestControl_Grant(t *testing.T) {
	control := New(nil, nil)
	require.False(t, control.IsResolver(player))

	control.Grant(RoleResolver, player)

	assert.True(t, control.IsResolver(player))
	assert.False(t, control.IsAdministrator(player))
}

func TestParseAddresses(t *testing.T) {
	addrs, err := ParseAddresses(" 0x00000000000000000000000000000000000000a1, ,0x00000000000000000000000000000000000000b1")
	require.NoError(t, err)
	assert.Equal(t, []common.Address{admin, resolver}, addrs)

	addrs, err = ParseAddresses("")
	require.NoError(t, err)
	assert.Empty(t, addrs)

	_, err = ParseAddresses("not-an-address")
	require.Error(t, err)
}
