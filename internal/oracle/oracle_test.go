package oracle

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mselser95/coinflip/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKeccak(t *testing.T) {
	_, err := NewKeccak(nil)
	require.EqualError(t, err, "server seed cannot be empty")

	k, err := NewKeccak([]byte("seed"))
	require.NoError(t, err)
	assert.Equal(t, crypto.Keccak256Hash([]byte("seed")), k.Commitment())
}

func TestKeccak_Resolve(t *testing.T) {
	k, err := NewKeccak([]byte("server-seed"))
	require.NoError(t, err)

	player := common.HexToAddress("0x00000000000000000000000000000000000000c1")
	seen := map[types.Choice]int{}

	for seq := uint64(0); seq < 64; seq++ {
		entropy := Entropy("wager", player, seq)

		outcome, err := k.Resolve(context.Background(), entropy)
		require.NoError(t, err)
		require.True(t, outcome.Valid())

		again, err := k.Resolve(context.Background(), entropy)
		require.NoError(t, err)
		assert.Equal(t, outcome, again, "resolution must be deterministic")

		seen[outcome]++
	}

	assert.Len(t, seen, 2, "both outcomes expected over 64 draws")
}

func TestKeccak_ResolveCancelled(t *testing.T) {
	k, err := NewKeccak([]byte("server-seed"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = k.Resolve(ctx, []byte("x"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestVerify(t *testing.T) {
	seed := []byte("revealed")
	k, err := NewKeccak(seed)
	require.NoError(t, err)

	entropy := []byte("entropy")
	want, err := k.Resolve(context.Background(), entropy)
	require.NoError(t, err)

	got, err := Verify(seed, k.Commitment(), entropy)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = Verify([]byte("other"), k.Commitment(), entropy)
	require.Error(t, err)
}

func TestParseSeed(t *testing.T) {
	seed, err := ParseSeed("0x0102")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, seed)

	seed, err = ParseSeed("plain")
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), seed)

	_, err = ParseSeed("0xzz")
	require.Error(t, err)
}

func TestEntropy(t *testing.T) {
	player := common.HexToAddress("0x00000000000000000000000000000000000000c1")

	a := Entropy("1", player, 1)
	b := Entropy("1", player, 2)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 1+20+8)
}

func TestFixed(t *testing.T) {
	outcome, err := Fixed(types.Tails).Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, types.Tails, outcome)
}
