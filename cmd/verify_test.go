package cmd

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mselser95/coinflip/internal/oracle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyOutcome(t *testing.T) {
	player := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	seed := []byte{0xde, 0xad, 0xbe, 0xef}
	commitment := crypto.Keccak256Hash(seed)
	want := oracle.Outcome(seed, oracle.Entropy("wager-1", player, 7))

	tests := []struct {
		name       string
		in         verifyInput
		wantOutput []string
		wantErr    string
	}{
		{
			name: "matching-commitment",
			in: verifyInput{
				Seed: "0xdeadbeef", Commitment: commitment.Hex(),
				ID: "wager-1", Player: player.Hex(), Sequence: 7,
			},
			wantOutput: []string{"(matches)", "Outcome:    " + want.String()},
		},
		{
			name: "without-commitment",
			in: verifyInput{
				Seed: "0xdeadbeef", ID: "wager-1", Player: player.Hex(), Sequence: 7,
			},
			wantOutput: []string{commitment.Hex(), "Outcome:    " + want.String()},
		},
		{
			name: "wrong-commitment",
			in: verifyInput{
				Seed: "0xdeadbeef", Commitment: common.Hash{}.Hex(),
				ID: "wager-1", Player: player.Hex(), Sequence: 7,
			},
			wantErr: "verify: seed does not match commitment",
		},
		{
			name:    "invalid-player",
			in:      verifyInput{Seed: "x", ID: "wager-1", Player: "nope"},
			wantErr: `invalid player address "nope"`,
		},
		{
			name:    "missing-id",
			in:      verifyInput{Seed: "x", Player: player.Hex()},
			wantErr: "wager id cannot be empty",
		},
		{
			name:    "bad-hex-seed",
			in:      verifyInput{Seed: "0xzz", ID: "wager-1", Player: player.Hex()},
			wantErr: "decode server seed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := verifyOutcome(&out, tt.in)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			for _, s := range tt.wantOutput {
				assert.Contains(t, out.String(), s)
			}
		})
	}
}
