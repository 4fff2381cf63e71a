package oracle

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mselser95/coinflip/pkg/types"
)

// Keccak is a commit-reveal oracle. The outcome of an entropy value is the low bit of
// keccak256(serverSeed || entropy); keccak256(serverSeed) is published up front.
type Keccak struct {
	seed       []byte
	commitment common.Hash
}

// NewKeccak creates an oracle from a server seed.
func NewKeccak(seed []byte) (*Keccak, error) {
	if len(seed) == 0 {
		return nil, errors.New("server seed cannot be empty")
	}

	s := make([]byte, len(seed))
	copy(s, seed)

	return &Keccak{
		seed:       s,
		commitment: crypto.Keccak256Hash(s),
	}, nil
}

// NewRandomKeccak creates an oracle with a fresh 32-byte seed.
func NewRandomKeccak() (*Keccak, error) {
	seed := make([]byte, 32)
	_, err := rand.Read(seed)
	if err != nil {
		return nil, fmt.Errorf("generate server seed: %w", err)
	}
	return NewKeccak(seed)
}

// ParseSeed decodes a 0x-prefixed hex seed, or uses the raw string bytes otherwise.
func ParseSeed(raw string) (seed []byte, err error) {
	if has0xPrefix(raw) {
		seed, err = hexutil.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode server seed: %w", err)
		}
		return seed, nil
	}
	return []byte(raw), nil
}

// Resolve returns the outcome for entropy.
func (k *Keccak) Resolve(ctx context.Context, entropy []byte) (outcome types.Choice, err error) {
	err = ctx.Err()
	if err != nil {
		return 0, err
	}
	ResolutionsTotal.Inc()
	return Outcome(k.seed, entropy), nil
}

// Commitment returns keccak256(serverSeed).
func (k *Keccak) Commitment() common.Hash {
	return k.commitment
}

// Outcome recomputes a resolution from a revealed seed.
func Outcome(seed []byte, entropy []byte) types.Choice {
	h := crypto.Keccak256(seed, entropy)
	return types.Choice(h[len(h)-1] & 1)
}

// Verify checks that seed matches commitment and returns the outcome for entropy.
func Verify(seed []byte, commitment common.Hash, entropy []byte) (outcome types.Choice, err error) {
	if crypto.Keccak256Hash(seed) != commitment {
		return 0, errors.New("seed does not match commitment")
	}
	return Outcome(seed, entropy), nil
}

// Entropy derives the per-wager entropy from its identity, player and sequence.
func Entropy(id string, player common.Address, sequence uint64) []byte {
	buf := make([]byte, 0, len(id)+common.AddressLength+8)
	buf = append(buf, id...)
	buf = append(buf, player.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, sequence)
	return buf
}

// Func adapts a plain function to the oracle interface.
type Func func(ctx context.Context, entropy []byte) (types.Choice, error)

// Resolve calls f.
func (f Func) Resolve(ctx context.Context, entropy []byte) (types.Choice, error) {
	return f(ctx, entropy)
}

// Fixed always resolves to outcome.
func Fixed(outcome types.Choice) Func {
	return func(context.Context, []byte) (types.Choice, error) {
		return outcome, nil
	}
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
