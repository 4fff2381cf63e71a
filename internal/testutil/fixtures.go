package testutil

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/coinflip/internal/token"
	"go.uber.org/zap"
)

// Well-known test accounts.
var (
	House    = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	Admin    = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	Resolver = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	Alice    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	Bob      = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

// Funding describes the starting balances of a test token.
type Funding struct {
	Reserve uint64
	Players map[common.Address]uint64
}

// NewFundedLedger mints a token with the reserve held by House and each player's
// balance approved for House to spend.
func NewFundedLedger(f Funding, logger *zap.Logger) *token.Ledger {
	tok := token.New(logger)
	if f.Reserve > 0 {
		_ = tok.Mint(House, f.Reserve)
	}
	for player, amount := range f.Players {
		_ = tok.Mint(player, amount)
		tok.Approve(player, House, amount)
	}
	return token.NewLedger(tok, House)
}
