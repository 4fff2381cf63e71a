// Package erc20 settles stakes and payouts against an ERC-20 token contract.
package erc20

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/mselser95/coinflip/pkg/types"
	"go.uber.org/zap"
)

// TokenABI is the subset of ERC-20 the ledger calls.
const TokenABI = `[
{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"},
{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
{"constant":false,"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transferFrom","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

// ErrReverted is returned when a transaction is mined with a failed status.
var ErrReverted = errors.New("transaction reverted")

// ChainClient is the RPC surface the ledger needs. *ethclient.Client implements it.
type ChainClient interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// Ledger moves token between players and the house account, which signs every
// transaction. Players must approve the house as spender before wagering.
type Ledger struct {
	client   ChainClient
	token    common.Address
	house    common.Address
	key      *ecdsa.PrivateKey
	abi      abi.ABI
	gasLimit uint64
	poll     time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	// serializes nonce allocation
	txMu    sync.Mutex
	chainID *big.Int
}

// Config holds ledger configuration.
type Config struct {
	Client         ChainClient
	Token          common.Address
	PrivateKeyHex  string
	GasLimit       uint64        // default 100000
	ReceiptPoll    time.Duration // default 2s
	ReceiptTimeout time.Duration // default 2m
	Logger         *zap.Logger
}

// Dial connects to an Ethereum JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	if rpcURL == "" {
		return nil, errors.New("rpc url cannot be empty")
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}
	return client, nil
}

// New creates an on-chain ledger. The house address is derived from the key.
func New(cfg *Config) (*Ledger, error) {
	if cfg.Client == nil {
		return nil, errors.New("chain client cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Token == (common.Address{}) {
		return nil, errors.New("token address cannot be zero")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(TokenABI))
	if err != nil {
		return nil, fmt.Errorf("parse ABI: %w", err)
	}

	l := &Ledger{
		client:   cfg.Client,
		token:    cfg.Token,
		house:    crypto.PubkeyToAddress(key.PublicKey),
		key:      key,
		abi:      parsed,
		gasLimit: cfg.GasLimit,
		poll:     cfg.ReceiptPoll,
		timeout:  cfg.ReceiptTimeout,
		logger:   cfg.Logger,
	}
	if l.gasLimit == 0 {
		l.gasLimit = 100_000
	}
	if l.poll <= 0 {
		l.poll = 2 * time.Second
	}
	if l.timeout <= 0 {
		l.timeout = 2 * time.Minute
	}

	l.logger.Info("erc20-ledger-initialized",
		zap.String("token", l.token.Hex()),
		zap.String("house", l.house.Hex()))

	return l, nil
}

// House returns the signing account that holds the reserve.
func (l *Ledger) House() common.Address {
	return l.house
}

// BalanceOf returns the token balance of account, saturating at MaxUint64.
func (l *Ledger) BalanceOf(ctx context.Context, account common.Address) (uint64, error) {
	balance, err := l.call(ctx, "balanceOf", account)
	if err != nil {
		return 0, fmt.Errorf("balance of %s: %w", account.Hex(), err)
	}
	return saturate(balance), nil
}

// Allowance returns how much spender may move from owner.
func (l *Ledger) Allowance(ctx context.Context, owner common.Address, spender common.Address) (uint64, error) {
	allowance, err := l.call(ctx, "allowance", owner, spender)
	if err != nil {
		return 0, fmt.Errorf("allowance of %s: %w", owner.Hex(), err)
	}
	return saturate(allowance), nil
}

// TransferIn sends transferFrom(from, house, amount). Balance and allowance are
// checked first so ordinary shortfalls never cost gas.
func (l *Ledger) TransferIn(ctx context.Context, from common.Address, amount uint64) error {
	balance, err := l.BalanceOf(ctx, from)
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf("balance %d below %d: %w", balance, amount, types.ErrInsufficientFunds)
	}

	allowance, err := l.Allowance(ctx, from, l.house)
	if err != nil {
		return err
	}
	if allowance < amount {
		return fmt.Errorf("allowance %d below %d: %w", allowance, amount, types.ErrInsufficientAllowance)
	}

	_, err = l.send(ctx, "transferFrom", from, l.house, new(big.Int).SetUint64(amount))
	return err
}

// TransferOut sends transfer(to, amount) from the house.
func (l *Ledger) TransferOut(ctx context.Context, to common.Address, amount uint64) error {
	reserve, err := l.BalanceOf(ctx, l.house)
	if err != nil {
		return err
	}
	if reserve < amount {
		return fmt.Errorf("reserve %d below %d: %w", reserve, amount, types.ErrInsufficientReserve)
	}

	_, err = l.send(ctx, "transfer", to, new(big.Int).SetUint64(amount))
	return err
}

func (l *Ledger) call(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	start := time.Now()
	defer func() {
		CallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	data, err := l.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	result, err := l.client.CallContract(ctx, ethereum.CallMsg{To: &l.token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return new(big.Int).SetBytes(result), nil
}

// send signs and submits a call to the token and waits for its receipt.
func (l *Ledger) send(ctx context.Context, method string, args ...interface{}) (*ethtypes.Receipt, error) {
	data, err := l.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	signed, err := l.signAndSend(ctx, data)
	if err != nil {
		TxFailuresTotal.WithLabelValues(method, "send").Inc()
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	TxSentTotal.WithLabelValues(method).Inc()

	l.logger.Info("erc20-tx-sent",
		zap.String("method", method),
		zap.String("tx-hash", signed.Hash().Hex()),
		zap.Uint64("nonce", signed.Nonce()))

	receipt, err := l.waitForReceipt(ctx, signed.Hash())
	if err != nil {
		TxFailuresTotal.WithLabelValues(method, "receipt").Inc()
		return nil, fmt.Errorf("%s %s: %w", method, signed.Hash().Hex(), err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		TxFailuresTotal.WithLabelValues(method, "reverted").Inc()
		return receipt, fmt.Errorf("%s %s: %w", method, signed.Hash().Hex(), ErrReverted)
	}

	l.logger.Info("erc20-tx-confirmed",
		zap.String("method", method),
		zap.String("tx-hash", signed.Hash().Hex()),
		zap.Uint64("gas-used", receipt.GasUsed))

	return receipt, nil
}

func (l *Ledger) signAndSend(ctx context.Context, data []byte) (*ethtypes.Transaction, error) {
	l.txMu.Lock()
	defer l.txMu.Unlock()

	if l.chainID == nil {
		chainID, err := l.client.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("get chain ID: %w", err)
		}
		l.chainID = chainID
	}

	nonce, err := l.client.PendingNonceAt(ctx, l.house)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}

	gasPrice, err := l.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get gas price: %w", err)
	}

	tx := ethtypes.NewTransaction(nonce, l.token, big.NewInt(0), l.gasLimit, gasPrice, data)
	signed, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(l.chainID), l.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	err = l.client.SendTransaction(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}
	return signed, nil
}

func (l *Ledger) waitForReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		receipt, err := l.client.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			l.logger.Debug("receipt-poll-error", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timeout waiting for receipt: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func saturate(v *big.Int) uint64 {
	if v.IsUint64() {
		return v.Uint64()
	}
	return math.MaxUint64
}
