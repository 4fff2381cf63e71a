package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/coinflip/internal/gameledger"
	"github.com/mselser95/coinflip/internal/oracle"
	"github.com/mselser95/coinflip/internal/settlement"
	"github.com/mselser95/coinflip/internal/storage"
	"github.com/mselser95/coinflip/pkg/config"
	"github.com/mselser95/coinflip/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

var (
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	resolver = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	player   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

func testConfig() *config.Config {
	return &config.Config{
		LogLevel:               "debug",
		HTTPPort:               "0",
		SettlementMode:         "sync",
		Coefficient:            195,
		MinStake:               100,
		MaxStake:               10_000,
		HouseAddress:           config.DefaultHouseAddress,
		AdminAddresses:         admin.Hex(),
		ResolverAddresses:      resolver.Hex(),
		OracleServerSeed:       "0x01",
		LedgerMode:             "memory",
		ReserveInitial:         10_000,
		StorageMode:            "memory",
		CacheMaxWagers:         100,
		NotifyConsole:          true,
		NotifyQueueSize:        16,
		WSPingInterval:         time.Second,
		ReserveCheckInterval:   time.Hour,
		ReserveLowWatermark:    1_000,
		ReserveHysteresisRatio: 1.2,
	}
}

func fund(t *testing.T, a *App, account common.Address, amount uint64) {
	t.Helper()
	require.NoError(t, a.DevToken().Mint(account, amount))
	a.DevToken().Approve(account, a.House(), amount)
}

func TestApp_SyncSession(t *testing.T) {
	var out bytes.Buffer
	a, err := New(testConfig(), zaptest.NewLogger(t), &Options{ConsoleOut: &out, DisableHTTP: true})
	require.NoError(t, err)

	a.Start()
	fund(t, a, player, 1_000)

	w, err := a.Engine().PlaceWager(context.Background(), player, settlement.PlaceRequest{Stake: 500, Choice: types.Heads})
	require.NoError(t, err)
	assert.True(t, w.Status.Terminal())

	// The configured seed makes the outcome reproducible.
	want := oracle.Outcome([]byte{0x01}, oracle.Entropy(w.ID, w.Player, w.Sequence))
	assert.Equal(t, want, w.Outcome)

	reserve, err := a.Engine().Reserve(context.Background())
	require.NoError(t, err)
	if w.Status == types.StatusWon {
		assert.Equal(t, uint64(9_525), reserve.Balance)
	} else {
		assert.Equal(t, uint64(10_500), reserve.Balance)
	}

	require.NoError(t, a.Shutdown())
	assert.Contains(t, out.String(), "WAGER "+w.ID)
}

func TestApp_DeferredSession(t *testing.T) {
	cfg := testConfig()
	cfg.SettlementMode = "deferred"
	cfg.NotifyConsole = false

	a, err := New(cfg, zaptest.NewLogger(t), &Options{DisableHTTP: true})
	require.NoError(t, err)
	a.Start()
	defer a.Shutdown()

	fund(t, a, player, 1_000)

	w, err := a.Engine().PlaceWager(context.Background(), player, settlement.PlaceRequest{Stake: 200, Choice: types.Tails, ID: "round-1"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, w.Status)

	_, err = a.Engine().Confirm(context.Background(), player, "round-1")
	require.ErrorIs(t, err, types.ErrUnauthorized)

	settled, err := a.Engine().Confirm(context.Background(), resolver, "round-1")
	require.NoError(t, err)
	assert.True(t, settled.Status.Terminal())
}

func TestApp_ParamsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("coefficient: 150\nmin_stake: 5\n"), 0o600))

	cfg := testConfig()
	cfg.ParamsFile = path

	a, err := New(cfg, zaptest.NewLogger(t), &Options{DisableHTTP: true})
	require.NoError(t, err)
	defer a.Shutdown()

	snap := a.Engine().Parameters()
	assert.Equal(t, uint64(150), snap.Coefficient)
	assert.Equal(t, uint64(5), snap.MinStake)
	assert.Equal(t, uint64(10_000), snap.MaxStake)
}

func TestApp_WithHTTPServer(t *testing.T) {
	a, err := New(testConfig(), zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	require.NotNil(t, a.httpServer)
	require.NoError(t, a.Shutdown())
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "params-file-missing",
			mutate:  func(c *config.Config) { c.ParamsFile = filepath.Join(os.TempDir(), "does-not-exist.yaml") },
			wantErr: "setup params",
		},
		{
			name:    "bad-seed",
			mutate:  func(c *config.Config) { c.OracleServerSeed = "0xzz" },
			wantErr: "setup oracle",
		},
		{
			name:    "bad-admin",
			mutate:  func(c *config.Config) { c.AdminAddresses = "admin" },
			wantErr: "setup access control",
		},
		{
			name:    "unknown-mode",
			mutate:  func(c *config.Config) { c.SettlementMode = "eventual" },
			wantErr: "create settlement engine",
		},
		{
			name: "erc20-bad-key",
			mutate: func(c *config.Config) {
				c.LedgerMode = "erc20"
				c.ERC20RPCURL = "http://127.0.0.1:8545"
				c.ERC20TokenAddress = "0x00000000000000000000000000000000000000aa"
				c.HousePrivateKey = "not-a-key"
			},
			wantErr: "setup ledger",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)

			_, err := New(cfg, zaptest.NewLogger(t), &Options{DisableHTTP: true})
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), err.Error())
		})
	}
}

func TestApp_RestoresPendingFromSQLite(t *testing.T) {
	cfg := testConfig()
	cfg.SettlementMode = "deferred"
	cfg.NotifyConsole = false
	cfg.StorageMode = "sqlite"
	cfg.SQLitePath = filepath.Join(t.TempDir(), "coinflip.db")

	first, err := New(cfg, zaptest.NewLogger(t), &Options{DisableHTTP: true})
	if err != nil && strings.Contains(err.Error(), "CGO_ENABLED=0") {
		t.Skip("sqlite driver requires cgo")
	}
	require.NoError(t, err)
	first.Start()

	fund(t, first, player, 1_000)
	_, err = first.Engine().PlaceWager(context.Background(), player, settlement.PlaceRequest{Stake: 200, Choice: types.Heads, ID: "survivor"})
	require.NoError(t, err)
	require.NoError(t, first.Shutdown())

	second, err := New(cfg, zaptest.NewLogger(t), &Options{DisableHTTP: true})
	require.NoError(t, err)
	defer second.Shutdown()

	w, err := second.Engine().PendingWager(context.Background(), player)
	require.NoError(t, err)
	assert.Equal(t, "survivor", w.ID)

	status, err := second.Engine().Reserve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(390), status.Encumbered)
}

func TestWarnVolatileReserve(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	games, err := gameledger.New(&gameledger.Config{Store: storage.NewMemoryStore(logger), Logger: logger})
	require.NoError(t, err)
	require.NoError(t, games.Create(context.Background(), &types.Wager{
		ID:              "restored",
		Mode:            types.ModeDeferred,
		Player:          player,
		Stake:           200,
		Coefficient:     195,
		PotentialPayout: 390,
		Status:          types.StatusPending,
		CreatedAt:       time.Now(),
	}))

	warnVolatileReserve(logger, "memory", games)
	assert.Zero(t, logs.Len())

	warnVolatileReserve(logger, "sqlite", games)
	entries := logs.FilterMessage("memory-ledger-with-durable-storage").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "sqlite", fields["storage-mode"])
	assert.EqualValues(t, 1, fields["restored-pending"])
	assert.EqualValues(t, 390, fields["restored-encumbered"])
}
