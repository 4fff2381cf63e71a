package app

import (
	"context"
	"io"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/coinflip/internal/gameledger"
	"github.com/mselser95/coinflip/internal/notify"
	"github.com/mselser95/coinflip/internal/oracle"
	"github.com/mselser95/coinflip/internal/reserve"
	"github.com/mselser95/coinflip/internal/settlement"
	"github.com/mselser95/coinflip/internal/storage"
	"github.com/mselser95/coinflip/internal/token"
	"github.com/mselser95/coinflip/pkg/cache"
	"github.com/mselser95/coinflip/pkg/config"
	"github.com/mselser95/coinflip/pkg/healthprobe"
	"github.com/mselser95/coinflip/pkg/httpserver"
	"go.uber.org/zap"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	opts          *Options
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	engine        settlement.Engine
	games         *gameledger.Ledger
	store         storage.Store
	settledCache  cache.Cache
	oracle        *oracle.Keccak
	house         common.Address
	devToken      *token.Token // nil unless LEDGER_MODE=memory
	dispatcher    *notify.Dispatcher
	monitor       *reserve.Monitor
	closers       []func() error
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// Options holds application options.
type Options struct {
	ConsoleOut  io.Writer // console sink destination, defaults to stdout
	DisableHTTP bool      // in-process sessions without the API
}

// Engine returns the settlement engine.
func (a *App) Engine() settlement.Engine {
	return a.engine
}

// House returns the reserve account.
func (a *App) House() common.Address {
	return a.house
}

// DevToken returns the in-process token, or nil for an on-chain ledger.
func (a *App) DevToken() *token.Token {
	return a.devToken
}

// Oracle returns the outcome oracle.
func (a *App) Oracle() *oracle.Keccak {
	return a.oracle
}
