package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/coinflip/internal/access"
	"github.com/mselser95/coinflip/internal/gameledger"
	"github.com/mselser95/coinflip/internal/notify"
	"github.com/mselser95/coinflip/internal/oracle"
	"github.com/mselser95/coinflip/internal/params"
	"github.com/mselser95/coinflip/internal/reserve"
	"github.com/mselser95/coinflip/internal/settlement"
	"github.com/mselser95/coinflip/internal/storage"
	"github.com/mselser95/coinflip/internal/token"
	"github.com/mselser95/coinflip/pkg/cache"
	"github.com/mselser95/coinflip/pkg/config"
	"github.com/mselser95/coinflip/pkg/erc20"
	"github.com/mselser95/coinflip/pkg/healthprobe"
	"github.com/mselser95/coinflip/pkg/httpserver"
	"github.com/mselser95/coinflip/pkg/types"
	"go.uber.org/zap"
)

// New creates a new application instance. Persisted pending wagers are
// restored before the engine accepts operations.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (a *App, err error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	a = &App{
		cfg:           cfg,
		opts:          opts,
		logger:        logger,
		healthChecker: healthprobe.New(),
		ctx:           ctx,
		cancel:        cancel,
	}
	defer func() {
		if err != nil {
			a.closeAll()
			cancel()
		}
	}()

	a.store, err = setupStorage(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("setup storage: %w", err)
	}
	a.closers = append(a.closers, a.store.Close)

	a.settledCache, err = setupCache(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("setup cache: %w", err)
	}
	a.closers = append(a.closers, func() error { a.settledCache.Close(); return nil })

	a.games, err = gameledger.New(&gameledger.Config{Store: a.store, Cache: a.settledCache, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("create game ledger: %w", err)
	}
	err = a.games.Restore(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore game ledger: %w", err)
	}

	paramStore, err := setupParams(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("setup params: %w", err)
	}

	ledger, err := a.setupLedger(ctx)
	if err != nil {
		return nil, fmt.Errorf("setup ledger: %w", err)
	}

	a.oracle, err = setupOracle(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("setup oracle: %w", err)
	}

	acl, err := setupAccess(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("setup access control: %w", err)
	}

	hub := notify.NewHub(&notify.HubConfig{PingInterval: cfg.WSPingInterval, Logger: logger})
	a.dispatcher, err = setupNotifier(ctx, cfg, logger, hub, opts)
	if err != nil {
		return nil, fmt.Errorf("setup notifier: %w", err)
	}
	a.closers = append(a.closers, a.dispatcher.Close)

	a.engine, err = settlement.New(&settlement.Config{
		Mode:     types.Mode(cfg.SettlementMode),
		House:    a.house,
		Params:   paramStore,
		Games:    a.games,
		Ledger:   ledger,
		Oracle:   a.oracle,
		Access:   acl,
		Notifier: a.dispatcher,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create settlement engine: %w", err)
	}

	a.monitor, err = reserve.New(&reserve.Config{
		CheckInterval:   cfg.ReserveCheckInterval,
		LowWatermark:    cfg.ReserveLowWatermark,
		HysteresisRatio: cfg.ReserveHysteresisRatio,
		Source:          a.engine,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create reserve monitor: %w", err)
	}
	a.healthChecker.AddCheck("reserve", func(context.Context) error {
		if last := a.monitor.Status().LastError; last != "" {
			return errors.New(last)
		}
		return nil
	})

	if !opts.DisableHTTP {
		a.httpServer, err = setupHTTPServer(a, acl, hub)
		if err != nil {
			return nil, fmt.Errorf("setup http server: %w", err)
		}
	}

	return a, nil
}

func setupStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	switch cfg.StorageMode {
	case "postgres":
		return storage.NewPostgresStore(ctx, &storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
	case "sqlite":
		return storage.NewSQLiteStore(ctx, &storage.SQLiteConfig{Path: cfg.SQLitePath, Logger: logger})
	default:
		return storage.NewMemoryStore(logger), nil
	}
}

func setupCache(cfg *config.Config, logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		Name:     "settled-wagers",
		MaxItems: cfg.CacheMaxWagers,
		Logger:   logger,
	})
}

// setupParams applies PARAMS_FILE on top of the environment values.
func setupParams(cfg *config.Config, logger *zap.Logger) (*params.Store, error) {
	snap := params.Snapshot{
		Coefficient: cfg.Coefficient,
		MinStake:    cfg.MinStake,
		MaxStake:    cfg.MaxStake,
	}

	if cfg.ParamsFile != "" {
		var err error
		snap, err = params.LoadFile(cfg.ParamsFile, snap)
		if err != nil {
			return nil, err
		}
		logger.Info("params-file-loaded", zap.String("path", cfg.ParamsFile))
	}

	return params.New(snap, logger)
}

// setupLedger builds the ledger port and sets the house account.
func (a *App) setupLedger(ctx context.Context) (settlement.Ledger, error) {
	cfg := a.cfg

	if cfg.LedgerMode == "erc20" {
		client, err := erc20.Dial(ctx, cfg.ERC20RPCURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { client.Close(); return nil })

		ledger, err := erc20.New(&erc20.Config{
			Client:         client,
			Token:          common.HexToAddress(cfg.ERC20TokenAddress),
			PrivateKeyHex:  cfg.HousePrivateKey,
			GasLimit:       cfg.ERC20GasLimit,
			ReceiptTimeout: cfg.ERC20ReceiptTimeout,
			Logger:         a.logger,
		})
		if err != nil {
			return nil, err
		}
		a.house = ledger.House()
		return ledger, nil
	}

	a.house = common.HexToAddress(cfg.HouseAddress)
	a.devToken = token.New(a.logger)
	if cfg.ReserveInitial > 0 {
		err := a.devToken.Mint(a.house, cfg.ReserveInitial)
		if err != nil {
			return nil, fmt.Errorf("mint initial reserve: %w", err)
		}
	}
	a.logger.Info("memory-ledger-initialized",
		zap.String("house", a.house.Hex()),
		zap.Uint64("reserve", cfg.ReserveInitial))
	warnVolatileReserve(a.logger, cfg.StorageMode, a.games)

	return token.NewLedger(a.devToken, a.house), nil
}

// warnVolatileReserve flags durable wagers backed by an in-process token: the
// stakes collected by restored pending wagers are not part of the new reserve.
func warnVolatileReserve(logger *zap.Logger, storageMode string, games *gameledger.Ledger) {
	if storageMode == "memory" {
		return
	}
	logger.Warn("memory-ledger-with-durable-storage",
		zap.String("storage-mode", storageMode),
		zap.Int("restored-pending", games.PendingCount()),
		zap.Uint64("restored-encumbered", games.Encumbered()))
}

func setupOracle(cfg *config.Config, logger *zap.Logger) (*oracle.Keccak, error) {
	var (
		o   *oracle.Keccak
		err error
	)
	if cfg.OracleServerSeed != "" {
		seed, parseErr := oracle.ParseSeed(cfg.OracleServerSeed)
		if parseErr != nil {
			return nil, parseErr
		}
		o, err = oracle.NewKeccak(seed)
	} else {
		o, err = oracle.NewRandomKeccak()
	}
	if err != nil {
		return nil, err
	}

	logger.Info("oracle-initialized",
		zap.String("commitment", o.Commitment().Hex()),
		zap.Bool("seed-configured", cfg.OracleServerSeed != ""))
	return o, nil
}

func setupAccess(cfg *config.Config, logger *zap.Logger) (*access.Control, error) {
	admins, err := access.ParseAddresses(cfg.AdminAddresses)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_ADDRESSES: %w", err)
	}
	resolvers, err := access.ParseAddresses(cfg.ResolverAddresses)
	if err != nil {
		return nil, fmt.Errorf("RESOLVER_ADDRESSES: %w", err)
	}

	if len(admins) == 0 {
		logger.Warn("no-administrators-configured")
	}
	if cfg.SettlementMode == string(types.ModeDeferred) && len(resolvers) == 0 {
		logger.Warn("no-resolvers-configured", zap.String("note", "pending wagers cannot be confirmed"))
	}

	return access.New(admins, resolvers), nil
}

func setupNotifier(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	hub *notify.Hub,
	opts *Options,
) (*notify.Dispatcher, error) {
	sinks := []notify.Sink{notify.NewLogSink(logger), hub}

	if cfg.NotifyConsole {
		out := opts.ConsoleOut
		if out == nil {
			out = os.Stdout
		}
		sinks = append(sinks, notify.NewConsoleSink(out))
	}

	if brokers := cfg.Brokers(); len(brokers) > 0 {
		kafkaSink, err := notify.NewKafkaSink(&notify.KafkaConfig{
			Brokers: brokers,
			Topic:   cfg.KafkaTopicSettlements,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, kafkaSink)
	}

	if cfg.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		redisSink, err := notify.NewRedisSink(pingCtx, &notify.RedisConfig{
			Addr:    cfg.RedisAddr,
			Channel: cfg.RedisChannel,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, redisSink)
	}

	return notify.New(&notify.Config{
		Sinks:     sinks,
		QueueSize: cfg.NotifyQueueSize,
		Logger:    logger,
	})
}

func setupHTTPServer(a *App, acl *access.Control, hub http.Handler) (*httpserver.Server, error) {
	srvCfg := &httpserver.Config{
		Port:          a.cfg.HTTPPort,
		Logger:        a.logger,
		HealthChecker: a.healthChecker,
		Engine:        a.engine,
		Access:        acl,
		House:         a.house,
		Monitor:       a.monitor,
		Commitment:    a.oracle,
		Stream:        hub,
	}
	if a.devToken != nil {
		srvCfg.DevLedger = a.devToken
	}
	return httpserver.New(srvCfg)
}

// closeAll runs closers in reverse order of creation.
func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		err := a.closers[i]()
		if err != nil {
			a.logger.Error("component-close-error", zap.Error(err))
		}
	}
	a.closers = nil
}
