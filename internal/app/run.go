package app

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("settlement-mode", a.cfg.SettlementMode),
		zap.String("ledger-mode", a.cfg.LedgerMode),
		zap.String("storage-mode", a.cfg.StorageMode),
		zap.String("log-level", a.cfg.LogLevel))

	a.Start()

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.String("house", a.house.Hex()),
		zap.String("oracle-commitment", a.oracle.Commitment().Hex()))

	return a.waitForShutdown()
}

// Start launches background components without blocking.
func (a *App) Start() {
	a.dispatcher.Start()
	a.monitor.Start(a.ctx)

	if a.httpServer != nil {
		a.wg.Add(1)
		go a.runHTTPServer()
	}

	a.healthChecker.SetReady(true)
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
		a.cancel()
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
