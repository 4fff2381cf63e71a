package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application. The API stops first so no
// operation is in flight when queued notifications drain and storage closes.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	// Cancel context to signal all components
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var errs []error

	if a.httpServer != nil {
		err := a.httpServer.Shutdown(shutdownCtx)
		if err != nil {
			a.logger.Error("http-server-shutdown-error", zap.Error(err))
			errs = append(errs, err)
		}
	}

	// Closes every sink, including the websocket hub.
	err := a.dispatcher.Close()
	if err != nil {
		a.logger.Error("notifier-close-error", zap.Error(err))
		errs = append(errs, err)
	}

	a.closeAll()

	a.wg.Wait()

	a.logger.Info("application-shutdown-complete")

	return errors.Join(errs...)
}
