package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown stops the sources first, drains the engine, then closes the
// outward-facing surfaces.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)
	a.cancel()

	if a.wsMgr != nil {
		err := a.wsMgr.Close()
		if err != nil {
			a.logger.Error("stream-close-error", zap.Error(err))
		}
	}

	// In-flight real orders finish before storage goes away.
	a.engine.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	a.wg.Wait()

	err = a.store.Close()
	if err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	a.logger.Info("application-shutdown-complete")
	return nil
}
