package app

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("execution-mode", a.cfg.ExecutionMode),
		zap.String("storage-mode", a.cfg.StorageMode),
		zap.Int("donor-wallet-count", len(a.agentRoster.DonorWallets())))

	err := a.startComponents()
	if err != nil {
		return err
	}

	a.healthChecker.SetReady(true)
	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort))

	return a.waitForShutdown()
}

func (a *App) startComponents() error {
	a.wg.Add(1)
	go a.runHTTPServer()

	if a.balanceSync != nil {
		a.balanceSync.Start(a.ctx)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.coordinator.RunSweeper(a.ctx, 30*time.Second)
	}()

	// The engine must be consuming before any source starts producing.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.engine.Run(a.ctx, a.intents)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.engine.RunEquity(a.ctx, a.cfg.EquityInterval)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.resolver.Run(a.ctx)
	}()

	if a.breaker != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.breaker.Run(a.ctx)
		}()
	}

	if a.wsMgr != nil {
		err := a.wsMgr.Start()
		if err != nil {
			return fmt.Errorf("start stream: %w", err)
		}
		err = a.wsMgr.SubscribeWallets(a.ctx, a.agentRoster.AllWallets())
		if err != nil {
			return fmt.Errorf("subscribe wallets: %w", err)
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.stream.Run(a.ctx)
		}()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.poller.Run(a.ctx)
	}()

	if a.onchain != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.onchain.Run(a.ctx)
		}()
	}

	if a.walletTr != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			err := a.walletTr.Run(a.ctx)
			if err != nil && !errors.Is(err, a.ctx.Err()) {
				a.logger.Error("wallet-tracker-error", zap.Error(err))
			}
		}()
	}

	return nil
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
