package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/config"
	relaygorm "github.com/fwojciec/relay/gorm"
	relayhttp "github.com/fwojciec/relay/http"
	"github.com/fwojciec/relay/memory"
)

const shutdownTimeout = 10 * time.Second

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	guests := memory.New(memory.WithTTL(cfg.Guest.TTL), memory.WithLogger(logger))
	if cfg.Guest.TTL > 0 {
		go guests.Run(ctx, cfg.Guest.SweepInterval)
	}

	users, err := relaygorm.NewStore(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer users.Close()

	svc, err := newService(ctx, cfg, logger, map[relay.SessionKind]relay.HistoryStore{
		relay.Guest:         guests,
		relay.Authenticated: users,
	})
	if err != nil {
		return err
	}

	srv := relayhttp.NewServer(svc, relayhttp.WithLogger(logger))
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTP.Addr, "provider", cfg.Provider.Name)
		errc <- srv.Start(cfg.HTTP.Addr)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
