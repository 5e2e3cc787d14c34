package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"withdrawal/internal/config"
	handler "withdrawal/internal/handler/http"
	"withdrawal/internal/gateway"
	"withdrawal/internal/logger"
	"withdrawal/internal/port"
	"withdrawal/internal/repository/memory"
	"withdrawal/internal/repository/migration"
	"withdrawal/internal/repository/postgresql"
	"withdrawal/internal/service"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration: ", err)
	}

	lg := logger.New(cfg.Logger.LoggerLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var journal port.Journal
	if cfg.DB.DatabaseURL != "" {
		db, err := postgresql.Open(ctx, cfg.DB)
		if err != nil {
			lg.Fatal().Err(err).Msg("failed to connect to journal database")
		}
		defer db.Close()

		if err := migration.RunMigrations(ctx, db, lg); err != nil {
			lg.Fatal().Err(err).Msg("failed to migrate journal database")
		}
		journal = postgresql.NewJournalRepository(db)
		lg.Info().Msg("withdrawal journal enabled")
	}

	accounts := memory.NewAccountRepository()
	withdrawals := memory.NewWithdrawalRepository()
	settlement := gateway.NewSimulated(cfg.Gateway.SettleDelay, cfg.Gateway.FailureRate, lg)

	reconciler := service.NewReconciler(service.ReconcilerConfig{
		Interval:             cfg.Reconciler.Interval,
		Concurrency:          cfg.Reconciler.Concurrency,
		MaxTransientFailures: cfg.Reconciler.MaxTransientFailures,
		GatewayTimeout:       cfg.Gateway.Timeout,
	}, accounts, withdrawals, settlement, journal, lg)

	accountService := service.NewAccountService(accounts, lg)
	withdrawalService := service.NewWithdrawalService(
		accounts, withdrawals, settlement, reconciler, journal, cfg.Gateway.Timeout, lg)

	router := handler.NewRouter(
		handler.NewAccountHandler(accountService, lg),
		handler.NewWithdrawalHandler(withdrawalService, lg),
		lg,
	)

	server := &http.Server{
		Addr:         net.JoinHostPort("", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info().Str("addr", server.Addr).Msg("http server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return reconciler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		lg.Error().Err(err).Msg("service exited with error")
		os.Exit(1)
	}
	lg.Info().Msg("service exited")
}
