package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gestorpos/internal/config"
	"gestorpos/internal/infra"
	"gestorpos/internal/repository"
	"gestorpos/internal/router"
	"gestorpos/internal/service"
	"gestorpos/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// @title           gestorpos sales API
// @version         1.0
// @description     Sale settlement: register, edit, cancel and read sales.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: dev pretty, prod JSON
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	ledgers := service.Ledgers{
		Sales:      repository.NewSaleRepository(db),
		Counters:   repository.NewCounterRepository(),
		Stock:      repository.NewStockRepository(db, cfg.MultiBranch),
		Bank:       repository.NewBankRepository(db),
		Bills:      repository.NewReceivableBillRepository(db),
		WorkOrders: repository.NewWorkOrderRepository(db),
		Requests:   repository.NewRequestRepository(db),
		Audit:      repository.NewAuditLogRepository(db),
	}
	settlement := service.NewSettlementService(ledgers)
	opts := service.SaleOptions{
		CreditPaymentCode: cfg.CreditPaymentCode,
		BillCategory:      cfg.BillCategory,
	}

	// Sale events, the event worker pool and the sale cache all ride on
	// Redis and are skipped together when disabled.
	var (
		rdb        *redis.Client
		eventsCB   *infra.CircuitBreaker
		dispatcher *worker.Dispatcher
		sales      service.SaleService
	)
	if cfg.SaleEventsEnabled {
		rdb, err = infra.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		cache := infra.NewSaleCache(rdb)
		eventsCB = infra.NewCircuitBreaker(infra.DefaultCBConfig())
		dispatcher = worker.NewDispatcher(rdb, eventsCB)

		worker.StartWorkerPool(ctx, rdb, worker.WorkerHandlers{
			worker.JobSaleSettled: worker.NewSaleEventWorker(cache),
		}, cfg.WorkerPoolSize)
		worker.StartRetryCron(ctx, worker.RetryCronConfig{RDB: rdb, Queue: worker.QueueSaleEvents})

		sales = service.NewSaleService(ledgers, settlement, opts, dispatcher, cache)
	} else {
		sales = service.NewSaleService(ledgers, settlement, opts, nil, nil)
	}

	r := router.New(ctx, cfg, router.Deps{
		DB:       db,
		Redis:    rdb,
		EventsCB: eventsCB,
		Sales:    sales,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("gestorpos listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info().Msg("server exited")
}
