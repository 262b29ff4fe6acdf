package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpAdapter "github.com/quorvia/erpcore/internal/adapter/http"
	"github.com/quorvia/erpcore/internal/adapter/http/handler"
	"github.com/quorvia/erpcore/internal/adapter/http/middleware"
	postgresRepo "github.com/quorvia/erpcore/internal/adapter/repository/postgres"
	redisRepo "github.com/quorvia/erpcore/internal/adapter/repository/redis"
	"github.com/quorvia/erpcore/internal/infrastructure/auth"
	"github.com/quorvia/erpcore/internal/infrastructure/automation"
	"github.com/quorvia/erpcore/internal/infrastructure/clock"
	"github.com/quorvia/erpcore/internal/infrastructure/config"
	"github.com/quorvia/erpcore/internal/infrastructure/eventbus"
	"github.com/quorvia/erpcore/internal/infrastructure/eventpublisher"
	"github.com/quorvia/erpcore/internal/infrastructure/logger"
	"github.com/quorvia/erpcore/internal/infrastructure/logging"
	"github.com/quorvia/erpcore/internal/infrastructure/metrics"
	"github.com/quorvia/erpcore/internal/infrastructure/postgres"
	"github.com/quorvia/erpcore/internal/infrastructure/redis"
	"github.com/quorvia/erpcore/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	zlog := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	workerLog := logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	zlog.Info().Msg("connected to postgres")

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	zlog.Info().Msg("connected to redis")

	// Repositories
	txManager := postgresRepo.NewTxManager(pool)
	accountRepo := postgresRepo.NewAccountRepository(pool)
	journalRepo := postgresRepo.NewJournalRepository(pool)
	periodRepo := postgresRepo.NewPeriodRepository(pool)
	recurringRepo := postgresRepo.NewRecurringRepository(pool)
	workflowRepo := postgresRepo.NewWorkflowRepository(pool)
	requestRepo := postgresRepo.NewRequestRepository(pool)
	directory := postgresRepo.NewApproverDirectory(pool)
	ruleRepo := postgresRepo.NewRuleRepository(pool)
	tableRepo := postgresRepo.NewDecisionTableRepository(pool)
	automationRepo := postgresRepo.NewAutomationRepository(pool)
	executionRepo := postgresRepo.NewExecutionRepository(pool)
	jobRepo := postgresRepo.NewScheduledJobRepository(pool)
	webhookRepo := postgresRepo.NewWebhookRepository(pool)
	valuationRepo := postgresRepo.NewValuationRepository(pool)
	layerRepo := postgresRepo.NewLayerRepository(pool)
	adjustmentRepo := postgresRepo.NewAdjustmentRepository(pool)
	profileRepo := postgresRepo.NewCreditProfileRepository(pool)
	creditLedgerRepo := postgresRepo.NewCreditLedgerRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	idGen := postgresRepo.NewULIDGenerator()
	numGen := postgresRepo.NewDocumentNumberGenerator()
	sysClock := clock.System{}

	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)
	tableCache := redisRepo.NewCache(redisClient)

	// In-process event bus; outbox events drain onto it.
	bus := eventbus.New(nil)
	defer bus.Close()

	m := metrics.New()
	if err := m.WatchBus(ctx, bus); err != nil {
		zlog.Fatal().Err(err).Msg("failed to watch event bus")
	}

	// Use cases
	ledgerUC := usecase.NewLedgerUseCase(
		txManager, accountRepo, journalRepo, periodRepo, recurringRepo,
		outboxRepo, idGen, numGen, sysClock)
	approvalUC := usecase.NewApprovalUseCase(
		txManager, workflowRepo, requestRepo, directory,
		outboxRepo, idGen, numGen, sysClock)
	ruleUC := usecase.NewRuleUseCase(ruleRepo, tableRepo, idGen, sysClock).
		WithCache(tableCache)
	costingUC := usecase.NewCostingUseCase(
		txManager, valuationRepo, layerRepo, adjustmentRepo,
		outboxRepo, ledgerUC, idGen, numGen, sysClock,
		cfg.InventoryAccount, cfg.RevaluationAccount)
	creditUC := usecase.NewCreditUseCase(
		txManager, profileRepo, creditLedgerRepo, outboxRepo, idGen, sysClock)

	executor := automation.NewExecutor(automation.ExecutorConfig{
		Bus:   bus,
		Rules: ruleUC,
		IDGen: idGen,
	})
	automationUC := usecase.NewAutomationUseCase(
		txManager, automationRepo, executionRepo, jobRepo, webhookRepo,
		outboxRepo, idempotencyStore, executor, idGen, numGen, sysClock)

	// Background workers
	publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: outboxRepo,
		Publisher:  eventbus.NewOutboxPublisher(bus),
		Logger:     workerLog.Logger,
		Metrics:    m,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxInterval,
	})
	go func() {
		if err := publisher.Start(ctx); err != nil && ctx.Err() == nil {
			zlog.Error().Err(err).Msg("event publisher stopped")
		}
	}()

	runner := automation.NewRunner(automation.Config{
		UseCase:  automationUC,
		Logger:   workerLog.Logger,
		Metrics:  m,
		Retrier:  postgresRepo.NewRetrier(),
		Interval: cfg.RunnerInterval,
		Workers:  cfg.RunnerWorkers,
	})
	go func() {
		if err := runner.Start(ctx); err != nil && ctx.Err() == nil {
			zlog.Error().Err(err).Msg("automation runner stopped")
		}
	}()

	listener := automation.NewListener(automation.ListenerConfig{
		UseCase:    automationUC,
		Subscriber: bus,
		Logger:     workerLog.Logger,
	})
	go func() {
		if err := listener.Start(ctx); err != nil && ctx.Err() == nil {
			zlog.Error().Err(err).Msg("automation event listener stopped")
		}
	}()

	// Handlers
	ledgerHandler := handler.NewLedgerHandler(ledgerUC)
	approvalHandler := handler.NewApprovalHandler(approvalUC)
	ruleHandler := handler.NewRuleHandler(ruleUC)
	automationHandler := handler.NewAutomationHandler(automationUC)
	costingHandler := handler.NewCostingHandler(costingUC)
	creditHandler := handler.NewCreditHandler(creditUC)
	healthHandler := handler.NewHealthHandler(pool, redisClient)

	var jwtManager *auth.JWTManager
	if cfg.AuthEnabled && cfg.JWTSecret != "" {
		jwtManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
		zlog.Info().Msg("authentication enabled")
	}

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		LedgerHandler:     ledgerHandler,
		ApprovalHandler:   approvalHandler,
		RuleHandler:       ruleHandler,
		AutomationHandler: automationHandler,
		CostingHandler:    costingHandler,
		CreditHandler:     creditHandler,
		HealthHandler:     healthHandler,
		IdempotencyStore:  idempotencyStore,
		JWTManager:        jwtManager,
		RateLimiter:       middleware.NewRateLimiter(float64(cfg.RateLimitRPS), cfg.RateLimitBurst),
		RequestLogger:     middleware.NewLoggingMiddleware(zlog),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		zlog.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	zlog.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("server forced to shutdown")
	}

	zlog.Info().Msg("server stopped")
}
