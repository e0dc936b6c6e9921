// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signal-billing/internal/config"
	"signal-billing/internal/domain/ports/adapter"
	pg "signal-billing/internal/infra/db/postgres"
	"signal-billing/internal/infra/logging"
	"signal-billing/internal/infra/metrics"
	"signal-billing/internal/infra/notify"
	"signal-billing/internal/infra/payment"
	red "signal-billing/internal/infra/redis"
	"signal-billing/internal/infra/sched"
	"signal-billing/internal/infra/web"
	"signal-billing/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool := pg.MustConnectPostgres(cfg.Database.URL)
	defer pool.Close()
	go pg.CollectPoolMetrics(ctx, pool)
	tm := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	walletRepo := pg.NewWalletRepo(pool)
	ledgerRepo := pg.NewLedgerRepo(pool)
	intentRepo := pg.NewIntentRepo(pool)
	attemptRepo := pg.NewAttemptRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	bankTxRepo := pg.NewBankTxRepo(pool)
	orderRepo := pg.NewOrderRepo(pool)
	licenseRepo := pg.NewLicenseRepo(pool)
	subjectRepo := pg.NewSubjectRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)

	// ---- Adapters ----
	gateway := payment.NewSePayGateway(
		cfg.Payment.SePay.AccountNumber,
		cfg.Payment.SePay.AccountName,
		cfg.Payment.SePay.BankCode,
		payment.WithRateLimiter(rateLimiter, cfg.Payment.SePay.RateLimit, cfg.Payment.SePay.RateLimitWindow),
	)

	var notifier adapter.Notifier = notify.NopNotifier{}
	if cfg.Notify.TelegramToken != "" {
		tg, err := notify.NewTelegramNotifier(&cfg.Notify, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram notifier")
		}
		notifier = tg
	} else {
		logger.Warn().Msg("no ops channel configured; billing events will not be announced")
	}

	// ---- Use cases ----
	walletUC := usecase.NewWalletUseCase(walletRepo, ledgerRepo, tm, logger)
	intentUC := usecase.NewIntentUseCase(intentRepo, attemptRepo, walletUC, gateway, tm, cfg.Payment.IntentTTL, logger)
	orderUC := usecase.NewOrderUseCase(orderRepo, licenseRepo, subjectRepo, walletUC, intentUC, notifier, tm, logger)
	renewUC := usecase.NewAutoRenewUseCase(subRepo, licenseRepo, walletUC, orderUC, notifier, tm, logger)
	orderUC.BindEnroller(renewUC)
	reconcileUC := usecase.NewReconcileUseCase(bankTxRepo, intentRepo, paymentRepo, walletUC, orderUC, notifier, tm, logger)

	// ---- Workers ----
	renewalWorker := sched.NewRenewalWorker(cfg.Scheduler.RenewInterval, cfg.Scheduler.RenewBatchSize, renewUC, locker, logger)
	go func() { _ = renewalWorker.Run(ctx) }()

	expiryWorker := sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, licenseRepo, locker, logger)
	go func() { _ = expiryWorker.Run(ctx) }()

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, !cfg.Runtime.Dev, "", cfg.Auth.TokenTTL)
	server := web.NewServer(
		walletUC, intentUC, orderUC, renewUC, reconcileUC,
		auth, cfg.Auth.OpsAPIKey, cfg.Payment.SePay.WebhookAPIKey,
		logger,
	)
	go func() {
		if err := server.Start(cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	cancel()
}
