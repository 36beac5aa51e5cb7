package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-marketplace-pos/internal/events"
	"go-marketplace-pos/internal/handler"
	"go-marketplace-pos/internal/middleware"
	"go-marketplace-pos/internal/model"
	"go-marketplace-pos/internal/payment"
	"go-marketplace-pos/internal/repository"
	"go-marketplace-pos/internal/service"
	"go-marketplace-pos/internal/ws"
	"go-marketplace-pos/pkg/config"
	"go-marketplace-pos/pkg/database"
	"go-marketplace-pos/pkg/jwt"
	"go-marketplace-pos/pkg/logger"
	"go-marketplace-pos/pkg/metrics"
	"go-marketplace-pos/pkg/redis"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load Env
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{
		ServiceName: cfg.App.Name,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	if envErr != nil {
		log.Warn(context.Background(), ".env file not found, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Setup Database
	db, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// 3. Seed default privileges, roles, and admin user
	if err := seedPrivilegesRolesAndAdmin(ctx, db, cfg.App.AdminEmail, cfg.App.AdminPass, log); err != nil {
		log.Error(ctx, "seeding failed", err)
	}

	// 4. Optional infrastructure
	var (
		rateStore   middleware.RateLimitStore
		idempotency service.IdempotencyStore
		redisClient *redis.Client
	)
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis)
		if err != nil {
			log.Error(ctx, "redis unavailable, using in-process rate limiting and no webhook dedupe", err)
			redisClient = nil
		} else {
			rateStore = redisClient
			idempotency = redisClient
		}
	}

	wsHub := ws.NewHub(log)
	go wsHub.Run(ctx)

	sinks := []events.Publisher{wsHub}
	var kafkaPub *events.KafkaPublisher
	if cfg.Kafka.Enabled() {
		kafkaPub = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, 256, log)
		kafkaPub.Start(ctx)
		sinks = append(sinks, kafkaPub)
	}
	bus := events.NewBus(sinks...)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	invMetrics := metrics.NewInventory(reg)
	payMetrics := metrics.NewPayments(reg)

	rate, err := service.ParseCommissionRate(cfg.Commission.RatePercent)
	if err != nil {
		return err
	}

	// 5. Dependency Injection (Wiring Layers)
	productRepo := repository.NewProductRepo(db)
	inventoryRepo := repository.NewInventoryRepo(db)
	movementRepo := repository.NewMovementRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	userRepo := repository.NewUserRepo(db)
	privilegeRepo := repository.NewPrivilegeRepo(db)
	roleRepo := repository.NewRoleRepo(db)

	paystack := payment.NewPaystackClient(cfg.Paystack)
	providers := map[model.PaymentMethod]payment.Provider{
		model.PayMpesa: payment.NewMpesaClient(cfg.MPesa),
		model.PayCard:  paystack,
	}

	tokens := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.ExpirationHours)*time.Hour)

	invService := service.NewInventoryService(inventoryRepo, movementRepo, productRepo, db, bus, invMetrics, log)
	webhookService := service.NewWebhookService(
		orderRepo,
		service.NewReconciliationService(orderRepo),
		invService,
		paystack,
		idempotency,
		cfg.Paystack.WebhookIdempotencyTTL,
		bus,
		payMetrics,
		log,
	)
	health := func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}

	deps := handler.Deps{
		AppName:       cfg.App.Name,
		Log:           log,
		Auth:          service.NewAuthService(userRepo, tokens, bus),
		Users:         service.NewUserService(userRepo, privilegeRepo, roleRepo),
		Products:      service.NewProductService(productRepo, inventoryRepo, db, bus),
		Inventory:     invService,
		Orders:        service.NewOrderService(orderRepo, productRepo, inventoryRepo, userRepo, invService, db, rate, bus, log),
		Payments:      service.NewPaymentService(orderRepo, invService, providers, bus, payMetrics, log),
		Webhooks:      webhookService,
		Commissions:   service.NewCommissionService(userRepo, orderRepo, rate, bus, log),
		Dashboard:     service.NewDashboardService(movementRepo),
		Hub:           wsHub,
		RateStore:     rateStore,
		PaymentPolicy: middleware.NewRateLimitPolicy("payments", cfg.RateLimit.PaymentWindow, cfg.RateLimit.PaymentLimit),
		Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Health:        health,
	}

	// 6. Setup Fiber
	app := handler.NewApp(deps)

	// 7. Graceful Shutdown
	listenErr := make(chan error, 1)
	go func() {
		log.Info(log.WithField(ctx, "port", cfg.App.Port), "server listening")
		listenErr <- app.Listen(":" + cfg.App.Port)
	}()

	select {
	case err := <-listenErr:
		return err
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down server")
	shutdownErr := app.ShutdownWithTimeout(10 * time.Second)
	if kafkaPub != nil {
		kafkaPub.WaitClosed()
	}
	if redisClient != nil {
		shutdownErr = multierr.Append(shutdownErr, redisClient.Close())
	}
	if sqlDB, err := db.DB(); err == nil {
		shutdownErr = multierr.Append(shutdownErr, sqlDB.Close())
	}
	if shutdownErr != nil {
		return fmt.Errorf("shutdown: %w", shutdownErr)
	}

	log.Info(context.Background(), "server exited")
	return nil
}
