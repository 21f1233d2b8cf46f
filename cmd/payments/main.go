package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/integrations/nrecho-v4"
	"github.com/piresc/topup/internal/pkg/circuitbreaker"
	"github.com/piresc/topup/internal/pkg/config"
	"github.com/piresc/topup/internal/pkg/database"
	"github.com/piresc/topup/internal/pkg/health"
	httpclient "github.com/piresc/topup/internal/pkg/http"
	"github.com/piresc/topup/internal/pkg/logger"
	"github.com/piresc/topup/internal/pkg/middleware"
	"github.com/piresc/topup/internal/pkg/nats"
	nrpkg "github.com/piresc/topup/internal/pkg/newrelic"
	"github.com/piresc/topup/internal/pkg/nsq"
	"github.com/piresc/topup/services/payments/gateway"
	"github.com/piresc/topup/services/payments/handler"
	"github.com/piresc/topup/services/payments/repository"
	"github.com/piresc/topup/services/payments/usecase"
)

func main() {
	appName := "payments-service"
	configPath := "config/payments.env"
	configs := config.InitConfig(configPath)

	// Initialize New Relic and Zap logger
	nrApp := nrpkg.InitNewRelic(configs)

	zapLogger, err := logger.InitZapLoggerFromConfig(configs, nrApp)
	if err != nil {
		log.Fatalf("Failed to create Zap logger: %v", err)
	}
	defer zapLogger.Close()

	logger.SetGlobalLogger(zapLogger)

	logger.Info("Starting application",
		logger.String("app", appName),
		logger.String("version", configs.App.Version),
		logger.String("environment", configs.App.Environment),
	)

	// Initialize PostgreSQL database connection
	postgresClient, err := database.NewPostgresClient(configs.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to PostgreSQL", logger.Err(err))
	}
	defer postgresClient.Close()

	// Initialize Redis client
	redisClient, err := database.NewRedisClient(configs.Redis)
	if err != nil {
		zapLogger.Fatal("Failed to connect to Redis", logger.Err(err))
	}
	defer redisClient.Close()

	healthService := health.NewHealthService()
	healthService.AddChecker("postgres", health.PingChecker(postgresClient))
	healthService.AddChecker("redis", health.PingChecker(redisClient))

	// Initialize the event broker
	var publisher gateway.Publisher
	switch configs.Events.Broker {
	case "nsq":
		producer, err := nsq.NewProducer(configs.NSQ.Address)
		if err != nil {
			zapLogger.Fatal("Failed to connect to NSQ", logger.Err(err))
		}
		defer producer.Stop()
		publisher = producer
		logger.Info("NSQ producer initialized", logger.String("address", configs.NSQ.Address))
	default:
		natsClient, err := nats.NewClient(configs.NATS.URL)
		if err != nil {
			zapLogger.Fatal("Failed to connect to NATS", logger.Err(err))
		}
		defer natsClient.Close()
		publisher = natsClient
		healthService.AddChecker("nats", health.ConnectionChecker("nats", natsClient))
		logger.Info("NATS client initialized",
			logger.String("url", configs.NATS.URL),
			logger.Bool("connected", natsClient.IsConnected()))
	}

	// Payment gateway guarded by a circuit breaker
	breakerConfig := circuitbreaker.DefaultConfig("payment-gateway")
	breakerConfig.IsFailure = httpclient.IsServerFailure
	breaker := circuitbreaker.New(breakerConfig, zapLogger)
	healthService.AddChecker("payment_gateway", health.BreakerChecker(breaker))

	// Initialize gateways
	paymentGW := gateway.NewPaystackGW(configs.Gateway, breaker)
	eventGW := gateway.NewEventGW(publisher)

	// Initialize repositories
	txRepo := repository.NewTransactionRepository(configs, postgresClient.GetDB(), nil)
	balanceRepo := repository.NewBalanceRepository(configs, postgresClient.GetDB())
	statusCache := repository.NewStatusCache(configs, redisClient)

	// Initialize usecase
	paymentUC, err := usecase.NewPaymentUC(configs, txRepo, balanceRepo, paymentGW, eventGW, statusCache)
	if err != nil {
		zapLogger.Fatal("Failed to initialize payment use case", logger.Err(err))
	}

	paymentHandler := handler.NewHandler(paymentUC, configs)

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true
	if configs.Server.ReadTimeout > 0 {
		e.Server.ReadTimeout = time.Duration(configs.Server.ReadTimeout) * time.Second
	}
	if configs.Server.WriteTimeout > 0 {
		e.Server.WriteTimeout = time.Duration(configs.Server.WriteTimeout) * time.Second
	}

	// Add middlewares (panic recovery should be first)
	e.Use(middleware.PanicRecoveryWithZapMiddleware(zapLogger))
	if nrApp != nil {
		e.Use(nrecho.Middleware(nrApp))
	}
	e.Use(middleware.RequestIDMiddleware())
	e.Use(logger.ZapEchoMiddleware(zapLogger))

	health.RegisterEnhancedHealthEndpoints(e, appName, configs.App.Version, healthService)
	paymentHandler.RegisterRoutes(e, redisClient)

	// Start server in goroutine
	go func() {
		addr := fmt.Sprintf("%s:%d", configs.Server.Host, configs.Server.Port)
		zapLogger.Info("Starting HTTP server",
			logger.String("address", addr),
			logger.String("app", appName))

		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", logger.Err(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	zapLogger.Info("Received shutdown signal", logger.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(configs.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	zapLogger.Info("Shutting down HTTP server...")
	if err := e.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", logger.Err(err))
	}

	if nrApp != nil {
		zapLogger.Info("Shutting down New Relic...")
		nrApp.Shutdown(10 * time.Second)
	}

	zapLogger.Info("Server exiting gracefully")
	_ = zapLogger.Sync()
}
