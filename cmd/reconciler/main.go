package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/piresc/topup/internal/pkg/circuitbreaker"
	"github.com/piresc/topup/internal/pkg/config"
	"github.com/piresc/topup/internal/pkg/database"
	httpclient "github.com/piresc/topup/internal/pkg/http"
	"github.com/piresc/topup/internal/pkg/logger"
	"github.com/piresc/topup/internal/pkg/nats"
	nrpkg "github.com/piresc/topup/internal/pkg/newrelic"
	"github.com/piresc/topup/internal/pkg/nsq"
	"github.com/piresc/topup/services/payments"
	"github.com/piresc/topup/services/payments/gateway"
	"github.com/piresc/topup/services/payments/repository"
	"github.com/piresc/topup/services/payments/usecase"
)

func main() {
	configPath := flag.String("config", "config/payments.env", "path to the env file")
	once := flag.Bool("once", false, "run a single sweep and exit")
	interval := flag.Duration("interval", 5*time.Minute, "time between sweeps")
	flag.Parse()

	configs := config.InitConfig(*configPath)
	configs.App.Name = "payments-reconciler"

	nrApp := nrpkg.InitNewRelic(configs)
	zapLogger, err := logger.InitZapLoggerFromConfig(configs, nrApp)
	if err != nil {
		log.Fatalf("Failed to create Zap logger: %v", err)
	}
	defer zapLogger.Close()
	logger.SetGlobalLogger(zapLogger)

	postgresClient, err := database.NewPostgresClient(configs.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to PostgreSQL", logger.Err(err))
	}
	defer postgresClient.Close()

	// The status cache is optional here; without Redis the sweep still runs
	var statusCache payments.StatusCache
	redisClient, err := database.NewRedisClient(configs.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, running without status cache", logger.Err(err))
	} else {
		defer redisClient.Close()
		statusCache = repository.NewStatusCache(configs, redisClient)
	}

	var publisher gateway.Publisher
	switch configs.Events.Broker {
	case "nsq":
		producer, err := nsq.NewProducer(configs.NSQ.Address)
		if err != nil {
			zapLogger.Fatal("Failed to connect to NSQ", logger.Err(err))
		}
		defer producer.Stop()
		publisher = producer
	default:
		natsClient, err := nats.NewClient(configs.NATS.URL)
		if err != nil {
			zapLogger.Fatal("Failed to connect to NATS", logger.Err(err))
		}
		defer natsClient.Close()
		publisher = natsClient
	}

	breakerConfig := circuitbreaker.DefaultConfig("payment-gateway")
	breakerConfig.IsFailure = httpclient.IsServerFailure

	paymentUC, err := usecase.NewPaymentUC(
		configs,
		repository.NewTransactionRepository(configs, postgresClient.GetDB(), nil),
		repository.NewBalanceRepository(configs, postgresClient.GetDB()),
		gateway.NewPaystackGW(configs.Gateway, circuitbreaker.New(breakerConfig, zapLogger)),
		gateway.NewEventGW(publisher),
		statusCache,
	)
	if err != nil {
		zapLogger.Fatal("Failed to initialize payment use case", logger.Err(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweep := func() {
		report, err := paymentUC.ReconcileStale(ctx, time.Now().UTC())
		if err != nil {
			logger.Error("Reconciliation sweep failed", logger.Err(err))
			return
		}
		logger.Info("Reconciliation sweep finished",
			logger.Int("scanned", report.Scanned),
			logger.Int("errors", report.Errors))
	}

	if *once {
		sweep()
		return
	}

	logger.Info("Starting reconciler", logger.Duration("interval", *interval))
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	sweep()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Reconciler stopping")
			return
		case <-ticker.C:
			sweep()
		}
	}
}
