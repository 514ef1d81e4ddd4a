package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kibook/order-engine/internal/bookgen"
	"github.com/kibook/order-engine/internal/config"
	kafkax "github.com/kibook/order-engine/internal/kafka"
	"github.com/kibook/order-engine/internal/observability"
	"github.com/kibook/order-engine/internal/orders"
	"github.com/kibook/order-engine/internal/postgres"
	"github.com/kibook/order-engine/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := observability.NewLogger()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producer: content.generated
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicContentGenerated, 1024, log)
	prod.Start(ctx)

	// Service
	svc := &bookgen.Service{
		Store:       &orders.Repo{DB: db},
		Redis:       rdb,
		Producer:    prod,
		Generator:   bookgen.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel),
		ServiceName: cfg.ServiceName + "-bookgen",
		Log:         log,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.BookgenGroup, orders.TopicCheckoutCompleted, cfg.BookgenWorkers, log)

	go func() {
		log.Info("bookgen consumer started",
			zap.String("group", cfg.BookgenGroup),
			zap.String("topic", orders.TopicCheckoutCompleted),
			zap.Int("workers", cfg.BookgenWorkers))
		if err := cons.Start(ctx, svc.HandleCheckoutCompleted); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down consumer")
	cancel()
	time.Sleep(500 * time.Millisecond)
	prod.Close()
	prod.WaitClosed()
}
