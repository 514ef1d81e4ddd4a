package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kibook/order-engine/internal/books"
	"github.com/kibook/order-engine/internal/config"
	"github.com/kibook/order-engine/internal/httpx"
	"github.com/kibook/order-engine/internal/identity"
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
	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicCheckoutCompleted, 1024, log)
	prod.Start(ctx)

	// Services & handlers
	store := &orders.Repo{DB: db}
	catalog := &books.Repo{DB: db}
	resolver := identity.NewResolver([]byte(cfg.SessionJWTSecret), &identity.RedisPhoneSessions{Client: rdb})

	api := &httpx.API{
		Cart:     orders.NewCartService(store, catalog, log),
		Checkout: orders.NewCheckoutService(store, prod, cfg.ServiceName, log),
		Books:    catalog,
		Resolver: resolver,
		Redis:    rdb,
		Log:      log,
	}
	router := httpx.NewRouter()
	api.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // stop intake -> flush & close writer
	cancel()
	prod.WaitClosed()
}
