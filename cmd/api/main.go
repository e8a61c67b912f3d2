package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/beckings/shop-orders/internal/config"
	"github.com/beckings/shop-orders/internal/httpx"
	kafkax "github.com/beckings/shop-orders/internal/kafka"
	"github.com/beckings/shop-orders/internal/orders"
	"github.com/beckings/shop-orders/internal/postgres"
	"github.com/beckings/shop-orders/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel, cfg.ServiceName)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("store", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	placed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024)
	placed.Start(ctx)
	changed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024)
	changed.Start(ctx)

	router := httpx.NewRouter(logger)
	oh := &httpx.OrdersHandler{
		Store:         store,
		Placer:        orders.NewPlacer(store),
		Placed:        placed,
		StatusChanged: changed,
		Cache:         &redisx.StatusCache{RDB: rdb},
		Idem:          &redisx.Idempotency{RDB: rdb},
		Service:       cfg.ServiceName,
	}
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	placed.Close()
	changed.Close()
	cancel()
	placed.WaitClosed()
	changed.WaitClosed()
}

func openStore(ctx context.Context, cfg config.Config) (orders.Store, func(), error) {
	switch cfg.StoreDriver {
	case "memory":
		return seedMemory(), func() {}, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return &orders.Repo{DB: db}, db.Close, nil
	default:
		return nil, nil, errors.New("unknown STORE_DRIVER " + cfg.StoreDriver)
	}
}

// seedMemory gives the in-process store something to sell in local runs.
func seedMemory() *orders.MemoryStore {
	m := orders.NewMemoryStore()
	now := time.Now().UTC()
	m.PutProduct(orders.Product{
		ID: "demo-widget", Name: "Widget", Slug: "widget", Description: "demo product",
		Price: decimal.RequireFromString("9.99"), Quantity: 100, Active: true,
		CreatedAt: now, UpdatedAt: now,
	})
	m.PutUser(orders.User{ID: "demo-user", Username: "demo", Email: "demo@example.com", Active: true})
	m.PutUser(orders.User{ID: "demo-staff", Username: "staff", Email: "staff@example.com", Active: true, Staff: true})
	return m
}
