package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/beckings/shop-orders/internal/config"
	kafkax "github.com/beckings/shop-orders/internal/kafka"
	"github.com/beckings/shop-orders/internal/orders"
	"github.com/beckings/shop-orders/internal/projector"
	"github.com/beckings/shop-orders/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	name := cfg.ServiceName + "-projector"
	logger := config.NewLogger(cfg.LogLevel, name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &projector.Service{
		Dedup:       &redisx.Deduper{RDB: rdb},
		Cache:       &redisx.StatusCache{RDB: rdb},
		ServiceName: name,
	}

	topics := []string{orders.TopicOrderPlaced, orders.TopicOrderStatusChanged}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, topics, cfg.ProjectorWorkers)

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("projector started", "group", cfg.ProjectorGroup, "topics", topics, "workers", cfg.ProjectorWorkers)
		if err := cons.Start(ctx, svc.HandleOrderEvent); err != nil {
			logger.Error("consumer exit", "err", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down projector")
	cancel()
	<-done
}
