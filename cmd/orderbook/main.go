package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"main/internal/book"
	"main/internal/bus"
	"main/internal/feed"
	"main/internal/obs"
	"main/internal/ops"

	"github.com/yanun0323/logs"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("orderbook: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profiler, err := obs.StartProfiler("orderbook", loaded.Profiling.ServerAddress)
	if err != nil {
		return err
	}
	if profiler != nil {
		defer func() { _ = profiler.Stop() }()
	}

	go obs.Serve(loaded.Metrics.Addr)

	producer := bus.NewProducer(loaded.Kafka.Brokers, loaded.Kafka.OrderBookTopic)
	defer producer.Close()

	engine := book.NewEngine(producer)
	pub := feed.NewOkxPub(ctx, loaded.Book.PublicWsURL)
	defer pub.Close()

	logs.Infof("orderbook starting for %s", loaded.Book.Instrument)
	svc := feed.NewService(pub, engine, loaded.Book.Instrument)
	return svc.Start(ctx)
}
