package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"main/internal/bus"
	"main/internal/codec"
	"main/internal/guard"
	"main/internal/journal"
	"main/internal/lifecycle"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/schema"
	"main/internal/tracker"
	"main/internal/venue"

	"github.com/yanun0323/logs"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("oms: %v", err)
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
	if err := loaded.RequireCredentials(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profiler, err := obs.StartProfiler("oms", loaded.Profiling.ServerAddress)
	if err != nil {
		return err
	}
	if profiler != nil {
		defer func() { _ = profiler.Stop() }()
	}

	go obs.Serve(loaded.Metrics.Addr)

	publisher := bus.NewProducer(loaded.Kafka.Brokers, loaded.Kafka.ExecutionTopic)
	defer publisher.Close()

	var store lifecycle.Journal
	if loaded.Database.DSN != "" {
		s, err := journal.Open(loaded.Database.DSN)
		if err != nil {
			return err
		}
		store = s
	}

	var mgr *lifecycle.Manager
	fills := tracker.NewFillBuffer()
	account := &tracker.Account{}

	client := venue.NewClient(ctx, venue.Config{
		ApiKey:     loaded.Credentials.ApiKey,
		SecretKey:  loaded.Credentials.SecretKey,
		Passphrase: loaded.Credentials.Passphrase,
		Instrument: loaded.Trading.Instrument,
		WsURL:      loaded.Trading.PrivateWsURL,
	}, venue.Handlers{
		OnFill: fills.Ingest,
		OnVenueAck: func(stateID uint32, venueOrderID string) {
			if err := mgr.SubmitVenueAck(stateID, venueOrderID); err != nil {
				logs.Errorf("venue ack dropped: %v", err)
			}
		},
		OnCancelAck: func(venueOrderID string) {
			if err := mgr.SubmitCancelAck(venueOrderID); err != nil {
				logs.Errorf("cancel ack dropped: %v", err)
			}
		},
		OnBalance: func(balance float64) {
			account.SetBalance(balance)
			obs.SetAccountBalance(balance)
		},
		OnUplRatio: account.ObserveUplRatio,
	})
	defer client.Close()

	g, err := guard.New(loaded.Trading.MarginFraction)
	if err != nil {
		return err
	}

	trk := tracker.New(client)
	mgr = lifecycle.New(lifecycle.Config{
		Instrument: loaded.Trading.Instrument,
		TradeMode:  loaded.Trading.TradeMode,
	}, g, trk, account, client, publisher, store)

	if err := client.StartWebsocket(ctx); err != nil {
		return err
	}
	if err := client.Login(ctx); err != nil {
		return err
	}
	if err := client.SubscribeAll(ctx); err != nil {
		return err
	}
	go client.Observe(ctx)

	logs.Infof("waiting for account balance")
	if err := client.WaitBalance(ctx); err != nil {
		return err
	}

	consumer := bus.NewConsumer(loaded.Kafka.Brokers, loaded.Kafka.ActionTopic, loaded.Kafka.ConsumerGroup)
	defer consumer.Close()

	go consumer.Run(ctx, func(payload []byte) {
		action, err := codec.DecodeActionV2(payload)
		if err != nil {
			logs.Errorf("decode action failed: %v", err)
			return
		}
		if err := mgr.SubmitAction(action); err != nil {
			logs.Errorf("action dropped: %v", err)
		}
	})

	go fills.Run(ctx, func(fill schema.FillNotification) {
		if err := mgr.SubmitFill(fill); err != nil {
			logs.Errorf("fill dropped: %v", err)
		}
	})

	logs.Infof("oms running for %s", loaded.Trading.Instrument)
	mgr.Run(ctx)
	return nil
}
