// cmd/sentinel/main.go
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/khellaf-bel/energy-sentinel/internal/api"
	"github.com/khellaf-bel/energy-sentinel/internal/config"
	"github.com/khellaf-bel/energy-sentinel/internal/detector"
	"github.com/khellaf-bel/energy-sentinel/internal/ingest"
	"github.com/khellaf-bel/energy-sentinel/internal/observability"
	"github.com/khellaf-bel/energy-sentinel/internal/publish"
	"github.com/khellaf-bel/energy-sentinel/internal/store"
)

func main() {
	cfg := config.Load()
	log := config.NewLogger(cfg)

	log.Info("starting energy-sentinel",
		slog.String("listen", cfg.ListenAddress),
		slog.String("data_file", cfg.DataFile),
		slog.Bool("kafka", cfg.KafkaEnabled))

	st, err := store.Open(cfg.DataFile, log)
	if err != nil {
		log.Error("store open failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer st.Close()

	metrics := observability.NewMetrics()

	engineCfg := detector.DefaultConfig()
	engineCfg.SigmaMultiplier = cfg.SigmaMultiplier
	engine := detector.NewEngine(engineCfg)

	publisher, err := publish.NewPublisher(publish.Config{
		Enabled: cfg.KafkaEnabled,
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
	}, log, metrics)
	if err != nil {
		log.Error("publisher init failed", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	publisher.Start(ctx)

	ingestor, err := ingest.NewMQTT(ingest.Config{
		Enabled:  cfg.MQTTEnabled,
		Broker:   cfg.MQTTBroker,
		Topic:    cfg.MQTTTopic,
		ClientID: cfg.MQTTClientID,
	}, log, metrics, st)
	if err != nil {
		log.Error("mqtt ingest init failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := ingestor.Start(); err != nil {
		log.Error("mqtt ingest start failed", slog.Any("err", err))
		os.Exit(1)
	}

	handlers := api.NewHandlers(log, st, engine, publisher, metrics)
	srv := api.NewServer(cfg.ListenAddress, log, handlers)

	go func() {
		if err := srv.Start(); err != nil {
			log.Error("http server error", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutdown requested")

	cancel()
	ingestor.Stop()
	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Warn("http shutdown err", slog.Any("err", err))
	}
	if err := publisher.Stop(shutdownCtx); err != nil {
		log.Warn("publisher shutdown err", slog.Any("err", err))
	}
	log.Info("bye")
}
