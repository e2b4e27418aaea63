package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"example.com/stravbit/internal/config"
	"example.com/stravbit/internal/consumer"
	"example.com/stravbit/internal/relay"
	httptransport "example.com/stravbit/internal/transport/http"
)

func main() {
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	service, closeStore, err := relay.NewService(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build sync service: %v", err)
	}
	defer closeStore()

	metricsCfg := httptransport.DefaultServerConfig(cfg.MetricsAddress)
	metricsSrv := httptransport.NewServer(metricsCfg, promhttp.Handler())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger := log.New(log.Writer(), "[metrics] ", log.LstdFlags|log.Lmsgprefix)
		if err := httptransport.Serve(ctx, metricsCfg, metricsSrv, logger); err != nil {
			log.Printf("metrics server error: %v", err)
		}
	}()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.ConsumerGroup,
		Topic:           cfg.SyncTopic,
		MinBytes:        1,
		MaxBytes:        10e6,
		CommitInterval:  time.Second,
		RetentionTime:   24 * time.Hour,
		ReadLagInterval: -1,
	})
	defer reader.Close()

	proc := consumer.NewProcessor(reader, consumer.NewSyncHandler(service))

	log.Printf("consumer started (topic=%s, group=%s)", cfg.SyncTopic, cfg.ConsumerGroup)
	if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("consumer stopped with error: %v", err)
	}
	log.Println("consumer shutdown requested")

	wg.Wait()
}
