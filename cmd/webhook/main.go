package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"example.com/stravbit/internal/api"
	"example.com/stravbit/internal/auth"
	"example.com/stravbit/internal/config"
	httptransport "example.com/stravbit/internal/transport/http"
	"example.com/stravbit/internal/trigger"
)

func main() {
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var dispatcher trigger.Dispatcher
	switch cfg.DispatchMode {
	case "kafka":
		producer := trigger.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()
		dispatcher = trigger.NewKafkaDispatcher(producer, cfg.SyncTopic, cfg.DispatchEvent)
	case "github":
		dispatcher = trigger.NewGitHubDispatcher(cfg.GitHubAPIURL, cfg.GitHubToken, cfg.GitHubRepo, cfg.DispatchEvent, cfg.HTTPTimeout)
	default:
		log.Fatalf("unknown DISPATCH_MODE %q", cfg.DispatchMode)
	}
	if cfg.VerifyToken == "" {
		log.Printf("STRAVA_VERIFY_TOKEN is empty; subscription handshakes will be rejected")
	}
	if cfg.JWTSecret == "" {
		log.Printf("JWT_SECRET is empty; /v1/syncs will reject every request")
	}

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	handler := api.NewHandler(dispatcher, cfg.VerifyToken, authMiddleware, api.WithMaxBodyBytes(int64(cfg.MaxBodyBytes)))

	serverCfg := httptransport.DefaultServerConfig(cfg.HTTPAddress)
	server := httptransport.NewServer(serverCfg, handler.Routes())

	logger := log.New(log.Writer(), "[webhook] ", log.LstdFlags|log.Lmsgprefix)
	if err := httptransport.Serve(ctx, serverCfg, server, logger); err != nil {
		log.Printf("server error: %v", err)
	}
}
