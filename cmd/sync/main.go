package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"example.com/stravbit/internal/config"
	"example.com/stravbit/internal/relay"
	"example.com/stravbit/internal/trigger"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	activityID, err := trigger.ResolveActivityID(cfg.EventPath, cfg.TestActivityID)
	if err != nil {
		log.Printf("sync failed: %v", err)
		return 1
	}

	service, closeStore, err := relay.NewService(ctx, cfg)
	if err != nil {
		log.Printf("sync failed: %v", err)
		return 1
	}
	defer closeStore()

	out := service.Sync(ctx, activityID)
	if !out.OK() {
		log.Printf("sync failed: %v", out.Err)
		return 1
	}

	log.Printf("synced activity %q (fitbit log_id=%d)", out.ActivityName, out.Record.LogID())
	return 0
}
