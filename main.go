package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	cfg := loadConfig()

	store, err := newPrincipalStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("open principal store: %v", err)
	}

	srv := &server{
		cfg:   cfg,
		store: store,
		dns:   newDNSManager(newBindBackend(cfg), cfg),
		start: time.Now().UTC(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("managing zone %s against %s, http listening on %s",
		cfg.AllowedZone, cfg.BindServer, cfg.HTTPListen)

	if err := srv.runHTTP(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server failed: %v", err)
	}
}
