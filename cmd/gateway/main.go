package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vendora.app/internal/backend"
	"vendora.app/internal/config"
	"vendora.app/internal/httpapi"
	"vendora.app/internal/obs"
	"vendora.app/internal/store"
	"vendora.app/internal/store/pg"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("VENDORA_COMMIT"))

	cfg := config.FromEnv()

	// Session records live in postgres when a DSN is configured, otherwise
	// in memory (dev mode: sessions do not survive a restart).
	var (
		records store.SessionStore
		probe   httpapi.ReadyProbe
		pgStore *pg.Store
	)
	if cfg.PostgresDSN != "" {
		var err error
		pgStore, err = pg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open postgres: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			cancel()
			log.Fatalf("ensure schema: %v", err)
		}
		cancel()
		records = pgStore
		probe = httpapi.ReadyProbe{Store: pgStore}
	} else {
		records = store.NewMemory()
	}

	bc := backend.New(cfg.BackendURL, cfg.Tenant)
	api := httpapi.New(cfg, bc, records, probe, version)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting vendora-gateway %s on %s (backend %s, tenant %s)",
		version, srv.Addr, cfg.BackendURL, cfg.Tenant)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}
