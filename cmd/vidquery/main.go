package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vidquery/vidquery/internal/backend"
	"github.com/vidquery/vidquery/internal/config"
	"github.com/vidquery/vidquery/internal/geoip"
	"github.com/vidquery/vidquery/internal/server"
	"github.com/vidquery/vidquery/internal/session"
	"github.com/vidquery/vidquery/internal/storage"
)

const sessionSweepInterval = 10 * time.Minute

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults to $VIDQUERY_CONFIG)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}
	slog.SetDefault(slog.New(cfg.Log.Handler(os.Stderr)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := backend.New(backend.Config{
		BaseURL: cfg.Backend.URL,
		APIKey:  cfg.Backend.APIKey,
		Timeout: cfg.Backend.Timeout,
	})

	var (
		blobs  server.BlobSource
		pinger server.Pinger
	)
	if cfg.Storage.Enabled() {
		store, err := storage.New(ctx, storage.Config{
			Endpoint:       cfg.Storage.Endpoint,
			Bucket:         cfg.Storage.Bucket,
			AccessKey:      cfg.Storage.AccessKey,
			SecretKey:      cfg.Storage.SecretKey,
			Region:         cfg.Storage.Region,
			MaxUploadBytes: cfg.MaxUploadBytes,
		})
		if err != nil {
			log.Fatalf("storage initialization failed: %v", err)
		}
		if err := store.Ping(ctx); err != nil {
			log.Fatalf("storage bucket check failed: %v", err)
		}
		blobs, pinger = store, store
		log.Printf("storage import enabled (bucket %s)", cfg.Storage.Bucket)
	}

	var webFS fs.FS
	if cfg.StaticDir != "" {
		if info, err := os.Stat(cfg.StaticDir); err != nil || !info.IsDir() {
			log.Fatalf("STATIC_DIR %s is not a directory", cfg.StaticDir)
		}
		webFS = os.DirFS(cfg.StaticDir)
		log.Printf("serving frontend from %s", cfg.StaticDir)
	}

	locator := geoip.Open(cfg.GeoIPDB)
	defer func() { _ = locator.Close() }()

	registry := session.NewRegistry(session.Config{
		Backend:        client,
		Locator:        locator,
		Secret:         cfg.Session.Secret,
		TTL:            cfg.Session.TTL,
		SearchTopK:     cfg.SearchTopK,
		BannerDuration: cfg.BannerDuration(),
		SecureCookies:  cfg.SecureCookies(),
	})

	srv := server.New(server.Config{
		Sessions:       registry,
		Storage:        blobs,
		Pinger:         pinger,
		WebFS:          webFS,
		BaseURL:        cfg.BaseURL,
		MediaOrigin:    origin(cfg.Backend.URL),
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go registry.Run(bgCtx, sessionSweepInterval)
	srv.RunLimiters(bgCtx)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("vidquery listening on :%s (backend %s)", cfg.Port, cfg.Backend.URL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-shutdownCh
	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}
	bgCancel()
	registry.Close()
	log.Println("shutdown complete")
}

// origin reduces a URL to scheme://host for the content security policy.
func origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
