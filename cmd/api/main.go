package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"inkwell/api/internal/app"
	"inkwell/api/internal/config"
	"inkwell/api/internal/export"
	"inkwell/api/internal/registry"
	"inkwell/api/internal/revisions"
	"inkwell/api/internal/search"
	"inkwell/api/internal/session"
	"inkwell/api/internal/store"
	"inkwell/api/internal/uploads"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.RevisionsDir, 0o755); err != nil {
		log.Fatalf("failed to create revisions dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	revisionLog := revisions.New(cfg.RevisionsDir)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)
	searchService.ReindexAllFromPG(ctx)

	var activeRegistry *registry.RedisRegistry
	if strings.TrimSpace(cfg.RedisURL) != "" {
		activeRegistry, err = registry.NewRedisRegistry(cfg.RedisURL)
		if err != nil {
			log.Printf("WARNING: redis unavailable, active-document registry disabled: %v", err)
		} else {
			defer activeRegistry.Close()
		}
	}

	var uploader session.Uploader
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		uploadService, err := uploads.New(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
			cfg.MinioSecretKey, cfg.MinioBucket, cfg.UploadBaseURL, cfg.MinioUseSSL)
		if err != nil {
			log.Printf("WARNING: minio unavailable, uploads disabled: %v", err)
		} else {
			uploader = uploadService
		}
	}

	var exporter app.Exporter
	if strings.TrimSpace(cfg.ChromeURL) != "" {
		exporter = export.NewService(cfg.ChromeURL)
	}

	service := app.NewService(app.Options{
		Store:            dataStore,
		Registry:         activeRegistry,
		Uploader:         uploader,
		Search:           searchService,
		Revisions:        revisionLog,
		Exporter:         exporter,
		AppBaseURL:       cfg.AppBaseURL,
		ShareSecret:      []byte(cfg.ShareSecret),
		ShareTTL:         cfg.ShareTTL,
		DirtyDebounce:    cfg.DirtyDebounce,
		AutosaveDebounce: cfg.AutosaveDebounce,
		MarkViewedDelay:  cfg.MarkViewedDelay,
	})

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Inkwell API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	service.Shutdown(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
