package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vidtube/internal/api"
	"vidtube/internal/config"
	"vidtube/internal/db"
	"vidtube/internal/media"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting server", "name", cfg.Server.Name)

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.Info("database opened", "path", cfg.Database.Path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	uploader, localMedia, err := newMediaStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize media storage", "error", err)
		os.Exit(1)
	}
	slog.Info("media storage initialized", "driver", cfg.Media.Driver, "upload_max_bytes", cfg.Storage.UploadMaxBytes)

	cleanupService := media.NewCleanupService(cfg.Storage.TempDir, cfg.Storage.TempFileMaxAge)
	go cleanupService.Start(ctx)

	server := api.NewServer(cfg, database, uploader, localMedia)

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", addr, "base_url", cfg.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// newMediaStore builds the configured media host. The local store is also
// returned on its own so the server can expose /media/*.
func newMediaStore(ctx context.Context, cfg *config.Config) (media.Uploader, *media.LocalStore, error) {
	if cfg.Media.Driver == config.MediaDriverS3 {
		store, err := media.NewS3Store(ctx, cfg.Media.S3)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}

	store, err := media.NewLocalStore(cfg.Media.Local.Root, cfg.Server.BaseURL)
	if err != nil {
		return nil, nil, err
	}
	return store, store, nil
}
