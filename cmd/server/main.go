package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parley-chat/parley/internal/handlers"
	"github.com/parley-chat/parley/internal/services"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.slogLevel(),
	}))

	runtime := services.NewOllama(cfg.Upstream)

	var vision handlers.Vision
	if cfg.visionEnabled() {
		vision = services.NewVision(cfg.Vision.APIKey, cfg.Vision.BaseURL, cfg.Vision.Model, logger)
	}

	m := handlers.NewMain(cfg.Upstream, runtime, vision, handlers.UploadConfig{
		Dir:      cfg.Uploads.Dir,
		MaxBytes: cfg.Uploads.MaxBytes,
	}, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", m.HandleChat)
	mux.HandleFunc("/api/health", m.HandleHealth)
	mux.HandleFunc("/api/models", m.HandleModels)
	mux.HandleFunc("/api/search", m.HandleSearch)
	mux.HandleFunc("/api/ssh", m.HandleSSH)
	mux.HandleFunc("/api/vision", m.HandleVision)
	mux.HandleFunc("/api/upload", m.HandleUpload)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Nightly-style purge of stale uploads, running until shutdown.
	stopPurge := make(chan struct{})
	defer close(stopPurge)
	go func() {
		ticker := time.NewTicker(cfg.Uploads.PurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := m.PurgeOldUploads(cfg.Uploads.Retention); err != nil {
					logger.Error("Upload purge failed", slog.String("err", err.Error()))
				}
			case <-stopPurge:
				return
			}
		}
	}()

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("Server starting",
			slog.String("port", cfg.Port),
			slog.String("upstream", cfg.Upstream))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("Server error", slog.String("err", err.Error()))

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String("err", err.Error()))
			}
		}
	}
}
