/*
Package main is the entry point for the VTT server.

It is responsible for loading configuration, initializing the global logging system,
constructing the room engine and optional map storage, setting up the HTTP server,
and gracefully handling operating system interrupt signals (SIGINT, SIGTERM).
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"vttcore/internal/app/room"
	"vttcore/internal/app/session"
	"vttcore/internal/app/storage"
	"vttcore/internal/configs"
	"vttcore/internal/handler"
	"vttcore/internal/pkg/logx"
)

func main() {
	// A missing .env is fine; the process environment still applies.
	envErr := godotenv.Load()

	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment())
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logx.Warn("Failed to read .env file", "error", envErr.Error())
	}
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Bool("storage_enabled", cfg.StorageEnabled()).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := session.NewEngine(room.NewStore(), session.Options{
		MaxMessageBytes: cfg.MaxMessageBytes,
	})

	deps := &handler.AppDeps{
		Engine: engine,
		Config: cfg,
	}

	if cfg.StorageEnabled() {
		store, err := storage.NewS3Store(ctx, storage.ServiceConfig{
			S3BucketName:      cfg.S3BucketName,
			S3Endpoint:        cfg.S3Endpoint,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
			S3Region:          cfg.S3Region,
		})
		if err != nil {
			logx.Fatal(err, "Failed to initialize map storage")
		}
		deps.Storage = store
	}

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           handler.Router(ctx, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logx.Info("VTT server starting", "addr", serverAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	// Hijacked socket connections are not tracked by the server.
	engine.Shutdown()

	logx.Info("Server gracefully stopped.")
}
