/*
Package main is the entry point for the Listen Together coordination server.

It is responsible for loading configuration, initializing the global logging system,
opening the moderation store, starting the room manager, setting up the HTTP server,
and gracefully handling operating system interrupt signals (SIGINT, SIGTERM)
to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"listentogether/internal/app/moderation"
	"listentogether/internal/app/room"
	"listentogether/internal/configs"
	"listentogether/internal/handler"
	"listentogether/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	if err := logx.SetLevel(cfg.LogLevel); err != nil {
		logx.Fatal(err, "Invalid LOG_LEVEL")
	}
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("moderation_driver", cfg.ModerationDriver).
		Dur("pending_ttl", cfg.PendingTTL).
		Dur("reconnect_grace", cfg.ReconnectGrace).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := moderation.Open(cfg)
	if err != nil {
		logx.Fatal(err, "Failed to open moderation store", "driver", cfg.ModerationDriver)
	}
	defer store.Close()

	manager := room.NewManager(store, room.OptionsFromConfig(cfg))

	router := handler.Router(&handler.AppDeps{
		Manager: manager,
		Config:  cfg,
		Store:   store,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Listen Together Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	manager.Shutdown()

	logx.Info("Server gracefully stopped.")
}
