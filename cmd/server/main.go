package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"assetmatcher/classification"
	"assetmatcher/database"
	"assetmatcher/internal/config"
	"assetmatcher/internal/infrastructure/ai"
	"assetmatcher/server"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	setupLogger(cfg.LogLevel)

	serviceDB, err := database.NewServiceDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer serviceDB.Close()

	client := buildProviderClient(cfg)
	if !client.IsEnabled() {
		log.Printf("[Server] Warning: AI provider %s has no API key, disambiguation will fail", client.GetProviderName())
	}
	selector := classification.NewAssetDisambiguator(client, cfg.AITimeout, slog.Default())

	srv, err := server.NewServer(cfg, serviceDB, selector)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	// Graceful shutdown по SIGINT/SIGTERM
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("[Server] Shutdown error: %v", err)
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

// buildProviderClient выбирает AI провайдера согласно конфигурации
func buildProviderClient(cfg *config.Config) ai.ProviderClient {
	switch cfg.Provider {
	case "openrouter":
		client := ai.NewOpenRouterClient(cfg.OpenRouterAPIKey, cfg.OpenRouterModel)
		client.SetRateLimit(cfg.AIRateLimit)
		client.SetMaxRetries(cfg.AIMaxRetries)
		return client
	default:
		client := ai.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		client.SetRateLimit(cfg.AIRateLimit)
		client.SetMaxRetries(cfg.AIMaxRetries)
		return client
	}
}

func setupLogger(level string) {
	var slogLevel slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		slogLevel = slog.LevelDebug
	case "WARN":
		slogLevel = slog.LevelWarn
	case "ERROR":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(handler))
}
