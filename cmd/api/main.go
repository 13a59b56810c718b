package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"appforge/internal/artifact"
	"appforge/internal/gateway/config"
	"appforge/internal/gateway/handler"
	"appforge/internal/gateway/server"
	"appforge/internal/llm"
	llmclient "appforge/internal/llmclient"
	"appforge/internal/orchestrator"
	"appforge/internal/sandbox"
	"appforge/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	registry := llm.NewInMemoryModelRegistry()
	if err := llmclient.RegisterGeminiModelsForTier(registry, cfg.LLMTier); err != nil {
		log.Fatalf("register gemini models: %v", err)
	}
	if err := llmclient.RegisterGroqModels(registry); err != nil {
		log.Fatalf("register groq models: %v", err)
	}

	messageStore := store.NewFromEnv(cfg.MessageStore.FilePath)
	defer messageStore.Close()

	var snaps orchestrator.Snapshotter
	if cfg.Artifact.Enabled {
		s3, err := artifact.NewS3Store(artifact.S3Config{
			Endpoint:  cfg.Artifact.Endpoint,
			Region:    cfg.Artifact.Region,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			UseSSL:    cfg.Artifact.UseSSL,
		})
		if err != nil {
			log.Printf("artifact store disabled: %v", err)
		} else {
			snaps = s3
		}
	}

	sandboxes := sandbox.NewRegistry(func(ctx context.Context) (sandbox.Provider, error) {
		return sandbox.NewLocalTemp()
	})
	defer sandboxes.TerminateAll(context.Background())

	orch := orchestrator.New(registry, sandboxes, messageStore, snaps, orchestrator.DefaultOptions())

	srv := server.New(cfg.Port, server.NewMux(handler.NewGenerateHandler(orch)))

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
