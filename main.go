package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/naavyaberiwal-glitch/myAI3/internal/adapter/model"
	"github.com/naavyaberiwal-glitch/myAI3/internal/config"
	"github.com/naavyaberiwal-glitch/myAI3/internal/moderation"
	"github.com/naavyaberiwal-glitch/myAI3/internal/orchestrator"
	"github.com/naavyaberiwal-glitch/myAI3/internal/telemetry"
	"github.com/naavyaberiwal-glitch/myAI3/internal/tools"
	transport "github.com/naavyaberiwal-glitch/myAI3/internal/transport/http"
)

func main() {
	// Load configuration
	cfg := config.Load()

	if err := telemetry.InitLogger(cfg.LogFile); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	log.Printf("Starting chat server...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Model URL: %s", cfg.ModelURL)
	log.Printf("Max steps per turn: %d", cfg.MaxSteps)

	ctx := context.Background()

	tracer, meter, telemetryCleanup, err := telemetry.InitTelemetry(ctx, "logs")
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer telemetryCleanup()

	// Initialize moderation gate
	policyContent := moderation.DefaultPolicy
	if cfg.ModerationPolicyPath != "" {
		content, err := os.ReadFile(cfg.ModerationPolicyPath)
		if err != nil {
			log.Fatalf("Failed to read moderation policy: %v", err)
		}
		policyContent = string(content)
	}
	gate, err := moderation.NewGate(ctx, policyContent)
	if err != nil {
		log.Fatalf("Failed to initialize moderation gate: %v", err)
	}

	// Initialize model client
	modelClient := model.NewClient(cfg.ModelURL, cfg.ModelAPIKey, cfg.ModelName, cfg.ModelTimeout)

	// Initialize orchestrator
	orch := orchestrator.New(modelClient, tools.DefaultRegistry, gate, cfg.MaxSteps, tracer, meter)

	// Create HTTP server
	server := transport.NewServer(orch)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Chat server started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down chat server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Chat server stopped")
}
