package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"gitlab.com/clb-2025.net/internal/adapter/sysload"
	"gitlab.com/clb-2025.net/internal/agent"
	"gitlab.com/clb-2025.net/internal/config"
	logger2 "gitlab.com/clb-2025.net/internal/global/logger"
)

func main() {
	initReader()
	logger := logger2.Logger
	logger.Info("Starting worker agent")

	cfg := config.NewAgentConfig()
	sampler := sysload.NewSampler()
	workerAgent := agent.NewAgent(cfg, sampler, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("Shutting down worker agent...")
		cancel()
	}()

	if err := workerAgent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker agent exited", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker agent stopped")
}

func initReader() {
	if len(os.Args) < 2 {
		return // env vars only
	}
	environment := os.Args[1]
	if err := godotenv.Load(environment + ".env"); err != nil {
		logger2.Warn("No env file loaded", "environment", environment, "error", err)
	}
}
