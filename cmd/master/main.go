package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"gitlab.com/clb-2025.net/internal/adapter/redis/workerport"
	"gitlab.com/clb-2025.net/internal/adapter/tasksource"
	"gitlab.com/clb-2025.net/internal/config"
	"gitlab.com/clb-2025.net/internal/core/ports/secondary"
	"gitlab.com/clb-2025.net/internal/core/services/dispatch"
	"gitlab.com/clb-2025.net/internal/core/services/registry"
	"gitlab.com/clb-2025.net/internal/core/services/schedule"
	logger2 "gitlab.com/clb-2025.net/internal/global/logger"
	http2 "gitlab.com/clb-2025.net/internal/http"
	"gitlab.com/clb-2025.net/internal/schedulerengine"
	"gitlab.com/clb-2025.net/internal/tcp"
)

func main() {
	initReader()
	// Set up graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	logger2.Info("Starting load balancer master")

	logger := logger2.Logger

	sysCfg := config.NewSystemConfig()

	// Worker-state mirror, best-effort. Scheduling never depends on it.
	var workerRepo secondary.WorkerRepository
	redisClient := redis.NewClient(&redis.Options{
		Addr:     sysCfg.RedisConfig.Url,
		Password: sysCfg.RedisConfig.Password,
		DB:       sysCfg.RedisConfig.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("Redis unavailable, worker mirror disabled", "error", err)
	} else {
		workerRepo = workerport.NewWorkerRepository(redisClient, logger)
	}

	// Services
	workerRegistry := registry.NewWorkerRegistry(workerRepo, logger)
	scheduler := schedule.NewLeastLoadScheduler(sysCfg.DispatchCfg.StaleAfter)
	dispatchSvc := dispatch.NewDispatchService(workerRegistry, scheduler, sysCfg.DispatchCfg.QueueCapacity, logger)

	// Servers
	tcpServer := tcp.NewTCPServer(
		workerRegistry,
		dispatchSvc,
		logger,
		tcp.WithAddress(sysCfg.TCPConfig.Address),
		tcp.WithLivenessTimeout(sysCfg.DispatchCfg.LivenessTimeout),
	)
	dispatchSvc.SetSender(tcpServer)

	serviceProvider := http2.NewServiceProvider(workerRegistry, workerRepo, dispatchSvc, sysCfg.DispatchCfg)
	httpServer := http2.NewServer(sysCfg.HTTPConfig.Port, "loadBalancer", *serviceProvider, logger)
	if err := httpServer.Init(); err != nil {
		panic(err)
	}

	ctxBg, cancelBg := context.WithCancel(context.Background())
	httpServer.Start(ctxBg)
	if err := tcpServer.Start(); err != nil {
		panic(err)
	}

	// Synthetic traffic only in debug mode; real tasks come over HTTP
	var source secondary.TaskSource
	if sysCfg.DebugMode {
		source = tasksource.NewSyntheticSource(3)
	}
	engine := schedulerengine.NewDispatchEngine(sysCfg.DispatchCfg, source, dispatchSvc, workerRegistry, workerRepo, logger)
	engine.Start(ctxBg)

	<-quit
	logger.Info("Shutting down server...")
	cancelBg()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tcpServer.Stop(ctx)
	httpServer.Stop(ctx)

	logger.Info("successfully shutdown server")
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
