package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/xtreeshop/config"
	"github.com/BearBump/xtreeshop/internal/logger"
	"github.com/BearBump/xtreeshop/internal/telemetry"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("config parse error, %v", err))
	}

	log := logger.Must(cfg.Store.Environment, cfg.Store.LogLevel)
	defer func() { _ = log.Sync() }()

	shutdownTracing := telemetry.Setup("store-worker", cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.Insecure, log)
	defer func() { _ = shutdownTracing(context.Background()) }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := workerOpts{
		httpAddr:    cfg.Store.WorkerHTTPAddr,
		swaggerPath: os.Getenv("workerSwaggerPath"),
		onListen: func(addr string) {
			log.Info("worker http listening", zap.String("addr", addr))
		},
	}

	if err := RunStoreWorker(ctx, cfg, defaultWorkerFactories(), opts, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("worker stopped", zap.Error(err))
	}
}
