package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/xtreeshop/config"
	storefrontapi "github.com/BearBump/xtreeshop/internal/api/storefront_api"
	"github.com/BearBump/xtreeshop/internal/broker/kafka"
	"github.com/BearBump/xtreeshop/internal/cache/rediscache"
	"github.com/BearBump/xtreeshop/internal/logger"
	"github.com/BearBump/xtreeshop/internal/payment/simulated"
	"github.com/BearBump/xtreeshop/internal/services/admin"
	"github.com/BearBump/xtreeshop/internal/services/audit"
	"github.com/BearBump/xtreeshop/internal/services/auth"
	"github.com/BearBump/xtreeshop/internal/services/cart"
	"github.com/BearBump/xtreeshop/internal/services/catalog"
	"github.com/BearBump/xtreeshop/internal/services/checkout"
	"github.com/BearBump/xtreeshop/internal/services/help"
	"github.com/BearBump/xtreeshop/internal/services/orders"
	"github.com/BearBump/xtreeshop/internal/storage/pgstore"
	"github.com/BearBump/xtreeshop/internal/telemetry"
	"go.uber.org/zap"
)

type storeAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     storeAPIOpts
	log      *zap.Logger
	api      *storefrontapi.API
	orders   *orders.Service
	consumer *kafka.Consumer

	closers []func()
}

func secondsOr(n int, def time.Duration) time.Duration {
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

func mustBootstrapStoreAPI() *storeAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("config parse error, %v", err))
	}

	log := logger.Must(cfg.Store.Environment, cfg.Store.LogLevel)
	shutdownTracing := telemetry.Setup("store-api", cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.Insecure, log)

	httpAddr := cfg.Store.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.Kafka.APIConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "store-api"
	}
	statusTopic := cfg.Kafka.OrderStatusTopic
	if statusTopic == "" {
		statusTopic = "order.status.updated"
	}
	placedTopic := cfg.Kafka.OrderPlacedTopic
	if placedTopic == "" {
		placedTopic = "order.placed"
	}

	sessionTTL := time.Duration(cfg.Store.SessionTTLHours) * time.Hour
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	currentTTL := secondsOr(cfg.Store.CurrentStatusTTLSeconds, 10*time.Minute)
	countTTL := secondsOr(cfg.Store.CartCountTTLSeconds, 5*time.Minute)
	firstCheck := time.Duration(cfg.Store.FirstCheckDelaySeconds) * time.Second
	loginPerMinute := cfg.Store.LoginRateLimitPerMinute
	if loginPerMinute <= 0 {
		loginPerMinute = 10
	}

	st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second, log)
	rc := rediscache.New(cfg.Redis.Addr())
	rl := rediscache.NewRateLimiter(cfg.Redis.Addr())
	producer := kafka.NewProducer(cfg.Kafka.Brokers()).WithRetry(5, 100*time.Millisecond)
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers(), statusTopic, consumerGroup)

	rec := audit.New(st, log)
	ordersSvc := orders.New(st, rc, currentTTL)
	services := storefrontapi.Services{
		Auth:     auth.New(st, rl, sessionTTL, loginPerMinute),
		Catalog:  catalog.New(st),
		Cart:     cart.New(st, rc, countTTL),
		Checkout: checkout.New(st, simulated.New(cfg.Payment.Mode), producer, rc, log, placedTopic).WithFirstCheckDelay(firstCheck),
		Orders:   ordersSvc,
		Help:     help.New(st, rec),
		Admin:    admin.New(st, ordersSvc, rec, cfg.Store.LowStockThreshold),
	}

	api := storefrontapi.New(services, storefrontapi.Options{
		SecureCookies: cfg.Store.Environment == "production",
		Ready: func(r *http.Request) error {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := st.Ping(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			if err := rc.Ping(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			return nil
		},
	}, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &storeAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: storeAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			topic:         statusTopic,
			consumerGroup: consumerGroup,
		},
		log:      log,
		api:      api,
		orders:   ordersSvc,
		consumer: consumer,
		closers: []func(){
			func() { _ = consumer.Close() },
			func() { _ = producer.Close() },
			func() { _ = rl.Close() },
			func() { _ = rc.Close() },
			st.Close,
			func() { _ = shutdownTracing(context.Background()) },
			func() { _ = log.Sync() },
		},
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration, log *zap.Logger) *pgstore.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgstore.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		log.Warn("postgres not ready, retrying", zap.Error(err))
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *storeAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for _, c := range a.closers {
		c()
	}
}

func (a *storeAPIApp) Run() error {
	return runStoreAPI(a.ctx, a.opts, a.api, a.orders, a.consumer, a.log)
}
