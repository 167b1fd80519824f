package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/xtreeshop/config"
	"github.com/BearBump/xtreeshop/internal/broker/kafka"
	"github.com/BearBump/xtreeshop/internal/broker/messages"
	"github.com/BearBump/xtreeshop/internal/cache/rediscache"
	"github.com/BearBump/xtreeshop/internal/integrations/fulfillment"
	"github.com/BearBump/xtreeshop/internal/integrations/fulfillment/courierhttp"
	"github.com/BearBump/xtreeshop/internal/integrations/fulfillment/fake"
	"github.com/BearBump/xtreeshop/internal/services/poller"
	"github.com/BearBump/xtreeshop/internal/storage/pgstore"
	"go.uber.org/zap"
)

type workerRepo interface {
	poller.Repository
	poller.Sweeper
	Ping(ctx context.Context) error
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
	Close() error
}

type workerFactories struct {
	newStorage           func(cfg *config.Config) (repo workerRepo, closeFn func(), err error)
	newProducer          func(cfg *config.Config) poller.Producer
	newRateLimiter       func(cfg *config.Config) poller.RateLimiter
	newFulfillmentClient func(cfg *config.Config) fulfillment.Client
	newPlacedConsumer    func(cfg *config.Config, topic string) kafkaConsumer
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (workerRepo, func(), error) {
			st, err := pgstore.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) poller.Producer {
			return kafka.NewProducer(cfg.Kafka.Brokers()).WithRetry(10, 150*time.Millisecond)
		},
		newRateLimiter: func(cfg *config.Config) poller.RateLimiter {
			return rediscache.NewRateLimiter(cfg.Redis.Addr())
		},
		newFulfillmentClient: func(cfg *config.Config) fulfillment.Client {
			// the courier needs a base url; everything else runs on the local fake
			if cfg.Store.FulfillmentMode == "courier" && cfg.Store.FulfillmentBaseURL != "" {
				return courierhttp.New(cfg.Store.FulfillmentBaseURL, cfg.Store.FulfillmentAPIKey)
			}
			return fake.New()
		},
		newPlacedConsumer: func(cfg *config.Config, topic string) kafkaConsumer {
			group := cfg.Kafka.WorkerConsumerGroup
			if group == "" {
				group = "store-worker"
			}
			return kafka.NewConsumer(cfg.Kafka.Brokers(), topic, group)
		},
	}
}

func plannerConfig(cfg *config.Config) poller.PlannerConfig {
	sec := func(n int) time.Duration { return time.Duration(n) * time.Second }
	s := cfg.Store
	return poller.PlannerConfig{
		PreparingDelay:  sec(s.WorkerNextCheckPreparingSeconds),
		ShippedMinDelay: sec(s.WorkerNextCheckShippedMinSeconds),
		ShippedMaxDelay: sec(s.WorkerNextCheckShippedMaxSeconds),
		Backoff1:        sec(s.WorkerBackoff1Seconds),
		Backoff2:        sec(s.WorkerBackoff2Seconds),
		Backoff3:        sec(s.WorkerBackoff3Seconds),
		Backoff4:        sec(s.WorkerBackoff4Seconds),
	}
}

func provider(cfg *config.Config) string {
	if cfg.Store.FulfillmentProvider != "" {
		return cfg.Store.FulfillmentProvider
	}
	if cfg.Store.FulfillmentMode == "courier" {
		return "courier"
	}
	return "fake"
}

type workerOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)
}

func RunStoreWorker(ctx context.Context, cfg *config.Config, f workerFactories, opts workerOpts, log *zap.Logger) error {
	statusTopic := cfg.Kafka.OrderStatusTopic
	if statusTopic == "" {
		statusTopic = "order.status.updated"
	}
	placedTopic := cfg.Kafka.OrderPlacedTopic
	if placedTopic == "" {
		placedTopic = "order.placed"
	}

	pollInterval := time.Duration(cfg.Store.WorkerPollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	batchSize := cfg.Store.WorkerBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	concurrency := cfg.Store.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	lease := time.Duration(cfg.Store.WorkerLeaseSeconds) * time.Second
	if lease <= 0 {
		lease = 120 * time.Second
	}
	rlPerMin := int64(cfg.Store.WorkerRateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 120
	}
	sweepEvery := time.Duration(cfg.Store.SessionSweepIntervalSeconds) * time.Second
	if sweepEvery <= 0 {
		sweepEvery = 15 * time.Minute
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	p := poller.New(repo, f.newFulfillmentClient(cfg), f.newProducer(cfg), f.newRateLimiter(cfg), statusTopic, log).
		WithSettings(pollInterval, batchSize, concurrency, lease, rlPerMin).
		WithPlanner(plannerConfig(cfg)).
		WithProvider(provider(cfg)).
		WithSweeper(repo, sweepEvery)

	if f.newPlacedConsumer != nil {
		consumer := f.newPlacedConsumer(cfg, placedTopic)
		consumerDone := make(chan struct{})
		go func() {
			defer close(consumerDone)
			consumePlaced(ctx, consumer, p, placedTopic, log)
		}()
		defer func() {
			cancel()
			_ = consumer.Close()
			<-consumerDone
		}()
	}

	httpErr := make(chan error, 1)
	if opts.swaggerPath != "" {
		go func() {
			httpErr <- runWorkerHTTPServer(ctx, workerHTTPOpts{
				httpAddr:    opts.httpAddr,
				swaggerPath: opts.swaggerPath,
				onListen:    opts.onListen,
				poller:      p,
				cfg:         cfg,
				ready:       repo.Ping,
			})
		}()
	}

	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(ctx) }()

	select {
	case err := <-runErr:
		return err
	case err := <-httpErr:
		if err != nil {
			return err
		}
		return <-runErr
	}
}

// consumePlaced wakes the poller as soon as a new order is paid so the first
// fulfillment check does not wait for the next tick.
func consumePlaced(ctx context.Context, c kafkaConsumer, p *poller.Poller, topic string, log *zap.Logger) {
	log.Info("kafka consumer started", zap.String("topic", topic))
	err := c.Consume(ctx, func(_ []byte, value []byte) error {
		var m messages.OrderPlaced
		if err := json.Unmarshal(value, &m); err != nil {
			log.Warn("skip malformed order.placed", zap.Error(err))
			return nil
		}
		log.Debug("order placed", zap.Uint64("order_id", m.OrderID))
		p.Trigger()
		return nil
	})
	if err != nil && ctx.Err() == nil {
		log.Error("order.placed consumer stopped", zap.Error(err))
	}
}
