package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	storefrontapi "github.com/BearBump/xtreeshop/internal/api/storefront_api"
	"github.com/BearBump/xtreeshop/internal/broker/messages"
	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type storeAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

type statusApplier interface {
	ApplyStatusUpdate(ctx context.Context, msg messages.OrderStatusUpdated) error
}

func runStoreAPI(ctx context.Context, opts storeAPIOpts, api *storefrontapi.API, orders statusApplier, consumer kafkaConsumer, log *zap.Logger) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, lis, api, opts.swaggerPath, log)
	}()

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if consumer != nil {
			consumeStatusUpdates(ctx, consumer, orders, opts, log)
		}
	}()

	select {
	case <-ctx.Done():
		<-httpErr
		<-consumerDone
		return ctx.Err()
	case err := <-httpErr:
		if err == nil && ctx.Err() != nil {
			<-consumerDone
			return ctx.Err()
		}
		return err
	}
}

func newRouter(api *storefrontapi.API, swaggerPath string) http.Handler {
	r := chi.NewRouter()
	api.Mount(r)

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, swaggerPath)
	})
	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	return otelhttp.NewHandler(r, "store-api")
}

func runHTTPServer(ctx context.Context, lis net.Listener, api *storefrontapi.API, swaggerPath string, log *zap.Logger) error {
	srv := &http.Server{
		Handler:           newRouter(api, swaggerPath),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("HTTP server listening", zap.String("addr", lis.Addr().String()))
	if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

const (
	applyRetryBase = 200 * time.Millisecond
	applyRetryMax  = 10 * time.Second
)

// consumeStatusUpdates feeds order.status.updated into the tracking side table.
// A failed Consume is restarted after a short pause until ctx is done.
func consumeStatusUpdates(ctx context.Context, consumer kafkaConsumer, orders statusApplier, opts storeAPIOpts, log *zap.Logger) {
	log.Info("kafka consumer started", zap.String("topic", opts.topic), zap.String("group", opts.consumerGroup))
	for {
		err := consumer.Consume(ctx, func(_ []byte, value []byte) error {
			var m messages.OrderStatusUpdated
			if err := json.Unmarshal(value, &m); err != nil {
				log.Warn("skip malformed status update", zap.Error(err))
				return nil
			}
			return applyStatusUpdate(ctx, orders, m, log)
		})
		if ctx.Err() != nil {
			return
		}
		log.Error("status consumer stopped", zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// applyStatusUpdate retries in place until the update is stored, so the
// message is committed only afterwards. Updates that can never apply are
// logged and committed.
func applyStatusUpdate(ctx context.Context, orders statusApplier, m messages.OrderStatusUpdated, log *zap.Logger) error {
	delay := applyRetryBase
	for attempt := 1; ; attempt++ {
		err := orders.ApplyStatusUpdate(ctx, m)
		if err == nil {
			return nil
		}
		if permanentUpdateError(err) {
			log.Warn("drop status update", zap.Uint64("order_id", m.OrderID), zap.Error(err))
			return nil
		}
		log.Warn("apply status update failed, retrying",
			zap.Uint64("order_id", m.OrderID),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > applyRetryMax {
			delay = applyRetryMax
		}
	}
}

func permanentUpdateError(err error) bool {
	var verr *models.ValidationError
	return errors.Is(err, models.ErrNotFound) || errors.As(err, &verr)
}
