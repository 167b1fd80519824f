package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	storefrontapi "github.com/BearBump/xtreeshop/internal/api/storefront_api"
	"github.com/BearBump/xtreeshop/internal/broker/messages"
	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type recordingApplier struct {
	mu   sync.Mutex
	msgs []messages.OrderStatusUpdated
	err  error
	// calls failing with err before success; negative fails every call
	failures int
}

func (a *recordingApplier) ApplyStatusUpdate(ctx context.Context, msg messages.OrderStatusUpdated) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.msgs = append(a.msgs, msg)
	if a.err != nil && (a.failures < 0 || len(a.msgs) <= a.failures) {
		return a.err
	}
	return nil
}

func (a *recordingApplier) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.msgs)
}

type scriptedConsumer struct {
	payloads [][]byte
	calls    int
	mu       sync.Mutex
}

func (c *scriptedConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	c.mu.Lock()
	c.calls++
	first := c.calls == 1
	c.mu.Unlock()
	if first {
		for _, p := range c.payloads {
			if err := handler(nil, p); err != nil {
				return err
			}
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func writeSwagger(t *testing.T) string {
	t.Helper()
	sw := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))
	return sw
}

func TestNewRouter_SwaggerAndHealth(t *testing.T) {
	sw := writeSwagger(t)
	api := storefrontapi.New(storefrontapi.Services{}, storefrontapi.Options{}, zap.NewNop())
	srv := httptest.NewServer(newRouter(api, sw))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/swagger.json")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"swagger"`)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/docs/index.html")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/cart")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRunStoreAPI_RequiresSwagger(t *testing.T) {
	api := storefrontapi.New(storefrontapi.Services{}, storefrontapi.Options{}, zap.NewNop())

	err := runStoreAPI(context.Background(), storeAPIOpts{httpAddr: "127.0.0.1:0"}, api, nil, nil, zap.NewNop())
	require.Error(t, err)

	err = runStoreAPI(context.Background(), storeAPIOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: filepath.Join(t.TempDir(), "nope.json"),
	}, api, nil, nil, zap.NewNop())
	require.Error(t, err)
}

func TestRunStoreAPI_ServesAndAppliesUpdates(t *testing.T) {
	sw := writeSwagger(t)
	api := storefrontapi.New(storefrontapi.Services{}, storefrontapi.Options{}, zap.NewNop())
	applier := &recordingApplier{}
	consumer := &scriptedConsumer{payloads: [][]byte{
		[]byte(`{"order_id":1,"status":"PREPARING","checked_at":"2026-01-02T03:04:05Z","next_check_at":"2026-01-02T03:05:05Z"}`),
		[]byte(`garbage`),
		[]byte(`{"order_id":2,"error":"timeout","checked_at":"2026-01-02T03:04:05Z","next_check_at":"2026-01-02T03:09:05Z"}`),
	}}

	addrCh := make(chan string, 1)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- runStoreAPI(ctx, storeAPIOpts{
			httpAddr:    "127.0.0.1:0",
			swaggerPath: sw,
			topic:       "order.status.updated",
			onListen:    func(addr string) { addrCh <- addr },
		}, api, applier, consumer, zaptest.NewLogger(t))
	}()

	addr := <-addrCh
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool { return applier.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	applier.mu.Lock()
	require.Equal(t, uint64(1), applier.msgs[0].OrderID)
	require.Equal(t, "PREPARING", applier.msgs[0].Status)
	require.NotNil(t, applier.msgs[1].Error)
	applier.mu.Unlock()

	cancel()
	select {
	case err := <-errCh:
		require.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("store-api did not stop")
	}
}

func (c *scriptedConsumer) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestConsumeStatusUpdates_RetriesTransientFailureInPlace(t *testing.T) {
	applier := &recordingApplier{err: errors.New("db down"), failures: 2}
	consumer := &scriptedConsumer{payloads: [][]byte{
		[]byte(`{"order_id":9,"status":"SHIPPED"}`),
		[]byte(`{"order_id":10,"status":"PREPARING"}`),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		consumeStatusUpdates(ctx, consumer, applier, storeAPIOpts{topic: "t"}, zaptest.NewLogger(t))
		close(done)
	}()

	require.Eventually(t, func() bool { return applier.count() == 4 }, 3*time.Second, 10*time.Millisecond)
	applier.mu.Lock()
	order := []uint64{}
	for _, m := range applier.msgs {
		order = append(order, m.OrderID)
	}
	applier.mu.Unlock()
	require.Equal(t, []uint64{9, 9, 9, 10}, order)
	require.Equal(t, 1, consumer.callCount())

	cancel()
	<-done
}

func TestConsumeStatusUpdates_CommitsUpdatesThatCannotApply(t *testing.T) {
	for name, applyErr := range map[string]error{
		"validation": models.NewValidationError("order_id", "order_id is required"),
		"not found":  models.ErrNotFound,
	} {
		t.Run(name, func(t *testing.T) {
			applier := &recordingApplier{err: applyErr, failures: -1}
			consumer := &scriptedConsumer{payloads: [][]byte{
				[]byte(`{"order_id":0,"status":"SHIPPED"}`),
				[]byte(`{"order_id":404,"status":"SHIPPED"}`),
			}}

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				consumeStatusUpdates(ctx, consumer, applier, storeAPIOpts{topic: "t"}, zaptest.NewLogger(t))
				close(done)
			}()

			require.Eventually(t, func() bool { return applier.count() == 2 }, 2*time.Second, 10*time.Millisecond)
			require.Never(t, func() bool { return applier.count() > 2 }, 300*time.Millisecond, 20*time.Millisecond)
			require.Equal(t, 1, consumer.callCount())

			cancel()
			<-done
		})
	}
}

func TestConsumeStatusUpdates_StopsRetryingOnShutdown(t *testing.T) {
	applier := &recordingApplier{err: errors.New("db down"), failures: -1}
	consumer := &scriptedConsumer{payloads: [][]byte{[]byte(`{"order_id":9,"status":"SHIPPED"}`)}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		consumeStatusUpdates(ctx, consumer, applier, storeAPIOpts{topic: "t"}, zaptest.NewLogger(t))
		close(done)
	}()

	require.Eventually(t, func() bool { return applier.count() >= 1 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
