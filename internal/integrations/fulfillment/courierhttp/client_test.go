package courierhttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/stretchr/testify/require"
)

func TestClient_GetProgress_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/shipments/123", r.URL.Path)
		require.Equal(t, "k", r.URL.Query().Get("apiKey"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "order_id": 123,
  "status": "in_transit",
  "status_at": "2025-01-01T00:00:00Z",
  "reference": "CR-1"
}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	res, err := c.GetProgress(context.Background(), &models.Order{ID: 123, Status: models.StatusPreparing})
	require.NoError(t, err)
	require.Equal(t, models.StatusShipped, res.Status)
	require.Equal(t, "CR-1", res.Reference)
	require.NotNil(t, res.StatusAt)
	require.WithinDuration(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *res.StatusAt, time.Second)
}

func TestClient_GetProgress_NotFoundKeepsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	res, err := New(srv.URL, "").GetProgress(context.Background(), &models.Order{ID: 1, Status: models.StatusPaymentAccepted})
	require.NoError(t, err)
	require.Equal(t, models.StatusPaymentAccepted, res.Status)
}

func TestClient_GetProgress_429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "k").GetProgress(context.Background(), &models.Order{ID: 1})
	require.Error(t, err)
}

func TestClient_GetProgress_UnknownStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"order_id":1,"status":"LOST"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").GetProgress(context.Background(), &models.Order{ID: 1})
	require.Error(t, err)
}
