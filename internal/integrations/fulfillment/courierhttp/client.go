// Package courierhttp talks to a courier service over JSON/HTTP:
// GET {base}/v1/shipments/{order_id}.
package courierhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/xtreeshop/internal/integrations/fulfillment"
	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/pkg/errors"
)

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9000"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type respBody struct {
	OrderID   uint64     `json:"order_id"`
	Status    string     `json:"status"`
	StatusAt  *time.Time `json:"status_at,omitempty"`
	Reference string     `json:"reference"`
}

// courier status vocabulary
var statusMap = map[string]models.StatusCode{
	"ACCEPTED":   models.StatusPaymentAccepted,
	"PICKING":    models.StatusPreparing,
	"PREPARING":  models.StatusPreparing,
	"PACKED":     models.StatusPreparing,
	"IN_TRANSIT": models.StatusShipped,
	"SHIPPED":    models.StatusShipped,
	"DELIVERED":  models.StatusDelivered,
	"PICKED_UP":  models.StatusDelivered,
}

func (c *Client) GetProgress(ctx context.Context, order *models.Order) (fulfillment.Progress, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fulfillment.Progress{}, errors.Wrap(err, "parse base url")
	}
	u.Path = "/v1/shipments/" + url.PathEscape(strconv.FormatUint(order.ID, 10))
	q := u.Query()
	if c.apiKey != "" {
		q.Set("apiKey", c.apiKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fulfillment.Progress{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fulfillment.Progress{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// courier has not registered the shipment yet
		return fulfillment.Progress{Status: order.Status}, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fulfillment.Progress{}, fmt.Errorf("courier rate limit (429)")
	}
	if resp.StatusCode/100 != 2 {
		return fulfillment.Progress{}, fmt.Errorf("courier http %d", resp.StatusCode)
	}

	var rb respBody
	if err := json.NewDecoder(resp.Body).Decode(&rb); err != nil {
		return fulfillment.Progress{}, errors.Wrap(err, "decode")
	}

	status, ok := statusMap[strings.ToUpper(strings.TrimSpace(rb.Status))]
	if !ok {
		return fulfillment.Progress{}, fmt.Errorf("unknown courier status %q", rb.Status)
	}

	return fulfillment.Progress{
		Status:    status,
		StatusAt:  rb.StatusAt,
		Reference: rb.Reference,
	}, nil
}
