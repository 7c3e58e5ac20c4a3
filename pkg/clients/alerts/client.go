// Package alerts delivers low-stock notifications to an operator-configured
// webhook endpoint.
package alerts

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Notifier is implemented by clients able to deliver low-stock alerts.
// Delivery is best-effort; a failed alert never affects the committed
// transaction that produced it.
type Notifier interface {
	NotifyLowStock(ctx context.Context, pharmacyID string, products []string) error
}

// WebhookClient is a resty-backed Notifier posting JSON payloads to a fixed
// URL.
type WebhookClient struct {
	httpClient *resty.Client
	url        string
}

// NewWebhookClient builds a webhook notifier for the given endpoint.
func NewWebhookClient(url string) *WebhookClient {
	restyClient := resty.New()
	restyClient.
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second)

	return &WebhookClient{
		httpClient: restyClient,
		url:        strings.TrimSpace(url),
	}
}

type lowStockPayload struct {
	Event      string   `json:"event"`
	PharmacyID string   `json:"pharmacy_id"`
	Products   []string `json:"products"`
}

// NotifyLowStock posts the products that dropped below their threshold.
func (c *WebhookClient) NotifyLowStock(ctx context.Context, pharmacyID string, products []string) error {
	payload := lowStockPayload{
		Event:      "low_stock",
		PharmacyID: pharmacyID,
		Products:   products,
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("send low-stock alert: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("alert webhook error: status=%d body=%s", resp.StatusCode(), resp.String())
	}
	return nil
}
