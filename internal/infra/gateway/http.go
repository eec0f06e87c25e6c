package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ordersvc/commander/internal/core/domain"
)

// Config holds settings for one downstream gateway.
type Config struct {
	Name    string        `yaml:"name"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// HTTPClient is a JSON-over-HTTP client for a downstream gateway. Status
// codes are mapped onto the error taxonomy: 5xx, 429 and transport errors are
// transient; 402, 409 and 422 are business rejections.
type HTTPClient struct {
	name       string
	endpoint   string
	httpClient *http.Client
}

// NewHTTPClient creates a gateway client.
func NewHTTPClient(cfg Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		name:     cfg.Name,
		endpoint: cfg.URL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// response is the wire shape every gateway replies with.
type response struct {
	Ref    string `json:"ref"`
	Reason string `json:"reason"`
}

// post sends a JSON body to endpoint+path and maps the reply onto the
// taxonomy.
func (c *HTTPClient) post(ctx context.Context, path string, body any) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts, refused connections, DNS failures: all transient.
		return "", &domain.UnavailableError{Service: c.name, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.UnavailableError{Service: c.name, Err: err}
	}

	var parsed response
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &parsed)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return parsed.Ref, nil
	case resp.StatusCode == http.StatusPaymentRequired,
		resp.StatusCode == http.StatusConflict,
		resp.StatusCode == http.StatusUnprocessableEntity:
		reason := parsed.Reason
		if reason == "" {
			reason = fmt.Sprintf("http %d", resp.StatusCode)
		}
		return "", &domain.RejectionError{Service: c.name, Reason: reason}
	default:
		return "", &domain.UnavailableError{
			Service: c.name,
			Err:     fmt.Errorf("http %d: %s", resp.StatusCode, raw),
		}
	}
}

// PaymentClient is the HTTP payment gateway.
type PaymentClient struct {
	*HTTPClient
}

// NewPaymentClient creates a payment gateway client.
func NewPaymentClient(cfg Config) *PaymentClient {
	if cfg.Name == "" {
		cfg.Name = "payment"
	}
	return &PaymentClient{NewHTTPClient(cfg)}
}

// Pay charges the order amount.
func (c *PaymentClient) Pay(ctx context.Context, orderID string, amount int64) (string, error) {
	return c.post(ctx, "/pay", map[string]any{"order_id": orderID, "amount": amount})
}

// Refund reverses a previous charge.
func (c *PaymentClient) Refund(ctx context.Context, orderID string) (string, error) {
	return c.post(ctx, "/refund", map[string]any{"order_id": orderID})
}

// ShippingClient is the HTTP shipping gateway.
type ShippingClient struct {
	*HTTPClient
}

// NewShippingClient creates a shipping gateway client.
func NewShippingClient(cfg Config) *ShippingClient {
	if cfg.Name == "" {
		cfg.Name = "shipping"
	}
	return &ShippingClient{NewHTTPClient(cfg)}
}

// Ship books a shipment.
func (c *ShippingClient) Ship(ctx context.Context, orderID string, items []domain.LineItem) (string, error) {
	return c.post(ctx, "/ship", map[string]any{"order_id": orderID, "items": items})
}

// MessagingClient is the HTTP notification service.
type MessagingClient struct {
	*HTTPClient
}

// NewMessagingClient creates a messaging client.
func NewMessagingClient(cfg Config) *MessagingClient {
	if cfg.Name == "" {
		cfg.Name = "messaging"
	}
	return &MessagingClient{NewHTTPClient(cfg)}
}

// Notify delivers a message about the order.
func (c *MessagingClient) Notify(ctx context.Context, orderID, message string) error {
	_, err := c.post(ctx, "/notify", map[string]any{"order_id": orderID, "message": message})
	return err
}
