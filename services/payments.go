package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
)

// ErrPaymentGateway wraps any failure talking to the payment processor.
var ErrPaymentGateway = errors.New("payment gateway error")

// CheckoutMetadata is echoed back by the processor on every webhook so the
// event can be matched to a participation record.
type CheckoutMetadata struct {
	EventID uint `json:"eventId"`
	UserID  uint `json:"userId"`
}

// CheckoutSession is the processor's opaque handle for a started payment.
// URL is where the client is redirected to complete the charge.
type CheckoutSession struct {
	Ref string `json:"ref"`
	URL string `json:"url"`
}

// PaymentClient is the contract with the external payment processor. The
// processor owns capture mechanics and checkout timeouts; this service only
// starts sessions and requests refunds.
type PaymentClient interface {
	CreateCheckoutSession(ctx context.Context, amountCents int64, currency string, meta CheckoutMetadata) (*CheckoutSession, error)
	Refund(ctx context.Context, ref string) error
}

// HTTPPaymentClient talks to the processor's REST API.
type HTTPPaymentClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewPaymentClientFromEnv builds the client from PAYMENTS_API_URL and
// PAYMENTS_API_KEY.
func NewPaymentClientFromEnv() *HTTPPaymentClient {
	return &HTTPPaymentClient{
		baseURL: os.Getenv("PAYMENTS_API_URL"),
		apiKey:  os.Getenv("PAYMENTS_API_KEY"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPPaymentClient) CreateCheckoutSession(ctx context.Context, amountCents int64, currency string, meta CheckoutMetadata) (*CheckoutSession, error) {
	payload := map[string]interface{}{
		"amount":   amountCents,
		"currency": currency,
		"metadata": meta,
	}

	var out struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := c.post(ctx, "/v1/checkout/sessions", payload, &out); err != nil {
		return nil, err
	}
	return &CheckoutSession{Ref: out.ID, URL: out.URL}, nil
}

func (c *HTTPPaymentClient) Refund(ctx context.Context, ref string) error {
	payload := map[string]interface{}{"session": ref}
	return c.post(ctx, "/v1/refunds", payload, nil)
}

func (c *HTTPPaymentClient) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned %d", ErrPaymentGateway, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: %v", ErrPaymentGateway, err)
		}
	}
	return nil
}
