package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
)

// Client is the HTTP OrderAPI used by terminal sessions. Every response body
// goes through DecodeOrder, so envelopes and double-encoded payloads all
// normalize to the same order shape.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	log     *logger.Logger
}

// NewClient builds an order store client. The token is the opaque bearer
// credential sent with every request; an empty token sends none.
func NewClient(baseURL, token string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

// CurrentOrder returns the table's open order, nil when the table has none.
func (c *Client) CurrentOrder(ctx context.Context, tableID int64) (*models.Order, error) {
	path := fmt.Sprintf("%s/orders/table/%d/current", c.baseURL, tableID)
	order, err := c.do(ctx, http.MethodGet, path, nil)
	if err == ErrNoOpenOrder {
		return nil, nil
	}
	return order, err
}

func (c *Client) AddToCart(ctx context.Context, tableID int64, req models.AddToCartRequest) (*models.Order, error) {
	path := fmt.Sprintf("%s/orders/table/%d/cart", c.baseURL, tableID)
	return c.do(ctx, http.MethodPost, path, req)
}

func (c *Client) UpdateOrder(ctx context.Context, orderID int64, req models.UpdateOrderRequest) (*models.Order, error) {
	path := fmt.Sprintf("%s/orders/%d", c.baseURL, orderID)
	return c.do(ctx, http.MethodPut, path, req)
}

func (c *Client) CompleteAndClear(ctx context.Context, orderID int64) (*models.Order, error) {
	path := fmt.Sprintf("%s/orders/%d/complete-and-clear", c.baseURL, orderID)
	return c.do(ctx, http.MethodPost, path, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (*models.Order, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if c.log != nil {
			c.log.Error("RECONCILE", fmt.Sprintf("Order store request failed: %s", err.Error()))
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNoOpenOrder
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrPersistenceUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: status %d: %s", ErrMalformedResponse, resp.StatusCode, bytes.TrimSpace(raw))
	}

	return DecodeOrder(raw)
}
