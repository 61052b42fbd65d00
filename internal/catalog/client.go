// Package catalog reads products from the catalog service. The POS core never
// writes to the catalog; product CRUD belongs to another team.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrUnauthorized    = errors.New("catalog request unauthorized")
	ErrUnavailable     = errors.New("catalog unavailable")
)

// Catalog is the read-only lookup consumed by the order service. The bearer
// credential is passed explicitly on every call; nothing is read from ambient
// storage.
type Catalog interface {
	GetProduct(ctx context.Context, token string, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, token string, filter models.ProductFilter) ([]models.Product, error)
}

type HTTPClient struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, log *logger.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

func (c *HTTPClient) GetProduct(ctx context.Context, token string, id int64) (*models.Product, error) {
	var product models.Product
	path := fmt.Sprintf("%s/products/%d", c.baseURL, id)
	if err := c.get(ctx, token, path, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *HTTPClient) ListProducts(ctx context.Context, token string, filter models.ProductFilter) ([]models.Product, error) {
	query := url.Values{}
	if filter.Category != "" {
		query.Set("category", filter.Category)
	}
	if filter.Search != "" {
		query.Set("search", filter.Search)
	}

	path := c.baseURL + "/products"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var products []models.Product
	if err := c.get(ctx, token, path, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *HTTPClient) get(ctx context.Context, token, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return fmt.Errorf("failed to build catalog request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Error("CATALOG", fmt.Sprintf("Catalog request failed: %s", err.Error()))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrProductNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.log.LogSecurity("CATALOG_AUTH", fmt.Sprintf("Catalog rejected credentials for %s", path))
		return ErrUnauthorized
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected catalog status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode catalog response: %w", err)
	}
	return nil
}
