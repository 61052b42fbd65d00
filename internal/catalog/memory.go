package catalog

import (
	"context"
	"strings"
	"sync"

	"restaurant-pos/internal/models"
)

// InMemoryCatalog backs tests and mock-mode runs.
type InMemoryCatalog struct {
	mutex    sync.RWMutex
	products map[int64]models.Product
}

func NewInMemoryCatalog() *InMemoryCatalog {
	return &InMemoryCatalog{
		products: make(map[int64]models.Product),
	}
}

func (c *InMemoryCatalog) AddProduct(product models.Product) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.products[product.ID] = product
}

func (c *InMemoryCatalog) GetProduct(ctx context.Context, token string, id int64) (*models.Product, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	product, exists := c.products[id]
	if !exists {
		return nil, ErrProductNotFound
	}
	return &product, nil
}

func (c *InMemoryCatalog) ListProducts(ctx context.Context, token string, filter models.ProductFilter) ([]models.Product, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var products []models.Product
	for _, product := range c.products {
		if filter.Category != "" && product.Category != filter.Category {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(product.Name), strings.ToLower(filter.Search)) {
			continue
		}
		products = append(products, product)
	}
	return products, nil
}
