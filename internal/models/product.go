package models

import "github.com/shopspring/decimal"

// Product is the catalog collaborator's view of a sellable item. The POS core
// only reads it; catalog CRUD lives in another service.
type Product struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
}

type ProductFilter struct {
	Category string
	Search   string
}
