package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNotFound reports that a product id does not exist in the catalog.
var ErrNotFound = errors.New("catalog: product not found")

// Sort keys understood by ListProducts.
const (
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
	SortNameAsc   = "name-asc"
	SortNameDesc  = "name-desc"
)

// DefaultRelatedLimit is the related-product count used when none is given.
const DefaultRelatedLimit = 4

// Filter narrows and orders a product listing. Zero values disable a criterion.
type Filter struct {
	Category string           `json:"category,omitempty"`
	MinPrice *decimal.Decimal `json:"minPrice,omitempty"`
	MaxPrice *decimal.Decimal `json:"maxPrice,omitempty"`
	Search   string           `json:"q,omitempty"`
	Sort     string           `json:"sort,omitempty"`
}

// Category is a product category with a display name.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Repository provides read-only access to the product catalog.
type Repository interface {
	GetProduct(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context, filter Filter) ([]Product, error)
	ListOptionGroup(ctx context.Context, productID string, group Group) ([]Option, error)
	ListCategories(ctx context.Context) ([]Category, error)
	ListRelated(ctx context.Context, productID string, limit int) ([]Product, error)
}
