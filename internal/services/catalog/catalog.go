package catalog

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/karatlabs/karat/internal/entity"
)

// Store is the engine's view of the catalog: read the dynamically priced
// products, write a recomputed display price back per product. The catalog
// itself (documents, media, fixed-price items) belongs to the CMS.
type Store interface {
	ListDynamic(ctx context.Context) ([]entity.Product, error)
	WriteDisplayPrice(ctx context.Context, id string, price decimal.Decimal) error
}
