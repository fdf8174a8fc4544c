package cart

import (
	"github.com/shopspring/decimal"

	"github.com/solespace/solespace-backend/internal/products"
	"github.com/solespace/solespace-backend/pkg/db/models"
)

// ItemDTO is the wire form of a cart line; stock is the variant's current
// ceiling so clients can disable increments.
type ItemDTO struct {
	ID        uint64          `json:"id"`
	ProductID uint64          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	ImageURL  string          `json:"image_url,omitempty"`
	Stock     *int            `json:"stock,omitempty"`
}

// AddInput is a request to put units of a variant into the cart. Price is
// accepted from clients and ignored.
type AddInput struct {
	ProductID uint64          `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Price     decimal.Decimal `json:"price"`
}

// SyncItem is one guest line uploaded after sign-in. The price is accepted
// for compatibility but the catalog price always wins.
type SyncItem struct {
	ProductID uint64          `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Price     decimal.Decimal `json:"price"`
}

// SyncResult reports merged lines and those that could not be placed.
type SyncResult struct {
	Items   []ItemDTO  `json:"items"`
	Skipped []SyncItem `json:"skipped,omitempty"`
}

func toItemDTO(row models.CartItem) ItemDTO {
	dto := ItemDTO{
		ID:        row.ID,
		ProductID: row.ProductID,
		Quantity:  row.Quantity,
		Size:      row.Size,
		Color:     row.Color,
	}
	if row.Product != nil {
		dto.Name = row.Product.Name
		dto.Price = row.Product.Price
		if row.Product.ImageURL != nil {
			dto.ImageURL = *row.Product.ImageURL
		}
		if v, ok := products.ResolveVariant(*row.Product, row.Size, row.Color); ok {
			stock := v.Stock
			dto.Stock = &stock
		}
	}
	return dto
}
