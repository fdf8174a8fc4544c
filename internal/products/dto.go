package products

import (
	"github.com/shopspring/decimal"

	"github.com/solespace/solespace-backend/pkg/db/models"
)

// VariantDTO is one purchasable size/color and its stock ceiling.
type VariantDTO struct {
	ID    uint64 `json:"id"`
	Size  string `json:"size"`
	Color string `json:"color"`
	Stock int    `json:"stock"`
}

// ProductDTO is the catalog listing returned to storefront clients.
type ProductDTO struct {
	ID          uint64          `json:"id"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url,omitempty"`
	Variants    []VariantDTO    `json:"variants"`
	TotalStock  int             `json:"total_stock"`
}

func toDTO(p models.Product) ProductDTO {
	dto := ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Brand:       p.Brand,
		Description: p.Description,
		Price:       p.Price,
		Variants:    make([]VariantDTO, 0, len(p.Variants)),
	}
	if p.ImageURL != nil {
		dto.ImageURL = *p.ImageURL
	}
	for _, v := range p.Variants {
		dto.Variants = append(dto.Variants, VariantDTO{ID: v.ID, Size: v.Size, Color: v.Color, Stock: v.Stock})
		dto.TotalStock += v.Stock
	}
	return dto
}
