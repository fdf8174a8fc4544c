package products

import (
	"context"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/solespace/solespace-backend/pkg/db/models"
)

// SeedProduct inserts an active product with one variant per (size, stock)
// pair, all in the given color. Shared by repository tests across packages.
func SeedProduct(t testing.TB, db *gorm.DB, name, price, color string, stockBySize map[string]int) models.Product {
	t.Helper()

	product := models.Product{
		Name:     name,
		Brand:    "SoleSpace",
		Price:    decimal.RequireFromString(price),
		IsActive: true,
	}
	for _, size := range sortedSizes(stockBySize) {
		product.Variants = append(product.Variants, models.ProductVariant{
			Size:  size,
			Color: color,
			Stock: stockBySize[size],
		})
	}
	if err := NewRepository(db).Create(context.Background(), &product); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func sortedSizes(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
