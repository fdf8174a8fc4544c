package migrate

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/solespace/solespace-backend/pkg/db/models"
)

type seedProduct struct {
	name, brand, price string
	sizes              []string
	colors             []string
	stock              int
}

var demoCatalog = []seedProduct{
	{name: "Court Classic", brand: "Nike", price: "4495.00", sizes: []string{"40", "41", "42", "43"}, colors: []string{"White", "Black"}, stock: 6},
	{name: "Ultraboost Light", brand: "Adidas", price: "9500.00", sizes: []string{"41", "42", "44"}, colors: []string{"Core Black"}, stock: 3},
	{name: "Old Skool", brand: "Vans", price: "3650.00", sizes: []string{"38", "39", "40", "41"}, colors: []string{"Black/White", "Navy"}, stock: 8},
	{name: "Chuck 70 Hi", brand: "Converse", price: "4190.00", sizes: []string{"39", "40", "42"}, colors: []string{"Parchment"}, stock: 1},
	{name: "Gel-Kayano 30", brand: "ASICS", price: "8990.00", sizes: []string{"42", "43"}, colors: []string{"Blue"}, stock: 0},
}

// SeedCatalog inserts a small demo catalog when the products table is empty
// and returns how many products were created.
func SeedCatalog(ctx context.Context, conn *gorm.DB) (int, error) {
	var count int64
	if err := conn.WithContext(ctx).Model(&models.Product{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	created := 0
	err := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range demoCatalog {
			product := models.Product{
				Name:     item.name,
				Brand:    item.brand,
				Price:    decimal.RequireFromString(item.price),
				IsActive: true,
			}
			for _, size := range item.sizes {
				for _, color := range item.colors {
					product.Variants = append(product.Variants, models.ProductVariant{Size: size, Color: color, Stock: item.stock})
				}
			}
			if err := tx.Create(&product).Error; err != nil {
				return fmt.Errorf("seed %s: %w", item.name, err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
