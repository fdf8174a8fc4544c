package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog listing; purchasable stock lives on its variants.
type Product struct {
	ID          uint64           `gorm:"column:id;primaryKey;autoIncrement"`
	Name        string           `gorm:"column:name;not null"`
	Brand       string           `gorm:"column:brand;not null;default:''"`
	Description string           `gorm:"column:description;not null;default:''"`
	Price       decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	ImageURL    *string          `gorm:"column:image_url"`
	IsActive    bool             `gorm:"column:is_active;not null;default:true"`
	Variants    []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductVariant is one size/color combination with its own stock count.
type ProductVariant struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID uint64    `gorm:"column:product_id;not null;uniqueIndex:product_variants_identity"`
	Size      string    `gorm:"column:size;not null;default:'';uniqueIndex:product_variants_identity"`
	Color     string    `gorm:"column:color;not null;default:'';uniqueIndex:product_variants_identity"`
	Stock     int       `gorm:"column:stock;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
