package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one line of an authenticated customer's cart.
type CartItem struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:cart_items_identity"`
	ProductID uint64    `gorm:"column:product_id;not null;uniqueIndex:cart_items_identity"`
	Size      string    `gorm:"column:size;not null;default:'';uniqueIndex:cart_items_identity"`
	Color     string    `gorm:"column:color;not null;default:'';uniqueIndex:cart_items_identity"`
	Quantity  int       `gorm:"column:quantity;not null"`
	Product   *Product  `gorm:"foreignKey:ProductID"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
