package models

import (
	"time"

	"github.com/google/uuid"
)

// Address is a saved shipping destination in a customer's address book.
type Address struct {
	ID          uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Name        string    `gorm:"column:name;not null"`
	Phone       string    `gorm:"column:phone;not null"`
	Region      string    `gorm:"column:region;not null"`
	Province    string    `gorm:"column:province;not null"`
	City        string    `gorm:"column:city;not null"`
	Barangay    string    `gorm:"column:barangay;not null"`
	PostalCode  *string   `gorm:"column:postal_code"`
	AddressLine string    `gorm:"column:address_line;not null"`
	IsDefault   bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
