package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solespace/solespace-backend/pkg/enums"
)

// Order is the persisted copy of a checkout submission.
type Order struct {
	ID            uint64              `gorm:"column:id;primaryKey;autoIncrement"`
	OrderNumber   string              `gorm:"column:order_number;not null;uniqueIndex"`
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Status        enums.OrderStatus   `gorm:"column:status;not null;default:'pending'"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;not null;default:'pending'"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;not null;default:'paymongo'"`
	TotalAmount   decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`

	CustomerName  string `gorm:"column:customer_name;not null"`
	CustomerEmail string `gorm:"column:customer_email;not null"`
	CustomerPhone string `gorm:"column:customer_phone;not null"`

	ShippingName        string  `gorm:"column:shipping_name;not null"`
	ShippingPhone       string  `gorm:"column:shipping_phone;not null"`
	ShippingRegion      string  `gorm:"column:shipping_region;not null;default:''"`
	ShippingProvince    string  `gorm:"column:shipping_province;not null;default:''"`
	ShippingCity        string  `gorm:"column:shipping_city;not null;default:''"`
	ShippingBarangay    string  `gorm:"column:shipping_barangay;not null;default:''"`
	ShippingPostalCode  *string `gorm:"column:shipping_postal_code"`
	ShippingAddressLine string  `gorm:"column:shipping_address_line;not null"`

	PaymongoLinkID     *string `gorm:"column:paymongo_link_id"`
	CancellationReason *string `gorm:"column:cancellation_reason"`
	CancellationNote   *string `gorm:"column:cancellation_note"`

	Items []OrderLineItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	PaidAt      *time.Time `gorm:"column:paid_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderLineItem snapshots a purchased variant at checkout time.
type OrderLineItem struct {
	ID        uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID   uint64          `gorm:"column:order_id;not null;index"`
	ProductID uint64          `gorm:"column:product_id;not null"`
	VariantID *uint64         `gorm:"column:variant_id"`
	Name      string          `gorm:"column:name;not null"`
	Size      string          `gorm:"column:size;not null;default:''"`
	Color     string          `gorm:"column:color;not null;default:''"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	Subtotal  decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
