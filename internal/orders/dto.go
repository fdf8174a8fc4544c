package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/solespace/solespace-backend/pkg/db/models"
	"github.com/solespace/solespace-backend/pkg/enums"
)

type ContactDTO struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type ShippingDTO struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Region      string `json:"region,omitempty"`
	Province    string `json:"province,omitempty"`
	City        string `json:"city,omitempty"`
	Barangay    string `json:"barangay,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	AddressLine string `json:"address_line"`
}

type ItemDTO struct {
	ProductID uint64          `json:"product_id"`
	Name      string          `json:"name"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// OrderDTO is the customer-facing view of an order.
type OrderDTO struct {
	ID                 uint64              `json:"id"`
	OrderNumber        string              `json:"order_number"`
	Status             enums.OrderStatus   `json:"status"`
	PaymentStatus      enums.PaymentStatus `json:"payment_status"`
	PaymentMethod      enums.PaymentMethod `json:"payment_method"`
	TotalAmount        decimal.Decimal     `json:"total_amount"`
	Customer           ContactDTO          `json:"customer"`
	Shipping           ShippingDTO         `json:"shipping"`
	PaymongoLinkID     *string             `json:"paymongo_link_id,omitempty"`
	CancellationReason *string             `json:"cancellation_reason,omitempty"`
	Items              []ItemDTO           `json:"items"`
	PaidAt             *time.Time          `json:"paid_at,omitempty"`
	CancelledAt        *time.Time          `json:"cancelled_at,omitempty"`
	DeliveredAt        *time.Time          `json:"delivered_at,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
}

// OrderList is one page of order history.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// ToDTO renders a persisted order for clients.
func ToDTO(o models.Order) OrderDTO {
	dto := OrderDTO{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		PaymentMethod: o.PaymentMethod,
		TotalAmount:   o.TotalAmount,
		Customer: ContactDTO{
			Name:  o.CustomerName,
			Email: o.CustomerEmail,
			Phone: o.CustomerPhone,
		},
		Shipping: ShippingDTO{
			Name:        o.ShippingName,
			Phone:       o.ShippingPhone,
			Region:      o.ShippingRegion,
			Province:    o.ShippingProvince,
			City:        o.ShippingCity,
			Barangay:    o.ShippingBarangay,
			AddressLine: o.ShippingAddressLine,
		},
		PaymongoLinkID:     o.PaymongoLinkID,
		CancellationReason: o.CancellationReason,
		Items:              make([]ItemDTO, 0, len(o.Items)),
		PaidAt:             o.PaidAt,
		CancelledAt:        o.CancelledAt,
		DeliveredAt:        o.DeliveredAt,
		CreatedAt:          o.CreatedAt,
	}
	if o.ShippingPostalCode != nil {
		dto.Shipping.PostalCode = *o.ShippingPostalCode
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, ItemDTO{
			ProductID: item.ProductID,
			Name:      item.Name,
			Size:      item.Size,
			Color:     item.Color,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
		})
	}
	return dto
}
