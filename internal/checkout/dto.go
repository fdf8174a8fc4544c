package checkout

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/solespace/solespace-backend/internal/orders"
	rules "github.com/solespace/solespace-backend/pkg/checkout"
)

// CreateOrderRequest is the body of POST /api/checkout/create-order.
type CreateOrderRequest struct {
	Items         []ItemRequest   `json:"items" validate:"required,min=1,dive"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Customer      ContactRequest  `json:"customer"`
	Shipping      ShippingRequest `json:"shipping"`
	PaymentMethod string          `json:"payment_method" validate:"required,oneof=paymongo"`
}

// ItemRequest is one purchased line. Name and price are the client's view;
// the catalog is authoritative for both.
type ItemRequest struct {
	ProductID uint64          `json:"product_id" validate:"required"`
	LineID    string          `json:"line_id,omitempty"`
	Name      string          `json:"name"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
}

type ContactRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone"`
}

type ShippingRequest struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Region      string `json:"region,omitempty"`
	Province    string `json:"province,omitempty"`
	City        string `json:"city,omitempty"`
	Barangay    string `json:"barangay,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	AddressLine string `json:"address_line"`
}

// structured reports whether the destination came from a saved address
// rather than the free-text form.
func (s ShippingRequest) structured() bool {
	return strings.TrimSpace(s.Region) != "" ||
		strings.TrimSpace(s.Province) != "" ||
		strings.TrimSpace(s.City) != "" ||
		strings.TrimSpace(s.Barangay) != ""
}

func (s ShippingRequest) addressFields() rules.AddressFields {
	return rules.AddressFields{
		Name:        strings.TrimSpace(s.Name),
		Phone:       strings.TrimSpace(s.Phone),
		Region:      strings.TrimSpace(s.Region),
		Province:    strings.TrimSpace(s.Province),
		City:        strings.TrimSpace(s.City),
		Barangay:    strings.TrimSpace(s.Barangay),
		PostalCode:  strings.TrimSpace(s.PostalCode),
		AddressLine: strings.TrimSpace(s.AddressLine),
	}
}

// CreateOrderResult is returned to the client after the order is stored.
type CreateOrderResult struct {
	Order       orders.OrderDTO `json:"order"`
	OrderNumber string          `json:"order_number"`
}
