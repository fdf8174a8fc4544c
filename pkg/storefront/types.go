package storefront

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one row of a cart. For signed-in users ID is the server cart
// row id; for guests it is "<productID>-<size>-<color>" or a bare product id.
type CartLine struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"product_id,omitempty"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	Size         string          `json:"size,omitempty"`
	Color        string          `json:"color,omitempty"`
	ImageURL     string          `json:"image_url,omitempty"`
	StockCeiling *int            `json:"stock_ceiling,omitempty"`
}

// UnmarshalJSON accepts prices and product ids as numbers or strings. Prices
// go through CoercePrice so "₱1,200.00" still loads.
func (l *CartLine) UnmarshalJSON(data []byte) error {
	type alias CartLine
	var raw struct {
		alias
		UnitPrice json.RawMessage `json:"price"`
		ProductID json.RawMessage `json:"product_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = CartLine(raw.alias)
	l.UnitPrice = CoercePrice(raw.UnitPrice)
	l.ProductID = rawScalar(raw.ProductID)
	return nil
}

func rawScalar(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return trimmed
}

// Subtotal is UnitPrice x Quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// AtCeiling reports whether the line cannot grow any further.
func (l CartLine) AtCeiling() bool {
	return l.StockCeiling != nil && l.Quantity >= *l.StockCeiling
}

// ResolveProductID returns the integer product id for the line: ProductID
// when set, otherwise the whole line id. Composite guest ids without a
// ProductID do not resolve.
func (l CartLine) ResolveProductID() (uint64, bool) {
	candidate := strings.TrimSpace(l.ProductID)
	if candidate == "" {
		candidate = strings.TrimSpace(l.ID)
	}
	id, err := strconv.ParseUint(candidate, 10, 64)
	return id, err == nil && id > 0
}

// GuestLineID builds the composite id used for guest lines.
func GuestLineID(productID, size, color string) string {
	return productID + "-" + size + "-" + color
}

// CartSnapshot is an ordered list of lines plus the ids chosen for checkout.
// Selected only ever holds ids present in Lines.
type CartSnapshot struct {
	Lines    []CartLine
	selected map[string]struct{}
}

func NewSnapshot(lines []CartLine) CartSnapshot {
	return CartSnapshot{Lines: lines}
}

func (s CartSnapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}

// TotalItemCount sums quantities across all lines.
func (s CartSnapshot) TotalItemCount() int {
	total := 0
	for _, line := range s.Lines {
		total += line.Quantity
	}
	return total
}

// Line finds a line by id.
func (s CartSnapshot) Line(id string) (CartLine, bool) {
	for _, line := range s.Lines {
		if line.ID == id {
			return line, true
		}
	}
	return CartLine{}, false
}

// Select marks ids for checkout. Unknown ids are ignored.
func (s *CartSnapshot) Select(ids ...string) {
	if s.selected == nil {
		s.selected = map[string]struct{}{}
	}
	for _, id := range ids {
		if _, ok := s.Line(id); ok {
			s.selected[id] = struct{}{}
		}
	}
}

func (s *CartSnapshot) Deselect(ids ...string) {
	for _, id := range ids {
		delete(s.selected, id)
	}
}

// SelectedIDs returns the selection in line order.
func (s CartSnapshot) SelectedIDs() []string {
	ids := make([]string, 0, len(s.selected))
	for _, line := range s.Lines {
		if _, ok := s.selected[line.ID]; ok {
			ids = append(ids, line.ID)
		}
	}
	return ids
}

// Prune drops selected ids whose line no longer exists.
func (s *CartSnapshot) Prune() {
	for id := range s.selected {
		if _, ok := s.Line(id); !ok {
			delete(s.selected, id)
		}
	}
}

func (s CartSnapshot) withLine(line CartLine) CartSnapshot {
	out := s.clone()
	for i := range out.Lines {
		if out.Lines[i].ID == line.ID {
			out.Lines[i] = line
			return out
		}
	}
	out.Lines = append(out.Lines, line)
	return out
}

func (s CartSnapshot) without(id string) CartSnapshot {
	out := s.clone()
	out.Lines = slices.DeleteFunc(out.Lines, func(l CartLine) bool { return l.ID == id })
	out.Prune()
	return out
}

func (s CartSnapshot) clone() CartSnapshot {
	out := CartSnapshot{Lines: slices.Clone(s.Lines)}
	if s.selected != nil {
		out.selected = make(map[string]struct{}, len(s.selected))
		for id := range s.selected {
			out.selected[id] = struct{}{}
		}
	}
	return out
}

// Session describes who is browsing. An empty UserID means guest.
type Session struct {
	UserID string
	Token  string
}

func (s Session) Authenticated() bool {
	return strings.TrimSpace(s.UserID) != "" && strings.TrimSpace(s.Token) != ""
}

// Address mirrors a saved address-book entry.
type Address struct {
	ID          uint64 `json:"id,omitempty"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Region      string `json:"region"`
	Province    string `json:"province"`
	City        string `json:"city"`
	Barangay    string `json:"barangay"`
	PostalCode  string `json:"postal_code,omitempty"`
	AddressLine string `json:"address_line"`
	IsDefault   bool   `json:"is_default"`
}

// Contact is the customer block of a checkout.
type Contact struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone"`
}

// ShippingFields is the resolved destination sent with an order.
type ShippingFields struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Region      string `json:"region,omitempty"`
	Province    string `json:"province,omitempty"`
	City        string `json:"city,omitempty"`
	Barangay    string `json:"barangay,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	AddressLine string `json:"address_line"`
}

// AddressChoice carries either a selected saved address or the free-text
// fallback fields.
type AddressChoice struct {
	Selected *Address
	Fallback ShippingFields
}

const PaymentMethodPayMongo = "paymongo"

type CheckoutItem struct {
	ProductID uint64          `json:"product_id"`
	LineID    string          `json:"line_id,omitempty"`
	Name      string          `json:"name"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// CheckoutPayload is the body of POST /api/checkout/create-order.
type CheckoutPayload struct {
	Items         []CheckoutItem  `json:"items"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Customer      Contact         `json:"customer"`
	Shipping      ShippingFields  `json:"shipping"`
	PaymentMethod string          `json:"payment_method"`
}

type OrderItem struct {
	ProductID uint64          `json:"product_id"`
	Name      string          `json:"name"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Order is the client view of a persisted order.
type Order struct {
	ID             uint64          `json:"id"`
	OrderNumber    string          `json:"order_number"`
	Status         string          `json:"status"`
	PaymentStatus  string          `json:"payment_status"`
	PaymentMethod  string          `json:"payment_method"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Customer       Contact         `json:"customer"`
	Shipping       ShippingFields  `json:"shipping"`
	PaymongoLinkID *string         `json:"paymongo_link_id,omitempty"`
	Items          []OrderItem     `json:"items"`
	CreatedAt      time.Time       `json:"created_at"`
}

// PaymentLink is the hosted checkout returned by the gateway proxy.
type PaymentLink struct {
	CheckoutURL string `json:"checkout_url"`
	LinkID      string `json:"link_id"`
}

type Variant struct {
	ID    uint64 `json:"id"`
	Size  string `json:"size"`
	Color string `json:"color"`
	Stock int    `json:"stock"`
}

type Product struct {
	ID          uint64          `json:"id"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url,omitempty"`
	Variants    []Variant       `json:"variants"`
}

// Variant finds the variant for size and color.
func (p Product) Variant(size, color string) (Variant, bool) {
	for _, v := range p.Variants {
		if strings.EqualFold(v.Size, size) && strings.EqualFold(v.Color, color) {
			return v, true
		}
	}
	return Variant{}, false
}
