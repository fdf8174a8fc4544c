package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solespace/solespace-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once checkout persists an order.
type OrderCreatedEvent struct {
	OrderID     uint64          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      uuid.UUID       `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
}

// OrderCancelledEvent is emitted when an order is cancelled and its stock
// returned.
type OrderCancelledEvent struct {
	OrderID     uint64            `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	UserID      uuid.UUID         `json:"user_id"`
	From        enums.OrderStatus `json:"from"`
	Reason      string            `json:"reason,omitempty"`
	CancelledAt time.Time         `json:"cancelled_at"`
}

// OrderPaidEvent is emitted when the gateway confirms payment.
type OrderPaidEvent struct {
	OrderID        uint64          `json:"order_id"`
	OrderNumber    string          `json:"order_number"`
	PaymongoLinkID string          `json:"paymongo_link_id"`
	Amount         decimal.Decimal `json:"amount"`
	PaidAt         time.Time       `json:"paid_at"`
}

// PaymentRefundRequiredEvent is emitted when the gateway captured money that
// cannot settle the order, either because the order was already cancelled or
// because the amount paid differs from the order total.
type PaymentRefundRequiredEvent struct {
	OrderID        uint64          `json:"order_id"`
	OrderNumber    string          `json:"order_number"`
	PaymongoLinkID string          `json:"paymongo_link_id"`
	Reason         string          `json:"reason"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	OrderTotal     decimal.Decimal `json:"order_total"`
	PaidAt         time.Time       `json:"paid_at"`
}

// OrderStatusChangedEvent covers every other fulfillment transition.
type OrderStatusChangedEvent struct {
	OrderID     uint64            `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
}

// StockReleasedEvent lists variants whose stock was restored.
type StockReleasedEvent struct {
	OrderID uint64              `json:"order_id"`
	Lines   []ReleasedStockLine `json:"lines"`
}

type ReleasedStockLine struct {
	ProductID uint64  `json:"product_id"`
	VariantID *uint64 `json:"variant_id,omitempty"`
	Quantity  int     `json:"quantity"`
}
