package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/solespace/solespace-backend/internal/audit"
	"github.com/solespace/solespace-backend/internal/cart"
	"github.com/solespace/solespace-backend/internal/orders"
	"github.com/solespace/solespace-backend/internal/products"
	rules "github.com/solespace/solespace-backend/pkg/checkout"
	"github.com/solespace/solespace-backend/pkg/db/models"
	"github.com/solespace/solespace-backend/pkg/enums"
	pkgerrors "github.com/solespace/solespace-backend/pkg/errors"
	"github.com/solespace/solespace-backend/pkg/logger"
	"github.com/solespace/solespace-backend/pkg/metrics"
	"github.com/solespace/solespace-backend/pkg/outbox"
	"github.com/solespace/solespace-backend/pkg/outbox/payloads"
)

const maxNumberAttempts = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service turns a checkout submission into a pending order.
type Service interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, req CreateOrderRequest) (*CreateOrderResult, error)
}

// Deps bundles the collaborators of the checkout service.
type Deps struct {
	Tx       txRunner
	Products *products.Repository
	Orders   *orders.Repository
	Cart     *cart.Repository
	Audit    *audit.Repository
	Outbox   outboxPublisher
	Numbers  NumberGenerator
	Metrics  *metrics.CheckoutMetrics
	Logger   *logger.Logger
}

type service struct {
	deps     Deps
	validate *validator.Validate
	now      func() time.Time
}

func NewService(deps Deps) (Service, error) {
	if deps.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if deps.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Cart == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if deps.Audit == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deps.Numbers == nil {
		deps.Numbers = NewNumberGenerator("")
	}
	return &service{
		deps:     deps,
		validate: rules.NewValidator(),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// pricedLine is a request line resolved against the catalog.
type pricedLine struct {
	product  models.Product
	variant  models.ProductVariant
	quantity int
	subtotal decimal.Decimal
}

func (s *service) CreateOrder(ctx context.Context, userID uuid.UUID, req CreateOrderRequest) (*CreateOrderResult, error) {
	result, err := s.createOrder(ctx, userID, req)
	if err != nil {
		s.deps.Metrics.OrderCreated(metrics.ResultFailure)
		return nil, err
	}
	s.deps.Metrics.OrderCreated(metrics.ResultSuccess)
	if s.deps.Logger != nil {
		logCtx := s.deps.Logger.WithOrderID(ctx, result.Order.ID)
		logCtx = s.deps.Logger.WithField(logCtx, "order_number", result.OrderNumber)
		s.deps.Logger.Info(logCtx, "checkout.order_created")
	}
	return result, nil
}

func (s *service) createOrder(ctx context.Context, userID uuid.UUID, req CreateOrderRequest) (*CreateOrderResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	shipping := req.Shipping.addressFields()
	items := mergeItems(req.Items)

	var created *models.Order
	err := s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		lines, total, err := s.priceLines(ctx, tx, items)
		if err != nil {
			return err
		}
		if !total.Equal(req.TotalAmount) {
			return pkgerrors.New(pkgerrors.CodeValidation, "order total no longer matches current prices, please review your cart").
				WithDetails(map[string]any{"expected_total": total.StringFixed(2)})
		}

		productRepo := s.deps.Products.WithTx(tx)
		for _, line := range lines {
			if err := productRepo.DecrementStock(ctx, line.variant.ID, line.quantity); err != nil {
				if errors.Is(err, products.ErrInsufficientStock) {
					return stockExceeded(line)
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
			}
		}

		number, err := s.nextNumber(ctx, tx)
		if err != nil {
			return err
		}

		order := buildOrder(userID, number, total, req.Customer, shipping, lines)
		ordersRepo := s.deps.Orders.WithTx(tx)
		if err := ordersRepo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		orderID := strconv.FormatUint(order.ID, 10)
		if err := s.deps.Audit.WithTx(tx).Record(ctx, audit.Entry{
			Action:     enums.AuditOrderCreated,
			Actor:      enums.AuditActorCustomer,
			UserID:     &userID,
			EntityType: "order",
			EntityID:   orderID,
			Metadata:   map[string]any{"order_number": number, "total_amount": total.StringFixed(2)},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record audit")
		}

		if err := s.deps.Outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{UserID: &userID, Role: string(enums.AuditActorCustomer)},
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				OrderNumber: number,
				UserID:      userID,
				TotalAmount: total,
				ItemCount:   len(order.Items),
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order_created")
		}

		purchased := make([]cart.LineIdentity, 0, len(lines))
		for _, line := range lines {
			purchased = append(purchased, cart.LineIdentity{
				ProductID: line.product.ID,
				Size:      line.variant.Size,
				Color:     line.variant.Color,
			})
		}
		if err := s.deps.Cart.WithTx(tx).DeleteIdentities(ctx, userID, purchased); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear purchased cart lines")
		}

		created, err = ordersRepo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &CreateOrderResult{Order: orders.ToDTO(*created), OrderNumber: created.OrderNumber}, nil
}

func (s *service) validateRequest(req CreateOrderRequest) error {
	if len(req.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "no items selected for checkout")
	}
	if err := s.validate.Struct(req); err != nil {
		return rules.FormatValidationErrors(err)
	}
	if req.TotalAmount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "total_amount must not be negative")
	}
	shipping := req.Shipping.addressFields()
	if req.Shipping.structured() {
		return rules.ValidateAddress(shipping)
	}
	if err := rules.ValidateFallbackShipping(rules.FallbackShipping{
		Name:        shipping.Name,
		Phone:       shipping.Phone,
		AddressLine: shipping.AddressLine,
	}); err != nil {
		return err
	}
	if shipping.PostalCode != "" && !rules.IsValidPostalCode(shipping.PostalCode) {
		return pkgerrors.New(pkgerrors.CodeValidation, "postal_code must be exactly 4 digits").
			WithDetails(map[string]string{"postal_code": "must be exactly 4 digits"})
	}
	return nil
}

func (s *service) priceLines(ctx context.Context, tx *gorm.DB, items []ItemRequest) ([]pricedLine, decimal.Decimal, error) {
	ids := make([]uint64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	catalog, err := s.deps.Products.WithTx(tx).FindByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	total := decimal.Zero
	lines := make([]pricedLine, 0, len(items))
	for _, item := range items {
		product, ok := catalog[item.ProductID]
		if !ok || !product.IsActive {
			return nil, decimal.Zero, pkgerrors.Newf(pkgerrors.CodeValidation, "product %d is no longer available", item.ProductID).
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		variant, ok := products.ResolveVariant(product, item.Size, item.Color)
		if !ok {
			return nil, decimal.Zero, pkgerrors.Newf(pkgerrors.CodeValidation, "%s is not available in the selected size or color", product.Name).
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		subtotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(subtotal)
		lines = append(lines, pricedLine{product: product, variant: *variant, quantity: item.Quantity, subtotal: subtotal})
	}
	return lines, total, nil
}

func (s *service) nextNumber(ctx context.Context, tx *gorm.DB) (string, error) {
	repo := s.deps.Orders.WithTx(tx)
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		candidate, err := s.deps.Numbers(s.now())
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		exists, err := repo.OrderNumberExists(ctx, candidate)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check order number")
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeConflict, "could not allocate an order number, please retry")
}

// mergeItems folds repeated variants into one line, keeping first-seen order.
func mergeItems(items []ItemRequest) []ItemRequest {
	type key struct {
		id          uint64
		size, color string
	}
	index := map[key]int{}
	out := make([]ItemRequest, 0, len(items))
	for _, item := range items {
		k := key{item.ProductID, strings.ToLower(strings.TrimSpace(item.Size)), strings.ToLower(strings.TrimSpace(item.Color))}
		if i, ok := index[k]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		index[k] = len(out)
		out = append(out, item)
	}
	return out
}

func buildOrder(userID uuid.UUID, number string, total decimal.Decimal, contact ContactRequest, shipping rules.AddressFields, lines []pricedLine) *models.Order {
	phone := strings.TrimSpace(contact.Phone)
	if phone == "" {
		phone = shipping.Phone
	}
	order := &models.Order{
		OrderNumber:         number,
		UserID:              userID,
		Status:              enums.OrderStatusPending,
		PaymentStatus:       enums.PaymentStatusPending,
		PaymentMethod:       enums.PaymentMethodPayMongo,
		TotalAmount:         total,
		CustomerName:        strings.TrimSpace(contact.Name),
		CustomerEmail:       strings.TrimSpace(contact.Email),
		CustomerPhone:       phone,
		ShippingName:        shipping.Name,
		ShippingPhone:       shipping.Phone,
		ShippingRegion:      shipping.Region,
		ShippingProvince:    shipping.Province,
		ShippingCity:        shipping.City,
		ShippingBarangay:    shipping.Barangay,
		ShippingAddressLine: shipping.AddressLine,
	}
	if shipping.PostalCode != "" {
		code := shipping.PostalCode
		order.ShippingPostalCode = &code
	}
	for _, line := range lines {
		variantID := line.variant.ID
		order.Items = append(order.Items, models.OrderLineItem{
			ProductID: line.product.ID,
			VariantID: &variantID,
			Name:      line.product.Name,
			Size:      line.variant.Size,
			Color:     line.variant.Color,
			UnitPrice: line.product.Price,
			Quantity:  line.quantity,
			Subtotal:  line.subtotal,
		})
	}
	return order
}

func stockExceeded(line pricedLine) error {
	return pkgerrors.Newf(pkgerrors.CodeStockExceeded, "only %d left of %s", line.variant.Stock, line.product.Name).
		WithDetails(map[string]any{"product_id": line.product.ID, "available": line.variant.Stock})
}
