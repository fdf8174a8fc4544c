package checkout

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/solespace/solespace-backend/internal/audit"
	"github.com/solespace/solespace-backend/internal/cart"
	"github.com/solespace/solespace-backend/internal/orders"
	"github.com/solespace/solespace-backend/internal/products"
	"github.com/solespace/solespace-backend/pkg/db"
	"github.com/solespace/solespace-backend/pkg/db/dbtest"
	"github.com/solespace/solespace-backend/pkg/db/models"
	"github.com/solespace/solespace-backend/pkg/enums"
	pkgerrors "github.com/solespace/solespace-backend/pkg/errors"
	"github.com/solespace/solespace-backend/pkg/metrics"
	"github.com/solespace/solespace-backend/pkg/outbox"
)

type fixture struct {
	svc  Service
	conn *gorm.DB
	reg  *prometheus.Registry
}

func newFixture(t *testing.T, numbers NumberGenerator) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	reg := prometheus.NewRegistry()
	svc, err := NewService(Deps{
		Tx:       db.Wrap(conn),
		Products: products.NewRepository(conn),
		Orders:   orders.NewRepository(conn),
		Cart:     cart.NewRepository(conn),
		Audit:    audit.NewRepository(conn),
		Outbox:   outbox.NewService(outbox.NewRepository(conn), nil),
		Numbers:  numbers,
		Metrics:  metrics.NewCheckoutMetrics(reg),
	})
	require.NoError(t, err)
	return fixture{svc: svc, conn: conn, reg: reg}
}

func structuredShipping() ShippingRequest {
	return ShippingRequest{
		Name:        "Juan Dela Cruz",
		Phone:       "09171234567",
		Region:      "NCR",
		Province:    "Metro Manila",
		City:        "Quezon City",
		Barangay:    "Bagumbayan",
		PostalCode:  "1110",
		AddressLine: "12 Mabini Street",
	}
}

func request(total string, items ...ItemRequest) CreateOrderRequest {
	return CreateOrderRequest{
		Items:         items,
		TotalAmount:   decimal.RequireFromString(total),
		Customer:      ContactRequest{Name: "Juan Dela Cruz", Email: "juan@example.com"},
		Shipping:      structuredShipping(),
		PaymentMethod: "paymongo",
	}
}

func variantStock(t *testing.T, conn *gorm.DB, productID uint64, size string) int {
	t.Helper()
	var v models.ProductVariant
	require.NoError(t, conn.Where("product_id = ? AND size = ?", productID, size).First(&v).Error)
	return v.Stock
}

func countRows(t *testing.T, conn *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := conn.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func createdCount(t *testing.T, reg *prometheus.Registry, result string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "checkout_orders_created_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "result" && lp.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestCreateOrderPersistsOrderAndClearsPurchasedLines(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	runner := products.SeedProduct(t, f.conn, "Court Runner", "1200.00", "white", map[string]int{"42": 5})
	slide := products.SeedProduct(t, f.conn, "Pool Slide", "450.00", "black", map[string]int{"40": 3})
	user := uuid.New()

	cartRepo := cart.NewRepository(f.conn)
	require.NoError(t, cartRepo.Create(ctx, &models.CartItem{UserID: user, ProductID: runner.ID, Size: "42", Color: "white", Quantity: 2}))
	require.NoError(t, cartRepo.Create(ctx, &models.CartItem{UserID: user, ProductID: slide.ID, Size: "40", Color: "black", Quantity: 1}))

	res, err := f.svc.CreateOrder(ctx, user, request("2400.00",
		ItemRequest{ProductID: runner.ID, Name: "Court Runner", Size: "42", Color: "White", Price: decimal.RequireFromString("1.00"), Quantity: 2},
	))
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(res.OrderNumber, "SS-"))
	require.Equal(t, res.OrderNumber, res.Order.OrderNumber)
	require.Equal(t, enums.OrderStatusPending, res.Order.Status)
	require.Equal(t, enums.PaymentStatusPending, res.Order.PaymentStatus)
	require.True(t, res.Order.TotalAmount.Equal(decimal.RequireFromString("2400")))
	require.Len(t, res.Order.Items, 1)
	require.True(t, res.Order.Items[0].UnitPrice.Equal(decimal.RequireFromString("1200")))
	require.Equal(t, "white", res.Order.Items[0].Color)
	require.Equal(t, "09171234567", res.Order.Customer.Phone)

	require.Equal(t, 3, variantStock(t, f.conn, runner.ID, "42"))
	require.Equal(t, 3, variantStock(t, f.conn, slide.ID, "40"))

	remaining, err := cartRepo.ListByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, slide.ID, remaining[0].ProductID)

	require.EqualValues(t, 1, countRows(t, f.conn, &models.OutboxEvent{}, "event_type = ?", enums.EventOrderCreated))
	entries, err := audit.NewRepository(f.conn).ListForEntity(ctx, "order", fmt.Sprint(res.Order.ID))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 1.0, createdCount(t, f.reg, metrics.ResultSuccess))
}

func TestCreateOrderRejectsStaleTotal(t *testing.T) {
	f := newFixture(t, nil)
	p := products.SeedProduct(t, f.conn, "Court Runner", "1200.00", "white", map[string]int{"42": 5})

	_, err := f.svc.CreateOrder(context.Background(), uuid.New(), request("1000.00",
		ItemRequest{ProductID: p.ID, Size: "42", Color: "white", Quantity: 1},
	))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	require.Equal(t, "1200.00", details["expected_total"])

	require.Equal(t, 5, variantStock(t, f.conn, p.ID, "42"))
	require.EqualValues(t, 0, countRows(t, f.conn, &models.Order{}, ""))
	require.Equal(t, 1.0, createdCount(t, f.reg, metrics.ResultFailure))
}

func TestCreateOrderStockExceededRollsBack(t *testing.T) {
	f := newFixture(t, nil)
	a := products.SeedProduct(t, f.conn, "Court Runner", "1000.00", "white", map[string]int{"42": 5})
	b := products.SeedProduct(t, f.conn, "Trail Blazer", "500.00", "green", map[string]int{"41": 1})

	_, err := f.svc.CreateOrder(context.Background(), uuid.New(), request("3000.00",
		ItemRequest{ProductID: a.ID, Size: "42", Color: "white", Quantity: 2},
		ItemRequest{ProductID: b.ID, Size: "41", Color: "green", Quantity: 2},
	))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStockExceeded))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	require.Equal(t, 1, details["available"])

	require.Equal(t, 5, variantStock(t, f.conn, a.ID, "42"))
	require.Equal(t, 1, variantStock(t, f.conn, b.ID, "41"))
	require.EqualValues(t, 0, countRows(t, f.conn, &models.Order{}, ""))
	require.EqualValues(t, 0, countRows(t, f.conn, &models.OutboxEvent{}, ""))
}

func TestCreateOrderMergesDuplicateLines(t *testing.T) {
	f := newFixture(t, nil)
	p := products.SeedProduct(t, f.conn, "Court Runner", "1200.00", "white", map[string]int{"42": 5})

	res, err := f.svc.CreateOrder(context.Background(), uuid.New(), request("3600.00",
		ItemRequest{ProductID: p.ID, Size: "42", Color: "white", Quantity: 1},
		ItemRequest{ProductID: p.ID, Size: "42", Color: "WHITE", Quantity: 2},
	))
	require.NoError(t, err)
	require.Len(t, res.Order.Items, 1)
	require.Equal(t, 3, res.Order.Items[0].Quantity)
	require.Equal(t, 2, variantStock(t, f.conn, p.ID, "42"))
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t, nil)
	p := products.SeedProduct(t, f.conn, "Court Runner", "1200.00", "white", map[string]int{"42": 5})
	item := ItemRequest{ProductID: p.ID, Size: "42", Color: "white", Quantity: 1}

	cases := map[string]func(*CreateOrderRequest){
		"no items":           func(r *CreateOrderRequest) { r.Items = nil },
		"bad email":          func(r *CreateOrderRequest) { r.Customer.Email = "juan" },
		"bad payment method": func(r *CreateOrderRequest) { r.PaymentMethod = "cod" },
		"bad postal code":    func(r *CreateOrderRequest) { r.Shipping.PostalCode = "11A0" },
		"short address line": func(r *CreateOrderRequest) { r.Shipping.AddressLine = "12" },
		"zero quantity":      func(r *CreateOrderRequest) { r.Items[0].Quantity = 0 },
		"fallback missing line": func(r *CreateOrderRequest) {
			r.Shipping = ShippingRequest{Name: "Juan", Phone: "0917"}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := request("1200.00", item)
			mutate(&req)
			_, err := f.svc.CreateOrder(context.Background(), uuid.New(), req)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestCreateOrderAcceptsFallbackShipping(t *testing.T) {
	f := newFixture(t, nil)
	p := products.SeedProduct(t, f.conn, "Court Runner", "1200.00", "white", map[string]int{"42": 5})

	req := request("1200.00", ItemRequest{ProductID: p.ID, Size: "42", Color: "white", Quantity: 1})
	req.Shipping = ShippingRequest{Name: "Juan", Phone: "09998887777", AddressLine: "Unit 4, Sunrise Tower"}
	res, err := f.svc.CreateOrder(context.Background(), uuid.New(), req)
	require.NoError(t, err)
	require.Equal(t, "09998887777", res.Order.Customer.Phone)
	require.Equal(t, "Unit 4, Sunrise Tower", res.Order.Shipping.AddressLine)
}

func TestCreateOrderRejectsInactiveProduct(t *testing.T) {
	f := newFixture(t, nil)
	p := products.SeedProduct(t, f.conn, "Court Runner", "1200.00", "white", map[string]int{"42": 5})
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", p.ID).Update("is_active", false).Error)

	_, err := f.svc.CreateOrder(context.Background(), uuid.New(), request("1200.00",
		ItemRequest{ProductID: p.ID, Size: "42", Color: "white", Quantity: 1},
	))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCreateOrderRetriesTakenOrderNumber(t *testing.T) {
	seq := []string{"SS-1", "SS-1", "SS-2"}
	next := 0
	f := newFixture(t, func(time.Time) (string, error) {
		n := seq[next]
		next++
		return n, nil
	})
	p := products.SeedProduct(t, f.conn, "Court Runner", "1200.00", "white", map[string]int{"42": 5})
	req := request("1200.00", ItemRequest{ProductID: p.ID, Size: "42", Color: "white", Quantity: 1})

	first, err := f.svc.CreateOrder(context.Background(), uuid.New(), req)
	require.NoError(t, err)
	second, err := f.svc.CreateOrder(context.Background(), uuid.New(), req)
	require.NoError(t, err)
	require.Equal(t, "SS-1", first.OrderNumber)
	require.Equal(t, "SS-2", second.OrderNumber)
}

func TestCreateOrderRequiresUser(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.CreateOrder(context.Background(), uuid.Nil, request("0"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}
