package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/solespace/solespace-backend/internal/audit"
	"github.com/solespace/solespace-backend/internal/products"
	"github.com/solespace/solespace-backend/pkg/db"
	"github.com/solespace/solespace-backend/pkg/db/dbtest"
	"github.com/solespace/solespace-backend/pkg/db/models"
	"github.com/solespace/solespace-backend/pkg/enums"
	pkgerrors "github.com/solespace/solespace-backend/pkg/errors"
	"github.com/solespace/solespace-backend/pkg/outbox"
	"github.com/solespace/solespace-backend/pkg/pagination"
	"github.com/solespace/solespace-backend/pkg/paymongo"
)

func newTestService(t *testing.T, opts ...Option) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(
		NewRepository(conn),
		products.NewRepository(conn),
		audit.NewRepository(conn),
		db.Wrap(conn),
		outbox.NewService(outbox.NewRepository(conn), nil),
		nil,
		opts...,
	)
	require.NoError(t, err)
	return svc, conn
}

type stubLinks struct {
	links map[string]*paymongo.Link
	calls int
}

func (s *stubLinks) GetLink(_ context.Context, linkID string) (*paymongo.Link, error) {
	s.calls++
	link, ok := s.links[linkID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "no such link")
	}
	return link, nil
}

// seedOrder stores an order for qty units of the product's first variant and
// takes that stock out of the catalog, as checkout would.
func seedOrder(t *testing.T, conn *gorm.DB, user uuid.UUID, product models.Product, qty int, status enums.OrderStatus) models.Order {
	t.Helper()
	variant := product.Variants[0]
	require.NoError(t, products.NewRepository(conn).DecrementStock(context.Background(), variant.ID, qty))

	subtotal := product.Price.Mul(decimal.NewFromInt(int64(qty)))
	order := models.Order{
		OrderNumber:         "SS-" + uuid.NewString()[:8],
		UserID:              user,
		Status:              status,
		PaymentStatus:       enums.PaymentStatusPending,
		PaymentMethod:       enums.PaymentMethodPayMongo,
		TotalAmount:         subtotal,
		CustomerName:        "Juan",
		CustomerEmail:       "juan@example.com",
		CustomerPhone:       "09171234567",
		ShippingName:        "Juan",
		ShippingPhone:       "09171234567",
		ShippingAddressLine: "12 Mabini Street",
		Items: []models.OrderLineItem{{
			ProductID: product.ID,
			VariantID: &variant.ID,
			Name:      product.Name,
			Size:      variant.Size,
			Color:     variant.Color,
			UnitPrice: product.Price,
			Quantity:  qty,
			Subtotal:  subtotal,
		}},
	}
	require.NoError(t, NewRepository(conn).Create(context.Background(), &order))
	return order
}

func stockOf(t *testing.T, conn *gorm.DB, variantID uint64) int {
	t.Helper()
	var v models.ProductVariant
	require.NoError(t, conn.First(&v, variantID).Error)
	return v.Stock
}

func eventCount(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestCancelRestoresStockAndEmitsEvents(t *testing.T) {
	svc, conn := newTestService(t)
	p := products.SeedProduct(t, conn, "Court Runner", "1200.00", "white", map[string]int{"42": 5})
	user := uuid.New()
	order := seedOrder(t, conn, user, p, 2, enums.OrderStatusPending)
	require.Equal(t, 3, stockOf(t, conn, p.Variants[0].ID))

	dto, err := svc.Cancel(context.Background(), CancelInput{OrderID: order.ID, UserID: user, Reason: "Changed my mind", Note: "sorry"})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, dto.Status)
	require.NotNil(t, dto.CancelledAt)
	require.NotNil(t, dto.CancellationReason)
	require.Equal(t, "Changed my mind", *dto.CancellationReason)

	require.Equal(t, 5, stockOf(t, conn, p.Variants[0].ID))
	require.EqualValues(t, 1, eventCount(t, conn, enums.EventOrderCancelled))
	require.EqualValues(t, 1, eventCount(t, conn, enums.EventStockReleased))

	entries, err := audit.NewRepository(conn).ListForEntity(context.Background(), "order", fmt.Sprint(order.ID))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, enums.AuditOrderCancelled, entries[0].Action)
}

func TestCancelRules(t *testing.T) {
	svc, conn := newTestService(t)
	p := products.SeedProduct(t, conn, "Court Runner", "1200.00", "white", map[string]int{"42": 5})
	user := uuid.New()
	processing := seedOrder(t, conn, user, p, 1, enums.OrderStatusProcessing)
	pending := seedOrder(t, conn, user, p, 1, enums.OrderStatusPending)

	_, err := svc.Cancel(context.Background(), CancelInput{OrderID: processing.ID, UserID: user, Reason: "late"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = svc.Cancel(context.Background(), CancelInput{OrderID: pending.ID, UserID: user, Reason: "  "})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Cancel(context.Background(), CancelInput{OrderID: pending.ID, UserID: uuid.New(), Reason: "not mine"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	require.Equal(t, 3, stockOf(t, conn, p.Variants[0].ID))
}

func TestAdvanceStatusFollowsTransitions(t *testing.T) {
	svc, conn := newTestService(t)
	p := products.SeedProduct(t, conn, "Court Runner", "1200.00", "white", map[string]int{"42": 5})
	order := seedOrder(t, conn, uuid.New(), p, 1, enums.OrderStatusPending)
	admin := uuid.New()
	ctx := context.Background()

	_, err := svc.AdvanceStatus(ctx, AdvanceInput{OrderID: order.ID, To: enums.OrderStatusShipped, ActorID: admin})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	for _, next := range []enums.OrderStatus{enums.OrderStatusProcessing, enums.OrderStatusToShip, enums.OrderStatusShipped, enums.OrderStatusDelivered} {
		dto, err := svc.AdvanceStatus(ctx, AdvanceInput{OrderID: order.ID, To: next, ActorID: admin})
		require.NoError(t, err)
		require.Equal(t, next, dto.Status)
	}

	dto, err := svc.AdvanceStatus(ctx, AdvanceInput{OrderID: order.ID, To: enums.OrderStatusDelivered, ActorID: admin})
	require.NoError(t, err)
	require.NotNil(t, dto.DeliveredAt)
	require.EqualValues(t, 4, eventCount(t, conn, enums.EventOrderStatusChanged))

	_, err = svc.AdvanceStatus(ctx, AdvanceInput{OrderID: order.ID, To: enums.OrderStatusCancelled, ActorID: admin})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = svc.AdvanceStatus(ctx, AdvanceInput{OrderID: order.ID, To: "lost"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAdvanceToCancelledReleasesStock(t *testing.T) {
	svc, conn := newTestService(t)
	p := products.SeedProduct(t, conn, "Court Runner", "1200.00", "white", map[string]int{"42": 5})
	order := seedOrder(t, conn, uuid.New(), p, 2, enums.OrderStatusToShip)

	dto, err := svc.AdvanceStatus(context.Background(), AdvanceInput{OrderID: order.ID, To: enums.OrderStatusCancelled, Note: "warehouse damage"})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, dto.Status)
	require.Equal(t, 5, stockOf(t, conn, p.Variants[0].ID))
}

func TestConfirmDelivery(t *testing.T) {
	svc, conn := newTestService(t)
	p := products.SeedProduct(t, conn, "Court Runner", "1200.00", "white", map[string]int{"42": 5})
	user := uuid.New()
	shipped := seedOrder(t, conn, user, p, 1, enums.OrderStatusShipped)
	pending := seedOrder(t, conn, user, p, 1, enums.OrderStatusPending)

	dto, err := svc.ConfirmDelivery(context.Background(), user, shipped.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusDelivered, dto.Status)
	require.NotNil(t, dto.DeliveredAt)

	_, err = svc.ConfirmDelivery(context.Background(), user, pending.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestAttachPaymentLinkAndMarkPaid(t *testing.T) {
	svc, conn := newTestService(t)
	p := products.SeedProduct(t, conn, "Court Runner", "1200.00", "white", map[string]int{"42": 5})
	user := uuid.New()
	order := seedOrder(t, conn, user, p, 1, enums.OrderStatusPending)
	ctx := context.Background()

	require.True(t, pkgerrors.IsCode(svc.AttachPaymentLink(ctx, user, order.ID, " "), pkgerrors.CodeValidation))
	require.True(t, pkgerrors.IsCode(svc.AttachPaymentLink(ctx, uuid.New(), order.ID, "link_1"), pkgerrors.CodeNotFound))

	require.NoError(t, svc.AttachPaymentLink(ctx, user, order.ID, "link_1"))
	require.NoError(t, svc.AttachPaymentLink(ctx, user, order.ID, "link_1"))

	paidAt := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	dto, err := svc.MarkPaidByLink(ctx, PaymentNotice{LinkID: "link_1", Amount: decimal.RequireFromString("1200"), PaidAt: paidAt})
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, dto.PaymentStatus)
	require.Equal(t, enums.OrderStatusProcessing, dto.Status)
	require.NotNil(t, dto.PaidAt)

	again, err := svc.MarkPaidByLink(ctx, PaymentNotice{LinkID: "link_1", PaidAt: paidAt.Add(time.Hour)})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusProcessing, again.Status)
	require.EqualValues(t, 1, eventCount(t, conn, enums.EventOrderPaid))

	err = svc.AttachPaymentLink(ctx, user, order.ID, "link_2")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = svc.MarkPaidByLink(ctx, PaymentNotice{LinkID: "link_unknown", PaidAt: paidAt})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestPaymentAfterCancelQueuesRefund(t *testing.T) {
	svc, conn := newTestService(t)
	p := products.SeedProduct(t, conn, "Court Runner", "1200.00", "white", map[string]int{"42": 5})
	user := uuid.New()
	order := seedOrder(t, conn, user, p, 1, enums.OrderStatusPending)
	ctx := context.Background()

	require.NoError(t, svc.AttachPaymentLink(ctx, user, order.ID, "lnk_1"))
	_, err := svc.Cancel(ctx, CancelInput{OrderID: order.ID, UserID: user, Reason: "Changed my mind"})
	require.NoError(t, err)
	require.Equal(t, 5, stockOf(t, conn, p.Variants[0].ID))

	dto, err := svc.MarkPaidByLink(ctx, PaymentNotice{LinkID: "lnk_1", Amount: decimal.RequireFromString("1200")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.NotNil(t, dto)
	require.Equal(t, enums.OrderStatusCancelled, dto.Status)
	require.Equal(t, enums.PaymentStatusPending, dto.PaymentStatus)

	stored, err := svc.Get(ctx, user, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, stored.Status)
	require.Equal(t, enums.PaymentStatusPending, stored.PaymentStatus)
	require.Nil(t, stored.PaidAt)
	require.Equal(t, 5, stockOf(t, conn, p.Variants[0].ID))
	require.Zero(t, eventCount(t, conn, enums.EventOrderPaid))
	require.EqualValues(t, 1, eventCount(t, conn, enums.EventPaymentRefundRequired))

	entries, err := audit.NewRepository(conn).ListForEntity(ctx, "order", fmt.Sprint(order.ID))
	require.NoError(t, err)
	actions := make([]enums.AuditAction, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	require.Contains(t, actions, enums.AuditOrderPaymentRejected)
	require.NotContains(t, actions, enums.AuditOrderPaid)

	err = svc.AttachPaymentLink(ctx, user, order.ID, "lnk_2")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestPaymentForWrongAmountIsNotSettled(t *testing.T) {
	svc, conn := newTestService(t)
	p := products.SeedProduct(t, conn, "Court Runner", "1200.00", "white", map[string]int{"42": 5})
	user := uuid.New()
	order := seedOrder(t, conn, user, p, 2, enums.OrderStatusPending)
	ctx := context.Background()
	require.NoError(t, svc.AttachPaymentLink(ctx, user, order.ID, "lnk_1"))

	_, err := svc.MarkPaidByLink(ctx, PaymentNotice{LinkID: "lnk_1", Amount: decimal.RequireFromString("100")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	stored, err := svc.Get(ctx, user, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPending, stored.Status)
	require.Equal(t, enums.PaymentStatusPending, stored.PaymentStatus)
	require.Zero(t, eventCount(t, conn, enums.EventOrderPaid))
	require.EqualValues(t, 1, eventCount(t, conn, enums.EventPaymentRefundRequired))

	dto, err := svc.MarkPaidByLink(ctx, PaymentNotice{LinkID: "lnk_1", Amount: decimal.RequireFromString("2400.00")})
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, dto.PaymentStatus)
	require.EqualValues(t, 1, eventCount(t, conn, enums.EventOrderPaid))
}

func TestPaymentLinksAreCheckedAgainstOrderTotal(t *testing.T) {
	links := &stubLinks{links: map[string]*paymongo.Link{
		"lnk_cheap": {ID: "lnk_cheap", Amount: decimal.RequireFromString("100.00")},
		"lnk_exact": {ID: "lnk_exact", Amount: decimal.RequireFromString("1200.00")},
	}}
	svc, conn := newTestService(t, WithPaymentLinks(links))
	p := products.SeedProduct(t, conn, "Court Runner", "1200.00", "white", map[string]int{"42": 5})
	user := uuid.New()
	order := seedOrder(t, conn, user, p, 1, enums.OrderStatusPending)
	ctx := context.Background()

	err := svc.AttachPaymentLink(ctx, user, order.ID, "lnk_cheap")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	err = svc.AttachPaymentLink(ctx, user, order.ID, "lnk_missing")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	require.NoError(t, svc.AttachPaymentLink(ctx, user, order.ID, "lnk_exact"))

	// A notice without an amount is checked against the gateway's copy of the link.
	before := links.calls
	dto, err := svc.MarkPaidByLink(ctx, PaymentNotice{LinkID: "lnk_exact"})
	require.NoError(t, err)
	require.Equal(t, before+1, links.calls)
	require.Equal(t, enums.PaymentStatusPaid, dto.PaymentStatus)
}

func TestListAndGetAreScopedToOwner(t *testing.T) {
	svc, conn := newTestService(t)
	p := products.SeedProduct(t, conn, "Court Runner", "1200.00", "white", map[string]int{"42": 9})
	user := uuid.New()
	first := seedOrder(t, conn, user, p, 1, enums.OrderStatusPending)
	seedOrder(t, conn, user, p, 1, enums.OrderStatusPending)
	seedOrder(t, conn, uuid.New(), p, 1, enums.OrderStatusPending)
	ctx := context.Background()

	list, err := svc.List(ctx, user, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, list.Orders, 2)
	require.Empty(t, list.NextCursor)

	got, err := svc.Get(ctx, user, first.ID)
	require.NoError(t, err)
	require.Equal(t, first.OrderNumber, got.OrderNumber)
	require.Len(t, got.Items, 1)

	_, err = svc.Get(ctx, uuid.New(), first.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.List(ctx, user, pagination.Params{Cursor: "%%%"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestExpireUnpaidCancelsOnlyStalePendingOrders(t *testing.T) {
	svc, conn := newTestService(t)
	p := products.SeedProduct(t, conn, "Court Runner", "1200.00", "white", map[string]int{"42": 10})
	user := uuid.New()
	ctx := context.Background()

	stale := seedOrder(t, conn, user, p, 2, enums.OrderStatusPending)
	processing := seedOrder(t, conn, user, p, 1, enums.OrderStatusProcessing)
	paid := seedOrder(t, conn, user, p, 1, enums.OrderStatusPending)
	require.NoError(t, conn.Model(&models.Order{}).Where("id = ?", paid.ID).Update("payment_status", enums.PaymentStatusPaid).Error)
	require.Equal(t, 6, stockOf(t, conn, p.Variants[0].ID))

	n, err := svc.ExpireUnpaid(ctx, time.Now().UTC().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Zero(t, n, "nothing is older than the cutoff yet")

	n, err = svc.ExpireUnpaid(ctx, time.Now().UTC().Add(time.Hour), 10)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	dto, err := svc.Get(ctx, user, stale.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, dto.Status)
	require.Equal(t, ExpiredReason, *dto.CancellationReason)
	require.Equal(t, 8, stockOf(t, conn, p.Variants[0].ID))

	for _, id := range []uint64{processing.ID, paid.ID} {
		other, err := svc.Get(ctx, user, id)
		require.NoError(t, err)
		require.NotEqual(t, enums.OrderStatusCancelled, other.Status)
	}

	n, err = svc.ExpireUnpaid(ctx, time.Now().UTC().Add(time.Hour), 10)
	require.NoError(t, err)
	require.Zero(t, n)
}
