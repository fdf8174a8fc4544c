package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/solespace/solespace-backend/internal/audit"
	"github.com/solespace/solespace-backend/internal/products"
	"github.com/solespace/solespace-backend/pkg/db/models"
	"github.com/solespace/solespace-backend/pkg/enums"
	pkgerrors "github.com/solespace/solespace-backend/pkg/errors"
	"github.com/solespace/solespace-backend/pkg/metrics"
	"github.com/solespace/solespace-backend/pkg/outbox"
	"github.com/solespace/solespace-backend/pkg/outbox/payloads"
	"github.com/solespace/solespace-backend/pkg/pagination"
	"github.com/solespace/solespace-backend/pkg/paymongo"
)

const entityType = "order"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type linkLookup interface {
	GetLink(ctx context.Context, linkID string) (*paymongo.Link, error)
}

// Service covers the order lifecycle after checkout.
type Service interface {
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	Get(ctx context.Context, userID uuid.UUID, orderID uint64) (*OrderDTO, error)
	Cancel(ctx context.Context, input CancelInput) (*OrderDTO, error)
	ConfirmDelivery(ctx context.Context, userID uuid.UUID, orderID uint64) (*OrderDTO, error)
	AdvanceStatus(ctx context.Context, input AdvanceInput) (*OrderDTO, error)
	AttachPaymentLink(ctx context.Context, userID uuid.UUID, orderID uint64, linkID string) error
	MarkPaidByLink(ctx context.Context, notice PaymentNotice) (*OrderDTO, error)
	ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// ExpiredReason is stored on orders cancelled because payment never arrived.
const ExpiredReason = "payment window expired"

// Reasons a captured payment is refused instead of settling its order.
const (
	RefundReasonOrderCancelled = "order_cancelled"
	RefundReasonAmountMismatch = "amount_mismatch"
)

// PaymentNotice is the gateway's word that a link was paid. A zero Amount
// means the notification did not carry one.
type PaymentNotice struct {
	LinkID string
	Amount decimal.Decimal
	PaidAt time.Time
}

// CancelInput is a customer's cancellation request.
type CancelInput struct {
	OrderID uint64
	UserID  uuid.UUID
	Reason  string
	Note    string
}

// AdvanceInput is an operator moving an order through fulfillment.
type AdvanceInput struct {
	OrderID uint64
	To      enums.OrderStatus
	ActorID uuid.UUID
	Note    string
}

type service struct {
	repo     *Repository
	products *products.Repository
	audit    *audit.Repository
	tx       txRunner
	outbox   outboxPublisher
	links    linkLookup
	metrics  *metrics.CheckoutMetrics
	now      func() time.Time
}

type Option func(*service)

// WithPaymentLinks lets the service read links back from the gateway so a
// link is only attached, and only settles, for the order's exact total.
func WithPaymentLinks(links linkLookup) Option {
	return func(s *service) {
		s.links = links
	}
}

func NewService(repo *Repository, productRepo *products.Repository, auditRepo *audit.Repository, tx txRunner, outbox outboxPublisher, m *metrics.CheckoutMetrics, opts ...Option) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if auditRepo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	svc := &service{
		repo:     repo,
		products: productRepo,
		audit:    auditRepo,
		tx:       tx,
		outbox:   outbox,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := &OrderList{Orders: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		out.Orders = append(out.Orders, ToDTO(row))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID, orderID uint64) (*OrderDTO, error) {
	order, err := s.loadOwned(ctx, s.repo, userID, orderID)
	if err != nil {
		return nil, err
	}
	dto := ToDTO(*order)
	return &dto, nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*OrderDTO, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOwned(ctx, repo, input.UserID, input.OrderID)
		if err != nil {
			return err
		}
		if !order.Status.CustomerCancellable() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order can no longer be cancelled (status %s)", order.Status)
		}

		extra := map[string]any{"cancellation_reason": reason, "cancelled_at": s.now()}
		if note := strings.TrimSpace(input.Note); note != "" {
			extra["cancellation_note"] = note
		}
		if err := s.cancelTx(ctx, tx, order, enums.AuditActorCustomer, &input.UserID, extra); err != nil {
			return err
		}
		result, err = repo.FindByID(ctx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	dto := ToDTO(*result)
	return &dto, nil
}

func (s *service) ConfirmDelivery(ctx context.Context, userID uuid.UUID, orderID uint64) (*OrderDTO, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOwned(ctx, repo, userID, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusShipped {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "only shipped orders can be confirmed (status %s)", order.Status)
		}
		extra := map[string]any{"delivered_at": s.now()}
		if err := s.transitionTx(ctx, tx, order, enums.OrderStatusDelivered, enums.AuditActorCustomer, &userID, extra); err != nil {
			return err
		}
		result, err = repo.FindByID(ctx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	dto := ToDTO(*result)
	return &dto, nil
}

func (s *service) AdvanceStatus(ctx context.Context, input AdvanceInput) (*OrderDTO, error) {
	if input.OrderID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !input.To.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown status %q", input.To)
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			return notFoundOr(err, "load order")
		}
		if order.Status == input.To {
			result = order
			return nil
		}
		if !order.Status.CanTransitionTo(input.To) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move order from %s to %s", order.Status, input.To).
				WithDetails(map[string]any{"from": order.Status, "to": input.To})
		}

		var actorID *uuid.UUID
		if input.ActorID != uuid.Nil {
			actorID = &input.ActorID
		}
		switch input.To {
		case enums.OrderStatusCancelled:
			extra := map[string]any{"cancellation_reason": "cancelled by store", "cancelled_at": s.now()}
			if note := strings.TrimSpace(input.Note); note != "" {
				extra["cancellation_note"] = note
			}
			err = s.cancelTx(ctx, tx, order, enums.AuditActorAdmin, actorID, extra)
		case enums.OrderStatusDelivered:
			err = s.transitionTx(ctx, tx, order, input.To, enums.AuditActorAdmin, actorID, map[string]any{"delivered_at": s.now()})
		default:
			err = s.transitionTx(ctx, tx, order, input.To, enums.AuditActorAdmin, actorID, nil)
		}
		if err != nil {
			return err
		}
		result, err = repo.FindByID(ctx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	dto := ToDTO(*result)
	return &dto, nil
}

func (s *service) AttachPaymentLink(ctx context.Context, userID uuid.UUID, orderID uint64, linkID string) error {
	linkID = strings.TrimSpace(linkID)
	if linkID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "paymongo_link_id is required")
	}
	if s.links != nil {
		order, err := s.loadOwned(ctx, s.repo, userID, orderID)
		if err != nil {
			return err
		}
		link, err := s.links.GetLink(ctx, linkID)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				return err
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up payment link")
		}
		if !link.Amount.Equal(order.TotalAmount) {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment link amount does not match the order total").
				WithDetails(map[string]any{
					"expected_total": order.TotalAmount.StringFixed(2),
					"link_amount":    link.Amount.StringFixed(2),
				})
		}
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOwned(ctx, repo, userID, orderID)
		if err != nil {
			return err
		}
		if order.PaymentStatus == enums.PaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order has been cancelled")
		}
		if order.PaymongoLinkID != nil && *order.PaymongoLinkID == linkID {
			return nil
		}
		if err := repo.SetPaymentLink(ctx, order.ID, linkID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach payment link")
		}
		return s.record(ctx, tx, enums.AuditOrderLinkAttached, enums.AuditActorCustomer, &userID, order.ID, map[string]any{"paymongo_link_id": linkID})
	})
}

// MarkPaidByLink settles the order behind a paid link. Repeated
// notifications for the same link are no-ops. A payment that arrives for a
// cancelled order, or for a different amount than the order total, is not
// settled: it is audited, a refund event is queued, and a state conflict is
// returned after the transaction commits.
func (s *service) MarkPaidByLink(ctx context.Context, notice PaymentNotice) (*OrderDTO, error) {
	linkID := strings.TrimSpace(notice.LinkID)
	if linkID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "link id is required")
	}
	paidAt := notice.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	amount := notice.Amount
	if amount.IsZero() && s.links != nil {
		link, err := s.links.GetLink(ctx, linkID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up payment link")
		}
		amount = link.Amount
	}

	var (
		result   *models.Order
		rejected string
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByPaymentLink(ctx, linkID)
		if err != nil {
			return notFoundOr(err, "load order by payment link")
		}
		if order.PaymentStatus == enums.PaymentStatusPaid {
			result = order
			return nil
		}
		if reason := refundReason(order, amount); reason != "" {
			rejected = reason
			result = order
			return s.rejectPaymentTx(ctx, tx, order, linkID, reason, amount, paidAt)
		}

		changed, err := repo.MarkPaid(ctx, order.ID, paidAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		if !changed {
			// Paid or cancelled concurrently; reload to see which.
			current, err := repo.FindByID(ctx, order.ID)
			if err != nil {
				return notFoundOr(err, "reload order")
			}
			result = current
			if current.PaymentStatus != enums.PaymentStatusPaid && current.Status == enums.OrderStatusCancelled {
				rejected = RefundReasonOrderCancelled
				return s.rejectPaymentTx(ctx, tx, current, linkID, rejected, amount, paidAt)
			}
			return nil
		}

		if err := s.record(ctx, tx, enums.AuditOrderPaid, enums.AuditActorSystem, nil, order.ID, map[string]any{"paymongo_link_id": linkID}); err != nil {
			return err
		}
		if err := s.emit(ctx, tx, enums.EventOrderPaid, order.ID, nil, payloads.OrderPaidEvent{
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			PaymongoLinkID: linkID,
			Amount:         order.TotalAmount,
			PaidAt:         paidAt,
		}); err != nil {
			return err
		}

		if order.Status == enums.OrderStatusPending {
			if err := s.transitionTx(ctx, tx, order, enums.OrderStatusProcessing, enums.AuditActorSystem, nil, nil); err != nil {
				return err
			}
		}
		result, err = repo.FindByID(ctx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	dto := ToDTO(*result)
	if rejected != "" {
		return &dto, pkgerrors.Newf(pkgerrors.CodeStateConflict, "payment not applied to order %s: %s", result.OrderNumber, rejected).
			WithDetails(map[string]any{"reason": rejected, "order_id": result.ID})
	}
	return &dto, nil
}

func refundReason(order *models.Order, amount decimal.Decimal) string {
	if order.Status == enums.OrderStatusCancelled {
		return RefundReasonOrderCancelled
	}
	if !amount.IsZero() && !amount.Equal(order.TotalAmount) {
		return RefundReasonAmountMismatch
	}
	return ""
}

// rejectPaymentTx records a payment that must be refunded. The order itself is
// left untouched.
func (s *service) rejectPaymentTx(ctx context.Context, tx *gorm.DB, order *models.Order, linkID, reason string, amount decimal.Decimal, paidAt time.Time) error {
	if amount.IsZero() {
		amount = order.TotalAmount
	}
	meta := map[string]any{
		"paymongo_link_id": linkID,
		"reason":           reason,
		"amount_paid":      amount.StringFixed(2),
		"order_total":      order.TotalAmount.StringFixed(2),
	}
	if err := s.record(ctx, tx, enums.AuditOrderPaymentRejected, enums.AuditActorSystem, nil, order.ID, meta); err != nil {
		return err
	}
	return s.emit(ctx, tx, enums.EventPaymentRefundRequired, order.ID, nil, payloads.PaymentRefundRequiredEvent{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		PaymongoLinkID: linkID,
		Reason:         reason,
		AmountPaid:     amount,
		OrderTotal:     order.TotalAmount,
		PaidAt:         paidAt,
	})
}

// ExpireUnpaid cancels up to limit pending orders that were never paid and
// were placed before cutoff, returning their stock. Each order is expired in
// its own transaction; orders that moved on in the meantime are skipped.
func (s *service) ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = pagination.MaxLimit
	}
	stale, err := s.repo.FindStaleUnpaid(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find stale orders")
	}

	expired := 0
	for _, candidate := range stale {
		done := false
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			order, err := s.repo.WithTx(tx).FindByID(ctx, candidate.ID)
			if err != nil {
				return notFoundOr(err, "load order")
			}
			if order.Status != enums.OrderStatusPending || order.PaymentStatus != enums.PaymentStatusPending {
				return nil
			}
			extra := map[string]any{"cancellation_reason": ExpiredReason, "cancelled_at": s.now()}
			if err := s.cancelTx(ctx, tx, order, enums.AuditActorSystem, nil, extra); err != nil {
				return err
			}
			done = true
			return nil
		})
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
				continue
			}
			return expired, err
		}
		if done {
			expired++
		}
	}
	return expired, nil
}

func (s *service) transitionTx(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus, actor enums.AuditActor, actorID *uuid.UUID, extra map[string]any) error {
	from := order.Status
	if err := s.repo.WithTx(tx).TransitionStatus(ctx, order.ID, from, to, extra); err != nil {
		if errors.Is(err, ErrStaleStatus) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed, reload and try again")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if err := s.record(ctx, tx, enums.AuditOrderStatusChanged, actor, actorID, order.ID, map[string]any{"from": from, "to": to}); err != nil {
		return err
	}
	if err := s.emit(ctx, tx, enums.EventOrderStatusChanged, order.ID, actorRef(actor, actorID), payloads.OrderStatusChangedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		From:        from,
		To:          to,
	}); err != nil {
		return err
	}
	order.Status = to
	s.metrics.Transition(string(from), string(to))
	return nil
}

// cancelTx cancels the order and puts every line's units back on its variant.
func (s *service) cancelTx(ctx context.Context, tx *gorm.DB, order *models.Order, actor enums.AuditActor, actorID *uuid.UUID, extra map[string]any) error {
	from := order.Status
	if err := s.repo.WithTx(tx).TransitionStatus(ctx, order.ID, from, enums.OrderStatusCancelled, extra); err != nil {
		if errors.Is(err, ErrStaleStatus) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed, reload and try again")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}

	productRepo := s.products.WithTx(tx)
	released := make([]payloads.ReleasedStockLine, 0, len(order.Items))
	for _, item := range order.Items {
		if item.VariantID == nil {
			continue
		}
		if err := productRepo.RestoreStock(ctx, *item.VariantID, item.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
		}
		released = append(released, payloads.ReleasedStockLine{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		})
	}

	reason, _ := extra["cancellation_reason"].(string)
	if err := s.record(ctx, tx, enums.AuditOrderCancelled, actor, actorID, order.ID, map[string]any{"from": from, "reason": reason}); err != nil {
		return err
	}
	ref := actorRef(actor, actorID)
	if err := s.emit(ctx, tx, enums.EventOrderCancelled, order.ID, ref, payloads.OrderCancelledEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		From:        from,
		Reason:      reason,
		CancelledAt: s.now(),
	}); err != nil {
		return err
	}
	if len(released) > 0 {
		if err := s.emit(ctx, tx, enums.EventStockReleased, order.ID, ref, payloads.StockReleasedEvent{
			OrderID: order.ID,
			Lines:   released,
		}); err != nil {
			return err
		}
	}
	order.Status = enums.OrderStatusCancelled
	s.metrics.Transition(string(from), string(enums.OrderStatusCancelled))
	return nil
}

func (s *service) loadOwned(ctx context.Context, repo *Repository, userID uuid.UUID, orderID uint64) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if orderID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, notFoundOr(err, "load order")
	}
	// Another customer's order is reported as missing rather than forbidden.
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) record(ctx context.Context, tx *gorm.DB, action enums.AuditAction, actor enums.AuditActor, actorID *uuid.UUID, orderID uint64, meta map[string]any) error {
	err := s.audit.WithTx(tx).Record(ctx, audit.Entry{
		Action:     action,
		Actor:      actor,
		UserID:     actorID,
		EntityType: entityType,
		EntityID:   strconv.FormatUint(orderID, 10),
		Metadata:   meta,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record audit")
	}
	return nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, orderID uint64, actor *outbox.ActorRef, data any) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   strconv.FormatUint(orderID, 10),
		Actor:         actor,
		Data:          data,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit "+string(eventType))
	}
	return nil
}

func actorRef(actor enums.AuditActor, id *uuid.UUID) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: id, Role: string(actor)}
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
