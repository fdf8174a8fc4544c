package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// Session-scoped keys used between checkout steps.
const (
	CheckoutPayloadKey = "solespace_checkout_payload"
	PendingOrderKey    = "solespace_pending_order_id"
	PaymentLinkKey     = "solespace_payment_link"
)

// OrderAPI is the subset of APIClient the orchestrator drives.
type OrderAPI interface {
	CreateOrder(ctx context.Context, payload CheckoutPayload) (*Order, error)
	CreatePaymentLink(ctx context.Context, amount decimal.Decimal, description string) (*PaymentLink, error)
	AttachPaymentLink(ctx context.Context, orderID uint64, linkID string) error
	CancelOrder(ctx context.Context, orderID uint64, reason, note string) error
	GetOrder(ctx context.Context, orderID uint64) (*Order, error)
}

var _ OrderAPI = (*APIClient)(nil)

// Navigator sends the shopper to the hosted checkout page.
type Navigator interface {
	Redirect(ctx context.Context, url string) error
}

type NavigatorFunc func(ctx context.Context, url string) error

func (f NavigatorFunc) Redirect(ctx context.Context, url string) error {
	return f(ctx, url)
}

type PlacedOrder struct {
	Order       *Order
	CheckoutURL string
	LinkID      string
}

// Orchestrator runs create order, create payment link, attach link, redirect.
// The steps are not transactional: by default a failed payment link leaves
// the order in place.
type Orchestrator struct {
	api        OrderAPI
	session    KeyValueStore
	nav        Navigator
	bus        *EventBus
	assembler  *Assembler
	compensate bool
}

type OrchestratorOption func(*Orchestrator)

// WithCompensation cancels the freshly created order when no payment link
// could be obtained for it.
func WithCompensation() OrchestratorOption {
	return func(o *Orchestrator) {
		o.compensate = true
	}
}

func WithEventBus(bus *EventBus) OrchestratorOption {
	return func(o *Orchestrator) {
		o.bus = bus
	}
}

func NewOrchestrator(api OrderAPI, session KeyValueStore, nav Navigator, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{api: api, session: session, nav: nav, assembler: NewAssembler()}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Checkout assembles the selection and places the order. Validation failures
// return before any request is made.
func (o *Orchestrator) Checkout(ctx context.Context, snapshot CartSnapshot, selectedIDs []string, choice AddressChoice, contact Contact) (*PlacedOrder, error) {
	payload, err := o.assembler.Assemble(snapshot, selectedIDs, choice, contact)
	if err != nil {
		return nil, err
	}
	if err := o.SavePayload(ctx, payload); err != nil {
		return nil, err
	}
	return o.PlaceOrder(ctx, payload)
}

// SavePayload parks the payload between the cart and payment steps.
func (o *Orchestrator) SavePayload(ctx context.Context, payload CheckoutPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return o.session.Set(ctx, CheckoutPayloadKey, string(data))
}

// LoadPayload returns the parked payload, if any.
func (o *Orchestrator) LoadPayload(ctx context.Context) (*CheckoutPayload, error) {
	raw, ok, err := o.session.Get(ctx, CheckoutPayloadKey)
	if err != nil || !ok {
		return nil, err
	}
	var payload CheckoutPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, nil
	}
	return &payload, nil
}

// PlaceOrder drives the three calls and the redirect. Attaching the link is
// best effort and only ever reported as a warning notice.
func (o *Orchestrator) PlaceOrder(ctx context.Context, payload CheckoutPayload) (*PlacedOrder, error) {
	order, err := o.api.CreateOrder(ctx, payload)
	if err != nil {
		return nil, &Error{Kind: KindOrderCreationFailed, Message: UserMessage(err), Status: statusOf(err), Cause: err}
	}

	description := "SoleSpace Order " + order.OrderNumber
	link, err := o.api.CreatePaymentLink(ctx, order.TotalAmount, description)
	if err == nil && (link == nil || strings.TrimSpace(link.CheckoutURL) == "" || strings.TrimSpace(link.LinkID) == "") {
		err = errors.New("payment gateway returned an incomplete link")
	}
	if err != nil {
		failure := &Error{Kind: KindPaymentLinkFailed, Message: paymentLinkMessage(err), Status: statusOf(err), Cause: err}
		if o.compensate {
			if cancelErr := o.api.CancelOrder(ctx, order.ID, "payment_link_failed", "Payment link could not be created"); cancelErr != nil {
				failure.Cause = multierr.Combine(err, fmt.Errorf("cancel order %d: %w", order.ID, cancelErr))
			}
		}
		return nil, failure
	}

	if err := o.api.AttachPaymentLink(ctx, order.ID, link.LinkID); err != nil {
		o.bus.notice(NoticeWarning, "Payment link", "Your order was created but we could not record its payment link.")
	}

	if err := o.session.Set(ctx, PendingOrderKey, strconv.FormatUint(order.ID, 10)); err != nil {
		return nil, err
	}
	_ = o.session.Delete(ctx, CheckoutPayloadKey)
	_ = o.session.Set(ctx, PaymentLinkKey, link.CheckoutURL)

	placed := &PlacedOrder{Order: order, CheckoutURL: link.CheckoutURL, LinkID: link.LinkID}
	if o.nav != nil {
		if err := o.nav.Redirect(ctx, link.CheckoutURL); err != nil {
			return placed, err
		}
	}
	return placed, nil
}

// CompleteOrder loads the order the shopper just paid for and clears the
// pending key.
func (o *Orchestrator) CompleteOrder(ctx context.Context) (*Order, error) {
	raw, ok, err := o.session.Get(ctx, PendingOrderKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoPendingOrder
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		_ = o.session.Delete(ctx, PendingOrderKey)
		return nil, ErrNoPendingOrder
	}
	order, err := o.api.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = o.session.Delete(ctx, PendingOrderKey)
	return order, nil
}

func paymentLinkMessage(err error) string {
	var se *Error
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return "We couldn't start the payment. Please try again."
}

func statusOf(err error) int {
	var se *Error
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
