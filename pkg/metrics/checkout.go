package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// CheckoutMetrics counts order creation, payment link and fulfillment
// outcomes.
type CheckoutMetrics struct {
	ordersCreated *prometheus.CounterVec
	paymentLinks  *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	webhooks      *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	ordersCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_orders_created_total",
		Help: "Orders created through checkout by result.",
	}, []string{"result"})
	paymentLinks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_payment_links_total",
		Help: "PayMongo payment link requests by result.",
	}, []string{"result"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Order status transitions.",
	}, []string{"from", "to"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhooks_total",
		Help: "Gateway webhooks received by event type and outcome.",
	}, []string{"event", "result"})
	reg.MustRegister(ordersCreated, paymentLinks, transitions, webhooks)
	return &CheckoutMetrics{
		ordersCreated: ordersCreated,
		paymentLinks:  paymentLinks,
		transitions:   transitions,
		webhooks:      webhooks,
	}
}

func (c *CheckoutMetrics) OrderCreated(result string) {
	if c == nil || c.ordersCreated == nil {
		return
	}
	c.ordersCreated.WithLabelValues(normalizeLabel(result)).Inc()
}

func (c *CheckoutMetrics) PaymentLink(result string) {
	if c == nil || c.paymentLinks == nil {
		return
	}
	c.paymentLinks.WithLabelValues(normalizeLabel(result)).Inc()
}

func (c *CheckoutMetrics) Transition(from, to string) {
	if c == nil || c.transitions == nil {
		return
	}
	c.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (c *CheckoutMetrics) Webhook(event, result string) {
	if c == nil || c.webhooks == nil {
		return
	}
	c.webhooks.WithLabelValues(normalizeLabel(event), normalizeLabel(result)).Inc()
}
