package metrics

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestHTTPMetricsExportsCounterAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Observe("/api/cart", http.MethodGet, http.StatusOK, 120*time.Millisecond)
	m.Observe("/api/cart", http.MethodGet, http.StatusOK, 80*time.Millisecond)
	m.Observe("", http.MethodPost, http.StatusForbidden, time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	got, err := fetchCounterValue(mfs, "http_requests_total", map[string]string{"route": "/api/cart", "status": "200"})
	if err != nil {
		t.Fatalf("fetch requests: %v", err)
	}
	if got != 2 {
		t.Fatalf("expected 2 requests, got %f", got)
	}
	if _, err := fetchCounterValue(mfs, "http_requests_total", map[string]string{"route": "unknown", "status": "403"}); err != nil {
		t.Fatalf("empty route should be labelled unknown: %v", err)
	}
	sum, err := fetchHistogramSum(mfs, "http_request_duration_seconds", map[string]string{"route": "/api/cart"})
	if err != nil {
		t.Fatalf("fetch duration: %v", err)
	}
	if sum <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", sum)
	}
}

func TestCheckoutMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)
	m.OrderCreated(ResultSuccess)
	m.PaymentLink(ResultFailure)
	m.Transition("pending", "processing")
	m.Webhook("link.payment.paid", ResultSuccess)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	checks := []struct {
		name   string
		labels map[string]string
	}{
		{"checkout_orders_created_total", map[string]string{"result": "success"}},
		{"checkout_payment_links_total", map[string]string{"result": "failure"}},
		{"order_status_transitions_total", map[string]string{"from": "pending", "to": "processing"}},
		{"payment_webhooks_total", map[string]string{"event": "link.payment.paid"}},
	}
	for _, c := range checks {
		v, err := fetchCounterValue(mfs, c.name, c.labels)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if v != 1 {
			t.Fatalf("%s expected 1, got %f", c.name, v)
		}
	}
}

func TestCronJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveDuration("unpaid-order-expiry", 250*time.Millisecond)
	m.IncSuccess("unpaid-order-expiry")
	m.IncFailure("outbox-retention")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "cron_job_success_total", map[string]string{"job": "unpaid-order-expiry"}); err != nil || got != 1 {
		t.Fatalf("expected one success, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "cron_job_failure_total", map[string]string{"job": "outbox-retention"}); err != nil || got != 1 {
		t.Fatalf("expected one failure, got %f (%v)", got, err)
	}
	if sum, err := fetchHistogramSum(mfs, "cron_job_duration_seconds", map[string]string{"job": "unpaid-order-expiry"}); err != nil || sum <= 0 {
		t.Fatalf("expected duration sum > 0, got %f (%v)", sum, err)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	NewHTTPMetrics(nil).Observe("/x", "GET", 200, time.Second)
	NewCheckoutMetrics(nil).OrderCreated(ResultSuccess)
	NewOutboxMetrics(nil).Published("order_created")
	var nilMetrics *OutboxMetrics
	nilMetrics.Failed("order_created")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok {
			if pair.GetValue() != v {
				return false
			}
			matched++
		}
	}
	return matched == len(want)
}
