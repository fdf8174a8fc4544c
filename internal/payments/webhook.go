package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/solespace/solespace-backend/internal/orders"
	pkgerrors "github.com/solespace/solespace-backend/pkg/errors"
	"github.com/solespace/solespace-backend/pkg/logger"
	"github.com/solespace/solespace-backend/pkg/metrics"
	"github.com/solespace/solespace-backend/pkg/outbox/idempotency"
	"github.com/solespace/solespace-backend/pkg/paymongo"
)

// WebhookConsumer names the idempotency scope for gateway deliveries.
const WebhookConsumer = "paymongo-webhook"

const (
	webhookResultProcessed = "processed"
	webhookResultIgnored   = "ignored"
	webhookResultRejected  = "rejected"
	webhookResultFailed    = "failed"
)

type orderSettler interface {
	MarkPaidByLink(ctx context.Context, notice orders.PaymentNotice) (*orders.OrderDTO, error)
}

// WebhookService applies verified PayMongo events to orders.
type WebhookService interface {
	HandleEvent(ctx context.Context, event *paymongo.Event) error
}

type webhookService struct {
	orders  orderSettler
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewWebhookService(settler orderSettler, m *metrics.CheckoutMetrics, logg *logger.Logger) (WebhookService, error) {
	if settler == nil {
		return nil, fmt.Errorf("order settler required")
	}
	return &webhookService{
		orders:  settler,
		metrics: m,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *webhookService) HandleEvent(ctx context.Context, event *paymongo.Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event is required")
	}
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{"webhook_event_id": event.ID, "webhook_event_type": event.Type})
	}

	if event.Type != paymongo.EventLinkPaymentPaid {
		s.metrics.Webhook(event.Type, webhookResultIgnored)
		if s.logg != nil {
			s.logg.Debug(ctx, "paymongo.webhook.ignored")
		}
		return nil
	}
	if event.ResourceID == "" {
		s.metrics.Webhook(event.Type, webhookResultFailed)
		return pkgerrors.New(pkgerrors.CodeValidation, "link id missing from event")
	}

	notice := readLinkResource(event.Resource)
	notice.LinkID = event.ResourceID
	if notice.PaidAt.IsZero() {
		notice.PaidAt = s.now()
	}
	order, err := s.orders.MarkPaidByLink(ctx, notice)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			// The refund is already queued; a retry from the gateway would not change it.
			s.metrics.Webhook(event.Type, webhookResultRejected)
			if s.logg != nil {
				logCtx := s.logg.WithField(ctx, "paymongo_link_id", event.ResourceID)
				if order != nil {
					logCtx = s.logg.WithOrderID(logCtx, order.ID)
				}
				s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "paymongo.webhook.payment_rejected")
			}
			return nil
		}
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			// A link created outside checkout, or never attached to an order.
			s.metrics.Webhook(event.Type, webhookResultIgnored)
			if s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "paymongo_link_id", event.ResourceID), "paymongo.webhook.unknown_link")
			}
			return nil
		}
		s.metrics.Webhook(event.Type, webhookResultFailed)
		return err
	}

	s.metrics.Webhook(event.Type, webhookResultProcessed)
	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, order.ID), "paymongo.webhook.order_paid")
	}
	return nil
}

type linkResource struct {
	Attributes struct {
		Amount   int64 `json:"amount"`
		Payments []struct {
			Data struct {
				Attributes struct {
					PaidAt int64 `json:"paid_at"`
				} `json:"attributes"`
			} `json:"data"`
		} `json:"payments"`
	} `json:"attributes"`
}

// readLinkResource pulls the link amount and the latest payment time out of
// the event resource. Missing fields stay zero.
func readLinkResource(raw json.RawMessage) orders.PaymentNotice {
	var notice orders.PaymentNotice
	if len(raw) == 0 {
		return notice
	}
	var res linkResource
	if err := json.Unmarshal(raw, &res); err != nil {
		return notice
	}
	if res.Attributes.Amount > 0 {
		notice.Amount = paymongo.FromCentavos(res.Attributes.Amount)
	}
	var latest int64
	for _, p := range res.Attributes.Payments {
		if p.Data.Attributes.PaidAt > latest {
			latest = p.Data.Attributes.PaidAt
		}
	}
	if latest > 0 {
		notice.PaidAt = time.Unix(latest, 0).UTC()
	}
	return notice
}

// WebhookGuard binds the shared idempotency manager to one consumer.
type WebhookGuard struct {
	manager  *idempotency.Manager
	consumer string
}

func NewWebhookGuard(manager *idempotency.Manager, consumer string) (*WebhookGuard, error) {
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if consumer == "" {
		consumer = WebhookConsumer
	}
	return &WebhookGuard{manager: manager, consumer: consumer}, nil
}

func (g *WebhookGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	return g.manager.CheckAndMarkProcessed(ctx, g.consumer, eventID)
}

func (g *WebhookGuard) Delete(ctx context.Context, eventID string) error {
	return g.manager.Delete(ctx, g.consumer, eventID)
}
