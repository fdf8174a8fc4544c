package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/solespace/solespace-backend/pkg/errors"
	"github.com/solespace/solespace-backend/pkg/logger"
	"github.com/solespace/solespace-backend/pkg/metrics"
	"github.com/solespace/solespace-backend/pkg/paymongo"
)

const defaultLinkDescription = "SoleSpace order"

// ErrGatewayDisabled is returned when no PayMongo key is configured.
var ErrGatewayDisabled = errors.New("payment gateway not configured")

type linkCreator interface {
	CreateLink(ctx context.Context, req paymongo.CreateLinkRequest) (*paymongo.Link, error)
}

// LinkInput is the body of POST /api/paymongo-proxy.
type LinkInput struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Remarks     string          `json:"remarks,omitempty"`
}

// LinkResult is what the storefront redirects to.
type LinkResult struct {
	CheckoutURL string `json:"checkout_url"`
	LinkID      string `json:"link_id"`
}

// LinkService proxies hosted payment link creation so the secret key never
// reaches the browser.
type LinkService interface {
	CreateLink(ctx context.Context, userID uuid.UUID, input LinkInput) (*LinkResult, error)
}

type linkService struct {
	gateway linkCreator
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
}

// NewLinkService accepts a nil gateway; every call then fails with a
// dependency error so the API can still boot without PayMongo credentials.
func NewLinkService(gateway linkCreator, m *metrics.CheckoutMetrics, logg *logger.Logger) LinkService {
	return &linkService{gateway: gateway, metrics: m, logg: logg}
}

func (s *linkService) CreateLink(ctx context.Context, userID uuid.UUID, input LinkInput) (*LinkResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero").
			WithDetails(map[string]string{"amount": "must be greater than zero"})
	}
	if paymongo.ToCentavos(input.Amount) < paymongo.MinimumCentavos {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "amount must be at least %s", paymongo.FromCentavos(paymongo.MinimumCentavos).StringFixed(2)).
			WithDetails(map[string]string{"amount": "below gateway minimum"})
	}
	if s.gateway == nil {
		s.metrics.PaymentLink(metrics.ResultFailure)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, ErrGatewayDisabled, "payment gateway unavailable")
	}

	description := strings.TrimSpace(input.Description)
	if description == "" {
		description = defaultLinkDescription
	}
	link, err := s.gateway.CreateLink(ctx, paymongo.CreateLinkRequest{
		Amount:      input.Amount,
		Description: description,
		Remarks:     strings.TrimSpace(input.Remarks),
	})
	if err != nil {
		s.metrics.PaymentLink(metrics.ResultFailure)
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment link")
	}
	s.metrics.PaymentLink(metrics.ResultSuccess)
	if s.logg != nil {
		logCtx := s.logg.WithUserID(ctx, userID.String())
		s.logg.Info(s.logg.WithField(logCtx, "paymongo_link_id", link.ID), fmt.Sprintf("payment link created for %s", input.Amount.StringFixed(2)))
	}
	return &LinkResult{CheckoutURL: link.CheckoutURL, LinkID: link.ID}, nil
}
