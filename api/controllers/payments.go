package controllers

import (
	"net/http"

	"github.com/solespace/solespace-backend/api/responses"
	"github.com/solespace/solespace-backend/api/validators"
	"github.com/solespace/solespace-backend/internal/payments"
	pkgerrors "github.com/solespace/solespace-backend/pkg/errors"
	"github.com/solespace/solespace-backend/pkg/logger"
	"github.com/solespace/solespace-backend/pkg/types"
)

// PaymentLinkCreate proxies POST /api/paymongo-proxy.
func PaymentLinkCreate(svc payments.LinkService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		userID, err := RequireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload payments.LinkInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		link, err := svc.CreateLink(r.Context(), userID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, types.Payload{
			"checkout_url": link.CheckoutURL,
			"link_id":      link.LinkID,
		})
	}
}
