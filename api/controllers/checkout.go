package controllers

import (
	"net/http"

	"github.com/solespace/solespace-backend/api/responses"
	"github.com/solespace/solespace-backend/api/validators"
	"github.com/solespace/solespace-backend/internal/checkout"
	pkgerrors "github.com/solespace/solespace-backend/pkg/errors"
	"github.com/solespace/solespace-backend/pkg/logger"
	"github.com/solespace/solespace-backend/pkg/types"
)

// CheckoutCreateOrder persists the submitted cart as a pending order.
func CheckoutCreateOrder(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		userID, err := RequireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload checkout.CreateOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CreateOrder(r.Context(), userID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, types.Payload{
			"order":        result.Order,
			"order_number": result.OrderNumber,
		})
	}
}
