package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/solespace/solespace-backend/api/middleware"
	ordersvc "github.com/solespace/solespace-backend/internal/orders"
	"github.com/solespace/solespace-backend/pkg/enums"
	pkgerrors "github.com/solespace/solespace-backend/pkg/errors"
	"github.com/solespace/solespace-backend/pkg/pagination"
)

type stubOrderService struct {
	listParams pagination.Params
	cancel     ordersvc.CancelInput
	advance    ordersvc.AdvanceInput
	confirmed  uint64
	linkOrder  uint64
	linkID     string
	err        error
}

func (s *stubOrderService) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ordersvc.OrderList, error) {
	s.listParams = params
	if s.err != nil {
		return nil, s.err
	}
	return &ordersvc.OrderList{Orders: []ordersvc.OrderDTO{{ID: 1, OrderNumber: "SS-20260309-ABCDEF"}}, NextCursor: "next"}, nil
}

func (s *stubOrderService) Get(ctx context.Context, userID uuid.UUID, orderID uint64) (*ordersvc.OrderDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ordersvc.OrderDTO{ID: orderID}, nil
}

func (s *stubOrderService) Cancel(ctx context.Context, input ordersvc.CancelInput) (*ordersvc.OrderDTO, error) {
	s.cancel = input
	if s.err != nil {
		return nil, s.err
	}
	return &ordersvc.OrderDTO{ID: input.OrderID}, nil
}

func (s *stubOrderService) ConfirmDelivery(ctx context.Context, userID uuid.UUID, orderID uint64) (*ordersvc.OrderDTO, error) {
	s.confirmed = orderID
	return &ordersvc.OrderDTO{ID: orderID}, s.err
}

func (s *stubOrderService) AdvanceStatus(ctx context.Context, input ordersvc.AdvanceInput) (*ordersvc.OrderDTO, error) {
	s.advance = input
	if s.err != nil {
		return nil, s.err
	}
	return &ordersvc.OrderDTO{ID: input.OrderID}, nil
}

func (s *stubOrderService) AttachPaymentLink(ctx context.Context, userID uuid.UUID, orderID uint64, linkID string) error {
	s.linkOrder, s.linkID = orderID, linkID
	return s.err
}

func (s *stubOrderService) MarkPaidByLink(ctx context.Context, notice ordersvc.PaymentNotice) (*ordersvc.OrderDTO, error) {
	return nil, nil
}

func (s *stubOrderService) ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	return 0, nil
}

func newRouter(svc ordersvc.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString())))
		})
	})
	r.Get("/api/orders", List(svc, nil))
	r.Get("/api/orders/{orderID}", Get(svc, nil))
	r.Post("/api/orders/{orderID}/update-payment-link", AttachPaymentLink(svc, nil))
	r.Post("/orders/cancel", Cancel(svc, nil))
	r.Post("/orders/confirm-delivery", ConfirmDelivery(svc, nil))
	r.Post("/api/admin/orders/{orderID}/status", AdvanceStatus(svc, nil))
	return r
}

func serve(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &decoded))
	return resp, decoded
}

func TestListPassesPagination(t *testing.T) {
	svc := &stubOrderService{}
	resp, body := serve(t, newRouter(svc), http.MethodGet, "/api/orders?limit=5&cursor=abc", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, pagination.Params{Limit: 5, Cursor: "abc"}, svc.listParams)
	require.Len(t, body["orders"], 1)
	require.Equal(t, "next", body["next_cursor"])
}

func TestListRejectsLimitOutOfRange(t *testing.T) {
	resp, body := serve(t, newRouter(&stubOrderService{}), http.MethodGet, "/api/orders?limit=1000", "")
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	require.Equal(t, "VALIDATION_ERROR", body["code"])
}

func TestGetParsesOrderID(t *testing.T) {
	resp, body := serve(t, newRouter(&stubOrderService{}), http.MethodGet, "/api/orders/42", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, float64(42), body["order"].(map[string]any)["id"])

	resp, _ = serve(t, newRouter(&stubOrderService{}), http.MethodGet, "/api/orders/abc", "")
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestGetNotFound(t *testing.T) {
	svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	resp, body := serve(t, newRouter(svc), http.MethodGet, "/api/orders/42", "")
	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Equal(t, false, body["success"])
}

func TestCancelTrimsInput(t *testing.T) {
	svc := &stubOrderService{}
	resp, _ := serve(t, newRouter(svc), http.MethodPost, "/orders/cancel", `{"order_id":9,"reason":"  changed my mind ","note":" size "}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, uint64(9), svc.cancel.OrderID)
	require.Equal(t, "changed my mind", svc.cancel.Reason)
	require.Equal(t, "size", svc.cancel.Note)
	require.NotEqual(t, uuid.Nil, svc.cancel.UserID)
}

func TestCancelRequiresReason(t *testing.T) {
	svc := &stubOrderService{}
	resp, _ := serve(t, newRouter(svc), http.MethodPost, "/orders/cancel", `{"order_id":9}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	require.Zero(t, svc.cancel.OrderID)
}

func TestCancelStateConflict(t *testing.T) {
	svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled")}
	resp, body := serve(t, newRouter(svc), http.MethodPost, "/orders/cancel", `{"order_id":9,"reason":"late"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	require.Equal(t, "STATE_CONFLICT", body["code"])
}

func TestConfirmDelivery(t *testing.T) {
	svc := &stubOrderService{}
	resp, _ := serve(t, newRouter(svc), http.MethodPost, "/orders/confirm-delivery", `{"order_id":3}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, uint64(3), svc.confirmed)
}

func TestAttachPaymentLink(t *testing.T) {
	svc := &stubOrderService{}
	resp, body := serve(t, newRouter(svc), http.MethodPost, "/api/orders/8/update-payment-link", `{"paymongo_link_id":" link_123 "}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, true, body["success"])
	require.Equal(t, uint64(8), svc.linkOrder)
	require.Equal(t, "link_123", svc.linkID)
}

func TestAdvanceStatusNormalizesStatus(t *testing.T) {
	svc := &stubOrderService{}
	resp, _ := serve(t, newRouter(svc), http.MethodPost, "/api/admin/orders/4/status", `{"status":" Shipped ","note":"JRS 123"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, enums.OrderStatusShipped, svc.advance.To)
	require.Equal(t, uint64(4), svc.advance.OrderID)
	require.Equal(t, "JRS 123", svc.advance.Note)
}

func TestHandlersRequireUser(t *testing.T) {
	resp := httptest.NewRecorder()
	List(&stubOrderService{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}
