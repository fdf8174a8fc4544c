package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultTimeout        = 15 * time.Second
	csrfHeader            = "X-CSRF-TOKEN"
	errorBodyLimit  int64 = 4096
)

// APIClient speaks the storefront HTTP API. It carries the bearer token of
// the current session and the CSRF token for state-changing requests.
type APIClient struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.RWMutex
	token     string
	csrfToken string
}

type ClientOption func(*APIClient)

// WithHTTPClient replaces the default client. Its Jar is kept if set.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *APIClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout bounds every request. Zero disables the bound.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *APIClient) {
		c.httpClient.Timeout = d
	}
}

func WithCSRFToken(token string) ClientOption {
	return func(c *APIClient) {
		c.csrfToken = token
	}
}

func NewAPIClient(baseURL string, opts ...ClientOption) (*APIClient, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("storefront base url is required")
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, _ := cookiejar.New(nil)
	c := &APIClient{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: DefaultTimeout, Jar: jar},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// SetSession switches the bearer token. A guest session clears it.
func (c *APIClient) SetSession(session Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = session.Token
}

func (c *APIClient) CSRFToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.csrfToken
}

// RefreshCSRF fetches a token and the matching cookie.
func (c *APIClient) RefreshCSRF(ctx context.Context) error {
	var out struct {
		Token string `json:"csrf_token"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/csrf-token", nil, &out); err != nil {
		return err
	}
	c.mu.Lock()
	c.csrfToken = out.Token
	c.mu.Unlock()
	return nil
}

type apiErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindValidation, Message: "could not encode request", Cause: err}
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Kind: KindNetworkOrServer, Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.RLock()
	token, csrf := c.token, c.csrfToken
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	// A missing token is not an error here; the server rejects the request
	// and that rejection is surfaced like any other.
	if method != http.MethodGet && csrf != "" {
		req.Header.Set(csrfHeader, csrf)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindNetworkOrServer, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindNetworkOrServer, Status: resp.StatusCode, Message: "unexpected response from server", Cause: err}
	}
	return nil
}

func errorFromResponse(resp *http.Response) *Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	var body apiErrorBody
	_ = json.Unmarshal(raw, &body)

	msg := strings.TrimSpace(body.Message)
	if msg == "" {
		msg = strings.TrimSpace(body.Error)
	}
	kind := KindNetworkOrServer
	switch {
	case body.Code == "STOCK_EXCEEDED":
		kind = KindStockExceeded
	case resp.StatusCode == http.StatusNotFound:
		kind = KindNotFound
	case body.Code == "VALIDATION_ERROR":
		kind = KindValidation
	}
	return &Error{Kind: kind, Message: msg, Status: resp.StatusCode}
}

type cartLineDTO struct {
	ID        json.RawMessage `json:"id"`
	ProductID json.RawMessage `json:"product_id"`
	Name      string          `json:"name"`
	Price     json.RawMessage `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	ImageURL  string          `json:"image_url"`
	Stock     *int            `json:"stock"`
}

func (d cartLineDTO) toLine() CartLine {
	return CartLine{
		ID:           rawScalar(d.ID),
		ProductID:    rawScalar(d.ProductID),
		Name:         d.Name,
		UnitPrice:    CoercePrice(d.Price),
		Quantity:     d.Quantity,
		Size:         d.Size,
		Color:        d.Color,
		ImageURL:     d.ImageURL,
		StockCeiling: d.Stock,
	}
}

type cartWriteItem struct {
	ProductID uint64          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
	Price     decimal.Decimal `json:"price"`
}

func (c *APIClient) GetCart(ctx context.Context) ([]CartLine, error) {
	var out struct {
		Items []cartLineDTO `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/cart", nil, &out); err != nil {
		return nil, err
	}
	lines := make([]CartLine, 0, len(out.Items))
	for _, item := range out.Items {
		lines = append(lines, item.toLine())
	}
	return lines, nil
}

func (c *APIClient) AddToCart(ctx context.Context, line CartLine) (CartLine, error) {
	pid, ok := line.ResolveProductID()
	if !ok {
		return CartLine{}, validationError("Product is missing an id.", ErrMissingProductID)
	}
	var out struct {
		Item cartLineDTO `json:"item"`
	}
	req := cartWriteItem{ProductID: pid, Quantity: max(line.Quantity, 1), Size: line.Size, Color: line.Color, Price: line.UnitPrice}
	if err := c.do(ctx, http.MethodPost, "/api/cart/add", req, &out); err != nil {
		return CartLine{}, err
	}
	return out.Item.toLine(), nil
}

type syncSkippedDTO struct {
	ProductID uint64 `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

// SyncCart posts guest lines for a server-side merge and returns the guest
// lines the server could not place, such as unknown or sold-out variants.
// Every line must resolve to a product id; nothing is sent otherwise.
func (c *APIClient) SyncCart(ctx context.Context, lines []CartLine) ([]CartLine, error) {
	items := make([]cartWriteItem, 0, len(lines))
	for _, line := range lines {
		pid, ok := line.ResolveProductID()
		if !ok {
			return nil, validationError(fmt.Sprintf("Cart item %q is missing a product id.", line.Name), ErrMissingProductID)
		}
		items = append(items, cartWriteItem{ProductID: pid, Quantity: line.Quantity, Size: line.Size, Color: line.Color, Price: line.UnitPrice})
	}
	var out struct {
		Skipped []syncSkippedDTO `json:"skipped"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/cart/sync", map[string]any{"items": items}, &out); err != nil {
		return nil, err
	}
	return matchSkipped(lines, out.Skipped), nil
}

// matchSkipped maps the server's skipped items back onto the guest lines
// they came from. An item that matches no guest line is returned as a bare
// line so it is still reported.
func matchSkipped(lines []CartLine, skipped []syncSkippedDTO) []CartLine {
	if len(skipped) == 0 {
		return nil
	}
	used := make([]bool, len(lines))
	out := make([]CartLine, 0, len(skipped))
	for _, item := range skipped {
		found := false
		for i, line := range lines {
			if used[i] {
				continue
			}
			pid, _ := line.ResolveProductID()
			if pid != item.ProductID {
				continue
			}
			if (item.Size != "" && item.Size != line.Size) || (item.Color != "" && item.Color != line.Color) {
				continue
			}
			used[i] = true
			out = append(out, line)
			found = true
			break
		}
		if !found {
			pid := strconv.FormatUint(item.ProductID, 10)
			out = append(out, CartLine{
				ID:        GuestLineID(pid, item.Size, item.Color),
				ProductID: pid,
				Quantity:  max(item.Quantity, 1),
				Size:      item.Size,
				Color:     item.Color,
			})
		}
	}
	return out
}

func (c *APIClient) UpdateCartItem(ctx context.Context, id string, quantity int) (CartLine, error) {
	var out struct {
		Item cartLineDTO `json:"item"`
	}
	body := map[string]any{"id": lineIDValue(id), "quantity": quantity}
	if err := c.do(ctx, http.MethodPost, "/api/cart/update", body, &out); err != nil {
		return CartLine{}, err
	}
	return out.Item.toLine(), nil
}

func (c *APIClient) RemoveCartItem(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/cart/remove", map[string]any{"id": lineIDValue(id)}, nil)
}

// lineIDValue sends numeric row ids as numbers.
func lineIDValue(id string) any {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return n
	}
	return id
}

func (c *APIClient) ListAddresses(ctx context.Context) ([]Address, error) {
	var out struct {
		Addresses []Address `json:"addresses"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/user/addresses", nil, &out); err != nil {
		return nil, err
	}
	return out.Addresses, nil
}

func (c *APIClient) CreateAddress(ctx context.Context, addr Address) (*Address, error) {
	var out struct {
		Address Address `json:"address"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/user/addresses", addr, &out); err != nil {
		return nil, err
	}
	return &out.Address, nil
}

func (c *APIClient) UpdateAddress(ctx context.Context, addr Address) (*Address, error) {
	var out struct {
		Address Address `json:"address"`
	}
	path := "/api/user/addresses/" + strconv.FormatUint(addr.ID, 10)
	if err := c.do(ctx, http.MethodPut, path, addr, &out); err != nil {
		return nil, err
	}
	return &out.Address, nil
}

func (c *APIClient) DeleteAddress(ctx context.Context, id uint64) error {
	return c.do(ctx, http.MethodDelete, "/api/user/addresses/"+strconv.FormatUint(id, 10), nil, nil)
}

func (c *APIClient) CreateOrder(ctx context.Context, payload CheckoutPayload) (*Order, error) {
	var out struct {
		Order       Order  `json:"order"`
		OrderNumber string `json:"order_number"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/checkout/create-order", payload, &out); err != nil {
		return nil, err
	}
	if out.Order.OrderNumber == "" {
		out.Order.OrderNumber = out.OrderNumber
	}
	return &out.Order, nil
}

func (c *APIClient) CreatePaymentLink(ctx context.Context, amount decimal.Decimal, description string) (*PaymentLink, error) {
	var out PaymentLink
	body := map[string]any{"amount": amount, "description": description}
	if err := c.do(ctx, http.MethodPost, "/api/paymongo-proxy", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) AttachPaymentLink(ctx context.Context, orderID uint64, linkID string) error {
	path := fmt.Sprintf("/api/orders/%d/update-payment-link", orderID)
	return c.do(ctx, http.MethodPost, path, map[string]string{"paymongo_link_id": linkID}, nil)
}

func (c *APIClient) GetOrder(ctx context.Context, orderID uint64) (*Order, error) {
	var out struct {
		Order Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/orders/%d", orderID), nil, &out); err != nil {
		return nil, err
	}
	return &out.Order, nil
}

func (c *APIClient) ListOrders(ctx context.Context) ([]Order, error) {
	var out struct {
		Orders []Order `json:"orders"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/orders", nil, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

func (c *APIClient) CancelOrder(ctx context.Context, orderID uint64, reason, note string) error {
	body := map[string]any{"order_id": orderID, "reason": reason, "note": note}
	return c.do(ctx, http.MethodPost, "/orders/cancel", body, nil)
}

func (c *APIClient) ConfirmDelivery(ctx context.Context, orderID uint64) error {
	return c.do(ctx, http.MethodPost, "/orders/confirm-delivery", map[string]any{"order_id": orderID}, nil)
}

func (c *APIClient) ListProducts(ctx context.Context) ([]Product, error) {
	var out struct {
		Products []Product `json:"products"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/products", nil, &out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

func (c *APIClient) GetProduct(ctx context.Context, id uint64) (*Product, error) {
	var out struct {
		Product Product `json:"product"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/products/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out.Product, nil
}
