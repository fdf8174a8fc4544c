package paymongo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solespace/solespace-backend/pkg/config"
	pkgerrors "github.com/solespace/solespace-backend/pkg/errors"
)

// MinimumCentavos is the smallest amount PayMongo accepts for a link (PHP 100).
const MinimumCentavos int64 = 10000

const (
	defaultBaseURL              = "https://api.paymongo.com/v1"
	defaultTimeout              = 15 * time.Second
	responseBodyReadLimit int64 = 2048
)

var errSecretKeyRequired = errors.New("paymongo secret key is required")

// Client talks to the PayMongo Links API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

func NewClient(secretKey string, opts ...Option) (*Client, error) {
	key := strings.TrimSpace(secretKey)
	if key == "" {
		return nil, errSecretKeyRequired
	}
	client := &Client{
		secretKey:  key,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// NewFromConfig builds a client from the PayMongo section of the config.
func NewFromConfig(cfg config.PayMongoConfig) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return NewClient(cfg.SecretKey,
		WithBaseURL(cfg.BaseURL),
		WithHTTPClient(&http.Client{Timeout: timeout}),
	)
}

// CreateLinkRequest is denominated in pesos; the client converts to centavos.
type CreateLinkRequest struct {
	Amount      decimal.Decimal
	Description string
	Remarks     string
}

// Link is the subset of a PayMongo link the storefront needs.
type Link struct {
	ID              string
	CheckoutURL     string
	ReferenceNumber string
	Status          string
	Amount          decimal.Decimal
}

type linkAttributes struct {
	Amount          int64  `json:"amount"`
	Description     string `json:"description"`
	Remarks         string `json:"remarks,omitempty"`
	CheckoutURL     string `json:"checkout_url,omitempty"`
	ReferenceNumber string `json:"reference_number,omitempty"`
	Status          string `json:"status,omitempty"`
}

type linkEnvelope struct {
	Data struct {
		ID         string         `json:"id,omitempty"`
		Attributes linkAttributes `json:"attributes"`
	} `json:"data"`
}

type apiErrorBody struct {
	Errors []struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// ToCentavos converts a peso amount to PayMongo's integer minor units.
func ToCentavos(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromCentavos is the inverse of ToCentavos.
func FromCentavos(centavos int64) decimal.Decimal {
	return decimal.New(centavos, -2)
}

// CreateLink requests a hosted payment link. A response missing either the
// link id or the checkout url is an error.
func (c *Client) CreateLink(ctx context.Context, req CreateLinkRequest) (*Link, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paymongo client not configured")
	}
	centavos := ToCentavos(req.Amount)
	if centavos <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description is required")
	}

	var body linkEnvelope
	body.Data.Attributes = linkAttributes{
		Amount:      centavos,
		Description: strings.TrimSpace(req.Description),
		Remarks:     req.Remarks,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal link request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("links"), bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build link request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(c.secretKey, "")

	var out linkEnvelope
	if err := c.do(httpReq, &out); err != nil {
		return nil, err
	}
	return toLink(out)
}

// GetLink retrieves a link by id.
func (c *Client) GetLink(ctx context.Context, linkID string) (*Link, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paymongo client not configured")
	}
	trimmed := strings.TrimSpace(linkID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "link id is required")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL("links/"+url.PathEscape(trimmed)), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build link request")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(c.secretKey, "")

	var out linkEnvelope
	if err := c.do(httpReq, &out); err != nil {
		return nil, err
	}
	return toLink(out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paymongo request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
			gatewayMessage(raw))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paymongo response")
	}
	return nil
}

func gatewayMessage(raw []byte) string {
	var body apiErrorBody
	if err := json.Unmarshal(raw, &body); err == nil && len(body.Errors) > 0 && body.Errors[0].Detail != "" {
		return body.Errors[0].Detail
	}
	return "payment gateway rejected the request"
}

func toLink(env linkEnvelope) (*Link, error) {
	link := &Link{
		ID:              env.Data.ID,
		CheckoutURL:     env.Data.Attributes.CheckoutURL,
		ReferenceNumber: env.Data.Attributes.ReferenceNumber,
		Status:          env.Data.Attributes.Status,
		Amount:          FromCentavos(env.Data.Attributes.Amount),
	}
	if link.ID == "" || link.CheckoutURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway returned an incomplete link")
	}
	return link, nil
}

func (c *Client) buildURL(path string) string {
	return strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
