// Package client is a typed HTTP client for the POS API. It satisfies the
// cart package's StockSource, OrderGate and OrderSubmitter so a terminal can
// build carts against a remote server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tableside/api/internal/apierror"
	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/model"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3
)

// Client talks to one API server. Safe for concurrent use.
type Client struct {
	baseURL    string
	http       *http.Client
	maxRetries uint64
	newBackOff func() backoff.BackOff

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets a bearer token obtained elsewhere.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithRetries sets how many times a failed read is retried.
func WithRetries(n uint64) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBackOff replaces the exponential retry schedule.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = fn }
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		http:       &http.Client{Timeout: defaultTimeout},
		maxRetries: defaultMaxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxElapsedTime = 5 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// --- Auth ---

// Login authenticates and keeps the access token for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (model.User, error) {
	var resp struct {
		AccessToken string     `json:"access_token"`
		User        model.User `json:"user"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &resp); err != nil {
		return model.User{}, err
	}
	c.mu.Lock()
	c.token = resp.AccessToken
	c.mu.Unlock()
	return resp.User, nil
}

// --- Catalog ---

// GetProduct fetches the latest catalog entry, including current stock.
func (c *Client) GetProduct(ctx context.Context, id uuid.UUID) (model.Product, error) {
	var p model.Product
	err := c.do(ctx, http.MethodGet, "/products/"+id.String(), nil, &p)
	return p, err
}

func (c *Client) ListProducts(ctx context.Context, category string) ([]model.Product, error) {
	path := "/products"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	var out []model.Product
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// --- System ---

// SystemStatus fetches the order gate.
func (c *Client) SystemStatus(ctx context.Context) (model.SystemStatus, error) {
	var st model.SystemStatus
	err := c.do(ctx, http.MethodGet, "/system/status", nil, &st)
	return st, err
}

// SetSystemStatus needs an ADMIN token.
func (c *Client) SetSystemStatus(ctx context.Context, enabled bool, reason string) (model.SystemStatus, error) {
	var st model.SystemStatus
	body := map[string]any{"orders_enabled": enabled, "reason": reason}
	err := c.do(ctx, http.MethodPut, "/system/status", body, &st)
	return st, err
}

// --- Tables ---

func (c *Client) ListTables(ctx context.Context, isClosed *bool) ([]model.Table, error) {
	path := "/tables"
	if isClosed != nil {
		path += "?is_closed=" + strconv.FormatBool(*isClosed)
	}
	var out []model.Table
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) GetTable(ctx context.Context, id uuid.UUID) (model.Table, error) {
	var t model.Table
	err := c.do(ctx, http.MethodGet, "/tables/"+id.String(), nil, &t)
	return t, err
}

func (c *Client) OpenTable(ctx context.Context, name string, roomID *uuid.UUID) (model.Table, error) {
	var t model.Table
	body := map[string]any{"name": name, "room_id": roomID}
	err := c.do(ctx, http.MethodPost, "/tables", body, &t)
	return t, err
}

// CloseParams are the operator's close-out choices.
type CloseParams struct {
	ServiceTax      bool               `json:"service_tax"`
	PaymentOption   enum.PaymentOption `json:"payment_option"`
	PaymentMethod   enum.PaymentMethod `json:"payment_method"`
	GenerateInvoice bool               `json:"generate_invoice"`
}

// PreviewBill computes the bill without closing the table.
func (c *Client) PreviewBill(ctx context.Context, tableID uuid.UUID, p CloseParams) (model.BillClose, error) {
	q := url.Values{}
	q.Set("service_tax", strconv.FormatBool(p.ServiceTax))
	if p.PaymentOption != "" {
		q.Set("payment_option", string(p.PaymentOption))
	}
	if p.PaymentMethod != "" {
		q.Set("payment_method", string(p.PaymentMethod))
	}
	var b model.BillClose
	err := c.do(ctx, http.MethodGet, "/tables/"+tableID.String()+"/bill?"+q.Encode(), nil, &b)
	return b, err
}

func (c *Client) CloseTable(ctx context.Context, tableID uuid.UUID, p CloseParams) (model.Table, error) {
	var t model.Table
	err := c.do(ctx, http.MethodPut, "/tables/"+tableID.String()+"/close", p, &t)
	return t, err
}

// --- Orders ---

type orderLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int32     `json:"quantity"`
	Comment   string    `json:"comment,omitempty"`
}

// CreateOrder submits cart lines. The server re-prices every line.
func (c *Client) CreateOrder(ctx context.Context, tableID uuid.UUID, lines []model.CartLine) (model.Order, error) {
	items := make([]orderLine, len(lines))
	for i, l := range lines {
		items[i] = orderLine{ProductID: l.ProductID, Quantity: l.Quantity, Comment: l.Comment}
	}
	var o model.Order
	err := c.do(ctx, http.MethodPost, "/tables/"+tableID.String()+"/orders", map[string]any{"items": items}, &o)
	return o, err
}

func (c *Client) FinishOrder(ctx context.Context, tableID, orderID uuid.UUID) (model.Order, error) {
	var o model.Order
	err := c.do(ctx, http.MethodPut, "/tables/"+tableID.String()+"/orders/"+orderID.String()+"/finish", nil, &o)
	return o, err
}

func (c *Client) CancelOrder(ctx context.Context, tableID, orderID uuid.UUID) (model.Order, error) {
	var o model.Order
	err := c.do(ctx, http.MethodDelete, "/tables/"+tableID.String()+"/orders/"+orderID.String(), nil, &o)
	return o, err
}

// --- Transport ---

// do sends one request and decodes a 2xx body into out. GET requests are
// retried on network failures and 5xx answers; everything else is sent once.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	if method != http.MethodGet {
		return c.send(ctx, method, path, payload, out)
	}

	op := func() error {
		err := c.send(ctx, method, path, payload, out)
		if err == nil || retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx))
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, out any) error {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apierror.New(apierror.KindNetworkFailure, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apierror.New(apierror.KindNetworkFailure, "decode %s %s: %v", method, path, err)
	}
	return nil
}

// decodeError turns the error envelope into an *apierror.Error.
func decodeError(resp *http.Response) error {
	var env apierror.Response
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &env)

	kind := env.Kind
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		kind = apierror.KindUnauthorized
	case kind == "" && resp.StatusCode >= 500:
		kind = apierror.KindInternal
	case kind == "":
		kind = apierror.KindInvalidInput
	}
	msg := env.Error
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &StatusError{Code: resp.StatusCode, Err: &apierror.Error{Kind: kind, Message: msg}}
}

// StatusError carries the HTTP status behind a domain error.
type StatusError struct {
	Code int
	Err  *apierror.Error
}

func (e *StatusError) Error() string { return e.Err.Error() }
func (e *StatusError) Unwrap() error { return e.Err }

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	return apierror.KindOf(err) == apierror.KindNetworkFailure
}

// Money formats an amount the way receipts show it.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
