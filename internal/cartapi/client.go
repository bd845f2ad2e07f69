// Package cartapi is the HTTP client for the remote cart backend.
package cartapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"offline-cart-sync/internal/domain"
	"offline-cart-sync/internal/logger"
	"offline-cart-sync/pkg/response"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

var (
	ErrOutOfStock = errors.New("product is out of stock")
	ErrNotFound   = errors.New("resource not found")
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("cart api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("cart api returned status %d: %s", e.StatusCode, e.Message)
}

// CartClient is what the engine needs from the remote cart backend. Every
// call may fail; none of them retries.
type CartClient interface {
	CreateCart(ctx context.Context) (string, error)
	AddLineItem(ctx context.Context, cartID, sku string, quantity int) error
	QueryStock(ctx context.Context, sku string) (*domain.StockInfo, error)
	QueryCartContents(ctx context.Context, cartID string) (*domain.CartContents, error)
}

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// tokenSlack renews the bearer token this long before it expires.
const tokenSlack = 30 * time.Second

type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	timeout      time.Duration
	httpClient   *http.Client
	log          *zap.SugaredLogger

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg Config, log *zap.SugaredLogger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		timeout:      cfg.Timeout,
		httpClient:   &http.Client{},
		log:          logger.OrNop(log),
	}
}

type TokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type CreateCartResponse struct {
	CartID string `json:"cart_id"`
}

type AddLineItemRequest struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

func (c *Client) CreateCart(ctx context.Context) (string, error) {
	var out CreateCartResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/carts", nil, &out); err != nil {
		return "", fmt.Errorf("failed to create cart: %w", err)
	}
	if out.CartID == "" {
		return "", errors.New("failed to create cart: empty cart id")
	}
	return out.CartID, nil
}

func (c *Client) AddLineItem(ctx context.Context, cartID, sku string, quantity int) error {
	path := "/api/v1/carts/" + url.PathEscape(cartID) + "/items"
	body := &AddLineItemRequest{SKU: sku, Quantity: quantity}
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("failed to add %s to cart: %w", sku, err)
	}
	return nil
}

func (c *Client) QueryStock(ctx context.Context, sku string) (*domain.StockInfo, error) {
	var out struct {
		SKU    string `json:"sku"`
		Name   string `json:"name"`
		Status string `json:"stock_status"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/products/"+url.PathEscape(sku)+"/stock", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to query stock for %s: %w", sku, err)
	}

	info := &domain.StockInfo{
		SKU:    sku,
		Name:   out.Name,
		Status: domain.ParseStockStatus(out.Status),
	}
	return info, nil
}

func (c *Client) QueryCartContents(ctx context.Context, cartID string) (*domain.CartContents, error) {
	var out domain.CartContents
	if err := c.do(ctx, http.MethodGet, "/api/v1/carts/"+url.PathEscape(cartID), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to query cart %s: %w", cartID, err)
	}
	if out.CartID == "" {
		out.CartID = cartID
	}
	return &out, nil
}

// do sends an authenticated request and decodes the response envelope into
// out. A 401 drops the cached token and retries once.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	err := c.send(ctx, method, path, in, out, true)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		c.invalidateToken()
		err = c.send(ctx, method, path, in, out, true)
	}
	return err
}

func (c *Client) send(ctx context.Context, method, path string, in, out interface{}, auth bool) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if auth {
		token, err := c.bearer(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debugw("Cart API call", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode >= 400 {
		_, msg, _ := response.Decode(raw, nil)
		switch resp.StatusCode {
		case http.StatusConflict:
			return fmt.Errorf("%w: %s", ErrOutOfStock, msg)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, msg)
		default:
			return &APIError{StatusCode: resp.StatusCode, Message: msg}
		}
	}

	ok, msg, err := response.Decode(raw, out)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !ok {
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return nil
}

func (c *Client) bearer(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && time.Now().Add(tokenSlack).Before(c.tokenExpiry) {
		return c.token, nil
	}

	var tok TokenResponse
	req := &TokenRequest{ClientID: c.clientID, ClientSecret: c.clientSecret}
	if err := c.send(ctx, http.MethodPost, "/api/v1/auth/token", req, &tok, false); err != nil {
		return "", fmt.Errorf("failed to obtain access token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("failed to obtain access token: empty token")
	}

	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.tokenMu.Lock()
	c.token = ""
	c.tokenMu.Unlock()
}
