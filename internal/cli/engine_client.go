package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"offline-cart-sync/internal/domain"
	"offline-cart-sync/pkg/response"

	json "github.com/goccy/go-json"
)

// engineClient talks to a running engine's HTTP API.
type engineClient struct {
	baseURL    string
	httpClient *http.Client
}

// EngineError is a refusal from the engine, carrying its HTTP status.
type EngineError struct {
	StatusCode int
	Message    string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine returned %d: %s", e.StatusCode, e.Message)
}

func newEngineClient(baseURL string) *engineClient {
	return &engineClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 3 * time.Minute},
	}
}

func (c *engineClient) do(ctx context.Context, method, path string, in, out interface{}) error {
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
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	ok, msg, err := response.Decode(raw, out)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !ok || resp.StatusCode >= 400 {
		return &EngineError{StatusCode: resp.StatusCode, Message: msg}
	}
	return nil
}

func (c *engineClient) ListQueue(ctx context.Context) (*domain.OfflineCartResponse, error) {
	var out domain.OfflineCartResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/offline-cart", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *engineClient) AddToCart(ctx context.Context, req *domain.AddToCartRequest) (*domain.AddToCartResponse, error) {
	var out domain.AddToCartResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/cart/items", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *engineClient) RemoveFromQueue(ctx context.Context, sku string) (*domain.OfflineCartResponse, error) {
	var out domain.OfflineCartResponse
	if err := c.do(ctx, http.MethodDelete, "/api/v1/offline-cart/"+url.PathEscape(sku), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *engineClient) ClearQueue(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/offline-cart", nil, nil)
}

func (c *engineClient) TriggerSync(ctx context.Context, cartID string) (*domain.SyncStatus, error) {
	var out domain.SyncStatus
	if err := c.do(ctx, http.MethodPost, "/api/v1/sync", &domain.SyncRequest{CartID: cartID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *engineClient) RunSync(ctx context.Context, cartID string) (*domain.PassResult, error) {
	var out domain.PassResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/sync?wait=true", &domain.SyncRequest{CartID: cartID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *engineClient) SyncStatus(ctx context.Context) (*domain.SyncStatus, error) {
	var out domain.SyncStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/sync/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *engineClient) Cart(ctx context.Context) (*domain.CartView, error) {
	var out domain.CartView
	if err := c.do(ctx, http.MethodGet, "/api/v1/cart", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *engineClient) Connectivity(ctx context.Context) (*domain.ConnectivityStatus, error) {
	var out domain.ConnectivityStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/connectivity", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *engineClient) SetConnectivity(ctx context.Context, mode domain.ConnectivityMode) (*domain.ConnectivityStatus, error) {
	var out domain.ConnectivityStatus
	req := &domain.SetConnectivityRequest{Mode: mode}
	if err := c.do(ctx, http.MethodPut, "/api/v1/connectivity", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
