package cartserver

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"offline-cart-sync/internal/cartapi"
	"offline-cart-sync/internal/config"
	"offline-cart-sync/internal/domain"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T, products ...Product) *httptest.Server {
	t.Helper()
	svc := newTestService(t, products...)
	router := NewRouter(NewHandler(svc), testJWTSecret, config.CORSConfig{}, zaptest.NewLogger(t).Sugar())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestRouter_RequiresBearer(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/carts", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_TokenRejectsBadSecret(t *testing.T) {
	srv := newTestServer(t)

	body, _ := json.Marshal(TokenRequest{ClientID: testClientID, ClientSecret: "not-the-secret"})
	resp, err := http.Post(srv.URL+"/api/v1/auth/token", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// The engine's cart client talks to this server end to end.
func TestRouter_WithCartClient(t *testing.T) {
	srv := newTestServer(t,
		Product{SKU: "A", Name: "Apron", StockStatus: domain.StockInStock},
		Product{SKU: "GONE", Name: "Gone", StockStatus: domain.StockOutOfStock},
	)
	client := cartapi.NewClient(cartapi.Config{
		BaseURL:      srv.URL,
		ClientID:     testClientID,
		ClientSecret: testSecret,
		Timeout:      5 * time.Second,
	}, zaptest.NewLogger(t).Sugar())
	ctx := context.Background()

	cartID, err := client.CreateCart(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, cartID)

	require.NoError(t, client.AddLineItem(ctx, cartID, "A", 2))
	require.NoError(t, client.AddLineItem(ctx, cartID, "A", 1))

	err = client.AddLineItem(ctx, cartID, "GONE", 1)
	assert.True(t, errors.Is(err, cartapi.ErrOutOfStock))

	err = client.AddLineItem(ctx, cartID, "MISSING", 1)
	assert.True(t, errors.Is(err, cartapi.ErrNotFound))

	stock, err := client.QueryStock(ctx, "GONE")
	require.NoError(t, err)
	assert.Equal(t, domain.StockOutOfStock, stock.Status)
	assert.Equal(t, "Gone", stock.Name)

	contents, err := client.QueryCartContents(ctx, cartID)
	require.NoError(t, err)
	assert.Equal(t, cartID, contents.CartID)
	assert.Equal(t, 3, contents.TotalQuantity)
	require.Len(t, contents.Items, 1)
	assert.Equal(t, "A", contents.Items[0].SKU)
}
