// Package cartserver is a small reference implementation of the remote cart
// backend the engine talks to. It stores carts and products in CouchDB.
package cartserver

import (
	"errors"
	"time"

	"offline-cart-sync/internal/domain"
)

var (
	ErrCartNotFound       = errors.New("cart not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrOutOfStock         = errors.New("product is out of stock")
	ErrInvalidCredentials = errors.New("invalid client credentials")
)

type Cart struct {
	ID        string            `json:"id"`
	Items     []domain.CartLine `json:"items"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Contents is the wire view of a cart.
func (c *Cart) Contents() *domain.CartContents {
	items := c.Items
	if items == nil {
		items = []domain.CartLine{}
	}
	total := 0
	for _, line := range items {
		total += line.Quantity
	}
	return &domain.CartContents{
		CartID:        c.ID,
		Items:         items,
		TotalQuantity: total,
	}
}

type Product struct {
	SKU         string             `json:"sku"`
	Name        string             `json:"name"`
	StockStatus domain.StockStatus `json:"stock_status"`
	Price       *float64           `json:"price,omitempty"`
	Currency    string             `json:"currency,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

type TokenRequest struct {
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type AddItemRequest struct {
	SKU      string `json:"sku" validate:"required,max=128"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

type UpsertProductRequest struct {
	Name        string             `json:"name" validate:"max=512"`
	StockStatus domain.StockStatus `json:"stock_status" validate:"required,oneof=IN_STOCK OUT_OF_STOCK"`
	Price       *float64           `json:"price" validate:"omitempty,gte=0"`
	Currency    string             `json:"currency" validate:"omitempty,len=3"`
}
