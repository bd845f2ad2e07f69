package domain

import "time"

// CartIdentity is the opaque handle of a server-side cart.
type CartIdentity struct {
	CartID  string    `json:"cart_id"`
	SavedAt time.Time `json:"saved_at"`
}

type StockStatus string

const (
	StockInStock    StockStatus = "IN_STOCK"
	StockOutOfStock StockStatus = "OUT_OF_STOCK"
	StockUnknown    StockStatus = "UNKNOWN"
)

// ParseStockStatus maps anything unrecognised to StockUnknown.
func ParseStockStatus(s string) StockStatus {
	switch StockStatus(s) {
	case StockInStock, StockOutOfStock:
		return StockStatus(s)
	default:
		return StockUnknown
	}
}

type StockInfo struct {
	SKU    string      `json:"sku"`
	Name   string      `json:"name"`
	Status StockStatus `json:"stock_status"`
}

type CartLine struct {
	SKU      string   `json:"sku"`
	Quantity int      `json:"quantity"`
	Name     string   `json:"name,omitempty"`
	Price    *float64 `json:"price,omitempty"`
	Currency string   `json:"currency,omitempty"`
}

type CartContents struct {
	CartID        string     `json:"cart_id"`
	Items         []CartLine `json:"items"`
	TotalQuantity int        `json:"total_quantity"`
}

// SKUs returns the set of SKUs present in the cart.
func (c *CartContents) SKUs() map[string]struct{} {
	if c == nil {
		return map[string]struct{}{}
	}
	set := make(map[string]struct{}, len(c.Items))
	for _, line := range c.Items {
		set[line.SKU] = struct{}{}
	}
	return set
}

// CartView is what the engine reports for GET /api/v1/cart.
type CartView struct {
	Online  bool              `json:"online"`
	CartID  string            `json:"cart_id,omitempty"`
	Server  *CartContents     `json:"server,omitempty"`
	Offline []OfflineLineItem `json:"offline"`
	Count   int               `json:"count"`
}
