package domain

// OfflineLineItem is a cart addition recorded while the backend was
// unreachable. SKU is the identity key: a queue holds at most one entry per SKU.
type OfflineLineItem struct {
	SKU          string   `json:"sku" validate:"required,max=128"`
	Quantity     int      `json:"quantity" validate:"gt=0"`
	Name         string   `json:"name,omitempty" validate:"max=512"`
	Price        *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	Currency     string   `json:"currency,omitempty" validate:"omitempty,len=3"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty" validate:"omitempty,uri"`
}

// AddToCartRequest is accepted by the engine's cart entry point. Quantity
// defaults to 1.
type AddToCartRequest struct {
	SKU          string   `json:"sku" validate:"required,max=128"`
	Quantity     int      `json:"quantity" validate:"gte=0"`
	Name         string   `json:"name" validate:"max=512"`
	Price        *float64 `json:"price" validate:"omitempty,gte=0"`
	Currency     string   `json:"currency" validate:"omitempty,len=3"`
	ThumbnailURL string   `json:"thumbnail_url" validate:"omitempty,uri"`
}

func (r *AddToCartRequest) LineItem() OfflineLineItem {
	qty := r.Quantity
	if qty == 0 {
		qty = 1
	}
	return OfflineLineItem{
		SKU:          r.SKU,
		Quantity:     qty,
		Name:         r.Name,
		Price:        r.Price,
		Currency:     r.Currency,
		ThumbnailURL: r.ThumbnailURL,
	}
}

type AddToCartOutcome string

const (
	OutcomeQueued AddToCartOutcome = "queued"
	OutcomeAdded  AddToCartOutcome = "added"
)

type AddToCartResponse struct {
	Outcome AddToCartOutcome `json:"outcome"`
	CartID  string           `json:"cart_id,omitempty"`
	Item    OfflineLineItem  `json:"item"`
}

type OfflineCartResponse struct {
	Items []OfflineLineItem `json:"items"`
	Count int               `json:"count"`
}

// ItemCount sums quantities, the figure shown on a cart badge while offline.
func ItemCount(items []OfflineLineItem) int {
	total := 0
	for _, it := range items {
		total += it.Quantity
	}
	return total
}
