package repository

import (
	"bytes"
	"strings"

	"offline-cart-sync/internal/domain"

	json "github.com/goccy/go-json"
)

// Older clients persisted values under several key names and shapes: bare
// JSON, a quoted string, a raw unquoted string, or a {"value": "<json>"}
// envelope. These helpers are the only place those shapes are understood.

type legacyEnvelope struct {
	Value json.RawMessage `json:"value"`
}

// legacyString extracts a non-empty string from any known legacy shape.
func legacyString(raw []byte) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}

	switch raw[0] {
	case '{':
		var env legacyEnvelope
		if err := json.Unmarshal(raw, &env); err != nil || len(env.Value) == 0 || string(env.Value) == "null" {
			return "", false
		}
		var inner string
		if err := json.Unmarshal(env.Value, &inner); err != nil {
			return "", false
		}
		// The envelope value is itself usually a JSON-encoded string.
		var nested string
		if err := json.Unmarshal([]byte(inner), &nested); err == nil && nested != "" {
			return nested, true
		}
		inner = strings.Trim(inner, `"`)
		return inner, inner != ""
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			s = strings.Trim(string(raw), `"`)
		}
		return s, s != ""
	default:
		s := strings.Trim(string(raw), `"`)
		return s, s != ""
	}
}

type legacyLineItem struct {
	SKU          string   `json:"sku"`
	Quantity     *int     `json:"quantity"`
	Name         string   `json:"name"`
	Price        *float64 `json:"price"`
	Currency     string   `json:"currency"`
	ThumbnailURL string   `json:"thumbnailUrl"`
}

// legacyItems decodes a bare list or an envelope holding one. Entries are
// normalised: missing quantities become 1, blank SKUs are dropped and repeated
// SKUs are merged.
func legacyItems(raw []byte) ([]domain.OfflineLineItem, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, false
	}

	switch raw[0] {
	case '[':
		var items []legacyLineItem
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, false
		}
		return normalizeLegacy(items), true
	case '{':
		var env legacyEnvelope
		if err := json.Unmarshal(raw, &env); err != nil || len(env.Value) == 0 {
			return nil, false
		}
		var inner string
		if err := json.Unmarshal(env.Value, &inner); err == nil {
			return legacyItems([]byte(inner))
		}
		return legacyItems(env.Value)
	default:
		return nil, false
	}
}

func normalizeLegacy(items []legacyLineItem) []domain.OfflineLineItem {
	out := make([]domain.OfflineLineItem, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.SKU) == "" {
			continue
		}
		qty := 1
		if it.Quantity != nil && *it.Quantity > 0 {
			qty = *it.Quantity
		}
		out = MergeLineItem(out, domain.OfflineLineItem{
			SKU:          it.SKU,
			Quantity:     qty,
			Name:         it.Name,
			Price:        it.Price,
			Currency:     it.Currency,
			ThumbnailURL: it.ThumbnailURL,
		})
	}
	return out
}

// MergeLineItem adds item to items, summing quantities when the SKU is
// already present. The input slice is not modified.
func MergeLineItem(items []domain.OfflineLineItem, item domain.OfflineLineItem) []domain.OfflineLineItem {
	out := make([]domain.OfflineLineItem, len(items), len(items)+1)
	copy(out, items)
	for i := range out {
		if out[i].SKU == item.SKU {
			out[i].Quantity += item.Quantity
			return out
		}
	}
	return append(out, item)
}
