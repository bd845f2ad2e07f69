package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"offline-cart-sync/internal/domain"

	json "github.com/goccy/go-json"
)

const (
	cartIdentityKey     = "cart_identity.v1"
	cartIdentityVersion = 1
	// A permanent cart saved by an earlier session wins over the current one
	// and is consumed on first read.
	permanentCartIDKey = "permanentCartId"
)

var legacyCartIdentityKeys = []string{
	"M2_VENIA_BROWSER_PERSISTENCE__cartId",
	"M2_VENIA_BROWSER_PERSISTENCE__cart_id",
	"m2_venia_browser_persistence__cartId",
	"cartId",
}

type cartIdentityDocument struct {
	Version int `json:"version"`
	domain.CartIdentity
}

type CartIdentityRepository interface {
	// Get returns ErrNotFound when no identity has been stored.
	Get(ctx context.Context) (string, error)
	Save(ctx context.Context, cartID string) error
	Clear(ctx context.Context) error
}

type cartIdentityRepository struct {
	store KeyValueStore
}

func NewCartIdentityRepository(store KeyValueStore) CartIdentityRepository {
	return &cartIdentityRepository{
		store: store,
	}
}

func (r *cartIdentityRepository) Get(ctx context.Context) (string, error) {
	if id, err := r.adopt(ctx, permanentCartIDKey); err != nil || id != "" {
		return id, err
	}

	raw, err := r.store.Get(ctx, cartIdentityKey)
	if err == nil {
		var doc cartIdentityDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return "", fmt.Errorf("failed to decode cart identity: %w", err)
		}
		if doc.CartID == "" {
			return "", ErrNotFound
		}
		return doc.CartID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("failed to load cart identity: %w", err)
	}

	for _, key := range legacyCartIdentityKeys {
		if id, err := r.adopt(ctx, key); err != nil || id != "" {
			return id, err
		}
	}

	return "", ErrNotFound
}

// adopt moves a cart id found under key into the current schema.
func (r *cartIdentityRepository) adopt(ctx context.Context, key string) (string, error) {
	raw, err := r.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}

	id, ok := legacyString(raw)
	if !ok {
		return "", nil
	}

	if err := r.Save(ctx, id); err != nil {
		return "", err
	}
	if err := r.store.Remove(ctx, key); err != nil {
		return "", err
	}

	return id, nil
}

func (r *cartIdentityRepository) Save(ctx context.Context, cartID string) error {
	if cartID == "" {
		return errors.New("cart id is required")
	}

	data, err := json.Marshal(cartIdentityDocument{
		Version: cartIdentityVersion,
		CartIdentity: domain.CartIdentity{
			CartID:  cartID,
			SavedAt: time.Now().UTC(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to encode cart identity: %w", err)
	}

	if err := r.store.Set(ctx, cartIdentityKey, data); err != nil {
		return fmt.Errorf("failed to save cart identity: %w", err)
	}

	return nil
}

func (r *cartIdentityRepository) Clear(ctx context.Context) error {
	if err := r.store.Remove(ctx, cartIdentityKey); err != nil {
		return fmt.Errorf("failed to clear cart identity: %w", err)
	}
	return nil
}
