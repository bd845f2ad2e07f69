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
	offlineQueueKey     = "offline_cart.v1"
	offlineQueueVersion = 1
)

var legacyOfflineQueueKeys = []string{
	"offlineCartItems",
	"M2_VENIA_BROWSER_PERSISTENCE__offlineCartItems",
}

type offlineQueueDocument struct {
	Version   int                      `json:"version"`
	Items     []domain.OfflineLineItem `json:"items"`
	UpdatedAt time.Time                `json:"updated_at"`
}

type OfflineQueueRepository interface {
	// Load never fails for an absent queue; it returns an empty slice.
	Load(ctx context.Context) ([]domain.OfflineLineItem, error)
	Save(ctx context.Context, items []domain.OfflineLineItem) error
	Delete(ctx context.Context) error
}

type offlineQueueRepository struct {
	store KeyValueStore
}

func NewOfflineQueueRepository(store KeyValueStore) OfflineQueueRepository {
	return &offlineQueueRepository{
		store: store,
	}
}

func (r *offlineQueueRepository) Load(ctx context.Context) ([]domain.OfflineLineItem, error) {
	raw, err := r.store.Get(ctx, offlineQueueKey)
	if err == nil {
		var doc offlineQueueDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode offline queue: %w", err)
		}
		if doc.Version > offlineQueueVersion {
			return nil, fmt.Errorf("offline queue schema version %d is newer than supported %d", doc.Version, offlineQueueVersion)
		}
		if doc.Items == nil {
			doc.Items = []domain.OfflineLineItem{}
		}
		return doc.Items, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to load offline queue: %w", err)
	}

	return r.migrateLegacy(ctx)
}

func (r *offlineQueueRepository) migrateLegacy(ctx context.Context) ([]domain.OfflineLineItem, error) {
	for _, key := range legacyOfflineQueueKeys {
		raw, err := r.store.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read legacy offline queue %s: %w", key, err)
		}

		items, ok := legacyItems(raw)
		if !ok {
			continue
		}

		if err := r.Save(ctx, items); err != nil {
			return nil, err
		}
		if err := r.store.Remove(ctx, key); err != nil {
			return nil, err
		}
		return items, nil
	}

	return []domain.OfflineLineItem{}, nil
}

func (r *offlineQueueRepository) Save(ctx context.Context, items []domain.OfflineLineItem) error {
	if items == nil {
		items = []domain.OfflineLineItem{}
	}

	data, err := json.Marshal(offlineQueueDocument{
		Version:   offlineQueueVersion,
		Items:     items,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode offline queue: %w", err)
	}

	if err := r.store.Set(ctx, offlineQueueKey, data); err != nil {
		return fmt.Errorf("failed to save offline queue: %w", err)
	}

	return nil
}

func (r *offlineQueueRepository) Delete(ctx context.Context) error {
	keys := append([]string{offlineQueueKey}, legacyOfflineQueueKeys...)
	for _, key := range keys {
		if err := r.store.Remove(ctx, key); err != nil {
			return fmt.Errorf("failed to delete offline queue: %w", err)
		}
	}
	return nil
}
