package service

import (
	"context"
	"fmt"
	"sync"

	"offline-cart-sync/internal/domain"
	"offline-cart-sync/internal/events"
	"offline-cart-sync/internal/logger"
	"offline-cart-sync/internal/repository"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// QueueService is the offline queue store. Every operation runs under one
// mutex, so a read-modify-write is atomic with respect to the others in this
// process. The persisted queue is only replaced after a successful write.
type QueueService struct {
	mu       sync.Mutex
	repo     repository.OfflineQueueRepository
	bus      *events.Bus
	validate *validator.Validate
	log      *zap.SugaredLogger
}

func NewQueueService(repo repository.OfflineQueueRepository, bus *events.Bus, log *zap.SugaredLogger) *QueueService {
	return &QueueService{
		repo:     repo,
		bus:      bus,
		validate: validator.New(),
		log:      logger.OrNop(log),
	}
}

// Enqueue merges item into the queue by SKU. A zero quantity means 1.
func (s *QueueService) Enqueue(ctx context.Context, item domain.OfflineLineItem) error {
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	if err := s.validate.Struct(item); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLineItem, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}

	items = repository.MergeLineItem(items, item)
	if err := s.repo.Save(ctx, items); err != nil {
		return err
	}

	s.log.Debugw("Queued offline line item", "sku", item.SKU, "quantity", item.Quantity)
	s.changed(items)
	return nil
}

// Remove drops every entry for sku and returns the resulting queue.
func (s *QueueService) Remove(ctx context.Context, sku string) ([]domain.OfflineLineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}

	kept := make([]domain.OfflineLineItem, 0, len(items))
	for _, it := range items {
		if it.SKU != sku {
			kept = append(kept, it)
		}
	}

	if err := s.repo.Save(ctx, kept); err != nil {
		return nil, err
	}

	s.changed(kept)
	return kept, nil
}

// Acknowledge removes an item that reached the server cart. If the stored
// entry grew after it was read, only the acknowledged quantity is taken off.
func (s *QueueService) Acknowledge(ctx context.Context, item domain.OfflineLineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}

	next := make([]domain.OfflineLineItem, 0, len(items))
	for _, it := range items {
		if it.SKU == item.SKU {
			if it.Quantity > item.Quantity {
				it.Quantity -= item.Quantity
				next = append(next, it)
			}
			continue
		}
		next = append(next, it)
	}

	if err := s.repo.Save(ctx, next); err != nil {
		return err
	}

	s.changed(next)
	return nil
}

func (s *QueueService) PeekAll(ctx context.Context) ([]domain.OfflineLineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.repo.Load(ctx)
}

func (s *QueueService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Delete(ctx); err != nil {
		return err
	}

	s.changed(nil)
	return nil
}

// Count is the sum of queued quantities.
func (s *QueueService) Count(ctx context.Context) (int, error) {
	items, err := s.PeekAll(ctx)
	if err != nil {
		return 0, err
	}
	return domain.ItemCount(items), nil
}

func (s *QueueService) changed(items []domain.OfflineLineItem) {
	count := domain.ItemCount(items)
	offlineQueueQuantity.Set(float64(count))

	s.bus.Publish(events.Event{
		Topic:   events.TopicOfflineCartChanged,
		Payload: events.OfflineCartChanged{Count: count, Items: len(items)},
	})
}
