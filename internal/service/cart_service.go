package service

import (
	"context"
	"errors"
	"fmt"

	"offline-cart-sync/internal/cartapi"
	"offline-cart-sync/internal/connectivity"
	"offline-cart-sync/internal/domain"
	"offline-cart-sync/internal/logger"

	"go.uber.org/zap"
)

// CartService is the entry point for cart mutations. While offline, items go
// to the queue; while online they go straight to the remote cart.
type CartService struct {
	queue    *QueueService
	resolver *CartResolver
	remote   cartapi.CartClient
	observer connectivity.Observer
	log      *zap.SugaredLogger
}

func NewCartService(
	queue *QueueService,
	resolver *CartResolver,
	remote cartapi.CartClient,
	observer connectivity.Observer,
	log *zap.SugaredLogger,
) *CartService {
	return &CartService{
		queue:    queue,
		resolver: resolver,
		remote:   remote,
		observer: observer,
		log:      logger.OrNop(log),
	}
}

func (s *CartService) AddToCart(ctx context.Context, req *domain.AddToCartRequest) (*domain.AddToCartResponse, error) {
	item := req.LineItem()

	if !s.observer.Online() {
		return s.enqueue(ctx, item)
	}

	cartID, err := s.resolver.Resolve(ctx, "")
	if err != nil {
		s.log.Warnw("No cart available, queueing item", "sku", item.SKU, "error", err)
		return s.enqueue(ctx, item)
	}

	err = s.remote.AddLineItem(ctx, cartID, item.SKU, item.Quantity)
	if errors.Is(err, cartapi.ErrNotFound) && s.cartGone(ctx, cartID) {
		s.log.Warnw("Remembered cart no longer exists, replacing it", "cart_id", cartID)
		cartID, err = s.retryOnNewCart(ctx, item)
	}
	if err != nil {
		if errors.Is(err, cartapi.ErrOutOfStock) {
			return nil, fmt.Errorf("%w: %s", ErrOutOfStock, item.SKU)
		}
		s.log.Warnw("Add to cart failed, queueing item", "sku", item.SKU, "cart_id", cartID, "error", err)
		return s.enqueue(ctx, item)
	}

	return &domain.AddToCartResponse{
		Outcome: domain.OutcomeAdded,
		CartID:  cartID,
		Item:    item,
	}, nil
}

// cartGone tells a missing cart apart from a missing product, both of which
// the backend reports as not found.
func (s *CartService) cartGone(ctx context.Context, cartID string) bool {
	_, err := s.remote.QueryCartContents(ctx, cartID)
	return errors.Is(err, cartapi.ErrNotFound)
}

// retryOnNewCart drops the stale identity and tries the add once more
// against whatever cart the resolver hands out next.
func (s *CartService) retryOnNewCart(ctx context.Context, item domain.OfflineLineItem) (string, error) {
	if err := s.resolver.Forget(ctx); err != nil {
		return "", err
	}
	cartID, err := s.resolver.Resolve(ctx, "")
	if err != nil {
		return "", err
	}
	return cartID, s.remote.AddLineItem(ctx, cartID, item.SKU, item.Quantity)
}

func (s *CartService) enqueue(ctx context.Context, item domain.OfflineLineItem) (*domain.AddToCartResponse, error) {
	if err := s.queue.Enqueue(ctx, item); err != nil {
		return nil, err
	}
	return &domain.AddToCartResponse{
		Outcome: domain.OutcomeQueued,
		Item:    item,
	}, nil
}

// Contents returns the offline queue and, when online with a known cart,
// the server cart. A failing server query leaves Server empty.
func (s *CartService) Contents(ctx context.Context) (*domain.CartView, error) {
	items, err := s.queue.PeekAll(ctx)
	if err != nil {
		return nil, err
	}

	view := &domain.CartView{
		Online:  s.observer.Online(),
		Offline: items,
		Count:   domain.ItemCount(items),
	}

	cartID, err := s.resolver.Known(ctx)
	if err != nil {
		return nil, err
	}
	view.CartID = cartID

	if view.Online && cartID != "" {
		contents, err := s.remote.QueryCartContents(ctx, cartID)
		if err != nil {
			s.log.Warnw("Failed to load server cart", "cart_id", cartID, "error", err)
		} else {
			view.Server = contents
			view.Count += contents.TotalQuantity
		}
	}

	return view, nil
}
