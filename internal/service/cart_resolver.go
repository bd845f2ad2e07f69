package service

import (
	"context"
	"errors"

	"offline-cart-sync/internal/cartapi"
	"offline-cart-sync/internal/logger"
	"offline-cart-sync/internal/repository"

	"go.uber.org/zap"
)

// CartResolver finds the cart to write to: an explicit id, then the session,
// then durable storage, and finally a freshly created cart when allowed.
type CartResolver struct {
	session    *SessionContext
	identities repository.CartIdentityRepository
	remote     cartapi.CartClient
	createCart bool
	log        *zap.SugaredLogger
}

func NewCartResolver(
	session *SessionContext,
	identities repository.CartIdentityRepository,
	remote cartapi.CartClient,
	createCart bool,
	log *zap.SugaredLogger,
) *CartResolver {
	return &CartResolver{
		session:    session,
		identities: identities,
		remote:     remote,
		createCart: createCart,
		log:        logger.OrNop(log),
	}
}

// Resolve returns ErrNoCartIdentity when nothing is known and creation is
// disabled, and a *CartCreationError when the backend refused to create one.
func (r *CartResolver) Resolve(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	if id := r.session.CartID(); id != "" {
		return id, nil
	}

	id, err := r.identities.Get(ctx)
	if err == nil {
		r.session.Dispatch(SetCartID{ID: id})
		return id, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}

	if !r.createCart {
		return "", ErrNoCartIdentity
	}

	id, err = r.remote.CreateCart(ctx)
	if err != nil {
		return "", &CartCreationError{Err: err}
	}

	if err := r.identities.Save(ctx, id); err != nil {
		// The cart exists remotely; keep using it for this session.
		r.log.Errorw("Failed to persist new cart identity", "cart_id", id, "error", err)
	}
	r.session.Dispatch(SetCartID{ID: id})
	r.log.Infow("Created remote cart", "cart_id", id)

	return id, nil
}

// Forget drops the identity from the session and durable storage.
func (r *CartResolver) Forget(ctx context.Context) error {
	r.session.Dispatch(ClearCartID{})
	return r.identities.Clear(ctx)
}

// Known returns the identity without creating one.
func (r *CartResolver) Known(ctx context.Context) (string, error) {
	if id := r.session.CartID(); id != "" {
		return id, nil
	}
	id, err := r.identities.Get(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	r.session.Dispatch(SetCartID{ID: id})
	return id, nil
}
