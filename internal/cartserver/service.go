package cartserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"offline-cart-sync/internal/domain"
	"offline-cart-sync/internal/logger"
	"offline-cart-sync/pkg/hash"
	"offline-cart-sync/pkg/jwt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Credentials struct {
	ClientID         string
	ClientSecretHash string
	JWTSecret        string
	TokenExpiration  time.Duration
}

type Service struct {
	carts    CartRepository
	products ProductRepository
	creds    Credentials
	log      *zap.SugaredLogger

	// cartMu serialises read-modify-write of cart documents.
	cartMu sync.Mutex
}

func NewService(carts CartRepository, products ProductRepository, creds Credentials, log *zap.SugaredLogger) *Service {
	return &Service{
		carts:    carts,
		products: products,
		creds:    creds,
		log:      logger.OrNop(log),
	}
}

func (s *Service) IssueToken(req *TokenRequest) (*TokenResponse, error) {
	if req.ClientID != s.creds.ClientID || s.creds.ClientSecretHash == "" {
		return nil, ErrInvalidCredentials
	}

	if err := hash.VerifySecret(s.creds.ClientSecretHash, req.ClientSecret); err != nil {
		if !errors.Is(err, hash.ErrSecretMismatch) {
			s.log.Errorw("Configured client secret hash is unusable", "error", err)
		}
		return nil, ErrInvalidCredentials
	}

	token, err := jwt.GenerateToken(req.ClientID, s.creds.TokenExpiration, s.creds.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return &TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.creds.TokenExpiration.Seconds()),
	}, nil
}

func (s *Service) CreateCart(ctx context.Context) (*Cart, error) {
	now := time.Now().UTC()
	cart := &Cart{
		ID:        uuid.New().String(),
		Items:     []domain.CartLine{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.carts.Create(ctx, cart); err != nil {
		return nil, err
	}

	s.log.Infow("Cart created", "cart_id", cart.ID)
	return cart, nil
}

func (s *Service) GetCart(ctx context.Context, id string) (*Cart, error) {
	return s.carts.FindByID(ctx, id)
}

// AddItem adds quantity of sku to the cart, incrementing an existing line.
func (s *Service) AddItem(ctx context.Context, cartID string, req *AddItemRequest) (*Cart, error) {
	product, err := s.products.FindBySKU(ctx, req.SKU)
	if err != nil {
		return nil, err
	}
	if product.StockStatus == domain.StockOutOfStock {
		return nil, ErrOutOfStock
	}

	s.cartMu.Lock()
	defer s.cartMu.Unlock()

	cart, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range cart.Items {
		if cart.Items[i].SKU == req.SKU {
			cart.Items[i].Quantity += req.Quantity
			found = true
			break
		}
	}
	if !found {
		cart.Items = append(cart.Items, domain.CartLine{
			SKU:      product.SKU,
			Quantity: req.Quantity,
			Name:     product.Name,
			Price:    product.Price,
			Currency: product.Currency,
		})
	}
	cart.UpdatedAt = time.Now().UTC()

	if err := s.carts.Update(ctx, cart); err != nil {
		return nil, err
	}

	s.log.Debugw("Line item added", "cart_id", cartID, "sku", req.SKU, "quantity", req.Quantity)
	return cart, nil
}

func (s *Service) Stock(ctx context.Context, sku string) (*domain.StockInfo, error) {
	product, err := s.products.FindBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}

	return &domain.StockInfo{
		SKU:    product.SKU,
		Name:   product.Name,
		Status: product.StockStatus,
	}, nil
}

func (s *Service) UpsertProduct(ctx context.Context, sku string, req *UpsertProductRequest) (*Product, error) {
	product := &Product{
		SKU:         sku,
		Name:        req.Name,
		StockStatus: req.StockStatus,
		Price:       req.Price,
		Currency:    req.Currency,
		UpdatedAt:   time.Now().UTC(),
	}

	if err := s.products.Upsert(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}
