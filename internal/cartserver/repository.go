package cartserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-kivik/kivik/v4"
)

type CartRepository interface {
	Create(ctx context.Context, cart *Cart) error
	FindByID(ctx context.Context, id string) (*Cart, error)
	Update(ctx context.Context, cart *Cart) error
}

type ProductRepository interface {
	FindBySKU(ctx context.Context, sku string) (*Product, error)
	Upsert(ctx context.Context, product *Product) error
}

type cartDocument struct {
	ID   string `json:"_id"`
	Rev  string `json:"_rev,omitempty"`
	Type string `json:"type"`
	Cart
}

type productDocument struct {
	ID   string `json:"_id"`
	Rev  string `json:"_rev,omitempty"`
	Type string `json:"type"`
	Product
}

type cartRepository struct {
	client *kivik.Client
	dbName string
}

func NewCartRepository(client *kivik.Client, dbName string) CartRepository {
	return &cartRepository{
		client: client,
		dbName: dbName,
	}
}

func cartDocID(id string) string {
	return fmt.Sprintf("cart:%s", id)
}

func (r *cartRepository) Create(ctx context.Context, cart *Cart) error {
	db := r.client.DB(r.dbName)

	doc := cartDocument{ID: cartDocID(cart.ID), Type: "cart", Cart: *cart}
	if _, err := db.Put(ctx, doc.ID, doc); err != nil {
		return fmt.Errorf("failed to create cart: %w", err)
	}

	return nil
}

func (r *cartRepository) FindByID(ctx context.Context, id string) (*Cart, error) {
	db := r.client.DB(r.dbName)

	var doc cartDocument
	if err := db.Get(ctx, cartDocID(id)).ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to find cart by ID: %w", err)
	}

	return &doc.Cart, nil
}

func (r *cartRepository) Update(ctx context.Context, cart *Cart) error {
	db := r.client.DB(r.dbName)
	docID := cartDocID(cart.ID)

	rev, err := db.GetRev(ctx, docID)
	if err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return ErrCartNotFound
		}
		return fmt.Errorf("failed to fetch cart revision: %w", err)
	}

	doc := cartDocument{ID: docID, Rev: rev, Type: "cart", Cart: *cart}
	if _, err := db.Put(ctx, docID, doc); err != nil {
		return fmt.Errorf("failed to update cart: %w", err)
	}

	return nil
}

type productRepository struct {
	client *kivik.Client
	dbName string
}

func NewProductRepository(client *kivik.Client, dbName string) ProductRepository {
	return &productRepository{
		client: client,
		dbName: dbName,
	}
}

func productDocID(sku string) string {
	return fmt.Sprintf("product:%s", sku)
}

func (r *productRepository) FindBySKU(ctx context.Context, sku string) (*Product, error) {
	db := r.client.DB(r.dbName)

	var doc productDocument
	if err := db.Get(ctx, productDocID(sku)).ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}

	return &doc.Product, nil
}

func (r *productRepository) Upsert(ctx context.Context, product *Product) error {
	db := r.client.DB(r.dbName)
	docID := productDocID(product.SKU)

	rev, err := db.GetRev(ctx, docID)
	if err != nil && kivik.HTTPStatus(err) != http.StatusNotFound {
		return fmt.Errorf("failed to fetch product revision: %w", err)
	}

	doc := productDocument{ID: docID, Rev: rev, Type: "product", Product: *product}
	if _, err := db.Put(ctx, docID, doc); err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}

	return nil
}
